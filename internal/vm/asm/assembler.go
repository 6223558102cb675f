// Package asm builds executable filter programs: a flat stream of 16-bit
// instruction words (vm.Word) plus the constant pool LOADK indexes into.
//
// Grounded on the teacher's peggyvm.Assembler, but far simpler: the
// teacher's Assembler exists mostly to solve variable-length branch-offset
// encoding (its multi-pass Fix()/distance() fixed point), because PEG
// bytecode has forward jumps whose offsets depend on the size of the code
// between them. This VM has no jumps at all — control flow is expressed
// entirely with BLK/ENDBLK nesting and CPASS/CFAIL peeking, both span-free —
// so the only variable-width encoding problem left is EXARG prefixing,
// which this package solves in a single forward pass.
package asm

import (
	"fmt"

	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

// maxArg is the largest value an EXARG-widened argument can carry: 31 bits,
// leaving the sign bit free so a widened argument always fits in an int32
// without surprises.
const maxArg = 1<<31 - 1

// Assembler accumulates instruction words and constant-pool entries for one
// filter program. It is used once per compiled program; build a new
// Assembler for each one.
type Assembler struct {
	code   []vm.Word
	consts []vm.Cell

	// intConst deduplicates identical scalar constants declared through
	// DeclareConst, so declaring the same value more than once reuses one
	// slot instead of bloating the pool.
	intConst map[int64]int
}

// New returns an empty Assembler. The first K_BASE_SIZ slots (K_PEER_AS and
// K_PEER_ADDR) are reserved for the interpreter, which refreshes them per
// message; callers' own constants start at index K_BASE_SIZ.
func New() *Assembler {
	consts := make([]vm.Cell, vm.KBaseSiz)
	consts[vm.KPeerAS] = vm.ASCell(0)
	consts[vm.KPeerAddr] = vm.Cell{}
	return &Assembler{consts: consts, intConst: make(map[int64]int)}
}

// Emit appends a bare instruction carrying no argument. It is an error to
// call Emit for an opcode that the opcode table says takes an argument.
func (a *Assembler) Emit(op vm.OpCode) error {
	if op.TakesArg() {
		return fmt.Errorf("asm: %s requires an argument", op)
	}
	a.code = append(a.code, vm.MakeWord(op, 0))
	return nil
}

// EmitArg8 appends an instruction whose argument fits in the bare 8-bit
// immediate field (no EXARG prefixing).
func (a *Assembler) EmitArg8(op vm.OpCode, arg uint8) error {
	if !op.TakesArg8() {
		return fmt.Errorf("asm: %s does not take an 8-bit argument", op)
	}
	a.code = append(a.code, vm.MakeWord(op, arg))
	return nil
}

// EmitArg appends an instruction whose argument may need widening beyond 8
// bits. It prefixes as many EXARG words as needed, most-significant byte
// first, so that the interpreter's left-shift-and-OR accumulation
// reconstructs value exactly.
func (a *Assembler) EmitArg(op vm.OpCode, value uint32) error {
	if !op.TakesArg24() {
		return fmt.Errorf("asm: %s does not take a widenable argument", op)
	}
	if value > maxArg {
		return fmt.Errorf("asm: argument %d exceeds %d-bit limit", value, 31)
	}
	var prefix []byte
	for hi := value >> 8; hi > 0; hi >>= 8 {
		prefix = append(prefix, byte(hi&0xff))
	}
	// prefix was built least-significant-of-the-remainder first; the
	// interpreter accumulates left-shifted, so emit most-significant first.
	for i := len(prefix) - 1; i >= 0; i-- {
		a.code = append(a.code, vm.MakeWord(vm.OpEXARG, prefix[i]))
	}
	a.code = append(a.code, vm.MakeWord(op, byte(value&0xff)))
	return nil
}

// DeclareConst interns an integer/AS/community scalar into the constant pool
// and returns its K-index, reusing an existing slot for an identical value
// already declared through this helper.
func (a *Assembler) DeclareConst(v int64) uint32 {
	if idx, ok := a.intConst[v]; ok {
		return uint32(idx)
	}
	idx := len(a.consts)
	a.consts = append(a.consts, vm.IntCell(v))
	a.intConst[v] = idx
	return uint32(idx)
}

// DeclareCell interns an arbitrary pre-built Cell (an address, array
// descriptor, etc.) and returns its K-index. Unlike DeclareConst this never
// dedups, since Cell doesn't have a cheap comparable key.
func (a *Assembler) DeclareCell(c vm.Cell) uint32 {
	idx := len(a.consts)
	a.consts = append(a.consts, c)
	return uint32(idx)
}

// Len reports the number of instruction words emitted so far.
func (a *Assembler) Len() int { return len(a.code) }

// Program finalizes the assembled instruction stream and constant pool.
func (a *Assembler) Program() *vm.Program {
	code := make([]vm.Word, len(a.code))
	copy(code, a.code)
	consts := make([]vm.Cell, len(a.consts))
	copy(consts, a.consts)
	return &vm.Program{Code: code, Consts: consts}
}
