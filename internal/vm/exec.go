package vm

import "github.com/ubgpsuite/bgpgrep/internal/trie"

// State records why an Exec has stopped, mirroring the teacher's
// ExecutionState for the same reason: callers can distinguish "still
// running" from the three ways a run can end.
type State uint8

const (
	// Running means Step has not yet reached a terminal instruction.
	Running State = iota

	// Accepted means the program halted with a true verdict.
	Accepted

	// Rejected means the program halted with a false verdict.
	Rejected

	// Errored means the program aborted; Exec.Err holds the cause.
	Errored
)

// NativeFunc is a builder-registered intrinsic invoked by CALL. It operates
// on the Exec's stack and heap directly (pushing whatever result it
// produces) and returns a RuntimeError-wrapped cause on failure.
type NativeFunc func(e *Exec) error

// accessorKind distinguishes which opcode family currently owns the
// amortized iterator, since the NLRI/withdrawn access mask and the AS-path
// access mask share numeric bit values (1, 2, 4) but mean different things.
type accessorKind uint8

const (
	accessorNone accessorKind = iota
	accessorAddr
	accessorASPath
)

// Exec is one program execution: the mutable state threaded through the
// fetch/dispatch loop for a single decoded message. A fresh Exec (or a
// Reset one) is used per message; Program, constant pool, heap, and
// user-populated tries are supplied once and reused across many messages.
type Exec struct {
	Prog   *Program
	Tries  []*trieHandle
	Funcs  []NativeFunc
	Heap   *Heap
	consts []Cell // per-Exec copy of Prog.Consts; slots K_PEER_AS/K_PEER_ADDR are live

	msg Message

	pc    int
	stack []Cell

	curblk int
	exarg  uint32

	curTrieV4 int
	curTrieV6 int

	kind     accessorKind
	addrMask uint8
	addrIter AddrIterator
	asMask   uint8
	asIter   ASIterator

	State State
	Err   *RuntimeError
}

// TrieHandle is the VM's view of one owned trie: its address family (for
// SETTRIE/SETTRIE6 bitlen checks) and the trie itself. internal/filter
// populates this array; slots 0/1 are always the v4/v6 scratch tries.
type TrieHandle struct {
	Family Family
	Trie   *trie.Trie
}

// NewTrieHandle wraps a trie with the family tag the VM checks on SETTRIE.
func NewTrieHandle(t *trie.Trie) *TrieHandle {
	return &TrieHandle{Family: t.Family(), Trie: t}
}

type trieHandle = TrieHandle

const stackCeiling = 1 << 16

// NewExec builds an Exec bound to a compiled program, its trie set, its
// registered native functions, and a heap. Run resets it for each message.
func NewExec(prog *Program, tries []*trieHandle, funcs []NativeFunc, heap *Heap) *Exec {
	consts := make([]Cell, len(prog.Consts))
	copy(consts, prog.Consts)
	return &Exec{Prog: prog, Tries: tries, Funcs: funcs, Heap: heap, consts: consts}
}

// Reset prepares the Exec for a new message: PC, stack, block counter,
// transient heap marker, access-mask state, and error are all cleared. The
// two scratch tries (slots 0 and 1) are cleared as well, per spec.
func (e *Exec) Reset(msg Message) {
	e.msg = msg
	e.pc = 0
	e.stack = e.stack[:0]
	e.curblk = 0
	e.exarg = 0
	e.curTrieV4 = TrieScratchV4
	e.curTrieV6 = TrieScratchV6
	e.kind = accessorNone
	e.addrIter = nil
	e.asIter = nil
	e.State = Running
	e.Err = nil
	if len(e.consts) > KPeerAddr {
		e.consts[KPeerAS] = ASCell(msg.PeerAS())
		e.consts[KPeerAddr] = AddrCell(msg.PeerAddr())
	}
	e.Heap.ResetTemp()
	if len(e.Tries) > TrieScratchV4 {
		e.Tries[TrieScratchV4].Trie.Clear()
	}
	if len(e.Tries) > TrieScratchV6 {
		e.Tries[TrieScratchV6].Trie.Clear()
	}
}

func (e *Exec) push(c Cell) error {
	if len(e.stack) >= stackCeiling {
		return e.abort(ErrStackOverflow)
	}
	e.stack = append(e.stack, c)
	return nil
}

func (e *Exec) pop() (Cell, error) {
	if len(e.stack) == 0 {
		return Cell{}, e.abort(ErrStackUnderflow)
	}
	i := len(e.stack) - 1
	c := e.stack[i]
	e.stack = e.stack[:i]
	return c, nil
}

func (e *Exec) peek() (Cell, error) {
	if len(e.stack) == 0 {
		return Cell{}, e.abort(ErrStackUnderflow)
	}
	return e.stack[len(e.stack)-1], nil
}

// popAll drains the entire stack, returning elements in push order (index 0
// is bottom), per the AS-path matchers' and COMMEXACT's "pops entire stack
// as pattern" contract.
func (e *Exec) popAll() []Cell {
	all := e.stack
	e.stack = e.stack[:0]
	return all
}

func (e *Exec) abort(code ErrCode) error {
	op := OpNOP
	if e.pc > 0 && e.pc-1 < len(e.Prog.Code) {
		op = e.Prog.Code[e.pc-1].Op()
	}
	err := &RuntimeError{Code: code, PC: uint64(e.pc - 1), Op: op}
	e.Err = err
	e.State = Errored
	return err
}

// settle closes whatever iterator is currently amortized, per the "settle"
// contract in spec §3/§4.4: every opened iterator must be closed exactly
// once, whether the program runs to completion or aborts.
func (e *Exec) settle() {
	switch e.kind {
	case accessorAddr:
		if e.addrIter != nil {
			e.addrIter.Close()
			e.addrIter = nil
		}
	case accessorASPath:
		if e.asIter != nil {
			e.asIter.Close()
			e.asIter = nil
		}
	}
	e.kind = accessorNone
}

// Run drives the fetch/dispatch loop to completion, returning the boolean
// verdict, or an error if the program aborted.
func (e *Exec) Run(msg Message) (bool, error) {
	e.Reset(msg)
	defer e.settle() // every exit path, including abort, must settle
	for e.State == Running {
		if err := e.step(); err != nil {
			return false, err
		}
	}
	if e.State == Errored {
		return false, e.Err
	}
	if e.curblk != 0 {
		// Program counter ran off the end with open blocks: the program
		// itself is malformed, not the input.
		e.abort(ErrDanglingBlk)
		return false, e.Err
	}
	return e.State == Accepted, nil
}

func (e *Exec) requireUpdate() error {
	if !e.msg.IsUpdate() {
		return e.abort(ErrPacketMismatch)
	}
	return nil
}

// scanToEndblk advances pc past the ENDBLK matching the block we are
// currently inside (tracking nested BLK/ENDBLK pairs along the way) and
// decrements curblk to reflect that the block has closed.
func (e *Exec) scanToEndblk() error {
	depth := 1
	for depth > 0 {
		if e.pc >= len(e.Prog.Code) {
			return e.abort(ErrDanglingBlk)
		}
		switch e.Prog.Code[e.pc].Op() {
		case OpBLK:
			depth++
		case OpENDBLK:
			depth--
		}
		e.pc++
	}
	e.curblk--
	return nil
}

// step fetches and executes exactly one instruction word. An EXARG word only
// shifts its byte into the extended-argument register; any other opcode
// consumes that register as the high bits of its argument and clears it.
func (e *Exec) step() error {
	if e.pc >= len(e.Prog.Code) {
		// Running off the end of the program with the stack settled is the
		// implicit accept/reject: pop the verdict cell.
		c, err := e.pop()
		if err != nil {
			return err
		}
		if c.Truthy() {
			e.State = Accepted
		} else {
			e.State = Rejected
		}
		return nil
	}

	w := e.Prog.Code[e.pc]
	op := w.Op()
	e.pc++
	if op == OpEXARG {
		e.exarg = (e.exarg << 8) | uint32(w.Arg())
		return nil
	}
	arg := (e.exarg << 8) | uint32(w.Arg())
	e.exarg = 0

	return e.dispatch(op, w.Arg(), arg)
}

func (e *Exec) dispatch(op OpCode, arg8 byte, arg24 uint32) error {
	switch op {
	case OpNOP:
		return nil

	case OpBLK:
		e.curblk++
		return nil

	case OpENDBLK:
		if e.curblk == 0 {
			return e.abort(ErrSpuriousEndblk)
		}
		e.curblk--
		return nil

	case OpLOAD:
		return e.push(IntCell(int64(arg24)))

	case OpLOADK:
		if int(arg24) >= len(e.consts) {
			return e.abort(ErrKUndefined)
		}
		return e.push(e.consts[arg24])

	case OpUNPACK:
		return e.execUnpack()

	case OpSTORE:
		return e.execStoreDiscard(true)
	case OpDISCARD:
		return e.execStoreDiscard(false)

	case OpNOT:
		c, err := e.pop()
		if err != nil {
			return err
		}
		return e.push(BoolCell(!c.Truthy()))

	case OpCPASS:
		return e.execCPass()
	case OpCFAIL:
		return e.execCFail()

	case OpSETTLE:
		e.settle()
		return nil

	case OpHASATTR:
		if err := e.requireUpdate(); err != nil {
			return err
		}
		return e.push(BoolCell(e.msg.HasAttr(arg8)))

	case OpEXACT, OpSUBNET, OpSUPERNET, OpRELATED:
		return e.execAddrTest(op, arg8)

	case OpPFXCONTAINS, OpADDRCONTAINS, OpASCONTAINS:
		return e.execContains(op, arg24)

	case OpASPMATCH, OpASPSTARTS, OpASPENDS, OpASPEXACT:
		return e.execASPMatch(op, arg8)

	case OpCOMMEXACT:
		return e.execCommExact()

	case OpCALL:
		if int(arg24) >= len(e.Funcs) || e.Funcs[arg24] == nil {
			return e.abort(ErrFuncUndefined)
		}
		return e.Funcs[arg24](e)

	case OpSETTRIE:
		return e.execSetTrie(true, arg24)
	case OpSETTRIE6:
		return e.execSetTrie(false, arg24)

	case OpCLRTRIE:
		e.Tries[e.curTrieV4].Trie.Clear()
		return nil
	case OpCLRTRIE6:
		e.Tries[e.curTrieV6].Trie.Clear()
		return nil

	case OpADDRCMP, OpPFXCMP, OpASCMP:
		return e.execCmp(op, arg24)

	default:
		return e.abort(ErrIllegalOpcode)
	}
}

// execCPass implements the CPASS half of block/branch semantics (§4.4): a
// truthy top cell halts the program outright when outside every block, or
// short-circuits the enclosing block (leaving the cell in place) when
// inside one; a falsy cell is simply discarded.
func (e *Exec) execCPass() error {
	c, err := e.peek()
	if err != nil {
		return err
	}
	if c.Truthy() {
		if e.curblk == 0 {
			e.pop()
			e.State = Accepted
			return nil
		}
		return e.scanToEndblk()
	}
	_, err = e.pop()
	return err
}

// execCFail is CPASS's mirror: a truthy top cell fails the program (or the
// enclosing block); a falsy cell is discarded and execution continues.
func (e *Exec) execCFail() error {
	c, err := e.peek()
	if err != nil {
		return err
	}
	if c.Truthy() {
		e.pop()
		if e.curblk == 0 {
			e.State = Rejected
			return nil
		}
		return e.scanToEndblk()
	}
	_, err = e.pop()
	return err
}

func (e *Exec) execUnpack() error {
	c, err := e.pop()
	if err != nil {
		return err
	}
	if c.Kind != CellArray {
		return e.abort(ErrBadArray)
	}
	if err := e.Heap.CheckArray(c.Array); err != nil {
		return e.abort(ErrBadArray)
	}
	d := c.Array
	for i := uint32(0); i < d.Nels; i++ {
		off := d.Base + uint64(i)*uint64(d.Elsiz)
		buf := e.Heap.Bytes(off, int(d.Elsiz))
		var v uint64
		for _, b := range buf {
			v = (v << 8) | uint64(b)
		}
		switch d.Elsiz {
		case 4:
			if err := e.push(CommunityCell(Community(uint32(v)))); err != nil {
				return err
			}
		default:
			if err := e.push(ASCell(WideAS(int64(v)))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Exec) execStoreDiscard(store bool) error {
	c, err := e.pop()
	if err != nil {
		return err
	}
	if c.Kind != CellAddr {
		return e.abort(ErrSurprisingBytes)
	}
	var h *trieHandle
	switch c.Addr.Family {
	case FamilyV4:
		h = e.Tries[e.curTrieV4]
	case FamilyV6:
		h = e.Tries[e.curTrieV6]
	default:
		return e.abort(ErrSurprisingBytes)
	}
	if store {
		if _, err := h.Trie.Insert(c.Addr); err != nil {
			return e.abort(ErrOutOfMemory)
		}
		return nil
	}
	h.Trie.Remove(c.Addr)
	return nil
}

func (e *Exec) execSetTrie(v4 bool, idx uint32) error {
	if int(idx) >= len(e.Tries) {
		return e.abort(ErrTrieUndefined)
	}
	h := e.Tries[idx]
	if v4 {
		if h.Family != FamilyV4 {
			return e.abort(ErrTrieMismatch)
		}
		e.curTrieV4 = int(idx)
	} else {
		if h.Family != FamilyV6 {
			return e.abort(ErrTrieMismatch)
		}
		e.curTrieV6 = int(idx)
	}
	return nil
}

// ensureAddrIter opens (or re-uses, per the amortization rule) the
// NLRI/withdrawn address iterator named by access.
func (e *Exec) ensureAddrIter(access uint8) error {
	settleFlag := access&AccessSettle != 0
	mask := access &^ AccessSettle
	if e.kind != accessorAddr || e.addrMask != mask || settleFlag {
		e.settle()
		all := mask&AccessAll != 0
		switch {
		case mask&AccessNLRI != 0:
			e.addrIter = e.msg.OpenNLRI(all)
		case mask&AccessWithdrawn != 0:
			e.addrIter = e.msg.OpenWithdrawn(all)
		default:
			return e.abort(ErrBadAccessor)
		}
		e.kind = accessorAddr
		e.addrMask = mask
	}
	return nil
}

func (e *Exec) execAddrTest(op OpCode, access uint8) error {
	if err := e.requireUpdate(); err != nil {
		return err
	}
	if err := e.ensureAddrIter(access); err != nil {
		return err
	}
	result := false
	for {
		addr, ok := e.addrIter.Next()
		if !ok {
			break
		}
		var h *trieHandle
		switch addr.Family {
		case FamilyV4:
			h = e.Tries[e.curTrieV4]
		case FamilyV6:
			h = e.Tries[e.curTrieV6]
		default:
			return e.abort(ErrSurprisingBytes)
		}
		var match bool
		switch op {
		case OpEXACT:
			match = h.Trie.SearchExact(addr) != nil
		case OpSUBNET:
			match = h.Trie.IsSubnetOfAny(addr)
		case OpSUPERNET:
			match = h.Trie.IsSupernetOfAny(addr)
		case OpRELATED:
			match = h.Trie.IsRelatedOfAny(addr)
		}
		if match {
			result = true
			break
		}
	}
	return e.push(BoolCell(result))
}

func (e *Exec) execContains(op OpCode, kidx uint32) error {
	if int(kidx) >= len(e.consts) {
		return e.abort(ErrKUndefined)
	}
	k := e.consts[kidx]
	found := false
	// Drain every cell the accumulate intrinsic pushed, even after a match:
	// this op is always immediately preceded by CALL accumulate-ASes/addrs,
	// and leaving earlier-pushed cells behind would corrupt whatever guard
	// runs next.
	for len(e.stack) > 0 {
		c, err := e.pop()
		if err != nil {
			return err
		}
		var eq bool
		switch op {
		case OpPFXCONTAINS:
			eq = c.Kind == CellAddr && k.Kind == CellAddr && c.Addr.PrefixEqual(k.Addr)
		case OpADDRCONTAINS:
			eq = c.Kind == CellAddr && k.Kind == CellAddr && c.Addr.NAddrEqual(k.Addr)
		case OpASCONTAINS:
			eq = c.Kind == CellAS && k.Kind == CellAS && c.AS == k.AS
		}
		found = found || eq
	}
	return e.push(BoolCell(found))
}

func (e *Exec) execCmp(op OpCode, kidx uint32) error {
	if int(kidx) >= len(e.consts) {
		return e.abort(ErrKUndefined)
	}
	k := e.consts[kidx]
	c, err := e.pop()
	if err != nil {
		return err
	}
	var eq bool
	switch op {
	case OpADDRCMP:
		eq = c.Kind == CellAddr && k.Kind == CellAddr && c.Addr.NAddrEqual(k.Addr)
	case OpPFXCMP:
		eq = c.Kind == CellAddr && k.Kind == CellAddr && c.Addr.PrefixEqual(k.Addr)
	case OpASCMP:
		eq = c.Kind == CellAS && k.Kind == CellAS && c.AS == k.AS
	}
	return e.push(BoolCell(eq))
}

func aspathKindOf(access uint8) ASPathKind {
	switch access &^ AccessSettle {
	case AccessAS4Path:
		return ASPathAS4
	case AccessRealASPath:
		return ASPathReal
	default:
		return ASPathRaw
	}
}

func (e *Exec) ensureASIter(access uint8) error {
	settleFlag := access&AccessSettle != 0
	mask := access &^ AccessSettle
	if e.kind != accessorASPath || e.asMask != mask || settleFlag {
		e.settle()
		e.asIter = e.msg.OpenASPath(aspathKindOf(access))
		e.kind = accessorASPath
		e.asMask = mask
	}
	return nil
}

// asMatches reports whether pattern element p matches path element a, with
// AS_ANY as the pattern-side wildcard.
func asMatches(p, a WideAS) bool { return p == ASAny || p == a }

func (e *Exec) execASPMatch(op OpCode, access uint8) error {
	if err := e.requireUpdate(); err != nil {
		return err
	}
	if err := e.ensureASIter(access); err != nil {
		return err
	}
	pattern := make([]WideAS, 0, len(e.stack))
	for _, c := range e.popAll() {
		pattern = append(pattern, c.AS)
	}

	var result bool
	switch op {
	case OpASPSTARTS:
		result = e.aspStarts(pattern)
	case OpASPENDS:
		result = e.aspEnds(pattern)
	case OpASPEXACT:
		result = e.aspExact(pattern)
	case OpASPMATCH:
		result = e.aspSubstring(pattern)
	}
	return e.push(BoolCell(result))
}

func (e *Exec) aspStarts(pattern []WideAS) bool {
	for i := 0; i < len(pattern); i++ {
		a, ok := e.asIter.Next()
		if !ok {
			return false
		}
		if !asMatches(pattern[i], a) {
			return false
		}
	}
	return true
}

func (e *Exec) aspEnds(pattern []WideAS) bool {
	n := len(pattern)
	window := make([]WideAS, 0, n)
	for {
		a, ok := e.asIter.Next()
		if !ok {
			break
		}
		window = append(window, a)
		if len(window) > n {
			window = window[1:]
		}
	}
	if len(window) != n {
		return false
	}
	for i := 0; i < n; i++ {
		if !asMatches(pattern[i], window[i]) {
			return false
		}
	}
	return true
}

func (e *Exec) aspExact(pattern []WideAS) bool {
	var path []WideAS
	for {
		a, ok := e.asIter.Next()
		if !ok {
			break
		}
		path = append(path, a)
		if len(path) > len(pattern) {
			return false
		}
	}
	if len(path) != len(pattern) {
		return false
	}
	for i := range pattern {
		if !asMatches(pattern[i], path[i]) {
			return false
		}
	}
	return true
}

func (e *Exec) aspSubstring(pattern []WideAS) bool {
	n := len(pattern)
	if n == 0 {
		return true
	}
	window := make([]WideAS, 0, n)
	for {
		for len(window) < n {
			a, ok := e.asIter.Next()
			if !ok {
				return false
			}
			window = append(window, a)
		}
		match := true
		for i := 0; i < n; i++ {
			if !asMatches(pattern[i], window[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
		window = window[1:]
	}
}

func (e *Exec) execCommExact() error {
	if err := e.requireUpdate(); err != nil {
		return err
	}
	pattern := e.popAll()
	seen := make([]bool, len(pattern))
	it := e.msg.OpenCommunities()
	defer it.Close()
	count := 0
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		for i, p := range pattern {
			if seen[i] {
				continue
			}
			if p.Kind == CellCommunity && p.Comm == c {
				seen[i] = true
				count++
				break
			}
		}
	}
	return e.push(BoolCell(count == len(pattern)))
}
