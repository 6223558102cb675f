// Package filter assembles a vm.Program (plus its trie set and native-call
// table) from a parsed command line, per the eight-step filter builder
// (spec.md §4.8). Each enabled option contributes one guard; guards are
// emitted in the fixed step order of Build (peer AS, peer address,
// attributes, communities, paths, prefixes, loops), regardless of the order
// options appear on the command line, and short-circuit the whole program
// to reject as soon as one fails, so the cheaper earlier guards gate the
// later, more expensive ones (path and prefix matching).
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ubgpsuite/bgpgrep/internal/cli"
	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
	"github.com/ubgpsuite/bgpgrep/internal/trie"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
	"github.com/ubgpsuite/bgpgrep/internal/vm/asm"
)

// heapSize is the VM heap's total capacity: permanent space for community
// arrays declared here, plus transient space for the loop-detection
// intrinsic's path buffer.
const heapSize = 1 << 20

// Built is a compiled filter, ready to drive repeated Exec runs over many
// decoded messages.
type Built struct {
	Prog  *vm.Program
	Tries []*vm.TrieHandle
	Funcs []vm.NativeFunc
	Heap  *vm.Heap
}

// peerSet holds the -a/-A and -i/-I lists outside bytecode; the two
// accumulate intrinsics read it at CALL time (spec §4.8 step 1/2).
type peerSet struct {
	ases  []vm.WideAS
	addrs []vm.NetAddr
}

func (p *peerSet) PeerASes() []vm.WideAS   { return p.ases }
func (p *peerSet) PeerAddrs() []vm.NetAddr { return p.addrs }

type builder struct {
	asm   *asm.Assembler
	heap  *vm.Heap
	tries []*vm.TrieHandle
	funcs []vm.NativeFunc
}

// Build compiles opt into a runnable filter.
func Build(opt *cli.Options) (*Built, error) {
	b := &builder{
		asm:  asm.New(),
		heap: vm.NewHeap(heapSize),
		tries: []*vm.TrieHandle{
			vm.NewTrieHandle(trie.New(vm.FamilyV4)), // TrieScratchV4
			vm.NewTrieHandle(trie.New(vm.FamilyV6)), // TrieScratchV6
		},
	}

	if err := b.buildPeerAS(opt); err != nil {
		return nil, err
	}
	if err := b.buildPeerAddr(opt); err != nil {
		return nil, err
	}
	if err := b.buildAttrs(opt); err != nil {
		return nil, err
	}
	if err := b.buildComms(opt); err != nil {
		return nil, err
	}
	if err := b.buildPaths(opt); err != nil {
		return nil, err
	}
	if err := b.buildPrefixes(opt); err != nil {
		return nil, err
	}
	if err := b.buildLoop(opt); err != nil {
		return nil, err
	}

	// Step 8: fall through to accept once every guard above has passed.
	if err := b.asm.EmitArg(vm.OpLOAD, 1); err != nil {
		return nil, err
	}

	return &Built{Prog: b.asm.Program(), Tries: b.tries, Funcs: b.funcs, Heap: b.heap}, nil
}

func (b *builder) registerFunc(f vm.NativeFunc) uint32 {
	idx := uint32(len(b.funcs))
	b.funcs = append(b.funcs, f)
	return idx
}

// orBlock emits n terms as an OR-block: BLK; term_0; CPASS; term_1; CPASS;
// ...; term_{n-1}; ENDBLK, per the pattern spelled out literally in step 6
// and implied by steps 3/4. A single term needs no wrapping block at all.
func (b *builder) orBlock(n int, term func(i int) error) error {
	if n == 0 {
		return nil
	}
	if n == 1 {
		return term(0)
	}
	if err := b.asm.Emit(vm.OpBLK); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := term(i); err != nil {
			return err
		}
		if i < n-1 {
			if err := b.asm.Emit(vm.OpCPASS); err != nil {
				return err
			}
		}
	}
	return b.asm.Emit(vm.OpENDBLK)
}

// rejectUnless closes out an OR-block guard: NOT;CFAIL, so the program
// rejects outright unless at least one OR-block alternative was truthy.
func (b *builder) rejectUnless() error {
	if err := b.asm.Emit(vm.OpNOT); err != nil {
		return err
	}
	return b.asm.Emit(vm.OpCFAIL)
}

// Step 1: CALL accumulate-ASes; ASCONTAINS K_PEER_AS; NOT; CFAIL.
func (b *builder) buildPeerAS(opt *cli.Options) error {
	if len(opt.PeerAS) == 0 {
		return nil
	}
	ases := make([]vm.WideAS, len(opt.PeerAS))
	for i, n := range opt.PeerAS {
		ases[i] = vm.WideAS(n)
	}
	idx := b.registerFunc(vm.AccumulateASes(&peerSet{ases: ases}))
	if err := b.asm.EmitArg(vm.OpCALL, idx); err != nil {
		return err
	}
	if err := b.asm.EmitArg(vm.OpASCONTAINS, vm.KPeerAS); err != nil {
		return err
	}
	return b.rejectUnless()
}

// Step 2: CALL accumulate-addrs; ADDRCONTAINS K_PEER_ADDR; NOT; CFAIL.
func (b *builder) buildPeerAddr(opt *cli.Options) error {
	if len(opt.PeerAddr) == 0 {
		return nil
	}
	addrs := make([]vm.NetAddr, len(opt.PeerAddr))
	for i, s := range opt.PeerAddr {
		a, err := netaddr.Parse(s)
		if err != nil {
			return fmt.Errorf("filter: peer address: %w", err)
		}
		addrs[i] = a
	}
	idx := b.registerFunc(vm.AccumulateAddrs(&peerSet{addrs: addrs}))
	if err := b.asm.EmitArg(vm.OpCALL, idx); err != nil {
		return err
	}
	if err := b.asm.EmitArg(vm.OpADDRCONTAINS, vm.KPeerAddr); err != nil {
		return err
	}
	return b.rejectUnless()
}

// Step 3: OR-block of HASATTR c, one per selected attribute code. opt's
// attribute codes are collapsed through an attrset.Set so that naming the
// same code twice (once directly, once via -T) doesn't emit a redundant
// HASATTR term.
func (b *builder) buildAttrs(opt *cli.Options) error {
	set := opt.AttrCodes
	if set == nil || set.Len() == 0 {
		return nil
	}
	codes := set.Codes()
	err := b.orBlock(len(codes), func(i int) error {
		return b.asm.EmitArg8(vm.OpHASATTR, codes[i])
	})
	if err != nil {
		return err
	}
	return b.rejectUnless()
}

// Step 4: OR-block, each term LOADK k; UNPACK; COMMEXACT, NOT if negated.
func (b *builder) buildComms(opt *cli.Options) error {
	if len(opt.CommTerms) == 0 {
		return nil
	}
	err := b.orBlock(len(opt.CommTerms), func(i int) error {
		term := opt.CommTerms[i]
		comms, err := parseCommunityString(term.Text)
		if err != nil {
			return err
		}
		kidx, err := b.declareCommunityArray(comms)
		if err != nil {
			return err
		}
		if err := b.asm.EmitArg(vm.OpLOADK, kidx); err != nil {
			return err
		}
		if err := b.asm.Emit(vm.OpUNPACK); err != nil {
			return err
		}
		if err := b.asm.Emit(vm.OpCOMMEXACT); err != nil {
			return err
		}
		if term.Negate {
			return b.asm.Emit(vm.OpNOT)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return b.rejectUnless()
}

func (b *builder) declareCommunityArray(comms []vm.Community) (uint32, error) {
	n := len(comms)
	off, err := b.heap.Alloc(n*4, vm.ZonePerm)
	if err != nil {
		return 0, fmt.Errorf("filter: community pool: %w", err)
	}
	buf := b.heap.Bytes(off, n*4)
	for i, c := range comms {
		v := uint32(c)
		buf[i*4+0] = byte(v >> 24)
		buf[i*4+1] = byte(v >> 16)
		buf[i*4+2] = byte(v >> 8)
		buf[i*4+3] = byte(v)
	}
	desc := vm.ArrayDesc{Base: off, Nels: uint32(n), Elsiz: 4}
	return b.asm.DeclareCell(vm.ArrayCell(desc)), nil
}

// parseCommunityString parses the standard "ASN:VAL" community grammar
// (space-separated tokens, spec §6).
func parseCommunityString(s string) ([]vm.Community, error) {
	toks := strings.Fields(s)
	if len(toks) == 0 {
		return nil, fmt.Errorf("filter: empty community list")
	}
	out := make([]vm.Community, 0, len(toks))
	for _, t := range toks {
		asn, val, ok := strings.Cut(t, ":")
		if !ok {
			return nil, fmt.Errorf("filter: bad community %q", t)
		}
		a, err := strconv.ParseUint(asn, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("filter: bad community %q: %w", t, err)
		}
		v, err := strconv.ParseUint(val, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("filter: bad community %q: %w", t, err)
		}
		out = append(out, vm.Community(uint32(a)<<16|uint32(v)))
	}
	return out, nil
}

// Step 5: OR-of-AND blocks over -p/-P path expressions.
func (b *builder) buildPaths(opt *cli.Options) error {
	if len(opt.PathTerms) == 0 {
		return nil
	}
	err := b.orBlock(len(opt.PathTerms), func(i int) error {
		return b.buildPathTerm(opt.PathTerms[i])
	})
	if err != nil {
		return err
	}
	return b.rejectUnless()
}

// buildPathTerm emits one -p/-P expression's AND chain. A single segment
// (no '*' in the expression) is one opcode. Multiple segments are combined
// with a De Morgan construction: NOT each segment's result, short-circuit
// via CPASS the moment any segment is false (landing past the chain's own
// block with that segment's inverted-true left on the stack), then a
// trailing NOT outside the block restores the intended sense. This differs
// from a literal per-segment NOT;CFAIL reading of spec §4.8 step 5, which
// leaves the stack in different states on the short-circuit path (empty)
// versus the fall-through path (one cell) — not usable by the surrounding
// OR-block's CPASS chaining without an inconsistency. Recorded in
// DESIGN.md.
func (b *builder) buildPathTerm(term cli.PathTerm) error {
	segs, anchorStart, anchorEnd, err := parsePathExpr(term.Expr)
	if err != nil {
		return err
	}

	emitSeg := func(i int, settle bool) error {
		op := aspOpFor(i, len(segs), anchorStart, anchorEnd)
		access := vm.AccessRealASPath
		if settle {
			access |= vm.AccessSettle
		}
		for _, as := range segs[i] {
			kidx := b.asm.DeclareCell(vm.ASCell(as))
			if err := b.asm.EmitArg(vm.OpLOADK, kidx); err != nil {
				return err
			}
		}
		return b.asm.EmitArg8(op, access)
	}

	if len(segs) == 1 {
		if err := emitSeg(0, true); err != nil {
			return err
		}
	} else {
		if err := b.asm.Emit(vm.OpBLK); err != nil {
			return err
		}
		for i := range segs {
			if err := emitSeg(i, i == 0); err != nil {
				return err
			}
			if err := b.asm.Emit(vm.OpNOT); err != nil {
				return err
			}
			if i < len(segs)-1 {
				if err := b.asm.Emit(vm.OpCPASS); err != nil {
					return err
				}
			}
		}
		if err := b.asm.Emit(vm.OpENDBLK); err != nil {
			return err
		}
		if err := b.asm.Emit(vm.OpNOT); err != nil {
			return err
		}
	}
	if term.Negate {
		return b.asm.Emit(vm.OpNOT)
	}
	return nil
}

// aspOpFor picks the matcher opcode for segment i of n, per spec §4.8 step 5
// and the anchor rules of §4.5/§6: only the first segment can anchor to the
// start, only the last to the end; a segment that is neither first-anchored
// nor last-anchored is a plain substring match.
func aspOpFor(i, n int, anchorStart, anchorEnd bool) vm.OpCode {
	first := i == 0
	last := i == n-1
	switch {
	case first && anchorStart && last && anchorEnd:
		return vm.OpASPEXACT
	case first && anchorStart:
		return vm.OpASPSTARTS
	case last && anchorEnd:
		return vm.OpASPENDS
	default:
		return vm.OpASPMATCH
	}
}

// parsePathExpr parses the AS-path expression grammar of spec §6:
// expr := ['^'] term (term)* ['$']; term := as | '?' | '*'.
// '*' splits the expression into independent AND-chain segments; '?' is the
// AS_ANY wildcard; a leading '^' / trailing '$' anchors the whole
// expression, whether attached to the first/last token or written as a
// token of its own.
func parsePathExpr(expr string) (segs [][]vm.WideAS, anchorStart, anchorEnd bool, err error) {
	toks := strings.Fields(expr)
	if len(toks) == 0 {
		return nil, false, false, fmt.Errorf("filter: empty path expression")
	}
	if strings.HasPrefix(toks[0], "^") {
		anchorStart = true
		toks[0] = toks[0][1:]
		if toks[0] == "" {
			toks = toks[1:]
		}
	}
	if n := len(toks); n > 0 && strings.HasSuffix(toks[n-1], "$") {
		anchorEnd = true
		toks[n-1] = toks[n-1][:len(toks[n-1])-1]
		if toks[n-1] == "" {
			toks = toks[:n-1]
		}
	}
	if len(toks) == 0 {
		return nil, false, false, fmt.Errorf("filter: empty path expression")
	}

	var cur []vm.WideAS
	for _, t := range toks {
		switch t {
		case "*":
			segs = append(segs, cur)
			cur = nil
		case "?":
			cur = append(cur, vm.ASAny)
		default:
			n, perr := strconv.ParseUint(t, 10, 32)
			if perr != nil {
				return nil, false, false, fmt.Errorf("filter: bad AS-path term %q: %w", t, perr)
			}
			cur = append(cur, vm.WideAS(n))
		}
	}
	segs = append(segs, cur)
	for _, s := range segs {
		if len(s) == 0 {
			return nil, false, false, fmt.Errorf("filter: empty term around '*' in %q", expr)
		}
	}
	return segs, anchorStart, anchorEnd, nil
}

// Step 6: SETTRIE v4; SETTRIE6 v6; BLK; OP(SETTLE|ALL|NLRI); CPASS;
// OP(SETTLE|ALL|WITHDRAWN); ENDBLK; NOT; CFAIL.
func (b *builder) buildPrefixes(opt *cli.Options) error {
	if opt.PrefixOp == cli.PrefixNone {
		return nil
	}
	v4 := trie.New(vm.FamilyV4)
	v6 := trie.New(vm.FamilyV6)
	for _, s := range opt.PrefixList {
		a, err := netaddr.Parse(s)
		if err != nil {
			return fmt.Errorf("filter: prefix: %w", err)
		}
		var t *trie.Trie
		switch a.Family {
		case vm.FamilyV4:
			t = v4
		case vm.FamilyV6:
			t = v6
		}
		if _, err := t.Insert(a); err != nil {
			return fmt.Errorf("filter: prefix: %w", err)
		}
	}
	v4idx := uint32(len(b.tries))
	b.tries = append(b.tries, vm.NewTrieHandle(v4))
	v6idx := uint32(len(b.tries))
	b.tries = append(b.tries, vm.NewTrieHandle(v6))

	if err := b.asm.EmitArg(vm.OpSETTRIE, v4idx); err != nil {
		return err
	}
	if err := b.asm.EmitArg(vm.OpSETTRIE6, v6idx); err != nil {
		return err
	}

	op := prefixOpcode(opt.PrefixOp)
	if err := b.asm.Emit(vm.OpBLK); err != nil {
		return err
	}
	if err := b.asm.EmitArg8(op, vm.AccessSettle|vm.AccessAll|vm.AccessNLRI); err != nil {
		return err
	}
	if err := b.asm.Emit(vm.OpCPASS); err != nil {
		return err
	}
	if err := b.asm.EmitArg8(op, vm.AccessSettle|vm.AccessAll|vm.AccessWithdrawn); err != nil {
		return err
	}
	if err := b.asm.Emit(vm.OpENDBLK); err != nil {
		return err
	}
	return b.rejectUnless()
}

func prefixOpcode(op cli.PrefixOp) vm.OpCode {
	switch op {
	case cli.PrefixExact:
		return vm.OpEXACT
	case cli.PrefixSubnet:
		return vm.OpSUBNET
	case cli.PrefixSupernet:
		return vm.OpSUPERNET
	default:
		return vm.OpRELATED
	}
}

// Step 7: CALL find-loops; optional NOT; CFAIL. -l keeps only looped paths
// (reject when find-loops is false, so NOT precedes CFAIL); -L discards
// looped paths (reject when find-loops is true, CFAIL alone).
func (b *builder) buildLoop(opt *cli.Options) error {
	if opt.Loop == cli.LoopIgnore {
		return nil
	}
	idx := b.registerFunc(vm.FindLoops)
	if err := b.asm.EmitArg(vm.OpCALL, idx); err != nil {
		return err
	}
	if opt.Loop == cli.LoopKeepOnly {
		if err := b.asm.Emit(vm.OpNOT); err != nil {
			return err
		}
	}
	return b.asm.Emit(vm.OpCFAIL)
}
