package vm_test

import (
	"encoding/binary"
	"testing"

	"github.com/ubgpsuite/bgpgrep/internal/bgp"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
	"github.com/ubgpsuite/bgpgrep/internal/vm/asm"
)

func emptyMsg(peerAS vm.WideAS) *bgp.Message {
	return &bgp.Message{Upd: &bgp.Update{}, ASSize: bgp.ASSize4, PeerASN: peerAS}
}

func buildAndRun(t *testing.T, m vm.Message, build func(a *asm.Assembler)) (bool, error) {
	t.Helper()
	a := asm.New()
	build(a)
	prog := a.Program()
	ex := vm.NewExec(prog, nil, nil, vm.NewHeap(4096))
	return ex.Run(m)
}

func TestLoadTrueAccepts(t *testing.T) {
	ok, err := buildAndRun(t, emptyMsg(0), func(a *asm.Assembler) {
		a.EmitArg(vm.OpLOAD, 1)
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want accept", ok, err)
	}
}

func TestLoadFalseRejects(t *testing.T) {
	ok, err := buildAndRun(t, emptyMsg(0), func(a *asm.Assembler) {
		a.EmitArg(vm.OpLOAD, 0)
	})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want reject", ok, err)
	}
}

// A BLK whose first CPASS sees true should short-circuit straight past the
// ENDBLK, skipping the LOAD 0 that would otherwise reject.
func TestCPassShortCircuitsBlock(t *testing.T) {
	ok, err := buildAndRun(t, emptyMsg(0), func(a *asm.Assembler) {
		a.Emit(vm.OpBLK)
		a.EmitArg(vm.OpLOAD, 1)
		a.Emit(vm.OpCPASS)
		a.EmitArg(vm.OpLOAD, 0) // unreachable once CPASS short-circuits
		a.Emit(vm.OpENDBLK)
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want accept (CPASS should short-circuit)", ok, err)
	}
}

// A falsy CPASS just pops and falls through to the next term.
func TestCPassFallsThroughOnFalse(t *testing.T) {
	ok, err := buildAndRun(t, emptyMsg(0), func(a *asm.Assembler) {
		a.Emit(vm.OpBLK)
		a.EmitArg(vm.OpLOAD, 0)
		a.Emit(vm.OpCPASS)
		a.EmitArg(vm.OpLOAD, 1)
		a.Emit(vm.OpENDBLK)
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want accept (second term should run)", ok, err)
	}
}

// CFAIL outside any block halts the whole program as Rejected.
func TestCFailAtTopLevelRejects(t *testing.T) {
	ok, err := buildAndRun(t, emptyMsg(0), func(a *asm.Assembler) {
		a.EmitArg(vm.OpLOAD, 1)
		a.Emit(vm.OpCFAIL)
		a.EmitArg(vm.OpLOAD, 1) // never reached
	})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want reject", ok, err)
	}
}

func TestNotInvertsTruthiness(t *testing.T) {
	ok, err := buildAndRun(t, emptyMsg(0), func(a *asm.Assembler) {
		a.EmitArg(vm.OpLOAD, 1)
		a.Emit(vm.OpNOT)
	})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want reject (NOT true)", ok, err)
	}
}

type fixedPeers struct{ ases []vm.WideAS }

func (p *fixedPeers) PeerASes() []vm.WideAS   { return p.ases }
func (p *fixedPeers) PeerAddrs() []vm.NetAddr { return nil }

// TestLoadKReadsLivePeerAS exercises the same CALL-accumulate /
// ASCONTAINS-K_PEER_AS shape the filter builder emits for -a, confirming
// K_PEER_AS is refreshed from each message rather than fixed at build time.
func TestLoadKReadsLivePeerAS(t *testing.T) {
	a := asm.New()
	funcs := []vm.NativeFunc{vm.AccumulateASes(&fixedPeers{ases: []vm.WideAS{65001}})}
	a.EmitArg(vm.OpCALL, 0)
	a.EmitArg(vm.OpASCONTAINS, vm.KPeerAS)
	prog := a.Program()
	ex := vm.NewExec(prog, nil, funcs, vm.NewHeap(4096))

	ok, err := ex.Run(emptyMsg(65001))
	if err != nil || !ok {
		t.Fatalf("peer AS 65001: ok=%v err=%v, want accept", ok, err)
	}
	ok, err = ex.Run(emptyMsg(9999))
	if err != nil || ok {
		t.Fatalf("peer AS 9999: ok=%v err=%v, want reject", ok, err)
	}
}

// TestContainsDrainsWholeStack exercises the exact shape -a 65000 -a 65001
// -m 100:1 compiles to: CALL accumulate-ASes pushes two cells, ASCONTAINS
// matches the top (last-pushed) one. If ASCONTAINS stopped at the first
// match instead of draining the whole stack, the bottom AS65000 cell would
// survive into the following COMMEXACT's pattern and make count==len(pattern)
// unreachable, wrongly rejecting a record whose community does match.
func TestContainsDrainsWholeStack(t *testing.T) {
	a := asm.New()
	funcs := []vm.NativeFunc{vm.AccumulateASes(&fixedPeers{ases: []vm.WideAS{65000, 65001}})}
	a.EmitArg(vm.OpCALL, 0)

	kAS := a.DeclareCell(vm.ASCell(65001))
	a.EmitArg(vm.OpASCONTAINS, kAS)
	a.Emit(vm.OpNOT)
	a.Emit(vm.OpCFAIL)

	kComm := a.DeclareCell(vm.CommunityCell(vm.Community(100<<16 | 1)))
	a.EmitArg(vm.OpLOADK, kComm)
	a.Emit(vm.OpCOMMEXACT)

	prog := a.Program()
	ex := vm.NewExec(prog, nil, funcs, vm.NewHeap(4096))

	var commBytes [4]byte
	binary.BigEndian.PutUint32(commBytes[:], 100<<16|1)
	msg := &bgp.Message{
		Upd:     &bgp.Update{Attrs: map[uint8][]byte{bgp.AttrCommunities: commBytes[:]}},
		ASSize:  bgp.ASSize4,
		PeerASN: 65001,
	}

	ok, err := ex.Run(msg)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want accept (stray cell must not survive ASCONTAINS)", ok, err)
	}
}
