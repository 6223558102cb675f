package asm

import (
	"testing"

	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

func TestNewReservesPeerSlots(t *testing.T) {
	a := New()
	if got := a.DeclareConst(42); got != vm.KBaseSiz {
		t.Fatalf("first user constant landed at %d, want %d", got, vm.KBaseSiz)
	}
}

func TestDeclareConstDedups(t *testing.T) {
	a := New()
	first := a.DeclareConst(100)
	second := a.DeclareConst(100)
	if first != second {
		t.Fatalf("DeclareConst(100) twice gave distinct indices %d, %d", first, second)
	}
	third := a.DeclareConst(200)
	if third == first {
		t.Fatal("DeclareConst(200) collided with DeclareConst(100)'s index")
	}
}

func TestEmitArgWidensWithExarg(t *testing.T) {
	a := New()
	if err := a.EmitArg(vm.OpLOADK, 70000); err != nil {
		t.Fatalf("EmitArg: %v", err)
	}
	prog := a.Program()
	if len(prog.Code) < 2 {
		t.Fatalf("expected an EXARG prefix plus the opcode word, got %d words", len(prog.Code))
	}
	if prog.Code[0].Op() != vm.OpEXARG {
		t.Fatalf("first word op = %s, want EXARG", prog.Code[0].Op())
	}
	last := prog.Code[len(prog.Code)-1]
	if last.Op() != vm.OpLOADK {
		t.Fatalf("last word op = %s, want LOADK", last.Op())
	}
}

func TestEmitRejectsArgTakingOpcode(t *testing.T) {
	a := New()
	if err := a.Emit(vm.OpLOADK); err == nil {
		t.Fatal("expected error emitting an argument-taking opcode with Emit")
	}
}

func TestEmitArg8RejectsWideOpcode(t *testing.T) {
	a := New()
	if err := a.EmitArg8(vm.OpLOADK, 1); err == nil {
		t.Fatal("expected error calling EmitArg8 on a 24-bit-argument opcode")
	}
}
