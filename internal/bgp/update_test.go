package bgp

import (
	"testing"

	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

func asPathAttr(asns ...uint32) []byte {
	b := []byte{asPathSeqSeg, byte(len(asns))}
	for _, as := range asns {
		b = append(b, byte(as>>24), byte(as>>16), byte(as>>8), byte(as))
	}
	return b
}

func TestDecodeUpdateNoWithdrawnNoNLRI(t *testing.T) {
	asPathValue := asPathAttr(1, 2, 3)
	attr := append([]byte{0, AttrASPath, byte(len(asPathValue))}, asPathValue...)

	full := []byte{0, 0} // withdrawn routes length = 0
	full = append(full, byte(len(attr)>>8), byte(len(attr)))
	full = append(full, attr...)
	// no NLRI bytes follow

	u, err := DecodeUpdate(full)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if !u.HasAttr(AttrASPath) {
		t.Fatal("expected AS_PATH attribute present")
	}
	path := decodeASPath(u.Attrs[AttrASPath], ASSize4)
	want := []vm.WideAS{1, 2, 3}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path[%d] = %d, want %d", i, path[i], want[i])
		}
	}
}

func TestRealASPathReconciliation(t *testing.T) {
	asPath := []vm.WideAS{vm.ASTrans, vm.ASTrans, 3}
	as4 := []vm.WideAS{65001, 65002}
	got := RealASPath(asPath, as4)
	want := []vm.WideAS{vm.ASTrans, 65001, 65002}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RealASPath = %v, want %v", got, want)
		}
	}
}

func TestRealASPathNoAS4(t *testing.T) {
	asPath := []vm.WideAS{1, 2, 3}
	got := RealASPath(asPath, nil)
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("RealASPath with no AS4_PATH should be unchanged, got %v", got)
	}
}

func TestMessageNonUpdate(t *testing.T) {
	m := &Message{}
	if m.IsUpdate() {
		t.Fatal("nil Upd should report IsUpdate() == false")
	}
	it := m.OpenNLRI(false)
	if _, ok := it.Next(); ok {
		t.Fatal("expected empty iterator for non-update message")
	}
}
