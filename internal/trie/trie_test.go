package trie

import (
	"testing"

	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
)

func v4(a, b, c, d byte, plen uint8) netaddr.NetAddr {
	return netaddr.NetAddr{Family: netaddr.FamilyV4, Bits: [16]byte{a, b, c, d}, PrefixLen: plen}
}

func TestInsertSearchExact(t *testing.T) {
	tr := New(FamilyV4)
	p := v4(10, 0, 0, 0, 8)
	if h, err := tr.Insert(p); err != nil || h == nil {
		t.Fatalf("Insert: %v, %v", h, err)
	}
	if tr.SearchExact(p) == nil {
		t.Fatal("expected exact match after insert")
	}
	if tr.SearchExact(v4(10, 0, 0, 0, 9)) != nil {
		t.Fatal("did not expect a match for a different bitlen")
	}
}

func TestRemove(t *testing.T) {
	tr := New(FamilyV4)
	p := v4(10, 0, 0, 0, 8)
	tr.Insert(p)
	tr.Remove(p)
	if tr.SearchExact(p) != nil {
		t.Fatal("expected no match after remove")
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}
	// removing an absent entry is silent
	tr.Remove(v4(1, 2, 3, 4, 32))
}

func TestRelationalQueries(t *testing.T) {
	tr := New(FamilyV4)
	tr.Insert(v4(10, 0, 0, 0, 8))

	cases := []struct {
		name              string
		addr              netaddr.NetAddr
		subnet, supernet  bool
		related           bool
	}{
		{"subnet within /8", v4(10, 1, 0, 0, 16), true, false, true},
		{"supernet of stored /8", v4(10, 0, 0, 0, 7), false, true, true},
		{"exact match", v4(10, 0, 0, 0, 8), true, true, true},
		{"disjoint", v4(192, 168, 0, 0, 16), false, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := tr.IsSubnetOfAny(c.addr); got != c.subnet {
				t.Errorf("IsSubnetOfAny = %v, want %v", got, c.subnet)
			}
			if got := tr.IsSupernetOfAny(c.addr); got != c.supernet {
				t.Errorf("IsSupernetOfAny = %v, want %v", got, c.supernet)
			}
			if got := tr.IsRelatedOfAny(c.addr); got != c.related {
				t.Errorf("IsRelatedOfAny = %v, want %v", got, c.related)
			}
		})
	}
}

func TestFamilyMismatch(t *testing.T) {
	tr := New(FamilyV4)
	v6 := netaddr.NetAddr{Family: netaddr.FamilyV6, PrefixLen: 32}
	if _, err := tr.Insert(v6); err != ErrFamilyMismatch {
		t.Fatalf("Insert across families: err = %v, want ErrFamilyMismatch", err)
	}
}

func TestClear(t *testing.T) {
	tr := New(FamilyV4)
	tr.Insert(v4(10, 0, 0, 0, 8))
	tr.Clear()
	if tr.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", tr.Len())
	}
	if tr.IsRelatedOfAny(v4(10, 0, 0, 0, 8)) {
		t.Fatal("expected empty trie after Clear")
	}
}

// duality: is_subnet_of_any(p) or is_supernet_of_any(p) == is_related_of_any(p)
func TestRelationalDuality(t *testing.T) {
	tr := New(FamilyV4)
	prefixes := []netaddr.NetAddr{v4(10, 0, 0, 0, 8), v4(172, 16, 0, 0, 12)}
	for _, p := range prefixes {
		tr.Insert(p)
	}
	probes := []netaddr.NetAddr{
		v4(10, 1, 2, 0, 24),
		v4(172, 0, 0, 0, 8),
		v4(8, 8, 8, 8, 32),
	}
	for _, p := range probes {
		want := tr.IsSubnetOfAny(p) || tr.IsSupernetOfAny(p)
		got := tr.IsRelatedOfAny(p)
		if got != want {
			t.Errorf("IsRelatedOfAny(%v) = %v, want %v", p, got, want)
		}
	}
}
