package filter

import (
	"testing"

	"github.com/ubgpsuite/bgpgrep/internal/attrset"
	"github.com/ubgpsuite/bgpgrep/internal/bgp"
	"github.com/ubgpsuite/bgpgrep/internal/cli"
	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

func asPathValue(asns ...uint32) []byte {
	b := []byte{2, byte(len(asns))} // AS_SEQUENCE
	for _, as := range asns {
		b = append(b, byte(as>>24), byte(as>>16), byte(as>>8), byte(as))
	}
	return b
}

func commValue(comms ...vm.Community) []byte {
	var b []byte
	for _, c := range comms {
		v := uint32(c)
		b = append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return b
}

func msg(attrs map[uint8][]byte, peerAS vm.WideAS) *bgp.Message {
	return &bgp.Message{
		Upd:     &bgp.Update{Attrs: attrs},
		ASSize:  bgp.ASSize4,
		PeerASN: peerAS,
	}
}

func run(t *testing.T, opt *cli.Options, m *bgp.Message) (bool, error) {
	t.Helper()
	built, err := Build(opt)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ex := vm.NewExec(built.Prog, built.Tries, built.Funcs, built.Heap)
	return ex.Run(m)
}

func TestEmptyFilterAcceptsAll(t *testing.T) {
	ok, err := run(t, &cli.Options{}, msg(nil, 0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatal("empty filter should accept everything")
	}
}

func TestPeerASFilter(t *testing.T) {
	opt := &cli.Options{PeerAS: []uint32{65001, 65002}}
	ok, err := run(t, opt, msg(nil, 65002))
	if err != nil || !ok {
		t.Fatalf("expected accept for matching peer AS, got ok=%v err=%v", ok, err)
	}
	ok, err = run(t, opt, msg(nil, 9999))
	if err != nil || ok {
		t.Fatalf("expected reject for non-matching peer AS, got ok=%v err=%v", ok, err)
	}
}

func TestAttrFilter(t *testing.T) {
	opt := &cli.Options{AttrCodes: attrset.New(bgp.AttrMultiExitDisc)}
	ok, err := run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(1)}, 0))
	if err != nil || ok {
		t.Fatalf("expected reject when attribute absent, got ok=%v err=%v", ok, err)
	}
	ok, err = run(t, opt, msg(map[uint8][]byte{bgp.AttrMultiExitDisc: {0, 0, 0, 1}}, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept when attribute present, got ok=%v err=%v", ok, err)
	}
}

func TestCommunityFilter(t *testing.T) {
	opt := &cli.Options{CommTerms: []cli.CommTerm{{Text: "65001:100"}}}
	attrs := map[uint8][]byte{bgp.AttrCommunities: commValue(vm.Community(65001<<16 | 100))}
	ok, err := run(t, opt, msg(attrs, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept when community present, got ok=%v err=%v", ok, err)
	}

	opt = &cli.Options{CommTerms: []cli.CommTerm{{Text: "65001:200"}}}
	ok, err = run(t, opt, msg(attrs, 0))
	if err != nil || ok {
		t.Fatalf("expected reject when community absent, got ok=%v err=%v", ok, err)
	}

	optNeg := &cli.Options{CommTerms: []cli.CommTerm{{Text: "65001:200", Negate: true}}}
	ok, err = run(t, optNeg, msg(attrs, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept for negated absent community, got ok=%v err=%v", ok, err)
	}
}

func TestPathAnchoredStart(t *testing.T) {
	opt := &cli.Options{PathTerms: []cli.PathTerm{{Expr: "^65001"}}}
	ok, err := run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(65001, 65002, 65003)}, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept for anchored-start match, got ok=%v err=%v", ok, err)
	}
	ok, err = run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(1, 65001)}, 0))
	if err != nil || ok {
		t.Fatalf("expected reject when 65001 is not first, got ok=%v err=%v", ok, err)
	}
}

func TestPathWildcardSplit(t *testing.T) {
	// "65001 * 65003" requires 65001 to appear, then later 65003 to appear,
	// as two independent AND-chain segments.
	opt := &cli.Options{PathTerms: []cli.PathTerm{{Expr: "65001 * 65003"}}}
	ok, err := run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(65001, 65002, 65003)}, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept for two-segment match, got ok=%v err=%v", ok, err)
	}
	ok, err = run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(65003, 65001)}, 0))
	if err != nil || ok {
		t.Fatalf("expected reject when segments are out of order, got ok=%v err=%v", ok, err)
	}
}

func TestPathNegated(t *testing.T) {
	opt := &cli.Options{PathTerms: []cli.PathTerm{{Expr: "^65001", Negate: true}}}
	ok, err := run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(65001)}, 0))
	if err != nil || ok {
		t.Fatalf("expected reject for -P match, got ok=%v err=%v", ok, err)
	}
	ok, err = run(t, opt, msg(map[uint8][]byte{bgp.AttrASPath: asPathValue(1)}, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept for -P non-match, got ok=%v err=%v", ok, err)
	}
}

func TestPrefixRelatedFilter(t *testing.T) {
	opt := &cli.Options{PrefixOp: cli.PrefixRelated, PrefixList: []string{"192.0.2.0/24"}}
	nlri, err := netaddr.Parse("192.0.2.0/25")
	if err != nil {
		t.Fatal(err)
	}
	m := msg(nil, 0)
	m.Upd.NLRI = []netaddr.NetAddr{nlri}
	ok, err := run(t, opt, m)
	if err != nil || !ok {
		t.Fatalf("expected accept for related prefix, got ok=%v err=%v", ok, err)
	}

	disjoint, err := netaddr.Parse("198.51.100.0/24")
	if err != nil {
		t.Fatal(err)
	}
	m2 := msg(nil, 0)
	m2.Upd.NLRI = []netaddr.NetAddr{disjoint}
	ok, err = run(t, opt, m2)
	if err != nil || ok {
		t.Fatalf("expected reject for disjoint prefix, got ok=%v err=%v", ok, err)
	}
}

func TestLoopDetection(t *testing.T) {
	// A loop requires j < i-1 with path[j] == path[i], i starting at 2.
	looped := asPathValue(1, 2, 3, 2, 4)
	clean := asPathValue(1, 2, 3, 4, 5)

	keepOnly := &cli.Options{Loop: cli.LoopKeepOnly}
	ok, err := run(t, keepOnly, msg(map[uint8][]byte{bgp.AttrASPath: looped}, 0))
	if err != nil || !ok {
		t.Fatalf("expected accept (has loop) for -l, got ok=%v err=%v", ok, err)
	}
	ok, err = run(t, keepOnly, msg(map[uint8][]byte{bgp.AttrASPath: clean}, 0))
	if err != nil || ok {
		t.Fatalf("expected reject (no loop) for -l, got ok=%v err=%v", ok, err)
	}

	discard := &cli.Options{Loop: cli.LoopDiscard}
	ok, err = run(t, discard, msg(map[uint8][]byte{bgp.AttrASPath: looped}, 0))
	if err != nil || ok {
		t.Fatalf("expected reject (has loop) for -L, got ok=%v err=%v", ok, err)
	}
}
