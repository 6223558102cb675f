package cli

import (
	"fmt"
	"strings"

	"github.com/ubgpsuite/bgpgrep/internal/bgp"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

// FormatHexArray renders data as a C hex array literal, for bgpgrep -c.
func FormatHexArray(name string, data []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "static const unsigned char %s[] = {\n", name)
	for i, by := range data {
		if i%12 == 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "0x%02x,", by)
		if i%12 == 11 || i == len(data)-1 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	fmt.Fprintf(&b, "};\n")
	return b.String()
}

// FormatUpdateText renders a decoded UPDATE as a short human-readable text
// dump: peer, NLRI, withdrawn, AS path, and communities.
func FormatUpdateText(m *bgp.Message) string {
	var b strings.Builder
	if !m.IsUpdate() {
		return "(non-UPDATE record)\n"
	}
	fmt.Fprintf(&b, "peer %s AS%d\n", m.Peer, m.PeerASN)

	if len(m.Upd.Withdrawn) > 0 {
		b.WriteString("withdrawn:")
		for _, p := range m.Upd.Withdrawn {
			fmt.Fprintf(&b, " %s", p)
		}
		b.WriteByte('\n')
	}
	if len(m.Upd.NLRI) > 0 {
		b.WriteString("nlri:")
		for _, p := range m.Upd.NLRI {
			fmt.Fprintf(&b, " %s", p)
		}
		b.WriteByte('\n')
	}

	it := m.OpenASPath(vm.ASPathRaw)
	b.WriteString("as-path:")
	for {
		as, ok := it.Next()
		if !ok {
			break
		}
		fmt.Fprintf(&b, " %d", as)
	}
	it.Close()
	b.WriteByte('\n')

	ci := m.OpenCommunities()
	first := true
	for {
		c, ok := ci.Next()
		if !ok {
			break
		}
		if first {
			b.WriteString("communities:")
			first = false
		}
		fmt.Fprintf(&b, " %d:%d", uint32(c)>>16, uint32(c)&0xffff)
	}
	ci.Close()
	if !first {
		b.WriteByte('\n')
	}
	return b.String()
}
