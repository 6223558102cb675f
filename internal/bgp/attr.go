// Package bgp decodes BGP UPDATE messages into the view the filter VM
// consumes (internal/vm.Message): attribute presence, NLRI/withdrawn
// iterators, AS-path variants (raw, AS4, and the AS4-reconciled "real" path),
// and communities.
//
// Grounded on davidcoles-bgp's message.go for the attribute-constant naming
// and manual big-endian wire-format style, and on
// pobradovic08-route-beacon-ri's test helpers for the same framing
// conventions applied to BMP/BGP update bytes. Unlike davidcoles-bgp (which
// builds and serializes BGP/BMP traffic for a load balancer), this package
// only ever reads: it has no Body()/Type() writer side.
package bgp

// Path attribute type codes (RFC 4271, RFC 4760, RFC 6793).
const (
	AttrOrigin         uint8 = 1
	AttrASPath         uint8 = 2
	AttrNextHop        uint8 = 3
	AttrMultiExitDisc  uint8 = 4
	AttrLocalPref      uint8 = 5
	AttrAtomicAggr     uint8 = 6
	AttrAggregator     uint8 = 7
	AttrCommunities    uint8 = 8
	AttrMPReachNLRI    uint8 = 14
	AttrMPUnreachNLRI  uint8 = 15
	AttrAS4Path        uint8 = 17
	AttrAS4Aggregator  uint8 = 18
)

// AS-path segment types (RFC 4271 §4.3).
const (
	asPathSetSeg uint8 = 1
	asPathSeqSeg uint8 = 2
)

// Address-family identifiers used by MP_REACH_NLRI/MP_UNREACH_NLRI.
const (
	afiIPv4 uint16 = 1
	afiIPv6 uint16 = 2

	safiUnicast uint8 = 1
)

// attrFlags bits (RFC 4271 §4.3); this decoder reads only the
// extended-length bit and doesn't police the others, but keeps their names
// for documentation.
const (
	attrFlagOptional   = 0x80
	attrFlagTransitive = 0x40
	attrFlagPartial    = 0x20
	attrFlagExtLen     = 0x10
)
