package vm

// ASPathKind selects which AS-path view an accessor opcode wants.
type ASPathKind uint8

const (
	ASPathRaw  ASPathKind = iota // the AS_PATH attribute as encoded
	ASPathAS4                    // the AS4_PATH attribute alone
	ASPathReal                   // AS_PATH reconciled with AS4_PATH per RFC 6793
)

// AddrIterator walks a sequence of addresses (NLRI or withdrawn routes).
// Close is always called exactly once, even if Next is never called or the
// iteration is abandoned early — this is the settle contract from spec §3.
type AddrIterator interface {
	Next() (NetAddr, bool)
	Close()
}

// ASIterator walks an AS path left-to-right.
type ASIterator interface {
	Next() (WideAS, bool)
	Close()
}

// CommIterator walks a message's community attribute.
type CommIterator interface {
	Next() (Community, bool)
	Close()
}

// Message is the decoder's view of one loaded packet, as consumed by the
// interpreter. The VM depends only on this interface, not on any concrete
// decoder, so the decoder package (internal/bgp) can evolve independently of
// the filter engine.
type Message interface {
	// IsUpdate reports whether the loaded message is a BGP UPDATE. Every
	// packet-touching opcode aborts VM_PACKET_MISMATCH when this is false.
	IsUpdate() bool

	// HasAttr reports whether the UPDATE carries a path attribute with the
	// given type code.
	HasAttr(code uint8) bool

	// OpenNLRI opens an iterator over announced prefixes. If all is false,
	// only the base (IPv4) NLRI field is visited; if true, MP_REACH_NLRI
	// addresses are included too.
	OpenNLRI(all bool) AddrIterator

	// OpenWithdrawn is OpenNLRI's counterpart for withdrawn routes.
	OpenWithdrawn(all bool) AddrIterator

	// OpenASPath opens an iterator over one of the AS-path views.
	OpenASPath(kind ASPathKind) ASIterator

	// OpenCommunities opens an iterator over the COMMUNITIES attribute.
	OpenCommunities() CommIterator

	// PeerAS and PeerAddr identify the session this message arrived on;
	// they back the K_PEER_AS / K_PEER_ADDR constant-pool slots.
	PeerAS() WideAS
	PeerAddr() NetAddr
}
