// Package mrt decodes RFC 6396 MRT archive records: the common envelope
// header, TABLE_DUMP_V2 PEER_INDEX_TABLE, and BGP4MP live-update records.
// Every other record type, TABLE_DUMP_V2 RIB entries included, is returned
// with its header and raw body only (Msg is nil); its contents are not
// decoded. There is no MRT decoder anywhere in the retrieval
// pack, so this package is grounded on the RFC 6396 layout described in the
// glossary and decoded by hand in the same manual-BigEndian style
// internal/bgp uses (itself grounded on davidcoles-bgp and
// pobradovic08-route-beacon-ri's framing conventions).
package mrt

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ubgpsuite/bgpgrep/internal/bgp"
	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

// Record types (RFC 6396 §3, RFC 6396bis BGP4MP additions).
const (
	TypeTableDumpV2 uint16 = 13
	TypeBGP4MP      uint16 = 16
	TypeBGP4MPET    uint16 = 17
)

// TABLE_DUMP_V2 subtypes.
const (
	SubtypePeerIndexTable uint16 = 1
	SubtypeRIBIPv4Unicast uint16 = 2
	SubtypeRIBIPv6Unicast uint16 = 4
)

// BGP4MP subtypes.
const (
	SubtypeBGP4MPMessage    uint16 = 1
	SubtypeBGP4MPMessageAS4 uint16 = 4
)

var (
	ErrTruncated = errors.New("mrt: record truncated")
	ErrShortRead = errors.New("mrt: short read on header")
)

// Header is the 12-byte MRT common header.
type Header struct {
	Timestamp uint32
	Type      uint16
	Subtype   uint16
	Length    uint32
}

// Record is one decoded MRT record: its envelope header and the raw message
// payload it carries, plus whatever peer context the reader has resolved
// for it so far.
type Record struct {
	Header Header
	Peer   PeerEntry
	Msg    *bgp.Message
	Raw    []byte // for -c: the BGP message of a BGP4MP record, else the whole record body
}

// PeerEntry is one row of a PEER_INDEX_TABLE: the collector's view of one
// BGP session it is exporting.
type PeerEntry struct {
	ASN  uint32
	Addr netaddr.NetAddr
}

// Reader decodes a stream of MRT records, maintaining the
// PEER_INDEX_TABLE state needed to resolve BGP4MP peer references.
type Reader struct {
	r     io.Reader
	peers []PeerEntry
}

// NewReader wraps an already-decompressed byte stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Peers returns the peer table accumulated so far (populated once a
// PEER_INDEX_TABLE record has been read).
func (rd *Reader) Peers() []PeerEntry { return rd.peers }

func readHeader(r io.Reader) (Header, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			return Header{}, io.EOF
		}
		return Header{}, ErrShortRead
	}
	return Header{
		Timestamp: binary.BigEndian.Uint32(buf[0:4]),
		Type:      binary.BigEndian.Uint16(buf[4:6]),
		Subtype:   binary.BigEndian.Uint16(buf[6:8]),
		Length:    binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// Next decodes and returns the next record, or io.EOF at end of stream.
// TABLE_DUMP_V2 PEER_INDEX_TABLE records are consumed to populate the peer
// table and are not themselves returned to the caller; call Next again to
// get the following record.
func (rd *Reader) Next() (*Record, error) {
	for {
		hdr, err := readHeader(rd.r)
		if err != nil {
			return nil, err
		}
		body := make([]byte, hdr.Length)
		if _, err := io.ReadFull(rd.r, body); err != nil {
			return nil, ErrTruncated
		}

		switch {
		case hdr.Type == TypeTableDumpV2 && hdr.Subtype == SubtypePeerIndexTable:
			peers, err := decodePeerIndexTable(body)
			if err != nil {
				return nil, err
			}
			rd.peers = peers
			continue

		case hdr.Type == TypeBGP4MP || hdr.Type == TypeBGP4MPET:
			return rd.decodeBGP4MP(hdr, body)

		default:
			return &Record{Header: hdr, Raw: body}, nil
		}
	}
}

func decodePeerIndexTable(data []byte) ([]PeerEntry, error) {
	if len(data) < 4 {
		return nil, ErrTruncated
	}
	// collector BGP ID (4 bytes), then a view-name length-prefixed string.
	data = data[4:]
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	vnlen := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]
	if len(data) < vnlen+2 {
		return nil, ErrTruncated
	}
	data = data[vnlen:]
	count := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]

	peers := make([]PeerEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < 1 {
			return nil, ErrTruncated
		}
		peerType := data[0]
		data = data[1:]
		isIPv6 := peerType&0x01 != 0
		isAS4 := peerType&0x02 != 0

		if len(data) < 4 {
			return nil, ErrTruncated
		}
		data = data[4:] // peer BGP ID

		var addr netaddr.NetAddr
		if isIPv6 {
			if len(data) < 16 {
				return nil, ErrTruncated
			}
			addr = netaddr.NetAddr{Family: netaddr.FamilyV6, PrefixLen: 128}
			copy(addr.Bits[:], data[:16])
			data = data[16:]
		} else {
			if len(data) < 4 {
				return nil, ErrTruncated
			}
			addr = netaddr.NetAddr{Family: netaddr.FamilyV4, PrefixLen: 32}
			copy(addr.Bits[:4], data[:4])
			data = data[4:]
		}

		var asn uint32
		if isAS4 {
			if len(data) < 4 {
				return nil, ErrTruncated
			}
			asn = binary.BigEndian.Uint32(data[:4])
			data = data[4:]
		} else {
			if len(data) < 2 {
				return nil, ErrTruncated
			}
			asn = uint32(binary.BigEndian.Uint16(data[:2]))
			data = data[2:]
		}

		peers = append(peers, PeerEntry{ASN: asn, Addr: addr})
	}
	return peers, nil
}

func (rd *Reader) decodeBGP4MP(hdr Header, data []byte) (*Record, error) {
	if hdr.Type == TypeBGP4MPET {
		// BGP4MP_ET prepends a 4-byte microsecond extended-timestamp field
		// ahead of the usual BGP4MP payload (RFC 6396bis).
		if len(data) < 4 {
			return nil, ErrTruncated
		}
		data = data[4:]
	}
	as4 := hdr.Subtype == SubtypeBGP4MPMessageAS4
	asnWidth := 2
	if as4 {
		asnWidth = 4
	}
	if len(data) < 2*asnWidth+2 {
		return nil, ErrTruncated
	}
	var peerASN uint32
	if as4 {
		peerASN = binary.BigEndian.Uint32(data[0:4])
	} else {
		peerASN = uint32(binary.BigEndian.Uint16(data[0:2]))
	}
	data = data[2*asnWidth:]

	ifIndex := binary.BigEndian.Uint16(data[0:2])
	_ = ifIndex
	data = data[2:]

	if len(data) < 2 {
		return nil, ErrTruncated
	}
	afi := binary.BigEndian.Uint16(data[0:2])
	data = data[2:]

	var peerAddr netaddr.NetAddr
	switch afi {
	case 1:
		if len(data) < 8 {
			return nil, ErrTruncated
		}
		peerAddr = netaddr.NetAddr{Family: netaddr.FamilyV4, PrefixLen: 32}
		copy(peerAddr.Bits[:4], data[0:4])
		data = data[8:] // peer addr(4) + local addr(4)
	case 2:
		if len(data) < 32 {
			return nil, ErrTruncated
		}
		peerAddr = netaddr.NetAddr{Family: netaddr.FamilyV6, PrefixLen: 128}
		copy(peerAddr.Bits[:], data[0:16])
		data = data[32:] // peer addr(16) + local addr(16)
	default:
		return nil, ErrTruncated
	}

	// data now holds the raw BGP message (19-byte header + body).
	if len(data) < 19 {
		return nil, ErrTruncated
	}
	msgType := data[18]
	msgBody := data[19:]

	rec := &Record{
		Header: hdr,
		Peer:   PeerEntry{ASN: peerASN, Addr: peerAddr},
		Raw:    data,
	}
	if msgType != 2 { // not an UPDATE
		rec.Msg = &bgp.Message{}
		return rec, nil
	}

	upd, err := bgp.DecodeUpdate(msgBody)
	if err != nil {
		return nil, err
	}
	size := bgp.ASSize2
	if as4 {
		size = bgp.ASSize4
	}
	rec.Msg = &bgp.Message{
		Upd:     upd,
		ASSize:  size,
		Peer:    peerAddr,
		PeerASN: vm.WideAS(peerASN),
	}
	return rec, nil
}
