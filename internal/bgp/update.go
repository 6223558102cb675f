package bgp

import (
	"encoding/binary"

	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

// Update is a decoded BGP UPDATE message body.
type Update struct {
	Withdrawn []netaddr.NetAddr
	NLRI      []netaddr.NetAddr

	// Attrs holds the raw value bytes of every path attribute, keyed by
	// type code. Decoded on demand by the accessors below rather than
	// eagerly, since most filter programs only ever touch one or two.
	Attrs map[uint8][]byte

	mpReachNLRI   []netaddr.NetAddr
	mpUnreachNLRI []netaddr.NetAddr
	mpParsed      bool
}

// ASSize is the width (in bytes, 2 or 4) of AS numbers in the AS_PATH
// attribute of the message being decoded. BGP4MP_MESSAGE envelopes carry
// 2-byte ASNs; BGP4MP_MESSAGE_AS4 (and anything post AS4 rollout) carries
// 4-byte ASNs directly in AS_PATH, making the AS4_PATH attribute redundant
// but still sometimes present.
type ASSize int

const (
	ASSize2 ASSize = 2
	ASSize4 ASSize = 4
)

// DecodeUpdate parses a BGP UPDATE message body (the part after the common
// 19-byte BGP header).
func DecodeUpdate(data []byte) (*Update, error) {
	if len(data) < 2 {
		return nil, errTruncated
	}
	wlen := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]
	if len(data) < wlen {
		return nil, errTruncated
	}
	withdrawn, err := readPrefixes(netaddr.FamilyV4, data[:wlen])
	if err != nil {
		return nil, err
	}
	data = data[wlen:]

	if len(data) < 2 {
		return nil, errTruncated
	}
	alen := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]
	if len(data) < alen {
		return nil, errTruncated
	}
	attrs, err := decodeAttrs(data[:alen])
	if err != nil {
		return nil, err
	}
	data = data[alen:]

	nlri, err := readPrefixes(netaddr.FamilyV4, data)
	if err != nil {
		return nil, err
	}

	return &Update{Withdrawn: withdrawn, NLRI: nlri, Attrs: attrs}, nil
}

func decodeAttrs(data []byte) (map[uint8][]byte, error) {
	attrs := make(map[uint8][]byte)
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, errTruncated
		}
		flags := data[0]
		code := data[1]
		var alen int
		var hdr int
		if flags&attrFlagExtLen != 0 {
			if len(data) < 4 {
				return nil, errTruncated
			}
			alen = int(binary.BigEndian.Uint16(data[2:4]))
			hdr = 4
		} else {
			alen = int(data[2])
			hdr = 3
		}
		if len(data) < hdr+alen {
			return nil, errTruncated
		}
		attrs[code] = data[hdr : hdr+alen]
		data = data[hdr+alen:]
	}
	return attrs, nil
}

// HasAttr reports whether code is present.
func (u *Update) HasAttr(code uint8) bool {
	_, ok := u.Attrs[code]
	return ok
}

// decodeASPath parses an AS_PATH or AS4_PATH attribute value into a flat
// left-to-right sequence of ASes, concatenating AS_SET and AS_SEQUENCE
// segments in wire order (set membership order is not semantically
// meaningful for path matching, so sets are simply flattened).
func decodeASPath(data []byte, size ASSize) []vm.WideAS {
	var path []vm.WideAS
	for len(data) >= 2 {
		segType := data[0]
		_ = segType
		count := int(data[1])
		data = data[2:]
		for i := 0; i < count; i++ {
			if len(data) < int(size) {
				return path
			}
			var as uint32
			if size == ASSize4 {
				as = binary.BigEndian.Uint32(data[:4])
				data = data[4:]
			} else {
				as = uint32(binary.BigEndian.Uint16(data[:2]))
				data = data[2:]
			}
			path = append(path, vm.WideAS(as))
		}
	}
	return path
}

// RealASPath reconciles AS_PATH with AS4_PATH per RFC 6793 §4.2.3: when
// AS4_PATH is present, its entries replace the trailing run of the AS_PATH
// that corresponds to it (AS_PATH's own length is only known in terms of
// AS_TRANS-padded 2-byte segments, so the reconciled path is the 2-byte path
// with its last len(as4) entries overwritten by the as4 path — this is the
// unambiguous, commonly implemented interpretation for well-formed UPDATEs;
// malformed attribute-length mismatches are not specially diagnosed).
func RealASPath(asPath, as4Path []vm.WideAS) []vm.WideAS {
	if len(as4Path) == 0 {
		return asPath
	}
	if len(as4Path) >= len(asPath) {
		return as4Path
	}
	out := make([]vm.WideAS, len(asPath))
	copy(out, asPath)
	copy(out[len(out)-len(as4Path):], as4Path)
	return out
}

func (u *Update) parseMP() {
	if u.mpParsed {
		return
	}
	u.mpParsed = true
	if v, ok := u.Attrs[AttrMPReachNLRI]; ok {
		u.mpReachNLRI = decodeMPReach(v)
	}
	if v, ok := u.Attrs[AttrMPUnreachNLRI]; ok {
		u.mpUnreachNLRI = decodeMPUnreach(v)
	}
}

func mpFamily(afi uint16) (netaddr.Family, bool) {
	switch afi {
	case uint16(afiIPv4):
		return netaddr.FamilyV4, true
	case uint16(afiIPv6):
		return netaddr.FamilyV6, true
	default:
		return 0, false
	}
}

func decodeMPReach(data []byte) []netaddr.NetAddr {
	if len(data) < 3 {
		return nil
	}
	afi := binary.BigEndian.Uint16(data[0:2])
	data = data[3:] // skip AFI(2) + SAFI(1)
	family, ok := mpFamily(afi)
	if !ok || len(data) < 1 {
		return nil
	}
	nhlen := int(data[0])
	data = data[1:]
	if len(data) < nhlen+1 {
		return nil
	}
	data = data[nhlen:]
	data = data[1:] // reserved byte
	prefixes, _ := readPrefixes(family, data)
	return prefixes
}

func decodeMPUnreach(data []byte) []netaddr.NetAddr {
	if len(data) < 3 {
		return nil
	}
	afi := binary.BigEndian.Uint16(data[0:2])
	data = data[3:]
	family, ok := mpFamily(afi)
	if !ok {
		return nil
	}
	prefixes, _ := readPrefixes(family, data)
	return prefixes
}
