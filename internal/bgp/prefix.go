package bgp

import (
	"errors"

	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
)

var errTruncated = errors.New("bgp: message truncated")

// readPrefix decodes one NLRI-encoded prefix (RFC 4271 §4.3): one length
// byte in bits, followed by ceil(bitlen/8) address bytes, left-justified.
// Returns the prefix and the number of bytes consumed.
func readPrefix(family netaddr.Family, data []byte) (netaddr.NetAddr, int, error) {
	if len(data) < 1 {
		return netaddr.NetAddr{}, 0, errTruncated
	}
	bitlen := data[0]
	if bitlen > family.MaxBitlen() {
		return netaddr.NetAddr{}, 0, errTruncated
	}
	nbytes := int(bitlen+7) / 8
	if len(data) < 1+nbytes {
		return netaddr.NetAddr{}, 0, errTruncated
	}
	var addr netaddr.NetAddr
	addr.Family = family
	addr.PrefixLen = bitlen
	copy(addr.Bits[:], data[1:1+nbytes])
	return addr, 1 + nbytes, nil
}

// readPrefixes decodes a run of NLRI-encoded prefixes filling exactly len(data).
func readPrefixes(family netaddr.Family, data []byte) ([]netaddr.NetAddr, error) {
	var out []netaddr.NetAddr
	for len(data) > 0 {
		p, n, err := readPrefix(family, data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		data = data[n:]
	}
	return out, nil
}
