package bgp

import (
	"encoding/binary"

	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

// Message adapts a decoded Update (plus the peer it arrived from, and the
// AS-number width its AS_PATH was encoded with) to vm.Message. A Message
// with a nil Upd represents a non-UPDATE MRT record: every packet-touching
// opcode aborts VM_PACKET_MISMATCH against it.
type Message struct {
	Upd     *Update
	ASSize  ASSize
	Peer    netaddr.NetAddr
	PeerASN vm.WideAS
}

func (m *Message) IsUpdate() bool { return m.Upd != nil }

func (m *Message) HasAttr(code uint8) bool {
	if m.Upd == nil {
		return false
	}
	return m.Upd.HasAttr(code)
}

func (m *Message) PeerAS() vm.WideAS    { return m.PeerASN }
func (m *Message) PeerAddr() vm.NetAddr { return m.Peer }

type sliceAddrIter struct {
	items []netaddr.NetAddr
	i     int
}

func (it *sliceAddrIter) Next() (vm.NetAddr, bool) {
	if it.i >= len(it.items) {
		return vm.NetAddr{}, false
	}
	a := it.items[it.i]
	it.i++
	return a, true
}
func (it *sliceAddrIter) Close() {}

func (m *Message) OpenNLRI(all bool) vm.AddrIterator {
	if m.Upd == nil {
		return &sliceAddrIter{}
	}
	items := m.Upd.NLRI
	if all {
		m.Upd.parseMP()
		items = append(append([]netaddr.NetAddr{}, items...), m.Upd.mpReachNLRI...)
	}
	return &sliceAddrIter{items: items}
}

func (m *Message) OpenWithdrawn(all bool) vm.AddrIterator {
	if m.Upd == nil {
		return &sliceAddrIter{}
	}
	items := m.Upd.Withdrawn
	if all {
		m.Upd.parseMP()
		items = append(append([]netaddr.NetAddr{}, items...), m.Upd.mpUnreachNLRI...)
	}
	return &sliceAddrIter{items: items}
}

type sliceASIter struct {
	items []vm.WideAS
	i     int
}

func (it *sliceASIter) Next() (vm.WideAS, bool) {
	if it.i >= len(it.items) {
		return 0, false
	}
	a := it.items[it.i]
	it.i++
	return a, true
}
func (it *sliceASIter) Close() {}

func (m *Message) OpenASPath(kind vm.ASPathKind) vm.ASIterator {
	if m.Upd == nil {
		return &sliceASIter{}
	}
	raw := decodeASPath(m.Upd.Attrs[AttrASPath], m.ASSize)
	switch kind {
	case vm.ASPathRaw:
		return &sliceASIter{items: raw}
	case vm.ASPathAS4:
		as4 := decodeASPath(m.Upd.Attrs[AttrAS4Path], ASSize4)
		return &sliceASIter{items: as4}
	case vm.ASPathReal:
		as4 := decodeASPath(m.Upd.Attrs[AttrAS4Path], ASSize4)
		return &sliceASIter{items: RealASPath(raw, as4)}
	default:
		return &sliceASIter{}
	}
}

type sliceCommIter struct {
	items []vm.Community
	i     int
}

func (it *sliceCommIter) Next() (vm.Community, bool) {
	if it.i >= len(it.items) {
		return 0, false
	}
	c := it.items[it.i]
	it.i++
	return c, true
}
func (it *sliceCommIter) Close() {}

func (m *Message) OpenCommunities() vm.CommIterator {
	if m.Upd == nil {
		return &sliceCommIter{}
	}
	data := m.Upd.Attrs[AttrCommunities]
	var comms []vm.Community
	for len(data) >= 4 {
		comms = append(comms, vm.Community(binary.BigEndian.Uint32(data[:4])))
		data = data[4:]
	}
	return &sliceCommIter{items: comms}
}
