// Package trie implements the patricia trie described in spec §4.1: an
// uncompressed binary radix tree, keyed by network prefix, bound to a single
// address family at creation, answering longest/shortest-prefix set
// queries.
//
// The node shape (children[2], a stored network, an "active" flag instead of
// path compression) is grounded on the retrieval pack's
// phemmer-go-iptrie.Trie, simplified: that trie compresses single-child
// chains for lookup speed; this one does not, because the spec only needs
// membership-style relational queries (is-subnet-of-any /
// is-supernet-of-any / is-related-of-any), not fastest-match iteration
// order, and an uncompressed trie keeps those three queries — and their
// duality invariant in spec §8 — easy to state and verify directly against
// the tree shape.
package trie

import (
	"errors"

	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
)

// ErrFamilyMismatch is returned when an address of the wrong family is
// presented to a trie bound to the other family.
var ErrFamilyMismatch = errors.New("trie: address family mismatch")

// Handle identifies a single inserted entry. It is never dereferenced by
// callers; its only useful property is being non-nil on success.
type Handle struct {
	addr netaddr.NetAddr
}

type node struct {
	children [2]*node
	active   bool // true iff a prefix terminates exactly at this node
}

// Trie is a binary radix tree over prefixes of a single address family.
type Trie struct {
	family Family
	root   *node
	size   int
}

// Family is re-exported so callers don't need to import internal/netaddr
// just to construct a Trie.
type Family = netaddr.Family

const (
	FamilyV4 = netaddr.FamilyV4
	FamilyV6 = netaddr.FamilyV6
)

// New creates an empty trie bound to the given family.
func New(family Family) *Trie {
	return &Trie{family: family, root: &node{}}
}

// Family reports the address family this trie accepts.
func (t *Trie) Family() Family { return t.family }

// Len reports the number of distinct prefixes currently stored.
func (t *Trie) Len() int { return t.size }

func (t *Trie) checkFamily(addr netaddr.NetAddr) error {
	if addr.Family != t.family {
		return ErrFamilyMismatch
	}
	return nil
}

// Insert adds addr to the trie and returns a Handle. Returns
// (nil, ErrFamilyMismatch) if addr's family doesn't match the trie's.
func (t *Trie) Insert(addr netaddr.NetAddr) (*Handle, error) {
	if err := t.checkFamily(addr); err != nil {
		return nil, err
	}
	n := t.root
	for i := uint8(0); i < addr.PrefixLen; i++ {
		bit := addr.Bit(i)
		if n.children[bit] == nil {
			n.children[bit] = &node{}
		}
		n = n.children[bit]
	}
	if !n.active {
		n.active = true
		t.size++
	}
	return &Handle{addr: addr}, nil
}

// Remove deletes the exact entry addr, if present. Silent otherwise.
func (t *Trie) Remove(addr netaddr.NetAddr) {
	if t.checkFamily(addr) != nil {
		return
	}
	n := t.root
	for i := uint8(0); i < addr.PrefixLen; i++ {
		n = n.children[addr.Bit(i)]
		if n == nil {
			return
		}
	}
	if n.active {
		n.active = false
		t.size--
	}
}

// SearchExact returns a Handle iff an entry with identical family, bitlen,
// and bits exists.
func (t *Trie) SearchExact(addr netaddr.NetAddr) *Handle {
	if t.checkFamily(addr) != nil {
		return nil
	}
	n := t.root
	for i := uint8(0); i < addr.PrefixLen; i++ {
		n = n.children[addr.Bit(i)]
		if n == nil {
			return nil
		}
	}
	if n.active {
		return &Handle{addr: addr}
	}
	return nil
}

// IsSubnetOfAny reports whether the trie contains any prefix p with
// bitlen(p) <= bitlen(addr) that covers addr — i.e. addr is a subnet of some
// stored (shorter-or-equal) prefix.
func (t *Trie) IsSubnetOfAny(addr netaddr.NetAddr) bool {
	if t.checkFamily(addr) != nil {
		return false
	}
	n := t.root
	if n.active {
		return true
	}
	for i := uint8(0); i < addr.PrefixLen; i++ {
		n = n.children[addr.Bit(i)]
		if n == nil {
			return false
		}
		if n.active {
			return true
		}
	}
	return false
}

// IsSupernetOfAny reports whether the trie contains any prefix p with
// bitlen(p) >= bitlen(addr) such that addr covers p — i.e. some stored
// (longer-or-equal) prefix is a subnet of addr.
func (t *Trie) IsSupernetOfAny(addr netaddr.NetAddr) bool {
	if t.checkFamily(addr) != nil {
		return false
	}
	n := t.root
	for i := uint8(0); i < addr.PrefixLen; i++ {
		n = n.children[addr.Bit(i)]
		if n == nil {
			return false
		}
	}
	return anyActiveBeneath(n)
}

func anyActiveBeneath(n *node) bool {
	if n == nil {
		return false
	}
	if n.active {
		return true
	}
	return anyActiveBeneath(n.children[0]) || anyActiveBeneath(n.children[1])
}

// IsRelatedOfAny is IsSubnetOfAny or IsSupernetOfAny, inclusive of exact
// match (an exact match satisfies both).
func (t *Trie) IsRelatedOfAny(addr netaddr.NetAddr) bool {
	return t.IsSubnetOfAny(addr) || t.IsSupernetOfAny(addr)
}

// Clear empties the trie by replacing its root with a fresh, empty node; the
// trie keeps its family binding.
func (t *Trie) Clear() {
	t.root = &node{}
	t.size = 0
}
