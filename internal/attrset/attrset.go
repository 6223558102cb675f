// Package attrset is a set of BGP path-attribute type codes (0-255), used by
// the -t/-T option to test "does this UPDATE carry attribute code X" without
// rebuilding the same OR-chain twice for a code that was named more than
// once (directly on the command line and via a -T file, say).
//
// Adapted from the teacher's byteset package: a Matcher over the byte
// domain is exactly a matcher over attribute codes, since RFC 4271 caps
// attribute type codes at one octet. The range/union/intersection/negation
// combinators byteset offers for building complex character classes have no
// counterpart here — -t/-T only ever accumulates a flat list of codes, so
// this package keeps the dense bitmap representation and drops the rest;
// see DESIGN.md.
package attrset

import "fmt"

// Set is a bitmap over the 256 possible attribute type codes.
type Set struct {
	bits [8]uint32
}

// New builds a Set containing the given codes (duplicates collapse).
func New(codes ...uint8) *Set {
	s := &Set{}
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Add inserts code into the set. Reports whether it was already present.
func (s *Set) Add(code uint8) bool {
	i, mask := index(code)
	already := s.bits[i]&mask != 0
	s.bits[i] |= mask
	return already
}

// Match reports whether code is in the set.
func (s *Set) Match(code uint8) bool {
	i, mask := index(code)
	return s.bits[i]&mask != 0
}

// Len reports how many distinct codes are in the set.
func (s *Set) Len() int {
	n := 0
	s.ForEach(func(uint8) { n++ })
	return n
}

// ForEach calls f once per member code, in ascending order.
func (s *Set) ForEach(f func(code uint8)) {
	for i := uint(0); i < 8; i++ {
		for j := uint(0); j < 32; j++ {
			mask := uint32(1) << j
			if s.bits[i]&mask == mask {
				f(uint8(i<<5) | uint8(j))
			}
		}
	}
}

// Codes returns the set's members as a sorted slice.
func (s *Set) Codes() []uint8 {
	out := make([]uint8, 0, s.Len())
	s.ForEach(func(c uint8) { out = append(out, c) })
	return out
}

func (s *Set) String() string {
	b := []byte{'{'}
	first := true
	s.ForEach(func(c uint8) {
		if !first {
			b = append(b, ',', ' ')
		}
		first = false
		b = append(b, []byte(fmt.Sprintf("%d", c))...)
	})
	b = append(b, '}')
	return string(b)
}

func index(code uint8) (i uint, mask uint32) {
	i = uint(code>>5) & 0x7
	mask = uint32(1) << (uint(code) & 0x1f)
	return i, mask
}
