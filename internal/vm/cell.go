package vm

import (
	"fmt"

	"github.com/ubgpsuite/bgpgrep/internal/netaddr"
)

// Family and NetAddr are shared with the patricia trie via internal/netaddr,
// so that package doesn't need to import the VM (or vice versa) just to
// agree on what an address is.
type Family = netaddr.Family

const (
	FamilyV4 = netaddr.FamilyV4
	FamilyV6 = netaddr.FamilyV6
)

type NetAddr = netaddr.NetAddr

// WideAS is a signed 32-bit-capable AS number. ASAny is a wildcard atom used
// only in AS-path pattern matching; ASTrans is the well-known 16-bit
// transition placeholder ignored by loop detection.
type WideAS int64

const (
	ASAny   WideAS = -1
	ASTrans WideAS = 23456
)

// Community is an opaque 32-bit BGP community value. Only equality is
// defined over it.
type Community uint32

// ArrayDesc describes a typed sequence living on the VM heap.
type ArrayDesc struct {
	Base  uint64
	Nels  uint32
	Elsiz uint8
}

// CellKind tags the active member of a Cell.
type CellKind uint8

const (
	CellInt CellKind = iota
	CellAddr
	CellAS
	CellCommunity
	CellArray
)

func (k CellKind) String() string {
	switch k {
	case CellInt:
		return "int"
	case CellAddr:
		return "addr"
	case CellAS:
		return "as"
	case CellCommunity:
		return "community"
	case CellArray:
		return "array"
	default:
		return "?"
	}
}

// Cell is a single VM stack/heap slot: a union of everything an opcode might
// push or pop, tagged by Kind. Unlike the teacher's PEG execution (which
// only ever stacks capture assignments), the filter VM's opcodes operate on
// heterogeneous BGP values, so the stack needs a real sum type; opcodes know
// from context which Kind they expect and never need to branch on it except
// to report a mismatch during development.
type Cell struct {
	Kind  CellKind
	Int   int64
	Addr  NetAddr
	AS    WideAS
	Comm  Community
	Array ArrayDesc
}

// IntCell makes a boolean/integer-valued Cell.
func IntCell(v int64) Cell { return Cell{Kind: CellInt, Int: v} }

// BoolCell makes a boolean-valued Cell (0 or 1, per the VM's truthiness rule).
func BoolCell(v bool) Cell {
	if v {
		return IntCell(1)
	}
	return IntCell(0)
}

// AddrCell makes a NetAddr-valued Cell.
func AddrCell(a NetAddr) Cell { return Cell{Kind: CellAddr, Addr: a} }

// ASCell makes a WideAS-valued Cell.
func ASCell(as WideAS) Cell { return Cell{Kind: CellAS, AS: as} }

// CommunityCell makes a Community-valued Cell.
func CommunityCell(c Community) Cell { return Cell{Kind: CellCommunity, Comm: c} }

// ArrayCell makes an array-descriptor-valued Cell.
func ArrayCell(d ArrayDesc) Cell { return Cell{Kind: CellArray, Array: d} }

// Truthy implements the VM's single notion of "boolean": int, AS and
// community cells are truthy when nonzero; address and array cells are
// always truthy. Only CellInt cells are ever tested this way in practice
// (CPASS/CFAIL/NOT always act on a boolean pushed by a prior opcode).
func (c Cell) Truthy() bool {
	switch c.Kind {
	case CellInt:
		return c.Int != 0
	case CellAS:
		return c.AS != 0
	case CellCommunity:
		return c.Comm != 0
	default:
		return true
	}
}

func (c Cell) String() string {
	switch c.Kind {
	case CellInt:
		return fmt.Sprintf("%d", c.Int)
	case CellAddr:
		return c.Addr.String()
	case CellAS:
		if c.AS == ASAny {
			return "*"
		}
		return fmt.Sprintf("AS%d", c.AS)
	case CellCommunity:
		return fmt.Sprintf("%d:%d", uint32(c.Comm)>>16, uint32(c.Comm)&0xffff)
	case CellArray:
		return fmt.Sprintf("array{base=%d,nels=%d,elsiz=%d}", c.Array.Base, c.Array.Nels, c.Array.Elsiz)
	default:
		return "?"
	}
}
