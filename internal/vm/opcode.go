package vm

import "fmt"

// OpCode identifies one filter-VM instruction. Every instruction is a single
// 16-bit Word: the low 8 bits hold the OpCode, the high 8 bits hold an
// immediate argument byte which EXARG prefixing can widen to 31 bits.
type OpCode uint8

const (
	OpNOP OpCode = iota
	OpBLK
	OpENDBLK
	OpLOAD
	OpLOADK
	OpUNPACK
	OpEXARG
	OpSTORE
	OpDISCARD
	OpNOT
	OpCPASS
	OpCFAIL
	OpSETTLE
	OpHASATTR
	OpEXACT
	OpSUBNET
	OpSUPERNET
	OpRELATED
	OpPFXCONTAINS
	OpADDRCONTAINS
	OpASCONTAINS
	OpASPMATCH
	OpASPSTARTS
	OpASPENDS
	OpASPEXACT
	OpCOMMEXACT
	OpCALL
	OpSETTRIE
	OpSETTRIE6
	OpCLRTRIE
	OpCLRTRIE6
	OpADDRCMP
	OpPFXCMP
	OpASCMP

	opCodeCount
)

// argWidth classifies whether an opcode reads the accumulated extended
// argument register (a24, up to 31 bits) or only its own immediate byte
// (a8), per the assembler's table in spec §4.3.
type argWidth uint8

const (
	argNone argWidth = iota // opcode carries no meaningful argument at all
	argA8                   // opcode reads only the immediate byte
	argA24                  // opcode reads the full (possibly EXARG-widened) argument
)

type opMeta struct {
	Name  string
	Width argWidth
}

var opMetaTable = [opCodeCount]opMeta{
	OpNOP:          {"NOP", argNone},
	OpBLK:          {"BLK", argNone},
	OpENDBLK:       {"ENDBLK", argNone},
	OpLOAD:         {"LOAD", argA24},
	OpLOADK:        {"LOADK", argA24},
	OpUNPACK:       {"UNPACK", argNone},
	OpEXARG:        {"EXARG", argA8},
	OpSTORE:        {"STORE", argNone},
	OpDISCARD:      {"DISCARD", argNone},
	OpNOT:          {"NOT", argNone},
	OpCPASS:        {"CPASS", argNone},
	OpCFAIL:        {"CFAIL", argNone},
	OpSETTLE:       {"SETTLE", argNone},
	OpHASATTR:      {"HASATTR", argA8},
	OpEXACT:        {"EXACT", argA8},
	OpSUBNET:       {"SUBNET", argA8},
	OpSUPERNET:     {"SUPERNET", argA8},
	OpRELATED:      {"RELATED", argA8},
	OpPFXCONTAINS:  {"PFXCONTAINS", argA24},
	OpADDRCONTAINS: {"ADDRCONTAINS", argA24},
	OpASCONTAINS:   {"ASCONTAINS", argA24},
	OpASPMATCH:     {"ASPMATCH", argA8},
	OpASPSTARTS:    {"ASPSTARTS", argA8},
	OpASPENDS:      {"ASPENDS", argA8},
	OpASPEXACT:     {"ASPEXACT", argA8},
	OpCOMMEXACT:    {"COMMEXACT", argNone},
	OpCALL:         {"CALL", argA24},
	OpSETTRIE:      {"SETTRIE", argA24},
	OpSETTRIE6:     {"SETTRIE6", argA24},
	OpCLRTRIE:      {"CLRTRIE", argNone},
	OpCLRTRIE6:     {"CLRTRIE6", argNone},
	OpADDRCMP:      {"ADDRCMP", argA24},
	OpPFXCMP:       {"PFXCMP", argA24},
	OpASCMP:        {"ASCMP", argA24},
}

func (c OpCode) meta() opMeta {
	if c >= opCodeCount {
		return opMeta{Name: fmt.Sprintf("ILLEGAL#%02x", uint8(c)), Width: argNone}
	}
	return opMetaTable[c]
}

func (c OpCode) String() string { return c.meta().Name }

func (c OpCode) valid() bool { return c < opCodeCount }

// Valid reports whether c is a defined opcode.
func (c OpCode) Valid() bool { return c.valid() }

// TakesArg8 reports whether c reads only its own immediate byte.
func (c OpCode) TakesArg8() bool { return c.meta().Width == argA8 }

// TakesArg24 reports whether c reads the (possibly EXARG-widened) argument.
func (c OpCode) TakesArg24() bool { return c.meta().Width == argA24 }

// TakesArg reports whether c consumes any argument at all (8 or 24-bit).
func (c OpCode) TakesArg() bool { return c.meta().Width != argNone }

// Access-mask bit values, per spec §4.4.
const (
	AccessNLRI      uint8 = 1
	AccessWithdrawn uint8 = 2
	AccessAll       uint8 = 4

	AccessASPath     uint8 = 1
	AccessAS4Path    uint8 = 2
	AccessRealASPath uint8 = 4

	AccessComm uint8 = 1

	AccessSettle uint8 = 0x80
)

// Well-known constant-pool indices, per spec §3.
const (
	KPeerAS   = 0
	KPeerAddr = 1
	KBaseSiz  = 2
)

// Reserved trie slots: the VM's two scratch tries, cleared at the start of
// every execution.
const (
	TrieScratchV4 = 0
	TrieScratchV6 = 1
)
