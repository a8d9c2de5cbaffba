// Package vm implements the stack-based bytecode filter machine: a
// compact instruction word format, a two-zone bump-allocated heap, two
// reserved prefix tries, and an executor that evaluates compiled CLI
// filter expressions against a decoded BGP UPDATE.
package vm

// Opcode identifies a single VM instruction.
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpBLK
	OpENDBLK
	OpCPASS
	OpCFAIL
	OpNOT
	OpEXARG

	OpLOAD
	OpLOADK
	OpUNPACK
	OpSTORE
	OpDISCARD

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

	OpSETTRIE
	OpSETTRIE6
	OpCLRTRIE
	OpCLRTRIE6

	OpASCMP
	OpADDRCMP
	OpPFXCMP

	OpCALL
)

var opcodeNames = map[Opcode]string{
	OpNOP: "NOP", OpBLK: "BLK", OpENDBLK: "ENDBLK", OpCPASS: "CPASS", OpCFAIL: "CFAIL",
	OpNOT: "NOT", OpEXARG: "EXARG", OpLOAD: "LOAD", OpLOADK: "LOADK", OpUNPACK: "UNPACK",
	OpSTORE: "STORE", OpDISCARD: "DISCARD", OpSETTLE: "SETTLE", OpHASATTR: "HASATTR",
	OpEXACT: "EXACT", OpSUBNET: "SUBNET", OpSUPERNET: "SUPERNET", OpRELATED: "RELATED",
	OpPFXCONTAINS: "PFXCONTAINS", OpADDRCONTAINS: "ADDRCONTAINS", OpASCONTAINS: "ASCONTAINS",
	OpASPMATCH: "ASPMATCH", OpASPSTARTS: "ASPSTARTS", OpASPENDS: "ASPENDS", OpASPEXACT: "ASPEXACT",
	OpCOMMEXACT: "COMMEXACT", OpSETTRIE: "SETTRIE", OpSETTRIE6: "SETTRIE6", OpCLRTRIE: "CLRTRIE",
	OpCLRTRIE6: "CLRTRIE6", OpASCMP: "ASCMP", OpADDRCMP: "ADDRCMP", OpPFXCMP: "PFXCMP", OpCALL: "CALL",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

// Instr is a single 16-bit instruction word: an 8-bit argument and an
// 8-bit opcode, packed as (arg << 8 | opcode).
type Instr uint16

// MakeInstr packs an opcode and an 8-bit argument into an instruction word.
func MakeInstr(op Opcode, arg uint8) Instr {
	return Instr(uint16(arg)<<8 | uint16(op))
}

// Opcode unpacks the low byte of the instruction word.
func (i Instr) Opcode() Opcode { return Opcode(i & 0xff) }

// Arg unpacks the high byte of the instruction word.
func (i Instr) Arg() uint8 { return uint8(i >> 8) }

// Program is a compiled, directly-executable filter.
type Program struct {
	Code   []Instr
	Konst  []Cell
	Arrays [][]Cell
}
