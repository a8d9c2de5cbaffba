package vm

import (
	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/patricia"
)

// Machine is one VM instance: compiled code/constants/tries live for the
// process lifetime; the current packet is borrowed per Run call.
type Machine struct {
	prog  Program
	heap  *heap
	tries [2]*patricia.Trie // index 0: v4, index 1: v6

	stack      []Cell
	blkDepth   int
	pc         int
	curTrieIdx [2]int // [v4, v6], -1 when unset
	accessMask AccessMask
	iterPos    int
	runningArg int
	haveExarg  bool
	vars       [16]Cell

	Funcs map[uint8]func(*Machine) error
}

const maxStack = 256

// NewMachine constructs a VM around a compiled program. v4/v6 are the two
// reserved tries the CLI compiler populates for -e/-s/-u/-r filters.
func NewMachine(prog Program, v4, v6 *patricia.Trie) *Machine {
	return &Machine{
		prog:       prog,
		heap:       newHeap(64 * 1024),
		tries:      [2]*patricia.Trie{v4, v6},
		curTrieIdx: [2]int{-1, -1},
		Funcs:      map[uint8]func(*Machine) error{},
	}
}

// Run evaluates the compiled program against pkt, returning pass/fail.
// A program that runs off its end passes when the stack is empty and
// otherwise takes the truth value of the top cell. An error return means
// the filter aborted; callers in this module treat every such error,
// out-of-memory included, as a failed record.
func (m *Machine) Run(pkt *Packet) (pass bool, err error) {
	m.stack = m.stack[:0]
	m.blkDepth = 0
	m.pc = 0
	m.iterPos = 0
	m.accessMask = 0
	m.runningArg = 0
	m.haveExarg = 0 != 0
	m.heap.Reset()

	for m.pc < len(m.prog.Code) {
		instr := m.prog.Code[m.pc]
		op := instr.Opcode()
		arg := m.effectiveArg(instr.Arg())
		m.pc++

		switch op {
		case OpNOP:
		case OpEXARG:
			m.runningArg = m.runningArg<<8 | int(arg)
			m.haveExarg = true
			continue

		case OpBLK:
			m.blkDepth++
		case OpENDBLK:
			if m.blkDepth == 0 {
				return false, errSpuriousEndblk
			}
			m.blkDepth--

		case OpCPASS:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			if v.Truthy() {
				if m.blkDepth == 0 {
					return true, nil
				}
				if err := m.skipToEndblk(); err != nil {
					return false, err
				}
			}

		case OpCFAIL:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			if !v.Truthy() {
				if m.blkDepth == 0 {
					return false, nil
				}
				if err := m.skipToEndblk(); err != nil {
					return false, err
				}
			}

		case OpNOT:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			if err := m.push(IntCell(boolToInt(!v.Truthy()))); err != nil {
				return false, err
			}

		case OpLOAD:
			if err := m.push(IntCell(int64(arg))); err != nil {
				return false, err
			}
		case OpLOADK:
			if int(arg) >= len(m.prog.Konst) {
				return false, errKUndefined
			}
			if err := m.push(m.prog.Konst[arg]); err != nil {
				return false, err
			}
		case OpUNPACK:
			if int(arg) >= len(m.prog.Arrays) {
				return false, errBadArray
			}
			for _, c := range m.prog.Arrays[arg] {
				if err := m.push(c); err != nil {
					return false, err
				}
			}
		case OpSTORE:
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			if int(arg) >= len(m.vars) {
				return false, errBadAccessor
			}
			m.vars[arg] = v
		case OpDISCARD:
			n := int(arg)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				if _, err := m.pop(); err != nil {
					return false, err
				}
			}

		case OpSETTLE:
			m.accessMask = AccessMask(arg)
			m.iterPos = 0

		case OpHASATTR:
			_, ok := bgp.FindAttr(pkt.Update.Attrs, bgp.AttrCode(arg))
			if err := m.push(IntCell(boolToInt(ok))); err != nil {
				return false, err
			}

		case OpEXACT, OpSUBNET, OpSUPERNET, OpRELATED, OpPFXCONTAINS, OpADDRCONTAINS:
			res, err := m.execAddrOp(op, pkt)
			if err != nil {
				return false, err
			}
			if err := m.push(IntCell(boolToInt(res))); err != nil {
				return false, err
			}

		case OpASCONTAINS:
			// Full 32-bit ASNs don't fit the 23-bit EXARG extension, so the
			// target ASN always travels via the constant pool (arg indexes
			// Konst) rather than the immediate operand.
			if int(arg) >= len(m.prog.Konst) {
				return false, errKUndefined
			}
			want := m.prog.Konst[arg].AS
			path := pkt.asPathFor(m.accessMask)
			found := false
			for _, asn := range path {
				if int64(asn) == want {
					found = true
					break
				}
			}
			if err := m.push(IntCell(boolToInt(found))); err != nil {
				return false, err
			}

		case OpASPMATCH, OpASPSTARTS, OpASPENDS, OpASPEXACT:
			lit, err := m.popASLiteral(int(arg))
			if err != nil {
				return false, err
			}
			path := pkt.asPathFor(m.accessMask)
			if err := m.push(IntCell(boolToInt(matchASPath(op, path, lit)))); err != nil {
				return false, err
			}

		case OpCOMMEXACT:
			lit, err := m.popCommLiteral(int(arg))
			if err != nil {
				return false, err
			}
			comms, err := pkt.Update.Communities()
			if err != nil {
				return false, err
			}
			if err := m.push(IntCell(boolToInt(commSubsetOf(lit, comms)))); err != nil {
				return false, err
			}

		case OpSETTRIE:
			m.curTrieIdx[0] = int(arg)
		case OpSETTRIE6:
			m.curTrieIdx[1] = int(arg)
		case OpCLRTRIE:
			if m.tries[0] != nil {
				m.tries[0].Clear()
			}
		case OpCLRTRIE6:
			if m.tries[1] != nil {
				m.tries[1].Clear()
			}

		case OpASCMP, OpADDRCMP, OpPFXCMP:
			b, err := m.pop()
			if err != nil {
				return false, err
			}
			a, err := m.pop()
			if err != nil {
				return false, err
			}
			if err := m.push(IntCell(boolToInt(cellsEqual(a, b)))); err != nil {
				return false, err
			}

		case OpCALL:
			fn, ok := m.Funcs[arg]
			if !ok {
				return false, errFuncUndefined
			}
			if err := fn(m); err != nil {
				return false, err
			}

		default:
			return false, errors.Wrapf(errIllegalOpcode, "opcode %d", op)
		}

		m.runningArg = 0
		m.haveExarg = false
	}

	if m.blkDepth != 0 {
		return false, errDanglingBlk
	}
	if len(m.stack) == 0 {
		return true, nil
	}
	return m.stack[len(m.stack)-1].Truthy(), nil
}

func (m *Machine) effectiveArg(raw uint8) uint8 {
	if m.haveExarg {
		return uint8(m.runningArg)
	}
	return raw
}

func (m *Machine) push(c Cell) error {
	if len(m.stack) >= maxStack {
		return errStackOverflow
	}
	m.stack = append(m.stack, c)
	return nil
}

func (m *Machine) pop() (Cell, error) {
	if len(m.stack) == 0 {
		return Cell{}, errStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// skipToEndblk advances pc past the instructions of the currently open
// block, leaving pc just after its matching ENDBLK.
func (m *Machine) skipToEndblk() error {
	depth := 1
	for m.pc < len(m.prog.Code) {
		switch m.prog.Code[m.pc].Opcode() {
		case OpBLK:
			depth++
		case OpENDBLK:
			depth--
			m.pc++
			if depth == 0 {
				m.blkDepth--
				return nil
			}
			continue
		}
		m.pc++
	}
	return errDanglingBlk
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func cellsEqual(a, b Cell) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case CellInt:
		return a.Int == b.Int
	case CellWideAS:
		return a.AS == b.AS
	case CellCommunity:
		return a.Comm == b.Comm
	case CellNetAddr:
		return a.Addr.String() == b.Addr.String()
	default:
		return false
	}
}
