package vm

import "github.com/ubgpsuite/bgpgrep/bgp"

// execAddrOp tests the addresses remaining in the current iterator (NLRI
// or WITHDRAWN, per accessMask), each against the trie selected for its
// family. It returns true on the first match and false once the iterator
// is exhausted.
func (m *Machine) execAddrOp(op Opcode, pkt *Packet) (bool, error) {
	addrs := pkt.addrs(m.accessMask)
	if m.iterPos >= len(addrs) {
		return false, nil
	}
	addr := addrs[m.iterPos]
	m.iterPos++

	var trieIdx int
	switch addr.Family.String() {
	case "ipv4":
		trieIdx = 0
	case "ipv6":
		trieIdx = 1
	default:
		return false, errPacketMismatch
	}
	ti := m.curTrieIdx[trieIdx]
	if ti < 0 {
		return false, errTrieUndefined
	}
	tr := m.tries[trieIdx]
	if tr == nil {
		return false, errTrieUndefined
	}
	if tr.Family() != addr.Family {
		return false, errTrieMismatch
	}

	var ok bool
	switch op {
	case OpEXACT:
		_, ok = tr.SearchExact(addr)
	case OpSUBNET:
		ok = tr.IsSubnetOf(addr)
	case OpSUPERNET, OpADDRCONTAINS:
		ok = tr.IsSupernetOf(addr)
	case OpRELATED, OpPFXCONTAINS:
		ok = tr.IsRelatedOf(addr)
	default:
		return false, errIllegalOpcode
	}
	if !ok {
		// No match: go on with the iterator's next address.
		return m.execAddrOp(op, pkt)
	}
	return true, nil
}

// popASLiteral pops n AS-path literal cells (pushed via LOAD/LOADK/UNPACK)
// into a plain slice, preserving stack order.
func (m *Machine) popASLiteral(n int) ([]int64, error) {
	if n == 0 {
		n = len(m.stack)
	}
	if len(m.stack) < n {
		return nil, errStackUnderflow
	}
	out := make([]int64, n)
	for i := n - 1; i >= 0; i-- {
		c, err := m.pop()
		if err != nil {
			return nil, err
		}
		out[i] = c.AS
		if c.Kind == CellInt {
			out[i] = c.Int
		}
	}
	return out, nil
}

func (m *Machine) popCommLiteral(n int) ([]uint32, error) {
	if n == 0 {
		n = len(m.stack)
	}
	if len(m.stack) < n {
		return nil, errStackUnderflow
	}
	out := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		c, err := m.pop()
		if err != nil {
			return nil, err
		}
		out[i] = c.Comm
	}
	return out, nil
}

func matchASPath(op Opcode, path []uint32, lit []int64) bool {
	matches := func(at int) bool {
		for i, want := range lit {
			if want == AsAny {
				continue
			}
			if int64(path[at+i]) != want {
				return false
			}
		}
		return true
	}
	switch op {
	case OpASPEXACT:
		return len(path) == len(lit) && (len(lit) == 0 || matches(0))
	case OpASPSTARTS:
		return len(path) >= len(lit) && matches(0)
	case OpASPENDS:
		return len(path) >= len(lit) && matches(len(path)-len(lit))
	default: // OpASPMATCH: slide the window
		if len(lit) > len(path) {
			return false
		}
		for at := 0; at+len(lit) <= len(path); at++ {
			if matches(at) {
				return true
			}
		}
		return false
	}
}

// commSubsetOf reports whether every community in want occurs somewhere
// in have, independent of order (COMMEXACT's actual contract despite its
// name: a subset test against the UPDATE's carried communities).
func commSubsetOf(want []uint32, have []bgp.Community) bool {
	set := make(map[uint32]bool, len(have))
	for _, c := range have {
		set[uint32(c)] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
