package vm

import "github.com/ubgpsuite/bgpgrep/netaddr"

// builder accumulates instructions for one compiled filter expression.
type builder struct {
	code   []Instr
	konst  []Cell
	arrays [][]Cell
}

func (b *builder) emit(op Opcode, arg uint8) {
	b.code = append(b.code, MakeInstr(op, arg))
}

func (b *builder) addKonst(c Cell) uint8 {
	b.konst = append(b.konst, c)
	return uint8(len(b.konst) - 1)
}

func (b *builder) addArray(cells []Cell) uint8 {
	b.arrays = append(b.arrays, cells)
	return uint8(len(b.arrays) - 1)
}

func (b *builder) build() Program {
	return Program{Code: b.code, Konst: b.konst, Arrays: b.arrays}
}

// CompilePrefixTrieFilter lowers one of -e/-s/-u/-r into the canonical
// sequence from the design notes: SETTRIE/SETTRIE6, then inside a block
// test NLRI, then WITHDRAWN, negate, CFAIL — so the filter passes iff at
// least one NLRI or withdrawn address relates to the trie.
func CompilePrefixTrieFilter(kind Opcode, trieIdx0, trieIdx1 uint8) Program {
	var b builder
	b.emit(OpSETTRIE, trieIdx0)
	b.emit(OpSETTRIE6, trieIdx1)
	b.emit(OpBLK, 0)
	b.emit(OpSETTLE, uint8(AccessSettle|AccessNLRI))
	b.emit(kind, 0)
	b.emit(OpCPASS, 0)
	b.emit(OpSETTLE, uint8(AccessSettle|AccessWithdrawn))
	b.emit(kind, 0)
	b.emit(OpCPASS, 0)
	b.emit(OpENDBLK, 0)
	b.emit(OpNOT, 0)
	b.emit(OpCFAIL, 0)
	return b.build()
}

// CompileASFilter lowers -a/-A (AS membership anywhere in the real path)
// into a single ASCONTAINS test.
func CompileASFilter(asn uint32) Program {
	var b builder
	b.emit(OpSETTLE, uint8(AccessRealASPath))
	k := b.addKonst(ASCell(int64(asn)))
	b.emit(OpASCONTAINS, k)
	b.emit(OpCFAIL, 0)
	return b.build()
}

// CompileASPathFilter lowers -p/-P's AS-path expression grammar (already
// parsed into a literal ASN sequence, AsAny standing in for '?') using
// ASPMATCH.
func CompileASPathFilter(lit []int64) Program {
	var b builder
	cells := make([]Cell, len(lit))
	for i, v := range lit {
		cells[i] = ASCell(v)
	}
	arrIdx := b.addArray(cells)
	b.emit(OpUNPACK, arrIdx)
	b.emit(OpASPMATCH, uint8(len(lit)))
	b.emit(OpCFAIL, 0)
	return b.build()
}

// CompileCommunityFilter lowers -m/-M into COMMEXACT (subset) testing.
func CompileCommunityFilter(comms []uint32) Program {
	var b builder
	cells := make([]Cell, len(comms))
	for i, c := range comms {
		cells[i] = CommCell(c)
	}
	arrIdx := b.addArray(cells)
	b.emit(OpUNPACK, arrIdx)
	b.emit(OpCOMMEXACT, uint8(len(comms)))
	b.emit(OpCFAIL, 0)
	return b.build()
}

// CompileAttrFilter lowers -t/-T (path-attribute presence) into HASATTR.
func CompileAttrFilter(code uint8) Program {
	var b builder
	b.emit(OpHASATTR, code)
	b.emit(OpCFAIL, 0)
	return b.build()
}

// CompileLoopFilter lowers -l/-L: keep is true for -l (pass only messages
// with an AS-path loop), false for -L (discard messages with a loop).
func CompileLoopFilter(keepLooped bool) Program {
	var b builder
	const loopFunc uint8 = 0
	b.emit(OpCALL, loopFunc)
	if !keepLooped {
		b.emit(OpNOT, 0)
	}
	b.emit(OpCFAIL, 0)
	return b.build()
}

// LoopCallback installs the CALL 0 handler CompileLoopFilter depends on:
// it pushes whether the packet's real AS path contains a loop.
func LoopCallback(m *Machine, pkt *Packet) {
	m.Funcs[0] = func(mm *Machine) error {
		return mm.push(IntCell(boolToInt(pkt.HasLoop())))
	}
}

// CompilePeerAddrFilter lowers -i/-I: pass only messages from the given
// peer. The comparison itself runs through a CALL callback (installed by
// PeerAddrCallback) since the peer address lives on the Packet, not the
// constant pool.
func CompilePeerAddrFilter() Program {
	var b builder
	const peerAddrFunc uint8 = 1
	b.emit(OpCALL, peerAddrFunc)
	b.emit(OpCFAIL, 0)
	return b.build()
}

// PeerAddrCallback installs the CALL 1 handler CompilePeerAddrFilter
// depends on: it pushes whether pkt's peer address equals want.
func PeerAddrCallback(m *Machine, pkt *Packet, want netaddr.NetAddr) {
	m.Funcs[1] = func(mm *Machine) error {
		return mm.push(IntCell(boolToInt(netaddr.PrefixEq(pkt.PeerAddr, want))))
	}
}

// AlwaysPass is the degenerate filter "LOAD 1; CPASS" that passes every
// message, used when no filter flags are given.
func AlwaysPass() Program {
	var b builder
	b.emit(OpLOAD, 1)
	b.emit(OpCPASS, 0)
	return b.build()
}

// AlwaysFail is "LOAD 0; CFAIL", which fails every message.
func AlwaysFail() Program {
	var b builder
	b.emit(OpLOAD, 0)
	b.emit(OpCFAIL, 0)
	return b.build()
}
