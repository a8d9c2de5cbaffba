// Package dump renders decoded MRT/BGP records as the pipe-separated text
// rows bgpgrep prints to stdout, plus the -c hex dump and -d bytecode
// disassembly auxiliary output modes.
package dump

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/netaddr"
	"github.com/ubgpsuite/bgpgrep/vm"
)

// Kind is the leading marker byte of an output row.
type Kind byte

const (
	KindAnnounce    Kind = '+'
	KindWithdraw    Kind = '-'
	KindRIBSnapshot Kind = '='
	KindStateChange Kind = '#'
	KindPeer        Kind = '@'
)

// Row is everything one output line needs; fields default to their
// zero/empty rendering when not applicable to the record kind.
type Row struct {
	Kind        Kind
	Prefixes    []netaddr.NetAddr
	ASPath      []bgp.ASPathSegment
	NextHops    []netaddr.NetAddr
	Origin      int8 // -1 when absent
	AtomicAggr  bool
	Aggregator  string // pre-formatted "asn addr", empty when absent
	Communities []string
	FeederIP    netaddr.NetAddr
	FeederAS    uint32
	PathID      uint32
	HasPathID   bool
	TimestampSec uint32
	TimestampUsec uint32
	HasUsec      bool
	ASN32        bool
}

// Formatter writes Rows as pipe-separated text lines.
type Formatter struct {
	W io.Writer
}

// WriteRow renders one row to the formatter's writer.
func (f Formatter) WriteRow(r Row) error {
	var sb strings.Builder
	sb.WriteByte(byte(r.Kind))
	sb.WriteByte('|')
	writePrefixes(&sb, r.Prefixes)
	sb.WriteByte('|')
	writeASPath(&sb, r.ASPath)
	sb.WriteByte('|')
	writeAddrs(&sb, r.NextHops)
	sb.WriteByte('|')
	writeOrigin(&sb, r.Origin)
	sb.WriteByte('|')
	if r.AtomicAggr {
		sb.WriteByte('1')
	}
	sb.WriteByte('|')
	sb.WriteString(r.Aggregator)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(r.Communities, ","))
	sb.WriteByte('|')
	sb.WriteString(r.FeederIP.String())
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatUint(uint64(r.FeederAS), 10))
	if r.HasPathID {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(uint64(r.PathID), 10))
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(uint64(r.TimestampSec), 10))
	if r.HasUsec {
		sb.WriteByte('.')
		sb.WriteString(fmt.Sprintf("%06d", r.TimestampUsec))
	}
	sb.WriteByte('|')
	if r.ASN32 {
		sb.WriteByte('1')
	} else {
		sb.WriteByte('0')
	}
	sb.WriteByte('\n')

	_, err := io.WriteString(f.W, sb.String())
	return err
}

func writePrefixes(sb *strings.Builder, ps []netaddr.NetAddr) {
	for i, p := range ps {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
}

func writeAddrs(sb *strings.Builder, as []netaddr.NetAddr) {
	for i, a := range as {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
}

func writeASPath(sb *strings.Builder, segs []bgp.ASPathSegment) {
	for i, seg := range segs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if seg.Set {
			sb.WriteByte('{')
		}
		for j, asn := range seg.ASN {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatUint(uint64(asn), 10))
		}
		if seg.Set {
			sb.WriteByte('}')
		}
	}
}

func writeOrigin(sb *strings.Builder, origin int8) {
	switch origin {
	case 0:
		sb.WriteString("IGP")
	case 1:
		sb.WriteString("EGP")
	case 2:
		sb.WriteString("INCOMPLETE")
	}
}

// FormatCommunities renders standard/extended/large communities into the
// textual tokens WriteRow joins with commas.
func FormatCommunities(std []bgp.Community, ext []bgp.ExtCommunity, large []bgp.LargeCommunity) []string {
	var out []string
	for _, c := range std {
		out = append(out, fmt.Sprintf("%d:%d", uint32(c)>>16, uint32(c)&0xffff))
	}
	for _, c := range ext {
		out = append(out, fmt.Sprintf("ext:%x", c))
	}
	for _, c := range large {
		out = append(out, fmt.Sprintf("%d:%d:%d", c.GlobalAdmin, c.LocalData1, c.LocalData2))
	}
	return out
}

// DisassembleOpcode renders a single instruction as "MNEMONIC arg" for the
// -d bytecode-disassembly output mode.
func DisassembleOpcode(i vm.Instr) string {
	return fmt.Sprintf("%-12s %d", i.Opcode().String(), i.Arg())
}

// Disassemble renders an entire program, one instruction per line.
func Disassemble(w io.Writer, prog vm.Program) error {
	for pc, instr := range prog.Code {
		if _, err := fmt.Fprintf(w, "%04d  %s\n", pc, DisassembleOpcode(instr)); err != nil {
			return err
		}
	}
	return nil
}
