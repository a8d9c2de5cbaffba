package dump

import (
	"strings"
	"testing"

	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

func mustParse(t *testing.T, s string) netaddr.NetAddr {
	t.Helper()
	na, err := netaddr.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return na
}

func TestWriteRowAnnounce(t *testing.T) {
	var sb strings.Builder
	f := Formatter{W: &sb}
	row := Row{
		Kind:     KindAnnounce,
		Prefixes: []netaddr.NetAddr{mustParse(t, "10.0.0.0/8")},
		ASPath:   []bgp.ASPathSegment{{ASN: []uint32{65001, 65002}}},
		NextHops: []netaddr.NetAddr{mustParse(t, "1.2.3.4/32")},
		Origin:   0,
		FeederIP: mustParse(t, "192.0.2.1/32"),
		FeederAS: 65000,
		TimestampSec: 1700000000,
	}
	if err := f.WriteRow(row); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	line := sb.String()
	if !strings.HasPrefix(line, "+|10.0.0.0/8|65001,65002|1.2.3.4/32|IGP||") {
		t.Fatalf("unexpected row: %q", line)
	}
	if !strings.Contains(line, "192.0.2.1/32 65000") {
		t.Fatalf("missing feeder info: %q", line)
	}
}

func TestFormatCommunities(t *testing.T) {
	cs := FormatCommunities([]bgp.Community{bgp.Community(65000<<16 | 100)}, nil, nil)
	if len(cs) != 1 || cs[0] != "65000:100" {
		t.Fatalf("unexpected communities: %v", cs)
	}
}

func TestHexDumpCArray(t *testing.T) {
	var sb strings.Builder
	if err := HexDumpCArray(&sb, "pkt", []byte{1, 2, 3}); err != nil {
		t.Fatalf("HexDumpCArray: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "0x01, 0x02, 0x03,") {
		t.Fatalf("unexpected hex dump: %q", out)
	}
}
