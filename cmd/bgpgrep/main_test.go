package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ubgpsuite/bgpgrep/netaddr"
	"github.com/ubgpsuite/bgpgrep/patricia"
	"github.com/ubgpsuite/bgpgrep/vm"
)

func TestParseCommunity(t *testing.T) {
	c, err := parseCommunity("65000:100")
	if err != nil {
		t.Fatalf("parseCommunity: %v", err)
	}
	if c != 65000<<16|100 {
		t.Fatalf("unexpected packed community: %d", c)
	}
	if _, err := parseCommunity("bogus"); err == nil {
		t.Fatal("expected error for malformed community")
	}
}

func TestParseASPathExpr(t *testing.T) {
	lit, err := parseASPathExpr("65001,?,65003")
	if err != nil {
		t.Fatalf("parseASPathExpr: %v", err)
	}
	want := []int64{65001, vm.AsAny, 65003}
	if len(lit) != len(want) {
		t.Fatalf("unexpected literal length: %v", lit)
	}
	for i := range want {
		if lit[i] != want[i] {
			t.Fatalf("literal[%d] = %d, want %d", i, lit[i], want[i])
		}
	}
}

func TestReadTokenLinesSkipsBlankAndComments(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "tokens.txt")
	if err := os.WriteFile(name, []byte("65001\n\n# comment\n65002\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lines, err := readTokenLines(name)
	if err != nil {
		t.Fatalf("readTokenLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "65001" || lines[1] != "65002" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestReadASNFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "asns.txt")
	if err := os.WriteFile(name, []byte("65001,65002\n65003\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	asns, err := readASNFile(name)
	if err != nil {
		t.Fatalf("readASNFile: %v", err)
	}
	if len(asns) != 3 || asns[0] != 65001 || asns[1] != 65002 || asns[2] != 65003 {
		t.Fatalf("unexpected ASNs: %v", asns)
	}
}

func TestBuildProgramDefaultsToAlwaysPass(t *testing.T) {
	v4 := patricia.New(netaddr.V4)
	v6 := patricia.New(netaddr.V6)
	prog, peerWant, err := buildProgram(config{}, v4, v6)
	if err != nil {
		t.Fatalf("buildProgram: %v", err)
	}
	if peerWant != nil {
		t.Fatal("expected no peer address for the default filter")
	}
	if len(prog.Code) == 0 {
		t.Fatal("expected a non-empty always-pass program")
	}
}
