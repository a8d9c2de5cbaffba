// Command bgpgrep reads one or more MRT archives, evaluates each embedded
// BGP UPDATE against a compiled filter expression, and prints matching
// records in bgpgrep's pipe-separated text format.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/internal/dump"
	"github.com/ubgpsuite/bgpgrep/internal/ingest"
	"github.com/ubgpsuite/bgpgrep/netaddr"
	"github.com/ubgpsuite/bgpgrep/patricia"
	"github.com/ubgpsuite/bgpgrep/vm"
)

type config struct {
	asFilter     uint
	asFile       string
	hexDump      bool
	dumpBytecode bool
	exactPfx     string
	exactFile    string
	onlyPeers    bool
	peerAddr     string
	peerFile     string
	keepLoops    bool
	discardLoops bool
	commMatch    string
	commMiss     string
	outFile      string
	aspathMatch  string
	aspathMiss   string
	relatedPfx   string
	relatedFile  string
	subnetPfx    string
	subnetFile   string
	supernetPfx  string
	supernetFile string
	attrFilter   string
	attrFile     string
	metricsAddr  string
}

func main() {
	var cfg config
	fs := flag.NewFlagSet("bgpgrep", flag.ExitOnError)
	flag.CommandLine = fs // runFiles reads the input files through flag.Args
	fs.UintVar(&cfg.asFilter, "a", 0, "pass only UPDATEs whose AS path contains AS")
	fs.StringVar(&cfg.asFile, "A", "", "file of ASNs; only the first is used, as -a")
	fs.BoolVar(&cfg.hexDump, "c", false, "dump each matching BGP4MP message as a C byte array")
	fs.BoolVar(&cfg.dumpBytecode, "d", false, "dump the compiled filter bytecode and exit")
	fs.StringVar(&cfg.exactPfx, "e", "", "pass only UPDATEs carrying this exact prefix")
	fs.StringVar(&cfg.exactFile, "E", "", "file of prefixes, as -e")
	fs.BoolVar(&cfg.onlyPeers, "f", false, "print only the TABLE_DUMPV2 peers that have a matching RIB entry, not routes")
	fs.StringVar(&cfg.peerAddr, "i", "", "pass only UPDATEs from this peer address")
	fs.StringVar(&cfg.peerFile, "I", "", "file of peer addresses; only the first is used, as -i")
	fs.BoolVar(&cfg.keepLoops, "l", false, "pass only UPDATEs whose AS path has a loop")
	fs.BoolVar(&cfg.discardLoops, "L", false, "discard UPDATEs whose AS path has a loop")
	fs.StringVar(&cfg.commMatch, "m", "", "pass only UPDATEs carrying this community (as:num)")
	fs.StringVar(&cfg.commMiss, "M", "", "file of communities, as -m")
	fs.StringVar(&cfg.outFile, "o", "", "write output to this file instead of stdout")
	fs.StringVar(&cfg.aspathMatch, "p", "", "pass only UPDATEs whose AS path matches this expression")
	fs.StringVar(&cfg.aspathMiss, "P", "", "file of AS path expressions; only the first is used, as -p")
	fs.StringVar(&cfg.relatedPfx, "r", "", "pass only UPDATEs related to this prefix")
	fs.StringVar(&cfg.relatedFile, "R", "", "file of prefixes, as -r")
	fs.StringVar(&cfg.subnetPfx, "s", "", "pass only UPDATEs that are a subnet of this prefix")
	fs.StringVar(&cfg.subnetFile, "S", "", "file of prefixes, as -s")
	fs.StringVar(&cfg.attrFilter, "t", "", "pass only UPDATEs carrying this attribute")
	fs.StringVar(&cfg.attrFile, "T", "", "file of attribute names; only the first is used, as -t")
	fs.StringVar(&cfg.supernetPfx, "u", "", "pass only UPDATEs that are a supernet of this prefix")
	fs.StringVar(&cfg.supernetFile, "U", "", "file of prefixes, as -u")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	fs.Parse(os.Args[1:])

	if cfg.keepLoops && cfg.discardLoops {
		fmt.Fprintln(os.Stderr, "bgpgrep: -l and -L are mutually exclusive")
		os.Exit(2)
	}
	exclusiveSet := 0
	for _, s := range []string{cfg.exactPfx, cfg.subnetPfx, cfg.supernetPfx, cfg.relatedPfx} {
		if s != "" {
			exclusiveSet++
		}
	}
	if exclusiveSet > 1 {
		fmt.Fprintln(os.Stderr, "bgpgrep: -e/-s/-u/-r are mutually exclusive")
		os.Exit(2)
	}

	out := os.Stdout
	if cfg.outFile != "" {
		f, err := os.Create(cfg.outFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bgpgrep: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	logger := log.New(os.Stderr, "bgpgrep: ", 0)

	v4 := patricia.New(netaddr.V4)
	v6 := patricia.New(netaddr.V6)
	prog, peerWant, err := buildProgram(cfg, v4, v6)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bgpgrep: %v\n", err)
		os.Exit(2)
	}

	if cfg.dumpBytecode {
		if err := dump.Disassemble(out, prog); err != nil {
			fmt.Fprintf(os.Stderr, "bgpgrep: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if cfg.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics := ingest.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Println(http.ListenAndServe(cfg.metricsAddr, mux))
		}()
		runFiles(cfg, prog, peerWant, v4, v6, out, logger, metrics)
		return
	}
	runFiles(cfg, prog, peerWant, v4, v6, out, logger, nil)
}

func runFiles(cfg config, prog vm.Program, peerWant *netaddr.NetAddr, v4, v6 *patricia.Trie, out *os.File, logger *log.Logger, metrics *ingest.Metrics) {
	m := vm.NewMachine(prog, v4, v6)
	p := ingest.NewPipeline(m, dump.Formatter{W: out}, logger)
	p.OnlyPeers = cfg.onlyPeers
	p.Metrics = metrics
	p.WantPeerAddr = peerWant
	p.HexDump = cfg.hexDump

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	exitCode := 0
	for _, name := range files {
		if _, err := p.ProcessFile(name); err != nil {
			logger.Printf("%s: %v", name, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// buildProgram compiles the filter implied by cfg into a VM program. The
// second return value is non-nil only for a peer-address filter, which
// needs the target address wired into the pipeline's CALL 1 handler.
func buildProgram(cfg config, v4, v6 *patricia.Trie) (vm.Program, *netaddr.NetAddr, error) {
	switch {
	case cfg.asFilter != 0:
		return vm.CompileASFilter(uint32(cfg.asFilter)), nil, nil
	case cfg.asFile != "":
		asns, err := readASNFile(cfg.asFile)
		if err != nil {
			return vm.Program{}, nil, err
		}
		if len(asns) == 0 {
			return vm.Program{}, nil, errors.New("bgpgrep: -A file has no ASNs")
		}
		return vm.CompileASFilter(asns[0]), nil, nil
	case cfg.exactPfx != "":
		if err := insertInto(v4, v6, cfg.exactPfx); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpEXACT, 0, 0), nil, nil
	case cfg.exactFile != "":
		if err := insertFile(v4, v6, cfg.exactFile); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpEXACT, 0, 0), nil, nil
	case cfg.subnetPfx != "":
		if err := insertInto(v4, v6, cfg.subnetPfx); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpSUBNET, 0, 0), nil, nil
	case cfg.subnetFile != "":
		if err := insertFile(v4, v6, cfg.subnetFile); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpSUBNET, 0, 0), nil, nil
	case cfg.supernetPfx != "":
		if err := insertInto(v4, v6, cfg.supernetPfx); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpSUPERNET, 0, 0), nil, nil
	case cfg.supernetFile != "":
		if err := insertFile(v4, v6, cfg.supernetFile); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpSUPERNET, 0, 0), nil, nil
	case cfg.relatedPfx != "":
		if err := insertInto(v4, v6, cfg.relatedPfx); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpRELATED, 0, 0), nil, nil
	case cfg.relatedFile != "":
		if err := insertFile(v4, v6, cfg.relatedFile); err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePrefixTrieFilter(vm.OpRELATED, 0, 0), nil, nil
	case cfg.peerAddr != "" || cfg.peerFile != "":
		var want netaddr.NetAddr
		var err error
		if cfg.peerAddr != "" {
			want, err = netaddr.Parse(cfg.peerAddr)
		} else {
			var addrs []netaddr.NetAddr
			addrs, err = readAddrFile(cfg.peerFile)
			if err == nil && len(addrs) > 0 {
				want = addrs[0]
			}
		}
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompilePeerAddrFilter(), &want, nil
	case cfg.attrFilter != "":
		code, err := attrCodeByName(cfg.attrFilter)
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompileAttrFilter(code), nil, nil
	case cfg.attrFile != "":
		lines, err := readTokenLines(cfg.attrFile)
		if err != nil {
			return vm.Program{}, nil, err
		}
		if len(lines) == 0 {
			return vm.Program{}, nil, errors.New("bgpgrep: -T file has no attribute names")
		}
		code, err := attrCodeByName(lines[0])
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompileAttrFilter(code), nil, nil
	case cfg.commMatch != "":
		c, err := parseCommunity(cfg.commMatch)
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompileCommunityFilter([]uint32{c}), nil, nil
	case cfg.commMiss != "":
		comms, err := readCommunityFile(cfg.commMiss)
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompileCommunityFilter(comms), nil, nil
	case cfg.aspathMatch != "":
		lit, err := parseASPathExpr(cfg.aspathMatch)
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompileASPathFilter(lit), nil, nil
	case cfg.aspathMiss != "":
		lines, err := readTokenLines(cfg.aspathMiss)
		if err != nil {
			return vm.Program{}, nil, err
		}
		if len(lines) == 0 {
			return vm.Program{}, nil, errors.New("bgpgrep: -P file has no expressions")
		}
		lit, err := parseASPathExpr(lines[0])
		if err != nil {
			return vm.Program{}, nil, err
		}
		return vm.CompileASPathFilter(lit), nil, nil
	case cfg.keepLoops:
		return vm.CompileLoopFilter(true), nil, nil
	case cfg.discardLoops:
		return vm.CompileLoopFilter(false), nil, nil
	default:
		return vm.AlwaysPass(), nil, nil
	}
}

// insertFile inserts every prefix in name into the appropriate trie (v4 or
// v6, by family), for the file forms of -e/-s/-u/-r.
func insertFile(v4, v6 *patricia.Trie, name string) error {
	prefixes, err := readPrefixFile(name)
	if err != nil {
		return err
	}
	for _, na := range prefixes {
		tr := v4
		if na.Family == netaddr.V6 {
			tr = v6
		}
		if _, err := tr.Insert(na, nil); err != nil {
			return err
		}
	}
	return nil
}

func insertInto(v4, v6 *patricia.Trie, pfx string) error {
	na, err := netaddr.Parse(pfx)
	if err != nil {
		return err
	}
	tr := v4
	if na.Family == netaddr.V6 {
		tr = v6
	}
	_, err = tr.Insert(na, nil)
	return err
}

func attrCodeByName(name string) (uint8, error) {
	switch name {
	case "origin":
		return uint8(bgp.AttrOrigin), nil
	case "as-path", "aspath":
		return uint8(bgp.AttrASPath), nil
	case "next-hop", "nexthop":
		return uint8(bgp.AttrNextHop), nil
	case "med", "multi-exit-disc":
		return uint8(bgp.AttrMultiExitDisc), nil
	case "local-pref":
		return uint8(bgp.AttrLocalPref), nil
	case "community":
		return uint8(bgp.AttrCommunity), nil
	case "large-community":
		return uint8(bgp.AttrLargeCommunity), nil
	default:
		return 0, fmt.Errorf("bgpgrep: unknown attribute name %q", name)
	}
}
