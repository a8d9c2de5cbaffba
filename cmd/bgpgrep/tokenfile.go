package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ubgpsuite/bgpgrep/netaddr"
	"github.com/ubgpsuite/bgpgrep/vm"
)

// readASNFile reads ASNs from name, one or more per line as a
// comma-separated list, skipping blank lines and '#' comments.
func readASNFile(name string) ([]uint32, error) {
	lines, err := readTokenLines(name)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, len(lines))
	for _, l := range lines {
		for _, tok := range strings.Split(l, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			as, err := strconv.ParseUint(tok, 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing ASN %q", tok)
			}
			out = append(out, uint32(as))
		}
	}
	return out, nil
}

// readPrefixFile reads one prefix per line, used by -E/-R/-S/-U.
func readPrefixFile(name string) ([]netaddr.NetAddr, error) {
	lines, err := readTokenLines(name)
	if err != nil {
		return nil, err
	}
	out := make([]netaddr.NetAddr, 0, len(lines))
	for _, l := range lines {
		na, err := netaddr.Parse(l)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing prefix %q", l)
		}
		out = append(out, na)
	}
	return out, nil
}

// readAddrFile reads one peer address per line, used by -I.
func readAddrFile(name string) ([]netaddr.NetAddr, error) {
	return readPrefixFile(name)
}

// parseCommunity parses the "asn:value" textual form of a standard
// community into its packed 32-bit representation.
func parseCommunity(s string) (uint32, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, errors.Errorf("malformed community %q, want asn:value", s)
	}
	asn, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing community %q", s)
	}
	val, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing community %q", s)
	}
	return uint32(asn)<<16 | uint32(val), nil
}

// readCommunityFile reads one community per line, used by -M.
func readCommunityFile(name string) ([]uint32, error) {
	lines, err := readTokenLines(name)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, len(lines))
	for _, l := range lines {
		c, err := parseCommunity(l)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// parseASPathExpr parses a comma-separated AS-path expression such as
// "65001,?,65003" into the literal sequence ASPMATCH expects, with '?'
// standing in for vm.AsAny (any single hop).
func parseASPathExpr(expr string) ([]int64, error) {
	toks := strings.Split(expr, ",")
	lit := make([]int64, 0, len(toks))
	for _, tok := range toks {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if tok == "?" {
			lit = append(lit, vm.AsAny)
			continue
		}
		as, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing AS path expression %q", expr)
		}
		lit = append(lit, int64(as))
	}
	if len(lit) == 0 {
		return nil, errors.Errorf("empty AS path expression %q", expr)
	}
	return lit, nil
}

// readTokenLines opens name and returns every non-blank, non-comment line.
func readTokenLines(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		l := strings.TrimSpace(scanner.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return lines, nil
}
