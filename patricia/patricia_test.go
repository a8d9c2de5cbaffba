package patricia

import (
	"testing"

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

func TestInsertThenSearchExact(t *testing.T) {
	tr := New(netaddr.V4)
	p := mustParse(t, "10.0.0.0/8")
	if res, err := tr.Insert(p, 1); err != nil || res != Inserted {
		t.Fatalf("Insert: res=%v err=%v", res, err)
	}
	if _, ok := tr.SearchExact(p); !ok {
		t.Error("search_exact after insert must find the prefix")
	}
}

func TestRemoveThenSearchExactMisses(t *testing.T) {
	tr := New(netaddr.V4)
	p := mustParse(t, "10.0.0.0/8")
	tr.Insert(p, 1)
	if !tr.Remove(p) {
		t.Fatal("Remove reported false")
	}
	if _, ok := tr.SearchExact(p); ok {
		t.Error("search_exact after remove must not find the prefix")
	}
}

func TestSupernetMatch(t *testing.T) {
	tr := New(netaddr.V4)
	tr.Insert(mustParse(t, "10.1.0.0/16"), "parent")
	q := mustParse(t, "10.1.2.0/24")
	if !tr.IsSupernetOf(q) {
		t.Error("10.1.0.0/16 should be a supernet of 10.1.2.0/24")
	}
}

func TestIterationEmitsEachPrefixOnce(t *testing.T) {
	prefixes := []string{"10.0.0.0/8", "10.1.0.0/16", "10.1.2.0/24", "192.168.0.0/16"}
	tr := New(netaddr.V4)
	for _, p := range prefixes {
		tr.Insert(mustParse(t, p), p)
	}
	seen := map[string]int{}
	tr.Walk(func(prefix netaddr.NetAddr, payload interface{}) bool {
		seen[prefix.String()]++
		return true
	})
	if len(seen) != len(prefixes) {
		t.Fatalf("expected %d distinct prefixes, got %d (%v)", len(prefixes), len(seen), seen)
	}
	for _, p := range prefixes {
		if seen[p] != 1 {
			t.Errorf("prefix %s emitted %d times, want 1", p, seen[p])
		}
	}
}

func TestFamilyMismatchIsError(t *testing.T) {
	tr := New(netaddr.V4)
	v6, _ := netaddr.Parse("::1/128")
	if _, err := tr.Insert(v6, nil); err == nil {
		t.Error("inserting a v6 prefix into a v4 trie must error")
	}
}

func TestExactMatchOnGlueNodeConverts(t *testing.T) {
	tr := New(netaddr.V4)
	tr.Insert(mustParse(t, "10.0.0.0/8"), "a")
	tr.Insert(mustParse(t, "10.128.0.0/9"), "b")
	// 192.0.0.0/8 differs from 10.0.0.0/8 at bit 0, forcing a glue node at bitlen 0.
	tr.Insert(mustParse(t, "192.0.0.0/8"), "c")
	if tr.Len() != 3 {
		t.Fatalf("expected 3 stored prefixes, got %d", tr.Len())
	}
	// 0.0.0.0/0 lands exactly on that glue node, which becomes a prefix node.
	res, err := tr.Insert(mustParse(t, "0.0.0.0/0"), "d")
	if err != nil || res != Inserted {
		t.Fatalf("Insert(0.0.0.0/0): res=%v err=%v", res, err)
	}
	if _, ok := tr.SearchExact(mustParse(t, "0.0.0.0/0")); !ok {
		t.Error("0.0.0.0/0 not found after converting the glue node")
	}
	if tr.Len() != 4 {
		t.Fatalf("expected 4 stored prefixes, got %d", tr.Len())
	}
}
