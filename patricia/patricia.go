// Package patricia implements the bitwise radix (Patricia) trie used by
// the filter VM to answer longest-prefix-match style queries: exact,
// best, supernet, subnet and related lookups over IPv4/IPv6 prefixes.
package patricia

import (
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

const nodesPerPage = 128

// node is either a glue node (glue==true, no user prefix) or a prefix
// node carrying a stored NetAddr and an opaque payload.
type node struct {
	parent, left, right *node
	glue                bool
	prefix              netaddr.NetAddr
	payload             interface{}
}

// Trie is a single-family Patricia trie. It is bound to one family
// (V4 or V6) at creation; inserting a prefix of a different family is an
// error.
type Trie struct {
	family   netaddr.Family
	maxBits  int
	root     *node
	nPrefs   int
	pages    [][]node
	freelist []*node
}

// New creates an empty trie for the given family.
func New(family netaddr.Family) *Trie {
	return &Trie{family: family, maxBits: family.MaxBitlen()}
}

// Family reports the family this trie was created for.
func (t *Trie) Family() netaddr.Family { return t.family }

// Len reports the number of stored (non-glue) prefixes.
func (t *Trie) Len() int { return t.nPrefs }

func (t *Trie) allocNode() *node {
	if n := len(t.freelist); n > 0 {
		nd := t.freelist[n-1]
		t.freelist = t.freelist[:n-1]
		*nd = node{}
		return nd
	}
	if len(t.pages) == 0 || allocated(t.pages[len(t.pages)-1]) {
		t.pages = append(t.pages, make([]node, 0, nodesPerPage))
	}
	page := &t.pages[len(t.pages)-1]
	*page = (*page)[:len(*page)+1]
	return &(*page)[len(*page)-1]
}

func allocated(page []node) bool {
	return len(page) == cap(page)
}

// differBit returns the index of the first bit (clamped to the shorter of
// the two bitlens) where a and b disagree.
func differBit(a, b netaddr.NetAddr) int {
	lim := int(a.Bitlen)
	if int(b.Bitlen) < lim {
		lim = int(b.Bitlen)
	}
	for i := 0; i < lim; i++ {
		if a.Bit(i) != b.Bit(i) {
			return i
		}
	}
	return lim
}

// InsertResult reports what Insert did.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyPresent
)

// Insert adds prefix to the trie, reporting whether it was newly inserted
// or already present.
func (t *Trie) Insert(prefix netaddr.NetAddr, payload interface{}) (InsertResult, error) {
	if prefix.Family != t.family {
		return 0, errFamilyMismatch(t.family, prefix.Family)
	}

	if t.root == nil {
		n := t.allocNode()
		n.prefix = prefix
		n.payload = payload
		t.root = n
		t.nPrefs++
		return Inserted, nil
	}

	cur := t.root
	for {
		if cur.bitlen() >= int(prefix.Bitlen) || t.child(cur, prefix) == nil {
			break
		}
		cur = t.child(cur, prefix)
	}

	db := differBit(cur.effective(), prefix)

	// Back up while parent.bitlen >= db.
	for cur.parent != nil && cur.parent.bitlen() >= db {
		cur = cur.parent
	}

	switch {
	case db == int(prefix.Bitlen) && db == cur.bitlen():
		// exact match: convert glue to prefix node, or report duplicate.
		if cur.glue {
			cur.glue = false
			cur.prefix = prefix
			cur.payload = payload
			t.nPrefs++
			return Inserted, nil
		}
		return AlreadyPresent, nil

	case db == cur.bitlen() && !cur.glue:
		// cur is an ancestor of prefix: descend and attach.
		return t.attachChild(cur, prefix, payload)

	case db == int(prefix.Bitlen):
		// prefix is an ancestor of cur: insert prefix as cur's new parent.
		return t.insertAbove(cur, prefix, payload)

	default:
		return t.insertGlue(cur, db, prefix, payload)
	}
}

func (t *Trie) attachChild(parent *node, prefix netaddr.NetAddr, payload interface{}) (InsertResult, error) {
	child := t.child(parent, prefix)
	if child == nil {
		n := t.allocNode()
		n.prefix = prefix
		n.payload = payload
		n.parent = parent
		t.setChild(parent, prefix, n)
		t.nPrefs++
		return Inserted, nil
	}
	// Need to descend further: walk down until the differing bit or a nil child.
	cur := child
	for cur.bitlen() < int(prefix.Bitlen) {
		next := t.child(cur, prefix)
		if next == nil {
			n := t.allocNode()
			n.prefix = prefix
			n.payload = payload
			n.parent = cur
			t.setChild(cur, prefix, n)
			t.nPrefs++
			return Inserted, nil
		}
		db := differBit(next.effective(), prefix)
		if db < next.bitlen() {
			return t.insertGlue(next, db, prefix, payload)
		}
		cur = next
	}
	if cur.glue {
		cur.glue = false
		cur.prefix = prefix
		cur.payload = payload
		t.nPrefs++
		return Inserted, nil
	}
	return AlreadyPresent, nil
}

func (t *Trie) insertAbove(cur *node, prefix netaddr.NetAddr, payload interface{}) (InsertResult, error) {
	n := t.allocNode()
	n.prefix = prefix
	n.payload = payload
	n.parent = cur.parent
	if cur.parent == nil {
		t.root = n
	} else {
		t.setChild(cur.parent, prefix, n)
	}
	cur.parent = n
	t.setChild(n, cur.effective(), cur)
	t.nPrefs++
	return Inserted, nil
}

func (t *Trie) insertGlue(sibling *node, at int, prefix netaddr.NetAddr, payload interface{}) (InsertResult, error) {
	glue := t.allocNode()
	glue.glue = true
	glue.prefix = netaddr.NetAddr{Family: t.family, Bitlen: uint8(at), Bytes: sibling.effective().Bytes}
	glue.prefix.Bytes = maskBytes(glue.prefix.Bytes, uint8(at))
	glue.parent = sibling.parent
	if sibling.parent == nil {
		t.root = glue
	} else {
		t.setChild(sibling.parent, glue.prefix, glue)
	}
	sibling.parent = glue
	t.setChild(glue, sibling.effective(), sibling)

	leaf := t.allocNode()
	leaf.prefix = prefix
	leaf.payload = payload
	leaf.parent = glue
	t.setChild(glue, prefix, leaf)

	t.nPrefs++
	return Inserted, nil
}

func maskBytes(b [16]byte, bitlen uint8) [16]byte {
	out := netaddr.NetAddr{Bytes: b}
	maskTrailing(&out, bitlen)
	return out.Bytes
}

func maskTrailing(n *netaddr.NetAddr, bitlen uint8) {
	width := 16
	for i := 0; i < width; i++ {
		bo := i * 8
		switch {
		case bo+8 <= int(bitlen):
		case bo >= int(bitlen):
			n.Bytes[i] = 0
		default:
			keep := int(bitlen) - bo
			n.Bytes[i] &= byte(0xff00 >> uint(keep))
		}
	}
}

func (n *node) bitlen() int {
	if n == nil {
		return -1
	}
	return int(n.prefix.Bitlen)
}

func (n *node) effective() netaddr.NetAddr {
	return n.prefix
}

func (t *Trie) child(n *node, key netaddr.NetAddr) *node {
	if n.bitlen() >= t.maxBits {
		return nil
	}
	if key.Bit(n.bitlen()) == 0 {
		return n.left
	}
	return n.right
}

func (t *Trie) setChild(n *node, key netaddr.NetAddr, c *node) {
	if key.Bit(n.bitlen()) == 0 {
		n.left = c
	} else {
		n.right = c
	}
}

// SearchExact returns the payload and true iff prefix is stored exactly.
func (t *Trie) SearchExact(prefix netaddr.NetAddr) (interface{}, bool) {
	if t.root == nil || prefix.Family != t.family {
		return nil, false
	}
	cur := t.root
	for cur != nil && cur.bitlen() < int(prefix.Bitlen) {
		cur = t.child(cur, prefix)
	}
	if cur == nil || cur.glue || cur.bitlen() != int(prefix.Bitlen) {
		return nil, false
	}
	if !netaddr.PrefixEqWithMask(cur.prefix.Bytes, prefix.Bytes, prefix.Bitlen) {
		return nil, false
	}
	return cur.payload, true
}

// SearchBest returns the payload of the longest stored prefix that is an
// ancestor of (or equal to) prefix.
func (t *Trie) SearchBest(prefix netaddr.NetAddr) (interface{}, bool) {
	if t.root == nil || prefix.Family != t.family {
		return nil, false
	}
	var best *node
	cur := t.root
	for cur != nil {
		if !cur.glue && netaddr.PrefixEqWithMask(cur.prefix.Bytes, prefix.Bytes, cur.prefix.Bitlen) && cur.bitlen() <= int(prefix.Bitlen) {
			best = cur
		}
		if cur.bitlen() >= int(prefix.Bitlen) {
			break
		}
		cur = t.child(cur, prefix)
	}
	if best == nil {
		return nil, false
	}
	return best.payload, true
}

// IsSupernetOf reports whether any stored prefix is a supernet of (an
// ancestor of, or equal to) the argument.
func (t *Trie) IsSupernetOf(prefix netaddr.NetAddr) bool {
	_, ok := t.SearchBest(prefix)
	return ok
}

// IsSubnetOf reports whether any stored prefix is a subnet of (a
// descendant of, or equal to) the argument.
func (t *Trie) IsSubnetOf(prefix netaddr.NetAddr) bool {
	found := false
	t.walkSubtree(prefix, func(n *node) bool {
		if !n.glue {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsRelatedOf reports whether prefix is related (subnet, supernet, or
// exact) to any stored prefix.
func (t *Trie) IsRelatedOf(prefix netaddr.NetAddr) bool {
	return t.IsSubnetOf(prefix) || t.IsSupernetOf(prefix)
}

// walkSubtree descends to the node matching prefix's bits (if any) and
// calls fn on every prefix node in that subtree, stopping early if fn
// returns false.
func (t *Trie) walkSubtree(prefix netaddr.NetAddr, fn func(*node) bool) {
	if t.root == nil || prefix.Family != t.family {
		return
	}
	cur := t.root
	for cur != nil && cur.bitlen() < int(prefix.Bitlen) {
		if !netaddr.PrefixEqWithMask(cur.prefix.Bytes, prefix.Bytes, uint8(cur.bitlen())) {
			return
		}
		cur = t.child(cur, prefix)
	}
	if cur == nil || !netaddr.PrefixEqWithMask(cur.prefix.Bytes, prefix.Bytes, prefix.Bitlen) {
		return
	}
	t.preorder(cur, fn)
}

// preorder walks cur's subtree with an explicit stack bounded by
// maxBits+1 nodes, skipping glue nodes from the callback's perspective
// but still traversing through them.
func (t *Trie) preorder(start *node, fn func(*node) bool) {
	stack := make([]*node, 0, t.maxBits+1)
	stack = append(stack, start)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if !fn(n) {
			return
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
		if n.left != nil {
			stack = append(stack, n.left)
		}
	}
}

// Walk visits every stored (non-glue) prefix in pre-order.
func (t *Trie) Walk(fn func(prefix netaddr.NetAddr, payload interface{}) bool) {
	if t.root == nil {
		return
	}
	t.preorder(t.root, func(n *node) bool {
		if n.glue {
			return true
		}
		return fn(n.prefix, n.payload)
	})
}

// Remove deletes prefix from the trie, if present. Interior prefix nodes
// are demoted to glue; leaves are unlinked, splicing a degenerate glue
// parent away.
func (t *Trie) Remove(prefix netaddr.NetAddr) bool {
	if t.root == nil || prefix.Family != t.family {
		return false
	}
	cur := t.root
	for cur != nil && cur.bitlen() < int(prefix.Bitlen) {
		cur = t.child(cur, prefix)
	}
	if cur == nil || cur.glue || cur.bitlen() != int(prefix.Bitlen) {
		return false
	}
	if !netaddr.PrefixEqWithMask(cur.prefix.Bytes, prefix.Bytes, prefix.Bitlen) {
		return false
	}

	if cur.left != nil && cur.right != nil {
		// interior: demote to glue
		cur.glue = true
		cur.payload = nil
		t.nPrefs--
		return true
	}

	only := cur.left
	if only == nil {
		only = cur.right
	}
	parent := cur.parent
	t.free(cur)
	t.nPrefs--

	if parent == nil {
		t.root = only
		if only != nil {
			only.parent = nil
		}
		return true
	}
	if parent.left == cur {
		parent.left = only
	} else {
		parent.right = only
	}
	if only != nil {
		only.parent = parent
	}

	// Splice away a now-degenerate glue parent (glue with exactly one child).
	if parent.glue && (parent.left == nil) != (parent.right == nil) {
		single := parent.left
		if single == nil {
			single = parent.right
		}
		gp := parent.parent
		if single != nil {
			single.parent = gp
		}
		if gp == nil {
			t.root = single
		} else if gp.left == parent {
			gp.left = single
		} else {
			gp.right = single
		}
		t.free(parent)
	}
	return true
}

func (t *Trie) free(n *node) {
	t.freelist = append(t.freelist, n)
}

// Clear returns all nodes to the trie's free list without releasing pages.
func (t *Trie) Clear() {
	t.root = nil
	t.nPrefs = 0
	for _, page := range t.pages {
		for i := range page {
			t.freelist = append(t.freelist, &page[i])
		}
	}
}

// Destroy releases all pages; the trie must not be used afterwards
// without calling New again.
func (t *Trie) Destroy() {
	t.root = nil
	t.nPrefs = 0
	t.pages = nil
	t.freelist = nil
}

// Coverage sums 2^(maxbitlen-p.bitlen) over all stored prefixes except the
// default route (bitlen==0), in 128-bit arithmetic.
func (t *Trie) Coverage() (hi, lo uint64) {
	var acc u128
	t.Walk(func(prefix netaddr.NetAddr, _ interface{}) bool {
		if prefix.Bitlen == 0 {
			return true
		}
		acc = acc.add(onePow2(t.maxBits - int(prefix.Bitlen)))
		return true
	})
	return acc.hi, acc.lo
}

// u128 is a minimal 128-bit unsigned accumulator, sufficient for address
// space coverage accounting (max 2^128).
type u128 struct{ hi, lo uint64 }

func (a u128) add(b u128) u128 {
	lo := a.lo + b.lo
	carry := uint64(0)
	if lo < a.lo {
		carry = 1
	}
	return u128{hi: a.hi + b.hi + carry, lo: lo}
}

func onePow2(shift int) u128 {
	if shift >= 128 {
		return u128{}
	}
	if shift >= 64 {
		return u128{hi: 1 << uint(shift-64)}
	}
	return u128{lo: 1 << uint(shift)}
}
