// Package netaddr implements the (family, bitlen, bytes) prefix model
// used throughout bgpgrep: parsing, canonical formatting and the bitwise
// mask comparisons the Patricia trie and filter VM build on.
package netaddr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Family identifies which address family a NetAddr holds.
type Family uint8

const (
	Unspec Family = iota
	V4
	V6
)

func (f Family) String() string {
	switch f {
	case V4:
		return "ipv4"
	case V6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// MaxBitlen returns the maximum prefix length for the family, or 0 for Unspec.
func (f Family) MaxBitlen() int {
	switch f {
	case V4:
		return 32
	case V6:
		return 128
	default:
		return 0
	}
}

// NetAddr is a (family, bitlen, bytes) prefix. Bytes is always sized to
// the family's full address width (4 or 16); bits beyond Bitlen are zero
// on well-formed values.
type NetAddr struct {
	Family Family
	Bitlen uint8
	Bytes  [16]byte
}

// NetAddrAP extends NetAddr with a 32-bit ADDPATH path identifier (RFC 7911).
type NetAddrAP struct {
	NetAddr
	PathID uint32
}

var errBadFormat = errors.New("netaddr: malformed address/prefix string")

// Parse reads "a.b.c.d[/n]" or "x:x::x[/n]" and infers the family from the
// first non-digit character among '.' and ':' scanned over the leading
// five bytes of the string. Absence of "/n" implies a full-length prefix.
func Parse(s string) (NetAddr, error) {
	addrPart, maskPart, hasMask := strings.Cut(s, "/")

	fam, err := sniffFamily(addrPart)
	if err != nil {
		return NetAddr{}, err
	}

	var b [16]byte
	n := copy(b[:], rawParseAddr(addrPart, fam))
	if n == 0 {
		return NetAddr{}, errors.Wrapf(errBadFormat, "address %q", addrPart)
	}

	bitlen := fam.MaxBitlen()
	if hasMask {
		m, err := strconv.Atoi(maskPart)
		if err != nil || m < 0 || m > fam.MaxBitlen() {
			return NetAddr{}, errors.Wrapf(errBadFormat, "mask %q", maskPart)
		}
		bitlen = m
	}

	na := NetAddr{Family: fam, Bitlen: uint8(bitlen), Bytes: b}
	na.maskTrailingBits()
	return na, nil
}

// sniffFamily scans the first five characters of s (or fewer) for '.' or
// ':' to decide whether the string is IPv4 or IPv6 text, the way the
// original ubgpsuite netaddr_pton does.
func sniffFamily(s string) (Family, error) {
	lim := len(s)
	if lim > 5 {
		lim = 5
	}
	for i := 0; i < lim; i++ {
		switch s[i] {
		case '.':
			return V4, nil
		case ':':
			return V6, nil
		}
	}
	return Unspec, errors.Wrapf(errBadFormat, "could not infer family of %q", s)
}

func rawParseAddr(s string, fam Family) []byte {
	switch fam {
	case V4:
		return parseV4(s)
	case V6:
		return parseV6(s)
	default:
		return nil
	}
}

func parseV4(s string) []byte {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return nil
	}
	out := make([]byte, 4)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil
		}
		out[i] = byte(v)
	}
	return out
}

// parseV6 implements the standard "::" run-length-compressing textual
// form, including a mapped "::ffff:a.b.c.d" tail.
func parseV6(s string) []byte {
	// Mapped-v4 tail: split the last group on '.' if present.
	var v4tail []byte
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 && strings.Contains(s[idx:], ".") {
		v4tail = parseV4(s[idx+1:])
		if v4tail == nil {
			return nil
		}
		s = s[:idx+1] + "0:0"
	}

	head, tail, hasDouble := strings.Cut(s, "::")
	var headGroups, tailGroups []string
	if head != "" {
		headGroups = strings.Split(head, ":")
	}
	if hasDouble && tail != "" {
		tailGroups = strings.Split(tail, ":")
	} else if !hasDouble {
		tailGroups = strings.Split(s, ":")
		headGroups = nil
	}

	out := make([]byte, 16)
	groups := headGroups
	if !hasDouble {
		groups = tailGroups
	}
	if !hasDouble {
		if len(groups) != 8 {
			return nil
		}
		for i, g := range groups {
			if !putGroup(out[i*2:i*2+2], g) {
				return nil
			}
		}
	} else {
		total := len(headGroups) + len(tailGroups)
		if total > 8 {
			return nil
		}
		for i, g := range headGroups {
			if !putGroup(out[i*2:i*2+2], g) {
				return nil
			}
		}
		off := 16 - len(tailGroups)*2
		for i, g := range tailGroups {
			if !putGroup(out[off+i*2:off+i*2+2], g) {
				return nil
			}
		}
	}
	if v4tail != nil {
		copy(out[12:16], v4tail)
	}
	return out
}

func putGroup(dst []byte, g string) bool {
	v, err := strconv.ParseUint(g, 16, 16)
	if err != nil {
		return false
	}
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
	return true
}

// maskTrailingBits zeroes every bit beyond Bitlen, keeping the invariant
// that well-formed prefixes carry no significant bits past their length.
func (n *NetAddr) maskTrailingBits() {
	bl := int(n.Bitlen)
	width := n.Family.MaxBitlen() / 8
	for i := 0; i < width; i++ {
		bitOff := i * 8
		switch {
		case bitOff+8 <= bl:
			// fully inside the mask, keep as-is
		case bitOff >= bl:
			n.Bytes[i] = 0
		default:
			keep := bl - bitOff
			n.Bytes[i] &= byte(0xff00 >> uint(keep))
		}
	}
}

// String renders the canonical textual form "addr/bitlen".
func (n NetAddr) String() string {
	switch n.Family {
	case V4:
		return fmt.Sprintf("%d.%d.%d.%d/%d", n.Bytes[0], n.Bytes[1], n.Bytes[2], n.Bytes[3], n.Bitlen)
	case V6:
		return formatV6(n.Bytes[:16]) + "/" + strconv.Itoa(int(n.Bitlen))
	default:
		return "unspec"
	}
}

// formatV6 prints canonical IPv6 text: lowercase hex groups, the longest
// run of at least three consecutive zero groups compressed to "::", and
// the classic mapped-v4 tail "::ffff:a.b.c.d" printed in mixed form.
func formatV6(b []byte) string {
	var groups [8]uint16
	for i := 0; i < 8; i++ {
		groups[i] = uint16(b[i*2])<<8 | uint16(b[i*2+1])
	}

	// mapped IPv4: ::ffff:a.b.c.d
	if groups[0] == 0 && groups[1] == 0 && groups[2] == 0 && groups[3] == 0 &&
		groups[4] == 0 && groups[5] == 0xffff {
		return fmt.Sprintf("::ffff:%d.%d.%d.%d", b[12], b[13], b[14], b[15])
	}

	bestStart, bestLen := -1, 0
	curStart, curLen := -1, 0
	for i := 0; i < 8; i++ {
		if groups[i] == 0 {
			if curStart == -1 {
				curStart = i
			}
			curLen++
			if curLen > bestLen {
				bestStart, bestLen = curStart, curLen
			}
		} else {
			curStart, curLen = -1, 0
		}
	}
	if bestLen < 3 {
		bestStart, bestLen = -1, 0
	}

	var sb strings.Builder
	i := 0
	for i < 8 {
		if i == bestStart {
			sb.WriteString("::")
			i += bestLen
			continue
		}
		sb.WriteString(strconv.FormatUint(uint64(groups[i]), 16))
		i++
		if i < 8 && i != bestStart {
			sb.WriteByte(':')
		}
	}
	return sb.String()
}

// PrefixEqWithMask reports whether the first n bits of a and b agree.
// n==0 always matches; for n%8==0 it reduces to a byte compare, otherwise
// the final partial byte is masked by ~0 << (8 - n%8).
func PrefixEqWithMask(a, b [16]byte, n uint8) bool {
	if n == 0 {
		return true
	}
	fullBytes := int(n) / 8
	for i := 0; i < fullBytes; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	if rem := n % 8; rem != 0 {
		mask := byte(0xff00 >> rem)
		if a[fullBytes]&mask != b[fullBytes]&mask {
			return false
		}
	}
	return true
}

// PrefixEq additionally requires matching family and bitlen.
func PrefixEq(a, b NetAddr) bool {
	return a.Family == b.Family && a.Bitlen == b.Bitlen && PrefixEqWithMask(a.Bytes, b.Bytes, a.Bitlen)
}

// Bit returns the value (0 or 1) of the bit at position idx (0-based,
// MSB-first) of the address.
func (n NetAddr) Bit(idx int) int {
	byteIdx := idx / 8
	bitIdx := uint(idx % 8)
	return int((n.Bytes[byteIdx] >> (7 - bitIdx)) & 1)
}
