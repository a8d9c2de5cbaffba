package bgp

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

// AttrCode identifies a path attribute type (RFC 4271 §5, RFC 4760, RFC 6793...).
type AttrCode uint8

const (
	AttrOrigin           AttrCode = 1
	AttrASPath           AttrCode = 2
	AttrNextHop          AttrCode = 3
	AttrMultiExitDisc    AttrCode = 4
	AttrLocalPref        AttrCode = 5
	AttrAtomicAggregate  AttrCode = 6
	AttrAggregator       AttrCode = 7
	AttrCommunity        AttrCode = 8
	AttrOriginatorID     AttrCode = 9
	AttrClusterList      AttrCode = 10
	AttrMPReachNLRI      AttrCode = 14
	AttrMPUnreachNLRI    AttrCode = 15
	AttrExtCommunity     AttrCode = 16
	AttrAS4Path          AttrCode = 17
	AttrAS4Aggregator    AttrCode = 18
	AttrPMSITunnel       AttrCode = 22
	AttrTunnelEncap      AttrCode = 23
	AttrTrafficEng       AttrCode = 24
	AttrIPv6ExtCommunity AttrCode = 25
	AttrAIGP             AttrCode = 26
	AttrPEDistLabels     AttrCode = 27
	AttrBGPLS            AttrCode = 29
	AttrLargeCommunity   AttrCode = 32
	AttrBGPSecPath       AttrCode = 33
	AttrAttrSet          AttrCode = 128
)

// notableAttrs enumerates the 14 notable attribute codes (spec.md §4.4).
// No offset cache is built from it; FindAttr scans the attribute list.
var notableAttrs = [...]AttrCode{
	AttrOrigin, AttrASPath, AttrNextHop, AttrMultiExitDisc, AttrLocalPref,
	AttrAtomicAggregate, AttrAggregator, AttrCommunity, AttrMPReachNLRI,
	AttrMPUnreachNLRI, AttrExtCommunity, AttrAS4Path, AttrAS4Aggregator,
	AttrLargeCommunity,
}

const (
	flagOptional = 1 << 7
	flagTransit  = 1 << 6
	flagPartial  = 1 << 5
	flagExtLen   = 1 << 4
)

// Attr is a single decoded path attribute: its flags/code and the raw
// value bytes (not further interpreted here).
type Attr struct {
	Flags AttrFlags
	Code  AttrCode
	Value []byte
	// Offset is the byte offset of this attribute's flags octet within
	// the attributes section. Nothing in this package reads it back.
	Offset int
}

// AttrFlags are the four flag bits carried in an attribute's leading octet.
type AttrFlags uint8

func (f AttrFlags) Optional() bool  { return f&flagOptional != 0 }
func (f AttrFlags) Transitive() bool { return f&flagTransit != 0 }
func (f AttrFlags) Partial() bool   { return f&flagPartial != 0 }
func (f AttrFlags) Extended() bool  { return f&flagExtLen != 0 }

// AttrIterator walks the decoded attribute list; it implements the
// start/next/end idiom as a stateless cursor over a pre-parsed slice.
type AttrIterator struct {
	attrs []Attr
	pos   int
}

// StartAttrs begins an iteration over attrs.
func StartAttrs(attrs []Attr) *AttrIterator { return &AttrIterator{attrs: attrs} }

// Next advances the iterator, returning false when exhausted.
func (it *AttrIterator) Next() bool {
	if it.pos >= len(it.attrs) {
		return false
	}
	it.pos++
	return true
}

// Attr returns the attribute the iterator currently sits on.
func (it *AttrIterator) Attr() Attr { return it.attrs[it.pos-1] }

// End terminates the iteration (a no-op placeholder to keep the
// start/next/end shape explicit at call sites).
func (it *AttrIterator) End() {}

// DecodeTableDumpV2Attrs parses the attribute section of a TABLE_DUMPV2 RIB
// entry, which always carries 4-byte ASNs and never distinguishes
// AS_PATH/AS4_PATH the way a live UPDATE does.
func DecodeTableDumpV2Attrs(buf []byte) ([]Attr, error) {
	return decodeAttrs(buf, true, false)
}

// decodeAttrs parses the raw path-attributes section of an UPDATE body.
// Only the attribute framing is parsed here, so as4 and v6 are not used;
// AS_PATH and next-hop values are decoded later by their own accessors.
func decodeAttrs(buf []byte, as4, v6 bool) ([]Attr, error) {
	var attrs []Attr
	base := 0
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, errors.Wrap(ErrBadAttr, "truncated attribute header")
		}
		flags := AttrFlags(buf[0])
		code := AttrCode(buf[1])
		var length int
		var headerSz int
		if flags.Extended() {
			if len(buf) < 4 {
				return nil, errors.Wrap(ErrBadAttr, "truncated extended-length attribute header")
			}
			length = int(binary.BigEndian.Uint16(buf[2:4]))
			headerSz = 4
		} else {
			if len(buf) < 3 {
				return nil, errors.Wrap(ErrBadAttr, "truncated attribute header")
			}
			length = int(buf[2])
			headerSz = 3
		}
		if len(buf) < headerSz+length {
			return nil, errors.Wrapf(ErrBadAttr, "attribute code %d declares length %d beyond buffer", code, length)
		}
		attrs = append(attrs, Attr{
			Flags:  flags,
			Code:   code,
			Value:  buf[headerSz : headerSz+length],
			Offset: base,
		})
		base += headerSz + length
		buf = buf[headerSz+length:]
	}
	return attrs, nil
}

// FindAttr returns the first attribute with the given code by a linear
// scan of attrs; the bool reports whether one was found.
func FindAttr(attrs []Attr, code AttrCode) (Attr, bool) {
	for _, a := range attrs {
		if a.Code == code {
			return a, true
		}
	}
	return Attr{}, false
}

// ASPathSegment is one SET or SEQ run of ASNs within AS_PATH/AS4_PATH.
type ASPathSegment struct {
	Set bool
	ASN []uint32
}

// DecodeASPath parses an AS_PATH or AS4_PATH attribute value. asSize is 2
// or 4 depending on session-level 32-bit-ASN negotiation (AS_PATH) or is
// always 4 for AS4_PATH.
func DecodeASPath(value []byte, asSize int) ([]ASPathSegment, error) {
	var segs []ASPathSegment
	for len(value) > 0 {
		if len(value) < 2 {
			return nil, errors.Wrap(ErrBadAttr, "truncated AS path segment header")
		}
		segType := value[0]
		count := int(value[1])
		value = value[2:]
		need := count * asSize
		if len(value) < need {
			return nil, errors.Wrap(ErrBadAttr, "truncated AS path segment body")
		}
		seg := ASPathSegment{Set: segType == 1}
		if segType != 1 && segType != 2 {
			return nil, errors.Errorf("bgp: unknown AS path segment type %d", segType)
		}
		for i := 0; i < count; i++ {
			if asSize == 4 {
				seg.ASN = append(seg.ASN, binary.BigEndian.Uint32(value[:4]))
				value = value[4:]
			} else {
				seg.ASN = append(seg.ASN, uint32(binary.BigEndian.Uint16(value[:2])))
				value = value[2:]
			}
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// asCount counts ASNs in a path, counting each SET segment as exactly 1
// (per RFC 4893/6793 reconciliation rules).
func asCount(segs []ASPathSegment) int {
	n := 0
	for _, s := range segs {
		if s.Set {
			n++
		} else {
			n += len(s.ASN)
		}
	}
	return n
}

const asTrans = 23456

// ReconcileRealASPath implements the RFC 6793 AS4_PATH reconciliation
// described in spec.md §4.4: if ASN32BIT is set, or there is no
// AS4_PATH, AS_PATH is authoritative. Otherwise splice the tail of
// AS4_PATH onto the leading entries of AS_PATH.
func ReconcileRealASPath(asPath, as4Path []ASPathSegment, asn32 bool, aggregatorAS uint32, hasAggregator bool) []ASPathSegment {
	if asn32 || as4Path == nil {
		return asPath
	}
	if hasAggregator && aggregatorAS != asTrans {
		return asPath
	}

	n2 := asCount(asPath)
	n4 := asCount(as4Path)
	if n2 < n4 {
		return asPath
	}
	if n2 == n4 {
		return as4Path
	}

	lead := n2 - n4
	var out []ASPathSegment
	taken := 0
	for _, seg := range asPath {
		if taken >= lead {
			break
		}
		segLen := 1
		if !seg.Set {
			segLen = len(seg.ASN)
		}
		if seg.Set {
			out = append(out, seg)
			taken++
			continue
		}
		remaining := lead - taken
		if segLen <= remaining {
			out = append(out, seg)
			taken += segLen
		} else {
			out = append(out, ASPathSegment{Set: false, ASN: append([]uint32(nil), seg.ASN[:remaining]...)})
			taken += remaining
		}
	}
	out = append(out, as4Path...)
	return out
}

// readPrefixList parses a run of wire-form prefixes ("bitlen byte, then
// ceil(bitlen/8) bytes") until buf is exhausted.
func readPrefixList(buf []byte, fam netaddr.Family) ([]netaddr.NetAddr, error) {
	var out []netaddr.NetAddr
	for len(buf) > 0 {
		bitlen := int(buf[0])
		buf = buf[1:]
		maxbits := fam.MaxBitlen()
		if bitlen > maxbits {
			return nil, errors.Wrapf(ErrBadNLRI, "bitlen %d exceeds family max %d", bitlen, maxbits)
		}
		bytelen := (bitlen + 7) / 8
		if bytelen > len(buf) {
			return nil, errors.Wrap(ErrBadNLRI, "truncated prefix bytes")
		}
		var b [16]byte
		copy(b[:], buf[:bytelen])
		na := netaddr.NetAddr{Family: fam, Bitlen: uint8(bitlen), Bytes: b}
		buf = buf[bytelen:]
		out = append(out, na)
	}
	return out, nil
}

// readPrefixListAddPath is readPrefixList with a leading 32-bit path
// identifier per prefix (RFC 7911).
func readPrefixListAddPath(buf []byte, fam netaddr.Family) ([]netaddr.NetAddrAP, error) {
	var out []netaddr.NetAddrAP
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, errors.Wrap(ErrBadNLRI, "truncated ADDPATH path id")
		}
		pathID := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		single, err := readOnePrefix(&buf, fam)
		if err != nil {
			return nil, err
		}
		out = append(out, netaddr.NetAddrAP{NetAddr: single, PathID: pathID})
	}
	return out, nil
}

func readOnePrefix(buf *[]byte, fam netaddr.Family) (netaddr.NetAddr, error) {
	b := *buf
	if len(b) < 1 {
		return netaddr.NetAddr{}, errors.Wrap(ErrBadNLRI, "truncated prefix length")
	}
	bitlen := int(b[0])
	b = b[1:]
	if bitlen > fam.MaxBitlen() {
		return netaddr.NetAddr{}, errors.Wrapf(ErrBadNLRI, "bitlen %d exceeds family max", bitlen)
	}
	bytelen := (bitlen + 7) / 8
	if bytelen > len(b) {
		return netaddr.NetAddr{}, errors.Wrap(ErrBadNLRI, "truncated prefix bytes")
	}
	var raw [16]byte
	copy(raw[:], b[:bytelen])
	na := netaddr.NetAddr{Family: fam, Bitlen: uint8(bitlen), Bytes: raw}
	*buf = b[bytelen:]
	return na, nil
}

// MPReach holds the decoded contents of an MP_REACH_NLRI attribute.
type MPReach struct {
	AFI     uint16
	SAFI    uint8
	NextHop netaddr.NetAddr
	NLRI    []netaddr.NetAddr
}

// DecodeMPReach parses an MP_REACH_NLRI attribute value.
func DecodeMPReach(value []byte) (MPReach, error) {
	if len(value) < 4 {
		return MPReach{}, errors.Wrap(ErrBadAttr, "truncated MP_REACH header")
	}
	afi := binary.BigEndian.Uint16(value[0:2])
	safi := value[2]
	nhLen := int(value[3])
	value = value[4:]
	if nhLen > len(value) {
		return MPReach{}, errors.Wrap(ErrBadAttr, "MP_REACH next-hop length overruns buffer")
	}
	fam := afiFamily(afi)
	nh, err := decodeNextHopBytes(value[:nhLen], fam)
	if err != nil {
		return MPReach{}, err
	}
	value = value[nhLen:]
	if len(value) < 1 {
		return MPReach{}, errors.Wrap(ErrBadAttr, "truncated MP_REACH SNPA count")
	}
	snpaCount := int(value[0])
	value = value[1:]
	for i := 0; i < snpaCount; i++ {
		if len(value) < 1 {
			return MPReach{}, errors.Wrap(ErrBadAttr, "truncated MP_REACH SNPA length")
		}
		l := int(value[0])
		value = value[1:]
		if l > len(value) {
			return MPReach{}, errors.Wrap(ErrBadAttr, "truncated MP_REACH SNPA body")
		}
		value = value[l:]
	}
	nlri, err := readPrefixList(value, fam)
	if err != nil {
		return MPReach{}, err
	}
	return MPReach{AFI: afi, SAFI: safi, NextHop: nh, NLRI: nlri}, nil
}

// DecodeMPUnreach parses an MP_UNREACH_NLRI attribute value.
func DecodeMPUnreach(value []byte) (afi uint16, safi uint8, withdrawn []netaddr.NetAddr, err error) {
	if len(value) < 3 {
		return 0, 0, nil, errors.Wrap(ErrBadAttr, "truncated MP_UNREACH header")
	}
	afi = binary.BigEndian.Uint16(value[0:2])
	safi = value[2]
	withdrawn, err = readPrefixList(value[3:], afiFamily(afi))
	return
}

func afiFamily(afi uint16) netaddr.Family {
	switch afi {
	case 1:
		return netaddr.V4
	case 2:
		return netaddr.V6
	default:
		return netaddr.Unspec
	}
}

func decodeNextHopBytes(b []byte, fam netaddr.Family) (netaddr.NetAddr, error) {
	switch {
	case fam == netaddr.V4 && len(b) == 4:
		var raw [16]byte
		copy(raw[:4], b)
		return netaddr.NetAddr{Family: netaddr.V4, Bitlen: 32, Bytes: raw}, nil
	case fam == netaddr.V6 && (len(b) == 16 || len(b) == 32):
		var raw [16]byte
		copy(raw[:16], b[:16])
		return netaddr.NetAddr{Family: netaddr.V6, Bitlen: 128, Bytes: raw}, nil
	default:
		return netaddr.NetAddr{}, errors.Errorf("bgp: next hop length %d doesn't match family %s", len(b), fam)
	}
}

// Community is a standard (RFC 1997) community value.
type Community uint32

// ExtCommunity is an 8-byte extended community (RFC 4360).
type ExtCommunity [8]byte

// IPv6ExtCommunity is a 20-byte IPv6-specific extended community (RFC 5701).
type IPv6ExtCommunity [20]byte

// LargeCommunity is a three-uint32 large community (RFC 8092).
type LargeCommunity struct {
	GlobalAdmin, LocalData1, LocalData2 uint32
}

// DecodeCommunities parses a COMMUNITY attribute value into standard
// community values.
func DecodeCommunities(value []byte) ([]Community, error) {
	if len(value)%4 != 0 {
		return nil, errors.Wrap(ErrBadAttr, "COMMUNITY length not a multiple of 4")
	}
	out := make([]Community, 0, len(value)/4)
	for i := 0; i < len(value); i += 4 {
		out = append(out, Community(binary.BigEndian.Uint32(value[i:i+4])))
	}
	return out, nil
}

// DecodeExtCommunities parses an EXTENDED_COMMUNITY attribute value.
func DecodeExtCommunities(value []byte) ([]ExtCommunity, error) {
	if len(value)%8 != 0 {
		return nil, errors.Wrap(ErrBadAttr, "EXTENDED_COMMUNITY length not a multiple of 8")
	}
	out := make([]ExtCommunity, 0, len(value)/8)
	for i := 0; i < len(value); i += 8 {
		var c ExtCommunity
		copy(c[:], value[i:i+8])
		out = append(out, c)
	}
	return out, nil
}

// DecodeLargeCommunities parses a LARGE_COMMUNITY attribute value (RFC 8092).
func DecodeLargeCommunities(value []byte) ([]LargeCommunity, error) {
	if len(value)%12 != 0 {
		return nil, errors.Wrap(ErrBadAttr, "LARGE_COMMUNITY length not a multiple of 12")
	}
	out := make([]LargeCommunity, 0, len(value)/12)
	for i := 0; i < len(value); i += 12 {
		out = append(out, LargeCommunity{
			GlobalAdmin: binary.BigEndian.Uint32(value[i : i+4]),
			LocalData1:  binary.BigEndian.Uint32(value[i+4 : i+8]),
			LocalData2:  binary.BigEndian.Uint32(value[i+8 : i+12]),
		})
	}
	return out, nil
}
