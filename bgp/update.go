package bgp

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

// Update is a decoded UPDATE message body. Withdrawn and NLRI hold the
// legacy IPv4 unicast routes carried directly in the message; MP_REACH and
// MP_UNREACH (when present) carry any other AFI/SAFI combination.
type Update struct {
	Withdrawn []netaddr.NetAddr
	NLRI      []netaddr.NetAddr
	Attrs     []Attr

	addPath bool
	as4     bool
}

// DecodeUpdate parses an UPDATE body following the 19-byte header. flags
// selects ADDPATH-framed withdrawn/NLRI and 4-byte AS_PATH encoding.
func DecodeUpdate(body []byte, flags Flags) (Update, error) {
	if len(body) < 4 {
		return Update{}, errors.Wrap(ErrBadHeader, "UPDATE body too short")
	}
	addPath := flags&AddPath != 0
	as4 := flags&ASN32Bit != 0

	wlen := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if wlen > len(body) {
		return Update{}, errors.Wrap(ErrBadWithdrawn, "withdrawn-routes length overruns buffer")
	}
	wbuf := body[:wlen]
	body = body[wlen:]

	if len(body) < 2 {
		return Update{}, errors.Wrap(ErrBadHeader, "missing path-attribute length")
	}
	alen := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if alen > len(body) {
		return Update{}, errors.Wrap(ErrBadAttr, "path-attribute length overruns buffer")
	}
	abuf := body[:alen]
	nbuf := body[alen:]

	u := Update{addPath: addPath, as4: as4}

	var err error
	if addPath {
		wap, e := readPrefixListAddPath(wbuf, netaddr.V4)
		if e != nil {
			return Update{}, e
		}
		u.Withdrawn = make([]netaddr.NetAddr, len(wap))
		for i, w := range wap {
			u.Withdrawn[i] = w.NetAddr
		}
	} else {
		u.Withdrawn, err = readPrefixList(wbuf, netaddr.V4)
		if err != nil {
			return Update{}, err
		}
	}

	u.Attrs, err = decodeAttrs(abuf, as4, false)
	if err != nil {
		return Update{}, err
	}

	if addPath {
		nap, e := readPrefixListAddPath(nbuf, netaddr.V4)
		if e != nil {
			return Update{}, e
		}
		u.NLRI = make([]netaddr.NetAddr, len(nap))
		for i, n := range nap {
			u.NLRI[i] = n.NetAddr
		}
	} else {
		u.NLRI, err = readPrefixList(nbuf, netaddr.V4)
		if err != nil {
			return Update{}, err
		}
	}

	return u, nil
}

// AllWithdrawn returns the legacy withdrawn routes plus any carried in an
// MP_UNREACH_NLRI attribute (spec.md §4.4's "all-withdrawn" accessor).
func (u Update) AllWithdrawn() ([]netaddr.NetAddr, error) {
	out := append([]netaddr.NetAddr(nil), u.Withdrawn...)
	if a, ok := FindAttr(u.Attrs, AttrMPUnreachNLRI); ok {
		_, _, w, err := DecodeMPUnreach(a.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, w...)
	}
	return out, nil
}

// AllNLRI returns the legacy NLRI plus any carried in an MP_REACH_NLRI
// attribute (spec.md §4.4's "all-NLRI" accessor).
func (u Update) AllNLRI() ([]netaddr.NetAddr, error) {
	out := append([]netaddr.NetAddr(nil), u.NLRI...)
	if a, ok := FindAttr(u.Attrs, AttrMPReachNLRI); ok {
		mp, err := DecodeMPReach(a.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, mp.NLRI...)
	}
	return out, nil
}

// NextHop returns the effective next hop: the legacy NEXT_HOP attribute, or
// failing that the address carried in MP_REACH_NLRI.
func (u Update) NextHop() (netaddr.NetAddr, bool, error) {
	if a, ok := FindAttr(u.Attrs, AttrNextHop); ok {
		if len(a.Value) != 4 {
			return netaddr.NetAddr{}, false, errors.Wrap(ErrBadAttr, "NEXT_HOP must be 4 bytes")
		}
		var b [16]byte
		copy(b[:4], a.Value)
		return netaddr.NetAddr{Family: netaddr.V4, Bitlen: 32, Bytes: b}, true, nil
	}
	if a, ok := FindAttr(u.Attrs, AttrMPReachNLRI); ok {
		mp, err := DecodeMPReach(a.Value)
		if err != nil {
			return netaddr.NetAddr{}, false, err
		}
		return mp.NextHop, true, nil
	}
	return netaddr.NetAddr{}, false, nil
}

// RealASPath returns the AS_PATH reconciled against AS4_PATH per RFC 6793,
// or the plain AS_PATH when the session already negotiated 32-bit ASNs or
// no AS4_PATH attribute is present.
func (u Update) RealASPath() ([]ASPathSegment, error) {
	asAttr, hasAS := FindAttr(u.Attrs, AttrASPath)
	if !hasAS {
		return nil, nil
	}
	asSize := 2
	if u.as4 {
		asSize = 4
	}
	asPath, err := DecodeASPath(asAttr.Value, asSize)
	if err != nil {
		return nil, err
	}

	as4Attr, hasAS4 := FindAttr(u.Attrs, AttrAS4Path)
	var as4Path []ASPathSegment
	if hasAS4 {
		as4Path, err = DecodeASPath(as4Attr.Value, 4)
		if err != nil {
			return nil, err
		}
	}

	aggAttr, hasAgg := FindAttr(u.Attrs, AttrAggregator)
	var aggAS uint32
	if hasAgg {
		aggAS, err = decodeAggregatorAS(aggAttr.Value, u.as4)
		if err != nil {
			return nil, err
		}
	}

	return ReconcileRealASPath(asPath, as4Path, u.as4, aggAS, hasAgg), nil
}

func decodeAggregatorAS(value []byte, as4 bool) (uint32, error) {
	switch {
	case as4 && len(value) == 8:
		return binary.BigEndian.Uint32(value[0:4]), nil
	case !as4 && len(value) == 6:
		return uint32(binary.BigEndian.Uint16(value[0:2])), nil
	default:
		return 0, errors.Wrapf(ErrBadAttr, "AGGREGATOR length %d inconsistent with as4=%v", len(value), as4)
	}
}

// Communities returns the standard communities carried by the message, if any.
func (u Update) Communities() ([]Community, error) {
	a, ok := FindAttr(u.Attrs, AttrCommunity)
	if !ok {
		return nil, nil
	}
	return DecodeCommunities(a.Value)
}

// ExtCommunities returns the extended communities carried by the message, if any.
func (u Update) ExtCommunities() ([]ExtCommunity, error) {
	a, ok := FindAttr(u.Attrs, AttrExtCommunity)
	if !ok {
		return nil, nil
	}
	return DecodeExtCommunities(a.Value)
}

// LargeCommunities returns the large communities carried by the message, if any.
func (u Update) LargeCommunities() ([]LargeCommunity, error) {
	a, ok := FindAttr(u.Attrs, AttrLargeCommunity)
	if !ok {
		return nil, nil
	}
	return DecodeLargeCommunities(a.Value)
}

// Origin returns the ORIGIN attribute value (0=IGP, 1=EGP, 2=INCOMPLETE).
func (u Update) Origin() (uint8, bool) {
	a, ok := FindAttr(u.Attrs, AttrOrigin)
	if !ok || len(a.Value) != 1 {
		return 0, false
	}
	return a.Value[0], true
}
