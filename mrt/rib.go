package mrt

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"

	"github.com/ubgpsuite/bgpgrep/bgp"
)

// RIBEntry is one peer's route for a RIB prefix, as carried by
// TABLE_DUMPV2's per-prefix entry lists.
type RIBEntry struct {
	PeerIndex   uint16
	OriginatedAt uint32
	PathID      uint32 // only meaningful when the record came from an ADDPATH subtype
	Attrs       []bgp.Attr
}

// RIB is a single decoded TABLE_DUMPV2 RIB record (one prefix, many peers).
type RIB struct {
	SeqNum uint32
	Prefix netaddr.NetAddr
	Entries []RIBEntry
}

func ribFamily(sub Subtype) netaddr.Family {
	switch sub {
	case SubtypeRIBIPv6Unicast, SubtypeRIBIPv6Multicast, SubtypeRIBIPv6UnicastAddPath:
		return netaddr.V6
	default:
		return netaddr.V4
	}
}

// readRIBGenericFamily consumes RIB_GENERIC[_ADDPATH]'s explicit afi/safi
// header, reporting the prefix family it names. safi is read only to
// advance past it; bgpgrep filters on prefix family, not safi.
func readRIBGenericFamily(payload *[]byte) (netaddr.Family, error) {
	b := *payload
	if len(b) < 3 {
		return 0, errors.Wrap(ErrShortHeader, "truncated RIB_GENERIC afi/safi")
	}
	afi := binary.BigEndian.Uint16(b[0:2])
	*payload = b[3:]
	switch afi {
	case 1:
		return netaddr.V4, nil
	case 2:
		return netaddr.V6, nil
	default:
		return 0, errors.Wrapf(ErrUnknownType, "RIB_GENERIC afi %d", afi)
	}
}

// DecodeRIB parses a TABLE_DUMPV2 RIB_* record, including RIB_GENERIC[_ADDPATH]'s
// explicit afi/safi header.
func DecodeRIB(payload []byte, sub Subtype) (RIB, error) {
	generic := sub == SubtypeRIBGeneric || sub == SubtypeRIBGenericAddPath
	addPath := sub == SubtypeRIBIPv4UnicastAddPath || sub == SubtypeRIBIPv6UnicastAddPath || sub == SubtypeRIBGenericAddPath

	if len(payload) < 4 {
		return RIB{}, errors.Wrap(ErrShortHeader, "truncated RIB sequence number")
	}
	r := RIB{SeqNum: binary.BigEndian.Uint32(payload[0:4])}
	payload = payload[4:]

	var fam netaddr.Family
	if generic {
		f, err := readRIBGenericFamily(&payload)
		if err != nil {
			return RIB{}, err
		}
		fam = f
	} else {
		fam = ribFamily(sub)
	}

	prefix, err := readRIBPrefix(&payload, fam)
	if err != nil {
		return RIB{}, err
	}
	r.Prefix = prefix

	if len(payload) < 2 {
		return RIB{}, errors.Wrap(ErrShortHeader, "truncated entry count")
	}
	count := int(binary.BigEndian.Uint16(payload[0:2]))
	payload = payload[2:]

	for i := 0; i < count; i++ {
		e, n, err := decodeRIBEntry(payload, addPath)
		if err != nil {
			return RIB{}, err
		}
		r.Entries = append(r.Entries, e)
		payload = payload[n:]
	}
	return r, nil
}

func readRIBPrefix(payload *[]byte, fam netaddr.Family) (netaddr.NetAddr, error) {
	b := *payload
	if len(b) < 1 {
		return netaddr.NetAddr{}, errors.Wrap(ErrShortHeader, "truncated prefix length")
	}
	bitlen := int(b[0])
	b = b[1:]
	if bitlen > fam.MaxBitlen() {
		return netaddr.NetAddr{}, errors.Wrapf(ErrBadLength, "bitlen %d exceeds family max", bitlen)
	}
	bytelen := (bitlen + 7) / 8
	if bytelen > len(b) {
		return netaddr.NetAddr{}, errors.Wrap(ErrShortHeader, "truncated prefix bytes")
	}
	var raw [16]byte
	copy(raw[:], b[:bytelen])
	*payload = b[bytelen:]
	return netaddr.NetAddr{Family: fam, Bitlen: uint8(bitlen), Bytes: raw}, nil
}

func decodeRIBEntry(payload []byte, addPath bool) (RIBEntry, int, error) {
	const fixedLen = 2 + 4 + 2 // peer index, originated-at, attr length
	need := fixedLen
	if addPath {
		need += 4
	}
	if len(payload) < need {
		return RIBEntry{}, 0, errors.Wrap(ErrShortHeader, "truncated RIB entry header")
	}
	var e RIBEntry
	e.PeerIndex = binary.BigEndian.Uint16(payload[0:2])
	e.OriginatedAt = binary.BigEndian.Uint32(payload[2:6])
	off := 6
	if addPath {
		e.PathID = binary.BigEndian.Uint32(payload[off : off+4])
		off += 4
	}
	alen := int(binary.BigEndian.Uint16(payload[off : off+2]))
	off += 2
	if len(payload) < off+alen {
		return RIBEntry{}, 0, errors.Wrap(ErrBadLength, "attribute length overruns RIB entry")
	}
	attrs, err := bgp.DecodeTableDumpV2Attrs(payload[off : off+alen])
	if err != nil {
		return RIBEntry{}, 0, err
	}
	e.Attrs = attrs
	return e, off + alen, nil
}
