// Package mrt decodes MRT archive records (RFC 6396/6397/8050): the
// common header, TABLE_DUMP and TABLE_DUMPV2 RIB snapshots, and
// BGP4MP(_ET) session-wrapped BGP update streams.
package mrt

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Type is an MRT record type.
type Type uint16

const (
	TypeNull           Type = 0
	TypeStart          Type = 1
	TypeDie            Type = 2
	TypeIAMAlive       Type = 3
	TypePeerDown       Type = 4
	TypePeerUp         Type = 5
	TypeTableDump      Type = 12
	TypeTableDumpV2    Type = 13
	TypeBGP4MP         Type = 16
	TypeBGP4MPET       Type = 17
	TypeISIS           Type = 32
	TypeISISET         Type = 33
	TypeOSPFv3         Type = 48
	TypeOSPFv3ET       Type = 49
)

// Subtype is an MRT record subtype, interpreted relative to its Type.
type Subtype uint16

const (
	SubtypeTableDumpAFIIPv4 Subtype = 1
	SubtypeTableDumpAFIIPv6 Subtype = 2

	SubtypePeerIndexTable        Subtype = 1
	SubtypeRIBIPv4Unicast        Subtype = 2
	SubtypeRIBIPv4Multicast      Subtype = 3
	SubtypeRIBIPv6Unicast        Subtype = 4
	SubtypeRIBIPv6Multicast      Subtype = 5
	SubtypeRIBGeneric            Subtype = 6
	SubtypeRIBGenericAddPath     Subtype = 12
	SubtypeRIBIPv4UnicastAddPath Subtype = 8
	SubtypeRIBIPv6UnicastAddPath Subtype = 10

	SubtypeBGP4MPStateChange    Subtype = 0
	SubtypeBGP4MPMessage       Subtype = 1
	SubtypeBGP4MPMessageAS4    Subtype = 4
	SubtypeBGP4MPStateChangeAS4 Subtype = 5
	SubtypeBGP4MPMessageLocal  Subtype = 6
	SubtypeBGP4MPMessageAS4Local Subtype = 7
	SubtypeBGP4MPMessageAddPath Subtype = 8
	SubtypeBGP4MPMessageAS4AddPath Subtype = 9
)

// capFlags describe structural properties of a (Type, Subtype) pair, used
// to drive dispatch without a giant switch at every call site.
type capFlags uint16

const (
	capValid capFlags = 1 << iota
	capAS32
	capIsPeerIndex
	capNeedsPeerIndex
	capIsExtendedTimestamp
	capIsBGP
	capHasStateChange
	capWrapsBGP4MP
	capAddPath
	capIsGeneric
)

const headerLen = 12
const extHeaderLen = 16

var (
	// ErrShortHeader reports a buffer shorter than the 12-byte common header;
	// the payload decoders also wrap it when a record's fields are truncated.
	ErrShortHeader = errors.New("mrt: short common header")
	// ErrBadLength reports a record whose declared length doesn't fit the buffer.
	ErrBadLength = errors.New("mrt: record length out of range")
	// ErrUnknownType reports an MRT type/subtype this decoder doesn't recognize.
	ErrUnknownType = errors.New("mrt: unrecognized type/subtype")
	// ErrNoPeerIndex reports a RIB record read before its PEER_INDEX_TABLE.
	ErrNoPeerIndex = errors.New("mrt: RIB entry references an unseen peer index table")
)

// Header is a decoded 12- or 16-byte MRT common header.
type Header struct {
	Timestamp uint32
	Microsecs uint32 // only meaningful for the *_ET types
	Type      Type
	Subtype   Subtype
	Length    uint32 // payload length, not including the header
}

func classify(typ Type, sub Subtype) capFlags {
	switch typ {
	case TypeTableDump:
		return capValid | capIsBGP
	case TypeTableDumpV2:
		switch sub {
		case SubtypePeerIndexTable:
			return capValid | capIsPeerIndex
		case SubtypeRIBIPv4Unicast, SubtypeRIBIPv4Multicast, SubtypeRIBIPv6Unicast, SubtypeRIBIPv6Multicast:
			return capValid | capNeedsPeerIndex
		case SubtypeRIBIPv4UnicastAddPath, SubtypeRIBIPv6UnicastAddPath:
			return capValid | capNeedsPeerIndex | capAddPath
		case SubtypeRIBGeneric:
			return capValid | capNeedsPeerIndex | capIsGeneric
		case SubtypeRIBGenericAddPath:
			return capValid | capNeedsPeerIndex | capIsGeneric | capAddPath
		}
	case TypeBGP4MP, TypeBGP4MPET:
		flags := capValid | capWrapsBGP4MP
		if typ == TypeBGP4MPET {
			flags |= capIsExtendedTimestamp
		}
		switch sub {
		case SubtypeBGP4MPStateChange:
			flags |= capHasStateChange
		case SubtypeBGP4MPStateChangeAS4:
			flags |= capHasStateChange | capAS32
		case SubtypeBGP4MPMessage, SubtypeBGP4MPMessageLocal:
			flags |= capIsBGP
		case SubtypeBGP4MPMessageAS4, SubtypeBGP4MPMessageAS4Local:
			flags |= capIsBGP | capAS32
		case SubtypeBGP4MPMessageAddPath:
			flags |= capIsBGP | capAddPath
		case SubtypeBGP4MPMessageAS4AddPath:
			flags |= capIsBGP | capAS32 | capAddPath
		default:
			return 0
		}
		return flags
	}
	return 0
}

// DecodeHeader parses the common header at the start of buf, including the
// extended 4-byte microsecond field for BGP4MP_ET (the only _ET type that
// classify accepts).
func DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < headerLen {
		return Header{}, 0, ErrShortHeader
	}
	h := Header{
		Timestamp: binary.BigEndian.Uint32(buf[0:4]),
		Type:      Type(binary.BigEndian.Uint16(buf[4:6])),
		Subtype:   Subtype(binary.BigEndian.Uint16(buf[6:8])),
		Length:    binary.BigEndian.Uint32(buf[8:12]),
	}
	flags := classify(h.Type, h.Subtype)
	if flags&capValid == 0 {
		return Header{}, 0, errors.Wrapf(ErrUnknownType, "type=%d subtype=%d", h.Type, h.Subtype)
	}
	hdrLen := headerLen
	if flags&capIsExtendedTimestamp != 0 {
		if len(buf) < extHeaderLen {
			return Header{}, 0, ErrShortHeader
		}
		h.Microsecs = binary.BigEndian.Uint32(buf[12:16])
		hdrLen = extHeaderLen
	}
	return h, hdrLen, nil
}

// SplitMrt is a bufio.SplitFunc that frames whole MRT records (header +
// payload) out of a byte stream, for use with bufio.Scanner.
func SplitMrt(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) < headerLen {
		if atEOF && len(data) > 0 {
			return 0, nil, errors.Wrap(ErrShortHeader, "trailing bytes after last record")
		}
		return 0, nil, nil
	}
	typ := Type(binary.BigEndian.Uint16(data[4:6]))
	sub := Subtype(binary.BigEndian.Uint16(data[6:8]))
	flags := classify(typ, sub)
	hdrLen := headerLen
	if flags&capIsExtendedTimestamp != 0 {
		hdrLen = extHeaderLen
	}
	if len(data) < hdrLen {
		return 0, nil, nil
	}
	payloadLen := int(binary.BigEndian.Uint32(data[8:12]))
	total := hdrLen + payloadLen
	if total < 0 {
		return 0, nil, errors.Wrap(ErrBadLength, "negative total length")
	}
	if len(data) < total {
		if atEOF {
			return 0, nil, errors.Wrap(ErrBadLength, "truncated final record")
		}
		return 0, nil, nil
	}
	return total, data[:total], nil
}

// Record is a single decoded MRT record: its header and undecoded payload
// slice (the caller dispatches on Header.Type/Subtype to decode further).
type Record struct {
	Header  Header
	Payload []byte
}

// DecodeRecord decodes the next whole record from buf.
func DecodeRecord(buf []byte) (Record, int, error) {
	h, hdrLen, err := DecodeHeader(buf)
	if err != nil {
		return Record{}, 0, err
	}
	total := hdrLen + int(h.Length)
	if len(buf) < total {
		return Record{}, 0, errors.Wrap(ErrBadLength, "buffer shorter than declared length")
	}
	return Record{Header: h, Payload: buf[hdrLen:total]}, total, nil
}
