// Package bgp decodes and encodes BGP (RFC 4271) messages: OPEN, UPDATE
// (with full path-attribute iteration), NOTIFICATION and ROUTE-REFRESH.
// It follows the start/next/end iterator idiom the spec calls for with
// Go-shaped stateless iterator values built directly from a decoded
// message, rather than C-style embedded cursor state.
package bgp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Type is a BGP message type octet.
type Type uint8

const (
	TypeOpen         Type = 1
	TypeUpdate       Type = 2
	TypeNotification Type = 3
	TypeKeepalive    Type = 4
	TypeRouteRefresh Type = 5
)

// Flags control decode-time behavior (spec.md §4.4).
type Flags uint16

const (
	NoCopy Flags = 1 << iota
	AddPath
	ASN32Bit
	GuessMRT
	StdMRT
	FullMPReach
	StripUnreach
	LegacyMRT
)

const (
	markerLen  = 16
	headerLen  = markerLen + 2 + 1 // marker + length + type
	minOpenLen = 29
	minUpdLen  = 23
	minKALen   = 19
	minNotiLen = 21
	minRRLen   = 23
)

var (
	// ErrBadHeader covers a malformed or too-short BGP header.
	ErrBadHeader = errors.New("bgp: bad message header")
	// ErrBadMarker reports a marker field that isn't all 0xff.
	ErrBadMarker = errors.New("bgp: marker is not all-ones")
	// ErrBadType reports an unrecognized BGP message type.
	ErrBadType = errors.New("bgp: unrecognized message type")
	// ErrBadParamLen reports a malformed OPEN parameter list.
	ErrBadParamLen = errors.New("bgp: bad OPEN parameter length")
	// ErrBadWithdrawn reports a malformed withdrawn-routes section.
	ErrBadWithdrawn = errors.New("bgp: bad withdrawn routes")
	// ErrBadAttr reports a malformed path attribute.
	ErrBadAttr = errors.New("bgp: bad path attribute")
	// ErrBadNLRI reports a malformed NLRI section.
	ErrBadNLRI = errors.New("bgp: bad NLRI")
)

// Header is the 19-byte BGP message header: a 16-byte all-0xff marker,
// a big-endian length and a type octet.
type Header struct {
	Length uint16
	Type   Type
}

// DecodeHeader validates and parses the leading 19 bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < minKALen {
		return Header{}, errors.Wrap(ErrBadHeader, "short buffer")
	}
	for _, b := range buf[:markerLen] {
		if b != 0xff {
			return Header{}, ErrBadMarker
		}
	}
	length := binary.BigEndian.Uint16(buf[16:18])
	typ := Type(buf[18])
	if int(length) < minKALen || int(length) > len(buf) {
		return Header{}, errors.Wrapf(ErrBadHeader, "length %d out of range (buf=%d)", length, len(buf))
	}
	switch typ {
	case TypeOpen:
		if length < minOpenLen {
			return Header{}, errors.Wrap(ErrBadHeader, "OPEN shorter than minimum")
		}
	case TypeUpdate:
		if length < minUpdLen {
			return Header{}, errors.Wrap(ErrBadHeader, "UPDATE shorter than minimum")
		}
	case TypeNotification:
		if length < minNotiLen {
			return Header{}, errors.Wrap(ErrBadHeader, "NOTIFICATION shorter than minimum")
		}
	case TypeKeepalive:
		if length != minKALen {
			return Header{}, errors.Wrap(ErrBadHeader, "KEEPALIVE must be exactly 19 bytes")
		}
	case TypeRouteRefresh:
		if length < minRRLen {
			return Header{}, errors.Wrap(ErrBadHeader, "ROUTE-REFRESH shorter than minimum")
		}
	default:
		return Header{}, errors.Wrapf(ErrBadType, "type %d", typ)
	}
	return Header{Length: length, Type: typ}, nil
}

// EncodeHeader writes the 19-byte header into dst (which must be at least
// 19 bytes) and returns the number of bytes written.
func EncodeHeader(dst []byte, h Header) int {
	for i := 0; i < markerLen; i++ {
		dst[i] = 0xff
	}
	binary.BigEndian.PutUint16(dst[16:18], h.Length)
	dst[18] = byte(h.Type)
	return headerLen
}
