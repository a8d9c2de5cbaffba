package bgp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// OpenParam is a single OPEN optional parameter (type, raw value).
type OpenParam struct {
	Type  uint8
	Value []byte
}

const paramCapabilities = 2

// Capability is a single capability advertised inside an OPEN capabilities
// parameter (RFC 5492).
type Capability struct {
	Code  uint8
	Value []byte
}

// Open is a decoded OPEN message body.
type Open struct {
	Version  uint8
	ASN      uint16
	HoldTime uint16
	RouterID [4]byte
	Params   []OpenParam
}

// DecodeOpen parses the OPEN body following the 19-byte header.
func DecodeOpen(body []byte) (Open, error) {
	if len(body) < minOpenLen-headerLen {
		return Open{}, errors.Wrap(ErrBadHeader, "OPEN body too short")
	}
	o := Open{
		Version:  body[0],
		ASN:      binary.BigEndian.Uint16(body[1:3]),
		HoldTime: binary.BigEndian.Uint16(body[3:5]),
	}
	copy(o.RouterID[:], body[5:9])
	paramLen := int(body[9])
	rest := body[10:]
	if paramLen > len(rest) {
		return Open{}, errors.Wrapf(ErrBadParamLen, "declares %d, only %d available", paramLen, len(rest))
	}
	rest = rest[:paramLen]
	for len(rest) > 0 {
		if len(rest) < 2 {
			return Open{}, errors.Wrap(ErrBadParamLen, "truncated parameter header")
		}
		ptype := rest[0]
		plen := int(rest[1])
		rest = rest[2:]
		if plen > len(rest) {
			return Open{}, errors.Wrap(ErrBadParamLen, "truncated parameter value")
		}
		o.Params = append(o.Params, OpenParam{Type: ptype, Value: rest[:plen]})
		rest = rest[plen:]
	}
	return o, nil
}

// Capabilities extracts and flattens every capability carried across all
// type-2 (CAPABILITIES) optional parameters.
func (o Open) Capabilities() ([]Capability, error) {
	var caps []Capability
	for _, p := range o.Params {
		if p.Type != paramCapabilities {
			continue
		}
		v := p.Value
		for len(v) > 0 {
			if len(v) < 2 {
				return nil, errors.Wrap(ErrBadParamLen, "truncated capability header")
			}
			code := v[0]
			clen := int(v[1])
			v = v[2:]
			if clen > len(v) {
				return nil, errors.Wrap(ErrBadParamLen, "truncated capability value")
			}
			caps = append(caps, Capability{Code: code, Value: v[:clen]})
			v = v[clen:]
		}
	}
	return caps, nil
}

// EncodeOpenParams serializes params into the wire parameter list and
// writes the RFC 4271-correct one-octet total length into dst[0], followed
// by the concatenated parameters starting at dst[1]. dst must be large
// enough (1 + total parameter bytes). It returns the number of bytes
// written including the length octet.
//
// The original ubgpsuite encoder wrote the length of only the first
// parameter into this field rather than the sum across the whole list;
// this implementation writes the correct total, matching RFC 4271 §4.2.
func EncodeOpenParams(dst []byte, params []OpenParam) (int, error) {
	total := 0
	for _, p := range params {
		total += 2 + len(p.Value)
	}
	if total > 0xff {
		return 0, errors.Wrapf(ErrBadParamLen, "total parameter length %d exceeds one octet", total)
	}
	if len(dst) < 1+total {
		return 0, errors.Wrap(ErrBadParamLen, "destination buffer too small")
	}
	dst[0] = byte(total)
	off := 1
	for _, p := range params {
		dst[off] = p.Type
		dst[off+1] = byte(len(p.Value))
		copy(dst[off+2:], p.Value)
		off += 2 + len(p.Value)
	}
	return off, nil
}

// EncodeOpen serializes o's body (without the 19-byte message header) into dst.
func EncodeOpen(dst []byte, o Open) (int, error) {
	if len(dst) < 10 {
		return 0, errors.Wrap(ErrBadHeader, "destination buffer too small")
	}
	dst[0] = o.Version
	binary.BigEndian.PutUint16(dst[1:3], o.ASN)
	binary.BigEndian.PutUint16(dst[3:5], o.HoldTime)
	copy(dst[5:9], o.RouterID[:])
	n, err := EncodeOpenParams(dst[9:], o.Params)
	if err != nil {
		return 0, err
	}
	return 9 + n, nil
}
