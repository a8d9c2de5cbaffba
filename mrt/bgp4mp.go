package mrt

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"

	"github.com/ubgpsuite/bgpgrep/bgp"
)

// BGP4MPHeader is the Zebra-style session wrapper carried ahead of every
// BGP4MP(_ET) record's embedded BGP message.
type BGP4MPHeader struct {
	PeerAS, LocalAS   uint32
	Interface         uint16
	AFI               uint16
	PeerAddr, LocalAddr netaddr.NetAddr
}

// BGP4MPStateChange is a decoded BGP4MP_STATE_CHANGE record.
type BGP4MPStateChange struct {
	Header   BGP4MPHeader
	OldState uint16
	NewState uint16
}

// BGP4MPMessage is a decoded BGP4MP_MESSAGE record: the session wrapper
// plus the embedded BGP message bytes (not yet decoded).
type BGP4MPMessage struct {
	Header  BGP4MPHeader
	BGPFlags bgp.Flags
	Raw     []byte
}

// UnwrapBGP4MP parses a BGP4MP(_ET) payload (the record payload, with the
// common/extended header already stripped) into either a state-change or a
// message wrapper, depending on Subtype.
func UnwrapBGP4MP(payload []byte, sub Subtype) (*BGP4MPStateChange, *BGP4MPMessage, error) {
	flags := classify(TypeBGP4MP, sub)
	if flags&capValid == 0 {
		return nil, nil, errors.Wrapf(ErrUnknownType, "bgp4mp subtype=%d", sub)
	}
	as4 := flags&capAS32 != 0

	hdr, off, err := decodeBGP4MPHeader(payload, as4)
	if err != nil {
		return nil, nil, err
	}

	if flags&capHasStateChange != 0 {
		rest := payload[off:]
		if len(rest) < 4 {
			return nil, nil, errors.Wrap(ErrShortHeader, "truncated state change")
		}
		return &BGP4MPStateChange{
			Header:   hdr,
			OldState: binary.BigEndian.Uint16(rest[0:2]),
			NewState: binary.BigEndian.Uint16(rest[2:4]),
		}, nil, nil
	}

	msgFlags := bgp.Flags(0)
	if as4 {
		msgFlags |= bgp.ASN32Bit
	}
	if flags&capAddPath != 0 {
		msgFlags |= bgp.AddPath
	}
	return nil, &BGP4MPMessage{Header: hdr, BGPFlags: msgFlags, Raw: payload[off:]}, nil
}

func decodeBGP4MPHeader(payload []byte, as4 bool) (BGP4MPHeader, int, error) {
	asLen := 2
	if as4 {
		asLen = 4
	}
	need := asLen*2 + 2 + 2 // peer AS, local AS, interface index, AFI
	if len(payload) < need {
		return BGP4MPHeader{}, 0, errors.Wrap(ErrShortHeader, "truncated BGP4MP header")
	}
	var h BGP4MPHeader
	off := 0
	if as4 {
		h.PeerAS = binary.BigEndian.Uint32(payload[0:4])
		h.LocalAS = binary.BigEndian.Uint32(payload[4:8])
		off = 8
	} else {
		h.PeerAS = uint32(binary.BigEndian.Uint16(payload[0:2]))
		h.LocalAS = uint32(binary.BigEndian.Uint16(payload[2:4]))
		off = 4
	}
	h.Interface = binary.BigEndian.Uint16(payload[off : off+2])
	h.AFI = binary.BigEndian.Uint16(payload[off+2 : off+4])
	off += 4

	fam := netaddr.V4
	addrLen := 4
	if h.AFI == 2 {
		fam = netaddr.V6
		addrLen = 16
	}
	if len(payload) < off+addrLen*2 {
		return BGP4MPHeader{}, 0, errors.Wrap(ErrShortHeader, "truncated BGP4MP peer/local addresses")
	}
	var pb, lb [16]byte
	copy(pb[:addrLen], payload[off:off+addrLen])
	off += addrLen
	copy(lb[:addrLen], payload[off:off+addrLen])
	off += addrLen
	h.PeerAddr = netaddr.NetAddr{Family: fam, Bitlen: uint8(fam.MaxBitlen()), Bytes: pb}
	h.LocalAddr = netaddr.NetAddr{Family: fam, Bitlen: uint8(fam.MaxBitlen()), Bytes: lb}
	return h, off, nil
}
