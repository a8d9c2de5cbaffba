package mrt

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

// Peer is one entry of a PEER_INDEX_TABLE.
type Peer struct {
	Type    uint8
	BGPID   [4]byte
	Addr    netaddr.NetAddr
	ASN     uint32
}

// PeerIndexTable is a decoded PEER_INDEX_TABLE record, cached per collector
// for the lifetime of the TABLE_DUMPV2 records that reference it.
type PeerIndexTable struct {
	CollectorBGPID [4]byte
	ViewName       string
	Peers          []Peer
}

const (
	peerFlagAS4   = 1 << 1
	peerFlagIPv6  = 1 << 0
)

// DecodePeerIndexTable parses a PEER_INDEX_TABLE record payload.
func DecodePeerIndexTable(payload []byte) (PeerIndexTable, error) {
	if len(payload) < 6 {
		return PeerIndexTable{}, errors.Wrap(ErrShortHeader, "truncated PEER_INDEX_TABLE header")
	}
	var pit PeerIndexTable
	copy(pit.CollectorBGPID[:], payload[0:4])
	vlen := int(binary.BigEndian.Uint16(payload[4:6]))
	payload = payload[6:]
	if vlen > len(payload) {
		return PeerIndexTable{}, errors.Wrap(ErrBadLength, "view name length overruns buffer")
	}
	pit.ViewName = string(payload[:vlen])
	payload = payload[vlen:]

	if len(payload) < 2 {
		return PeerIndexTable{}, errors.Wrap(ErrShortHeader, "missing peer count")
	}
	count := int(binary.BigEndian.Uint16(payload[0:2]))
	payload = payload[2:]

	pit.Peers = make([]Peer, 0, count)
	for i := 0; i < count; i++ {
		if len(payload) < 5 {
			return PeerIndexTable{}, errors.Wrap(ErrShortHeader, "truncated peer entry")
		}
		peerType := payload[0]
		var p Peer
		p.Type = peerType
		copy(p.BGPID[:], payload[1:5])
		payload = payload[5:]

		fam := netaddr.V4
		addrLen := 4
		if peerType&peerFlagIPv6 != 0 {
			fam = netaddr.V6
			addrLen = 16
		}
		if len(payload) < addrLen {
			return PeerIndexTable{}, errors.Wrap(ErrShortHeader, "truncated peer address")
		}
		var b [16]byte
		copy(b[:addrLen], payload[:addrLen])
		p.Addr = netaddr.NetAddr{Family: fam, Bitlen: uint8(fam.MaxBitlen()), Bytes: b}
		payload = payload[addrLen:]

		asLen := 2
		if peerType&peerFlagAS4 != 0 {
			asLen = 4
		}
		if len(payload) < asLen {
			return PeerIndexTable{}, errors.Wrap(ErrShortHeader, "truncated peer ASN")
		}
		if asLen == 4 {
			p.ASN = binary.BigEndian.Uint32(payload[:4])
		} else {
			p.ASN = uint32(binary.BigEndian.Uint16(payload[:2]))
		}
		payload = payload[asLen:]

		pit.Peers = append(pit.Peers, p)
	}
	return pit, nil
}

// Peer resolves a peer index from a RIB entry against the table, reporting
// ErrNoPeerIndex-wrapped errors instead of panicking on an out-of-range index.
func (pit PeerIndexTable) Peer(idx uint16) (Peer, error) {
	if int(idx) >= len(pit.Peers) {
		return Peer{}, errors.Wrapf(ErrNoPeerIndex, "peer index %d out of range (table has %d peers)", idx, len(pit.Peers))
	}
	return pit.Peers[idx], nil
}
