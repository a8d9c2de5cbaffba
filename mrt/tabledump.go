package mrt

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"

	"github.com/ubgpsuite/bgpgrep/bgp"
)

// TableDumpEntry is a single legacy (RFC 6396 §3, the original MRT
// TABLE_DUMP format, superseded by TABLE_DUMPV2) RIB entry. Unlike
// TABLE_DUMPV2 there is no shared peer index: peer identity is carried
// inline on every record.
type TableDumpEntry struct {
	ViewNum   uint16
	SeqNum    uint16
	Prefix    netaddr.NetAddr
	PeerAddr  netaddr.NetAddr
	PeerAS    uint32
	OriginatedAt uint32
	Attrs     []bgp.Attr
}

// DecodeTableDump parses a legacy TABLE_DUMP record payload. sub selects
// the address family (AFI_IPv4 vs AFI_IPv6).
func DecodeTableDump(payload []byte, sub Subtype) (TableDumpEntry, error) {
	fam := netaddr.V4
	addrLen := 4
	if sub == SubtypeTableDumpAFIIPv6 {
		fam = netaddr.V6
		addrLen = 16
	}
	const fixedLen = 2 + 2 // view, seq
	// prefix, bitlen, status, originated, peer address, peer AS, attr length
	if len(payload) < fixedLen+addrLen+1+1+4+addrLen+2+2 {
		return TableDumpEntry{}, errors.Wrap(ErrShortHeader, "truncated TABLE_DUMP record")
	}
	var e TableDumpEntry
	e.ViewNum = binary.BigEndian.Uint16(payload[0:2])
	e.SeqNum = binary.BigEndian.Uint16(payload[2:4])
	off := 4

	var pb [16]byte
	copy(pb[:addrLen], payload[off:off+addrLen])
	off += addrLen
	bitlen := payload[off]
	off++
	e.Prefix = netaddr.NetAddr{Family: fam, Bitlen: bitlen, Bytes: pb}

	off++ // status octet, always 1 for a valid dump, not separately surfaced

	e.OriginatedAt = binary.BigEndian.Uint32(payload[off : off+4])
	off += 4

	var ab [16]byte
	copy(ab[:addrLen], payload[off:off+addrLen])
	off += addrLen
	e.PeerAddr = netaddr.NetAddr{Family: fam, Bitlen: uint8(fam.MaxBitlen()), Bytes: ab}

	e.PeerAS = uint32(binary.BigEndian.Uint16(payload[off : off+2]))
	off += 2

	alen := int(binary.BigEndian.Uint16(payload[off : off+2]))
	off += 2
	if len(payload) < off+alen {
		return TableDumpEntry{}, errors.Wrap(ErrBadLength, "attribute length overruns TABLE_DUMP record")
	}
	attrs, err := bgp.DecodeTableDumpV2Attrs(payload[off : off+alen])
	if err != nil {
		return TableDumpEntry{}, err
	}
	e.Attrs = attrs
	return e, nil
}
