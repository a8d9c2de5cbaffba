package mrt

import (
	"encoding/binary"
	"testing"

	"github.com/ubgpsuite/bgpgrep/netaddr"
)

func buildRIBGenericPayload(afi uint16, safi byte, prefixBits int, prefixBytes []byte) []byte {
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 1) // sequence number
	body = binary.BigEndian.AppendUint16(body, afi)
	body = append(body, safi)
	body = append(body, byte(prefixBits))
	body = append(body, prefixBytes...)
	body = binary.BigEndian.AppendUint16(body, 0) // zero RIB entries
	return body
}

func TestDecodeRIBGenericIPv6(t *testing.T) {
	payload := buildRIBGenericPayload(2, 1, 32, []byte{0x20, 0x01, 0x0d, 0xb8})
	rib, err := DecodeRIB(payload, SubtypeRIBGeneric)
	if err != nil {
		t.Fatalf("DecodeRIB: %v", err)
	}
	if rib.Prefix.Family != netaddr.V6 {
		t.Fatalf("expected v6 family from afi, got %v", rib.Prefix.Family)
	}
	if rib.Prefix.Bitlen != 32 {
		t.Fatalf("unexpected bitlen %d", rib.Prefix.Bitlen)
	}
}

func TestDecodeRIBGenericIPv4(t *testing.T) {
	payload := buildRIBGenericPayload(1, 1, 8, []byte{10})
	rib, err := DecodeRIB(payload, SubtypeRIBGeneric)
	if err != nil {
		t.Fatalf("DecodeRIB: %v", err)
	}
	if rib.Prefix.String() != "10.0.0.0/8" {
		t.Fatalf("unexpected prefix %v", rib.Prefix)
	}
}

func TestDecodeRIBGenericRejectsUnknownAFI(t *testing.T) {
	payload := buildRIBGenericPayload(99, 1, 8, []byte{10})
	if _, err := DecodeRIB(payload, SubtypeRIBGeneric); err == nil {
		t.Fatal("expected error for unknown afi")
	}
}
