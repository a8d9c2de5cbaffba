package mrt

import (
	"encoding/binary"
	"testing"
)

func buildCommonHeader(typ Type, sub Subtype, payloadLen int) []byte {
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint32(buf[0:4], 1000)
	binary.BigEndian.PutUint16(buf[4:6], uint16(typ))
	binary.BigEndian.PutUint16(buf[6:8], uint16(sub))
	binary.BigEndian.PutUint32(buf[8:12], uint32(payloadLen))
	return buf
}

func TestDecodeHeaderKeepaliveLikeTableDump(t *testing.T) {
	hdr := buildCommonHeader(TypeTableDump, SubtypeTableDumpAFIIPv4, 0)
	h, n, err := DecodeHeader(hdr)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if n != headerLen || h.Type != TypeTableDump {
		t.Fatalf("unexpected header %+v n=%d", h, n)
	}
}

func TestDecodeHeaderRejectsUnknownSubtype(t *testing.T) {
	hdr := buildCommonHeader(TypeTableDumpV2, Subtype(99), 0)
	if _, _, err := DecodeHeader(hdr); err == nil {
		t.Fatal("expected error for unknown subtype")
	}
}

func TestSplitMrtFramesWholeRecord(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	hdr := buildCommonHeader(TypeTableDump, SubtypeTableDumpAFIIPv4, len(payload))
	data := append(hdr, payload...)
	data = append(data, []byte{0xff}...) // one extra trailing byte, not part of this record

	adv, tok, err := SplitMrt(data, false)
	if err != nil {
		t.Fatalf("SplitMrt: %v", err)
	}
	if adv != headerLen+len(payload) {
		t.Fatalf("advance = %d, want %d", adv, headerLen+len(payload))
	}
	if len(tok) != headerLen+len(payload) {
		t.Fatalf("token length = %d", len(tok))
	}
}

func TestSplitMrtWaitsForMoreData(t *testing.T) {
	hdr := buildCommonHeader(TypeTableDump, SubtypeTableDumpAFIIPv4, 10)
	adv, tok, err := SplitMrt(hdr, false)
	if adv != 0 || tok != nil || err != nil {
		t.Fatalf("expected a wait-for-more-data response, got adv=%d tok=%v err=%v", adv, tok, err)
	}
}

func TestDecodePeerIndexTable(t *testing.T) {
	var buf []byte
	buf = append(buf, 1, 2, 3, 4) // collector BGP ID
	buf = append(buf, 0, 4)       // view name length
	buf = append(buf, []byte("test")...)
	buf = append(buf, 0, 1) // peer count = 1

	buf = append(buf, 0x02) // peer type: AS4 flag set, IPv4
	buf = append(buf, 9, 9, 9, 9) // peer BGP ID
	buf = append(buf, 10, 0, 0, 1) // peer IPv4 address
	buf = append(buf, 0, 0, 0xfc, 0x01) // AS 64513

	pit, err := DecodePeerIndexTable(buf)
	if err != nil {
		t.Fatalf("DecodePeerIndexTable: %v", err)
	}
	if pit.ViewName != "test" || len(pit.Peers) != 1 {
		t.Fatalf("unexpected table: %+v", pit)
	}
	if pit.Peers[0].ASN != 64513 {
		t.Fatalf("unexpected ASN: %d", pit.Peers[0].ASN)
	}
	if _, err := pit.Peer(5); err == nil {
		t.Fatal("expected out-of-range peer index error")
	}
}

func TestUnwrapBGP4MPStateChange(t *testing.T) {
	var buf []byte
	buf = append(buf, 0, 0, 0xfc, 0x01) // AS4 peer AS
	buf = append(buf, 0, 0, 0xfc, 0x02) // AS4 local AS
	buf = append(buf, 0, 0)             // interface
	buf = append(buf, 0, 1)             // AFI = IPv4
	buf = append(buf, 10, 0, 0, 1)      // peer addr
	buf = append(buf, 10, 0, 0, 2)      // local addr
	buf = append(buf, 0, 1, 0, 2)       // old=1 new=2

	sc, msg, err := UnwrapBGP4MP(buf, SubtypeBGP4MPStateChangeAS4)
	if err != nil {
		t.Fatalf("UnwrapBGP4MP: %v", err)
	}
	if msg != nil || sc == nil {
		t.Fatalf("expected a state change, got sc=%v msg=%v", sc, msg)
	}
	if sc.OldState != 1 || sc.NewState != 2 {
		t.Fatalf("unexpected state change: %+v", sc)
	}
}
