package bgp

import (
	"testing"
)

func buildHeader(length int, typ Type) []byte {
	buf := make([]byte, length)
	for i := 0; i < markerLen; i++ {
		buf[i] = 0xff
	}
	buf[16] = byte(length >> 8)
	buf[17] = byte(length)
	buf[18] = byte(typ)
	return buf
}

func TestDecodeHeaderKeepalive(t *testing.T) {
	buf := buildHeader(minKALen, TypeKeepalive)
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Type != TypeKeepalive || int(h.Length) != minKALen {
		t.Fatalf("unexpected header %+v", h)
	}
}

func TestDecodeHeaderBadMarker(t *testing.T) {
	buf := buildHeader(minKALen, TypeKeepalive)
	buf[0] = 0
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected marker error")
	}
}

func TestDecodeHeaderKeepaliveWrongLength(t *testing.T) {
	buf := buildHeader(minKALen+1, TypeKeepalive)
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected length error for non-19-byte KEEPALIVE")
	}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	dst := make([]byte, minNotiLen)
	n := EncodeHeader(dst, Header{Length: minNotiLen, Type: TypeNotification})
	if n != headerLen {
		t.Fatalf("EncodeHeader returned %d, want %d", n, headerLen)
	}
	h, err := DecodeHeader(dst)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Type != TypeNotification || int(h.Length) != minNotiLen {
		t.Fatalf("round trip mismatch: %+v", h)
	}
}

func TestDecodeOpenRoundTrip(t *testing.T) {
	o := Open{
		Version:  4,
		ASN:      65001,
		HoldTime: 180,
		RouterID: [4]byte{192, 0, 2, 1},
		Params: []OpenParam{
			{Type: 2, Value: []byte{1, 4, 0, 1, 0, 1}},
		},
	}
	dst := make([]byte, 64)
	n, err := EncodeOpen(dst, o)
	if err != nil {
		t.Fatalf("EncodeOpen: %v", err)
	}
	got, err := DecodeOpen(dst[:n])
	if err != nil {
		t.Fatalf("DecodeOpen: %v", err)
	}
	if got.ASN != o.ASN || got.HoldTime != o.HoldTime || got.RouterID != o.RouterID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Params) != 1 || got.Params[0].Type != 2 {
		t.Fatalf("params mismatch: %+v", got.Params)
	}
}

func TestCapabilitiesExtraction(t *testing.T) {
	o := Open{Params: []OpenParam{
		{Type: paramCapabilities, Value: []byte{
			65, 4, 0, 1, 0x00, 0x01, // capability 65 (32-bit ASN), len 4
			2, 0, // capability 2 (route refresh), len 0
		}},
	}}
	caps, err := o.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if len(caps) != 2 || caps[0].Code != 65 || caps[1].Code != 2 {
		t.Fatalf("unexpected capabilities: %+v", caps)
	}
}

func TestDecodeUpdateSimple(t *testing.T) {
	// withdrawn len=0, attrs: ORIGIN(igp), AS_PATH(seq 65081), NEXT_HOP(1.2.3.4)
	attrs := []byte{
		0, 1, 1, 0, // ORIGIN flags=0 code=1 len=1 val=0
		0, 2, 4, 2, 1, 254, 57, // AS_PATH: seq, count=1, asn=65081
		0, 3, 4, 1, 2, 3, 4, // NEXT_HOP
	}
	body := []byte{0, 0} // withdrawn len
	body = append(body, byte(len(attrs)>>8), byte(len(attrs)))
	body = append(body, attrs...)
	body = append(body, 24, 10, 0, 0) // NLRI: 10.0.0.0/24

	u, err := DecodeUpdate(body, 0)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if len(u.Withdrawn) != 0 {
		t.Fatalf("expected no withdrawn, got %v", u.Withdrawn)
	}
	if len(u.NLRI) != 1 || u.NLRI[0].String() != "10.0.0.0/24" {
		t.Fatalf("unexpected NLRI: %+v", u.NLRI)
	}
	nh, ok, err := u.NextHop()
	if err != nil || !ok || nh.String() != "1.2.3.4/32" {
		t.Fatalf("unexpected next hop: %+v ok=%v err=%v", nh, ok, err)
	}
	origin, ok := u.Origin()
	if !ok || origin != 0 {
		t.Fatalf("unexpected origin: %v ok=%v", origin, ok)
	}
	path, err := u.RealASPath()
	if err != nil {
		t.Fatalf("RealASPath: %v", err)
	}
	if len(path) != 1 || len(path[0].ASN) != 1 || path[0].ASN[0] != 65081 {
		t.Fatalf("unexpected AS path: %+v", path)
	}
}

func TestReconcileRealASPathNoAS4(t *testing.T) {
	asPath := []ASPathSegment{{ASN: []uint32{1, 2, 3}}}
	got := ReconcileRealASPath(asPath, nil, false, 0, false)
	if len(got) != 1 || len(got[0].ASN) != 3 {
		t.Fatalf("expected AS_PATH unchanged, got %+v", got)
	}
}

func TestReconcileRealASPathSplices(t *testing.T) {
	asPath := []ASPathSegment{{ASN: []uint32{64512, 1, 2, 3}}}
	as4Path := []ASPathSegment{{ASN: []uint32{1, 2, 3}}}
	got := ReconcileRealASPath(asPath, as4Path, false, 0, false)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments after splice, got %+v", got)
	}
	if len(got[0].ASN) != 1 || got[0].ASN[0] != 64512 {
		t.Fatalf("expected leading 64512 preserved, got %+v", got[0])
	}
	if len(got[1].ASN) != 3 {
		t.Fatalf("expected as4Path appended, got %+v", got[1])
	}
}

func TestReconcileRealASPathASTransAggregator(t *testing.T) {
	asPath := []ASPathSegment{{ASN: []uint32{1, 2}}}
	as4Path := []ASPathSegment{{ASN: []uint32{9, 9}}}
	got := ReconcileRealASPath(asPath, as4Path, false, asTrans, true)
	if len(got) != 1 || got[0].ASN[0] != 9 {
		t.Fatalf("expected AS4_PATH used when aggregator is AS_TRANS, got %+v", got)
	}
}

func TestDecodeCommunities(t *testing.T) {
	val := []byte{0, 0, 0xfc, 0x00, 0xff, 0xff, 0xff, 0x01} // NO_EXPORT-ish + arbitrary
	cs, err := DecodeCommunities(val)
	if err != nil {
		t.Fatalf("DecodeCommunities: %v", err)
	}
	if len(cs) != 2 {
		t.Fatalf("expected 2 communities, got %d", len(cs))
	}
}

func TestDecodeNotification(t *testing.T) {
	n, err := DecodeNotification([]byte{6, 2, 1, 2, 3})
	if err != nil {
		t.Fatalf("DecodeNotification: %v", err)
	}
	if n.Code != 6 || n.Subcode != 2 || len(n.Data) != 3 {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestDecodeMessageDispatchesByType(t *testing.T) {
	buf := buildHeader(minKALen, TypeKeepalive)
	msg, err := Decode(buf, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Header.Type != TypeKeepalive {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
