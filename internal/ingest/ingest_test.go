package ingest

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	radix "github.com/armon/go-radix"

	"github.com/ubgpsuite/bgpgrep/internal/dump"
	"github.com/ubgpsuite/bgpgrep/mrt"
	"github.com/ubgpsuite/bgpgrep/vm"
)

func buildBGP4MPUpdateRecord(t *testing.T) []byte {
	t.Helper()

	// BGP UPDATE body: no withdrawn, minimal attrs (ORIGIN + NEXT_HOP), NLRI 10.0.0.0/8.
	attrs := []byte{
		0, 1, 1, 0, // ORIGIN igp
		0, 3, 4, 192, 0, 2, 1, // NEXT_HOP
	}
	updBody := []byte{0, 0}
	updBody = append(updBody, byte(len(attrs)>>8), byte(len(attrs)))
	updBody = append(updBody, attrs...)
	updBody = append(updBody, 8, 10) // NLRI 10.0.0.0/8

	msg := make([]byte, 19+len(updBody))
	for i := 0; i < 16; i++ {
		msg[i] = 0xff
	}
	binary.BigEndian.PutUint16(msg[16:18], uint16(len(msg)))
	msg[18] = 2 // UPDATE
	copy(msg[19:], updBody)

	// BGP4MP_MESSAGE_AS4 wrapper: peer AS, local AS, ifindex, AFI, peer/local addr.
	var wrapper []byte
	wrapper = binary.BigEndian.AppendUint32(wrapper, 65001)
	wrapper = binary.BigEndian.AppendUint32(wrapper, 65002)
	wrapper = binary.BigEndian.AppendUint16(wrapper, 0)
	wrapper = binary.BigEndian.AppendUint16(wrapper, 1) // AFI IPv4
	wrapper = append(wrapper, 192, 0, 2, 1)
	wrapper = append(wrapper, 192, 0, 2, 2)
	wrapper = append(wrapper, msg...)

	var rec []byte
	rec = binary.BigEndian.AppendUint32(rec, 1700000000)
	rec = binary.BigEndian.AppendUint16(rec, 16) // BGP4MP
	rec = binary.BigEndian.AppendUint16(rec, 4)  // BGP4MP_MESSAGE_AS4
	rec = binary.BigEndian.AppendUint32(rec, uint32(len(wrapper)))
	rec = append(rec, wrapper...)
	return rec
}

func buildPeerIndexTableRecord(t *testing.T) []byte {
	t.Helper()

	var body []byte
	body = append(body, 1, 2, 3, 4) // collector BGP ID
	body = binary.BigEndian.AppendUint16(body, 0)
	body = binary.BigEndian.AppendUint16(body, 1) // one peer

	body = append(body, 1<<1) // peer type: AS4, IPv4
	body = append(body, 9, 9, 9, 9) // peer BGP ID
	body = append(body, 192, 0, 2, 2) // peer address
	body = binary.BigEndian.AppendUint32(body, 65002) // peer ASN

	var rec []byte
	rec = binary.BigEndian.AppendUint32(rec, 1700000000)
	rec = binary.BigEndian.AppendUint16(rec, 13) // TABLE_DUMPV2
	rec = binary.BigEndian.AppendUint16(rec, 1)  // PEER_INDEX_TABLE
	rec = binary.BigEndian.AppendUint32(rec, uint32(len(body)))
	rec = append(rec, body...)
	return rec
}

func buildRIBRecord(t *testing.T) []byte {
	t.Helper()

	attrs := []byte{
		0, 1, 1, 0, // ORIGIN igp
	}
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 1) // sequence number
	body = append(body, 8, 10)                    // prefix 10.0.0.0/8
	body = binary.BigEndian.AppendUint16(body, 1) // one entry

	body = binary.BigEndian.AppendUint16(body, 0) // peer index 0
	body = binary.BigEndian.AppendUint32(body, 1700000000)
	body = binary.BigEndian.AppendUint16(body, uint16(len(attrs)))
	body = append(body, attrs...)

	var rec []byte
	rec = binary.BigEndian.AppendUint32(rec, 1700000000)
	rec = binary.BigEndian.AppendUint16(rec, 13) // TABLE_DUMPV2
	rec = binary.BigEndian.AppendUint16(rec, 2)  // RIB_IPV4_UNICAST
	rec = binary.BigEndian.AppendUint32(rec, uint32(len(body)))
	rec = append(rec, body...)
	return rec
}

func TestOnlyPeersSummarizesMatchingPeers(t *testing.T) {
	var out bytes.Buffer
	m := vm.NewMachine(vm.AlwaysPass(), nil, nil)
	p := NewPipeline(m, dump.Formatter{W: &out}, nil)
	p.OnlyPeers = true
	p.matchedPeers = radix.New()

	pit, _, err := mrt.DecodeRecord(buildPeerIndexTableRecord(t))
	if err != nil {
		t.Fatalf("DecodeRecord(peer index): %v", err)
	}
	if _, err := p.processRecord("test.mrt", pit); err != nil {
		t.Fatalf("processRecord(peer index): %v", err)
	}

	rib, _, err := mrt.DecodeRecord(buildRIBRecord(t))
	if err != nil {
		t.Fatalf("DecodeRecord(rib): %v", err)
	}
	ok, err := p.processRecord("test.mrt", rib)
	if err != nil {
		t.Fatalf("processRecord(rib): %v", err)
	}
	if !ok {
		t.Fatal("expected the RIB entry to pass the always-pass filter")
	}

	// processRecord alone doesn't flush; ProcessFile does that at EOF.
	if out.Len() != 0 {
		t.Fatalf("expected no output before flushMatchedPeers, got %q", out.String())
	}
	p.flushMatchedPeers()

	got := out.String()
	if !strings.HasPrefix(got, "@|") {
		t.Fatalf("expected a peer-summary row, got %q", got)
	}
	if !strings.Contains(got, "192.0.2.2") || !strings.Contains(got, "65002") {
		t.Fatalf("expected the summary row to name the matching peer, got %q", got)
	}
}

func TestProcessRecordPassesMatchingUpdate(t *testing.T) {
	rec := buildBGP4MPUpdateRecord(t)

	var out bytes.Buffer
	m := vm.NewMachine(vm.AlwaysPass(), nil, nil)
	p := NewPipeline(m, dump.Formatter{W: &out}, nil)

	// ProcessFile reads records off a bsrc.Source via bufio.Scanner; here
	// we exercise the per-record dispatch directly with an already-framed
	// record, the same shape ProcessFile's scanner loop would produce.
	decoded, _, err := mrt.DecodeRecord(rec)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	ok, err := p.processRecord("test.mrt", decoded)
	if err != nil {
		t.Fatalf("processRecord: %v", err)
	}
	if !ok {
		t.Fatal("expected record to pass the always-pass filter")
	}
	if !strings.Contains(out.String(), "10.0.0.0/8") {
		t.Fatalf("expected output to mention the NLRI, got %q", out.String())
	}
}
