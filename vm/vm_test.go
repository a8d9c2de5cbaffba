package vm

import (
	"testing"

	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/netaddr"
	"github.com/ubgpsuite/bgpgrep/patricia"
)

func emptyPacket(t *testing.T) *Packet {
	t.Helper()
	u := &bgp.Update{}
	p, err := NewPacket(u, 0, netaddr.NetAddr{})
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}
	return p
}

func TestAlwaysPass(t *testing.T) {
	m := NewMachine(AlwaysPass(), nil, nil)
	pass, err := m.Run(emptyPacket(t))
	if err != nil || !pass {
		t.Fatalf("expected pass, got pass=%v err=%v", pass, err)
	}
}

func TestAlwaysFail(t *testing.T) {
	m := NewMachine(AlwaysFail(), nil, nil)
	pass, err := m.Run(emptyPacket(t))
	if err != nil || pass {
		t.Fatalf("expected fail, got pass=%v err=%v", pass, err)
	}
}

func TestDanglingBlk(t *testing.T) {
	var b builder
	b.emit(OpBLK, 0)
	b.emit(OpLOAD, 1)
	m := NewMachine(b.build(), nil, nil)
	_, err := m.Run(emptyPacket(t))
	if err != errDanglingBlk {
		t.Fatalf("expected dangling BLK error, got %v", err)
	}
}

func TestSpuriousEndblk(t *testing.T) {
	var b builder
	b.emit(OpENDBLK, 0)
	m := NewMachine(b.build(), nil, nil)
	_, err := m.Run(emptyPacket(t))
	if err != errSpuriousEndblk {
		t.Fatalf("expected spurious ENDBLK error, got %v", err)
	}
}

func TestStackOverflow(t *testing.T) {
	var b builder
	for i := 0; i <= maxStack; i++ {
		b.emit(OpLOAD, 1)
	}
	m := NewMachine(b.build(), nil, nil)
	_, err := m.Run(emptyPacket(t))
	if err != errStackOverflow {
		t.Fatalf("expected stack overflow error, got %v", err)
	}
}

func TestCompileASFilterPasses(t *testing.T) {
	attrs := []byte{0, 2, 4, 2, 1, 0xfe, 0x39} // AS_PATH seq [65081]
	u := &bgp.Update{}
	decoded, err := bgp.DecodeUpdate(append([]byte{0, 0, byte(len(attrs) >> 8), byte(len(attrs))}, attrs...), 0)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	*u = decoded

	pkt, err := NewPacket(u, 0, netaddr.NetAddr{})
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}

	m := NewMachine(CompileASFilter(65081), nil, nil)
	pass, err := m.Run(pkt)
	if err != nil || !pass {
		t.Fatalf("expected pass for matching ASN, got pass=%v err=%v", pass, err)
	}

	m2 := NewMachine(CompileASFilter(1), nil, nil)
	pass2, err := m2.Run(pkt)
	if err != nil || pass2 {
		t.Fatalf("expected fail for non-matching ASN, got pass=%v err=%v", pass2, err)
	}
}

func TestCompilePrefixTrieFilterSupernet(t *testing.T) {
	v4 := patricia.New(netaddr.V4)
	parent, _ := netaddr.Parse("10.0.0.0/8")
	v4.Insert(parent, nil)

	attrs := []byte{0, 3, 4, 10, 1, 2, 3} // NEXT_HOP
	body := append([]byte{0, 0}, byte(len(attrs)>>8), byte(len(attrs)))
	body = append(body, attrs...)
	body = append(body, 24, 10, 1, 2) // NLRI 10.1.2.0/24, a subnet of 10.0.0.0/8

	u, err := bgp.DecodeUpdate(body, 0)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	pkt, err := NewPacket(&u, 0, netaddr.NetAddr{})
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}

	prog := CompilePrefixTrieFilter(OpSUPERNET, 0, 0)
	m := NewMachine(prog, v4, patricia.New(netaddr.V6))
	pass, err := m.Run(pkt)
	if err != nil || !pass {
		t.Fatalf("expected pass (10.0.0.0/8 supernets 10.1.2.0/24), got pass=%v err=%v", pass, err)
	}
}
