package vm

import (
	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

// AccessMask bits select which region of the packet an address or
// AS-path iterator walks, and whether opening it forces a rewind.
type AccessMask uint8

const (
	AccessNLRI AccessMask = 1 << iota
	AccessWithdrawn
	AccessASPath
	AccessAS4Path
	AccessRealASPath
	AccessSettle AccessMask = 1 << 7
)

// Packet is the borrowed view of one decoded BGP UPDATE (plus the peer
// metadata MRT attaches to it) that a compiled filter evaluates against.
type Packet struct {
	Update   *bgp.Update
	PeerAS   uint32
	PeerAddr netaddr.NetAddr

	nlri      []netaddr.NetAddr
	withdrawn []netaddr.NetAddr
	asPath    []bgp.ASPathSegment
	as4Path   []bgp.ASPathSegment
	realPath  []bgp.ASPathSegment
}

// NewPacket decodes the accessor-relevant views out of u once, up front,
// so the VM's iterators only ever index into plain slices.
func NewPacket(u *bgp.Update, peerAS uint32, peerAddr netaddr.NetAddr) (*Packet, error) {
	p := &Packet{Update: u, PeerAS: peerAS, PeerAddr: peerAddr}
	var err error
	if p.nlri, err = u.AllNLRI(); err != nil {
		return nil, err
	}
	if p.withdrawn, err = u.AllWithdrawn(); err != nil {
		return nil, err
	}
	if a, ok := bgp.FindAttr(u.Attrs, bgp.AttrASPath); ok {
		if p.asPath, err = bgp.DecodeASPath(a.Value, 4); err != nil {
			return nil, err
		}
	}
	if a, ok := bgp.FindAttr(u.Attrs, bgp.AttrAS4Path); ok {
		if p.as4Path, err = bgp.DecodeASPath(a.Value, 4); err != nil {
			return nil, err
		}
	}
	if p.realPath, err = u.RealASPath(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Packet) addrs(mask AccessMask) []netaddr.NetAddr {
	switch {
	case mask&AccessWithdrawn != 0:
		return p.withdrawn
	default:
		return p.nlri
	}
}

func (p *Packet) asPathFor(mask AccessMask) []uint32 {
	var segs []bgp.ASPathSegment
	switch {
	case mask&AccessAS4Path != 0:
		segs = p.as4Path
	case mask&AccessRealASPath != 0:
		segs = p.realPath
	default:
		segs = p.asPath
	}
	var flat []uint32
	for _, s := range segs {
		flat = append(flat, s.ASN...)
	}
	return flat
}

// HasLoop reports whether any ASN appears more than once in the real AS
// path, the condition the -l/-L flags act on.
func (p *Packet) HasLoop() bool {
	seen := map[uint32]bool{}
	for _, asn := range p.asPathFor(AccessRealASPath) {
		if seen[asn] {
			return true
		}
		seen[asn] = true
	}
	return false
}
