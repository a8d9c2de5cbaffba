package vm

import "github.com/ubgpsuite/bgpgrep/netaddr"

// CellKind tags the value a Cell currently holds.
type CellKind uint8

const (
	CellInt CellKind = iota
	CellNetAddr
	CellNetAddrAP
	CellWideAS
	CellCommunity
	CellLargeCommunity
	CellArrayRef
)

// ArrayRef is an offset/length/element-size view into the VM heap, used
// for stack-pushed AS-path and community literal arrays.
type ArrayRef struct {
	Base  int
	Nels  int
	Elsiz int
}

// Cell is the tagged-union stack/constant value, the Go equivalent of the
// original's C union cell with an explicit kind discriminant rather than
// raw reinterpretation.
type Cell struct {
	Kind    CellKind
	Int     int64
	Addr    netaddr.NetAddr
	AddrAP  netaddr.NetAddrAP
	AS      int64 // wide AS number; -1 (AS_ANY) is a valid wildcard value
	Comm    uint32
	LComm   [3]uint32
	Array   ArrayRef
}

// Truthy reports whether the cell should be treated as a boolean true by
// CPASS/CFAIL: any non-zero integer, or any non-integer value at all.
func (c Cell) Truthy() bool {
	if c.Kind == CellInt {
		return c.Int != 0
	}
	return true
}

// IntCell builds a plain integer cell.
func IntCell(v int64) Cell { return Cell{Kind: CellInt, Int: v} }

// AddrCell builds a NetAddr cell.
func AddrCell(a netaddr.NetAddr) Cell { return Cell{Kind: CellNetAddr, Addr: a} }

// ASCell builds a wide-AS cell. AS_ANY is represented as -1.
func ASCell(asn int64) Cell { return Cell{Kind: CellWideAS, AS: asn} }

// CommCell builds a standard-community cell.
func CommCell(v uint32) Cell { return Cell{Kind: CellCommunity, Comm: v} }

// AsAny is the AS-path wildcard value accepted by ASPMATCH and friends.
const AsAny int64 = -1
