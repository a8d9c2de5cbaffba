// Package ingest drives the per-file MRT reading loop: it frames records
// off a bsrc.Source, dispatches each one by MRT type/subtype, reconstructs
// a BGP UPDATE view, runs it through the filter VM, and writes any record
// that passes to the configured formatter.
package ingest

import (
	"bufio"
	"log"

	radix "github.com/armon/go-radix"
	"github.com/pkg/errors"

	"github.com/ubgpsuite/bgpgrep/bgp"
	"github.com/ubgpsuite/bgpgrep/bsrc"
	"github.com/ubgpsuite/bgpgrep/internal/dump"
	"github.com/ubgpsuite/bgpgrep/mrt"
	"github.com/ubgpsuite/bgpgrep/netaddr"
	"github.com/ubgpsuite/bgpgrep/vm"
)

// Pipeline holds the state shared across every input file in one run: the
// compiled filter machine, the output formatter, and optional metrics.
type Pipeline struct {
	Machine   *vm.Machine
	Formatter dump.Formatter
	OnlyPeers bool
	Logger    *log.Logger
	Metrics   *Metrics

	// WantPeerAddr, when set, is installed as the CALL 1 handler before
	// every packet is run, for filters built by vm.CompilePeerAddrFilter.
	WantPeerAddr *netaddr.NetAddr

	// HexDump, when set, writes each matching live BGP message as a C
	// byte array instead of a formatted text row.
	HexDump bool

	peerTables map[[4]byte]mrt.PeerIndexTable

	// matchedPeers accumulates, per file, the set of peers that produced
	// at least one passing RIB entry, keyed by textual address, for -f's
	// "only peers" summary. A radix tree rather than a plain map since it
	// also gives the summary a stable walk order (lexicographic over the
	// textual address).
	matchedPeers *radix.Tree
}

// NewPipeline constructs a Pipeline ready to process files.
func NewPipeline(m *vm.Machine, f dump.Formatter, logger *log.Logger) *Pipeline {
	return &Pipeline{
		Machine:    m,
		Formatter:  f,
		Logger:     logger,
		peerTables: map[[4]byte]mrt.PeerIndexTable{},
	}
}

// ProcessFile reads every MRT record from name and runs it through the
// filter, returning the count of records that passed and an error when
// the file as a whole is abandoned: it cannot be opened or read, or a
// record's payload is truncated (mrt.ErrShortHeader). Any other record
// error, a VM abort of any kind included, is logged and the record skipped.
func (p *Pipeline) ProcessFile(name string) (int, error) {
	src, err := bsrc.OpenFile(name)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if p.OnlyPeers {
		p.matchedPeers = radix.New()
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	scanner.Split(mrt.SplitMrt)

	passed := 0
	for scanner.Scan() {
		if p.Metrics != nil {
			p.Metrics.RecordsRead.Inc()
		}
		rec, _, err := mrt.DecodeRecord(scanner.Bytes())
		if err != nil {
			p.logError(name, "decoding record", err)
			if p.Metrics != nil {
				p.Metrics.RecordErrors.Inc()
			}
			continue
		}
		ok, err := p.processRecord(name, rec)
		if err != nil {
			if errors.Is(err, mrt.ErrShortHeader) {
				p.logError(name, "abandoning file after", err)
				if p.Metrics != nil {
					p.Metrics.FilesErrored.Inc()
				}
				return passed, err
			}
			p.logError(name, "processing record", err)
			if p.Metrics != nil {
				p.Metrics.RecordErrors.Inc()
			}
			continue
		}
		if ok {
			passed++
			if p.Metrics != nil {
				p.Metrics.RecordsPassed.Inc()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return passed, errors.Wrapf(err, "ingest: reading %s", name)
	}
	if p.OnlyPeers {
		p.flushMatchedPeers()
	}
	return passed, nil
}

// flushMatchedPeers writes the -f summary: one row per peer that produced
// at least one passing entry this file, in lexicographic order of the
// textual address.
func (p *Pipeline) flushMatchedPeers() {
	p.matchedPeers.Walk(func(s string, v interface{}) bool {
		peer := v.(mrt.Peer)
		p.Formatter.WriteRow(dump.Row{
			Kind:     dump.KindPeer,
			FeederIP: peer.Addr,
			FeederAS: peer.ASN,
		})
		return false
	})
}

// prepare installs the CALL-opcode handlers the compiled filter may depend
// on for this particular packet: AS-path loop detection is always wired
// since it is cheap and idempotent, the peer-address comparison only when
// a peer filter is configured.
func (p *Pipeline) prepare(pkt *vm.Packet) {
	vm.LoopCallback(p.Machine, pkt)
	if p.WantPeerAddr != nil {
		vm.PeerAddrCallback(p.Machine, pkt, *p.WantPeerAddr)
	}
}

func (p *Pipeline) logError(file, what string, err error) {
	if p.Logger != nil {
		p.Logger.Printf("%s: %s: %v", file, what, err)
	}
}

func (p *Pipeline) processRecord(file string, rec mrt.Record) (bool, error) {
	switch rec.Header.Type {
	case mrt.TypeTableDumpV2:
		return p.processTableDumpV2(rec)
	case mrt.TypeTableDump:
		return p.processLegacyTableDump(rec)
	case mrt.TypeBGP4MP, mrt.TypeBGP4MPET:
		return p.processBGP4MP(rec)
	default:
		return false, nil
	}
}

func (p *Pipeline) processTableDumpV2(rec mrt.Record) (bool, error) {
	if rec.Header.Subtype == mrt.SubtypePeerIndexTable {
		pit, err := mrt.DecodePeerIndexTable(rec.Payload)
		if err != nil {
			return false, err
		}
		p.peerTables[pit.CollectorBGPID] = pit
		return false, nil
	}

	rib, err := mrt.DecodeRIB(rec.Payload, rec.Header.Subtype)
	if err != nil {
		return false, err
	}

	var pit mrt.PeerIndexTable
	for _, t := range p.peerTables {
		pit = t
		break
	}

	anyPass := false
	for _, entry := range rib.Entries {
		peer, err := pit.Peer(entry.PeerIndex)
		if err != nil {
			p.logError("", "resolving peer index", err)
			continue
		}
		u := &bgp.Update{NLRI: []netaddr.NetAddr{rib.Prefix}, Attrs: entry.Attrs}
		pkt, err := vm.NewPacket(u, peer.ASN, peer.Addr)
		if err != nil {
			return false, err
		}
		p.prepare(pkt)
		pass, err := p.Machine.Run(pkt)
		if err != nil {
			return false, err
		}
		if pass {
			anyPass = true
			if p.OnlyPeers {
				p.matchedPeers.Insert(peer.Addr.String(), peer)
			} else {
				p.writeRIBRow(rec.Header, rib, peer, entry)
			}
		}
	}
	return anyPass, nil
}

func (p *Pipeline) processLegacyTableDump(rec mrt.Record) (bool, error) {
	e, err := mrt.DecodeTableDump(rec.Payload, rec.Header.Subtype)
	if err != nil {
		return false, err
	}
	if p.OnlyPeers {
		return false, nil
	}
	u := &bgp.Update{NLRI: []netaddr.NetAddr{e.Prefix}, Attrs: e.Attrs}
	pkt, err := vm.NewPacket(u, e.PeerAS, e.PeerAddr)
	if err != nil {
		return false, err
	}
	p.prepare(pkt)
	pass, err := p.Machine.Run(pkt)
	if err != nil {
		return false, err
	}
	if pass {
		p.Formatter.WriteRow(rowFromUpdate(dump.KindRIBSnapshot, u, e.PeerAddr, e.PeerAS, rec.Header))
	}
	return pass, nil
}

func (p *Pipeline) processBGP4MP(rec mrt.Record) (bool, error) {
	sc, msg, err := mrt.UnwrapBGP4MP(rec.Payload, rec.Header.Subtype)
	if err != nil {
		return false, err
	}
	if sc != nil {
		if p.OnlyPeers {
			return false, nil
		}
		p.Formatter.WriteRow(dump.Row{
			Kind:         dump.KindStateChange,
			FeederIP:     sc.Header.PeerAddr,
			FeederAS:     sc.Header.PeerAS,
			TimestampSec: rec.Header.Timestamp,
			HasUsec:      rec.Header.Microsecs != 0,
			TimestampUsec: rec.Header.Microsecs,
		})
		return true, nil
	}

	bm, err := bgp.Decode(msg.Raw, msg.BGPFlags)
	if err != nil {
		return false, err
	}
	if bm.Update == nil {
		return false, nil
	}
	if p.OnlyPeers {
		return false, nil
	}
	pkt, err := vm.NewPacket(bm.Update, msg.Header.PeerAS, msg.Header.PeerAddr)
	if err != nil {
		return false, err
	}
	p.prepare(pkt)
	pass, err := p.Machine.Run(pkt)
	if err != nil {
		return false, err
	}
	if pass {
		if p.HexDump {
			dump.HexDumpCArray(p.Formatter.W, "bgpgrep_msg", msg.Raw)
		} else {
			kind := dump.KindAnnounce
			if len(bm.Update.NLRI) == 0 && len(bm.Update.Withdrawn) > 0 {
				kind = dump.KindWithdraw
			}
			p.Formatter.WriteRow(rowFromUpdate(kind, bm.Update, msg.Header.PeerAddr, msg.Header.PeerAS, rec.Header))
		}
	}
	return pass, nil
}

func (p *Pipeline) writeRIBRow(hdr mrt.Header, rib mrt.RIB, peer mrt.Peer, entry mrt.RIBEntry) {
	u := &bgp.Update{NLRI: []netaddr.NetAddr{rib.Prefix}, Attrs: entry.Attrs}
	row := rowFromUpdate(dump.KindRIBSnapshot, u, peer.Addr, peer.ASN, hdr)
	if entry.PathID != 0 {
		row.PathID = entry.PathID
		row.HasPathID = true
	}
	p.Formatter.WriteRow(row)
}

func rowFromUpdate(kind dump.Kind, u *bgp.Update, feederIP netaddr.NetAddr, feederAS uint32, hdr mrt.Header) dump.Row {
	row := dump.Row{
		Kind:         kind,
		Prefixes:     u.NLRI,
		FeederIP:     feederIP,
		FeederAS:     feederAS,
		TimestampSec: hdr.Timestamp,
		HasUsec:      hdr.Microsecs != 0,
		TimestampUsec: hdr.Microsecs,
		Origin:       -1,
	}
	if kind == dump.KindWithdraw {
		row.Prefixes = u.Withdrawn
	}
	if path, err := u.RealASPath(); err == nil {
		row.ASPath = path
	}
	if nh, ok, err := u.NextHop(); err == nil && ok {
		row.NextHops = []netaddr.NetAddr{nh}
	}
	if origin, ok := u.Origin(); ok {
		row.Origin = int8(origin)
	}
	if std, err := u.Communities(); err == nil && std != nil {
		ext, _ := u.ExtCommunities()
		large, _ := u.LargeCommunities()
		row.Communities = dump.FormatCommunities(std, ext, large)
	}
	return row
}
