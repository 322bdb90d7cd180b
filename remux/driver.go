package remux

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gwuhaolin/metaremux/container/ts"
)

const (
	cacheKindPAT byte = iota
	cacheKindPMT
)

// Driver walks the primary stream once and writes the output: PAT and PMT
// are rewritten, SI and replacement PIDs are dropped, everything else
// passes through, and queued metadata packets are released against the
// primary stream's PCR clock.
type Driver struct {
	opts  Options
	log   *log.Entry
	disc  *Discovery // read only, shared with the scan
	queue *Queue     // drained front to back, never refilled
	si    map[uint16]bool

	pat   *ts.Assembler
	pmt   *ts.Assembler // follows pmtPID
	clock ts.Clock      // primary clock, compared against Entry.Elapsed
	cache *sectionCache
	muxer *ts.Muxer // owns the PAT and PMT continuity counters

	// re-derived from the primary stream's own tables, never from the scan
	pmtPID uint16
	hasPMT bool
	pcrPID uint16
	hasPCR bool

	stats DriveStats
}

func NewDriver(disc *Discovery, queue *Queue, opts Options) *Driver {
	opts = opts.withDefaults()
	return &Driver{
		opts:  opts,
		log:   opts.Logger.WithField("pass", "remux"),
		disc:  disc,
		queue: queue,
		si:    opts.siSet(),
		pat:   ts.NewAssembler(),
		pmt:   ts.NewAssembler(),
		cache: newSectionCache(),
	}
}

// Run reads r to its end and writes the output to w. Queue entries that are
// not due by the end of r are left undelivered.
func (d *Driver) Run(r io.Reader, w io.Writer) error {
	d.muxer = ts.NewMuxer(w)
	pr := ts.NewPacketReader(r)
	defer func() {
		d.stats.Packets = pr.Count()
		d.stats.Skipped = pr.Skipped()
		d.stats.Written = d.muxer.Packets()
		d.stats.CacheHits = d.cache.hits
		d.stats.Undelivered = d.queue.Len()
		d.stats.Elapsed = d.clock.Duration()
	}()

	for {
		p, err := pr.Read()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read primary")
		}
		if err := d.handle(p); err != nil {
			return err
		}
	}

	if n := pr.Skipped(); n > 0 {
		d.log.Warnf("Run: skipped %d bytes looking for sync", n)
	}
	if n := d.queue.Len(); n > 0 {
		d.log.Warnf("Run: %d metadata packets not delivered before the primary stream ended", n)
	}
	return nil
}

func (d *Driver) Stats() DriveStats {
	return d.stats
}

func (d *Driver) handle(p ts.Packet) error {
	pid := p.PID()
	switch {
	case pid == ts.PIDPAT:
		d.pat.Push(p)
		for sec, ok := d.pat.Pop(); ok; sec, ok = d.pat.Pop() {
			if err := d.onPAT(sec); err != nil {
				return err
			}
		}
	case d.hasPMT && pid == d.pmtPID:
		d.pmt.Push(p)
		for sec, ok := d.pmt.Pop(); ok; sec, ok = d.pmt.Pop() {
			if err := d.onPMT(sec); err != nil {
				return err
			}
		}
	case d.dropped(pid):
		d.stats.Dropped++
	default:
		if err := d.muxer.WritePacket(p); err != nil {
			return err
		}
		d.stats.PassedThrough++
	}

	if err := d.drain(); err != nil {
		return err
	}

	// the clock moves after the drain, so a packet never releases entries
	// against its own PCR
	if d.hasPCR && pid == d.pcrPID {
		if pcr, ok := p.PCR(); ok {
			d.clock.Update(pcr)
		}
	}
	return nil
}

func (d *Driver) dropped(pid uint16) bool {
	if d.si[pid] {
		return true
	}
	_, ok := d.disc.Replacement(pid)
	return ok
}

// drain writes every queued packet that is due at the current clock.
func (d *Driver) drain() error {
	for {
		e, ok := d.queue.PopDue(d.clock.Elapsed())
		if !ok {
			return nil
		}
		if rs, ok := d.disc.Replacement(e.PID); ok {
			e.Packet.SetPID(rs.PID)
			d.stats.Rechanneled++
		}
		if err := d.muxer.WritePacket(e.Packet); err != nil {
			return err
		}
		d.stats.Replayed++
	}
}

func (d *Driver) onPAT(sec ts.Section) error {
	if sec.TableID() != ts.TableIDPAT {
		d.log.Debugf("onPAT: skip table id 0x%02x", sec.TableID())
		return nil
	}
	pmtPID, _, ok := ProgramMapPID(sec)
	if !ok {
		d.log.Debugf("onPAT: no program in PAT, not written")
		d.hasPMT = false
		return nil
	}
	if !d.hasPMT || pmtPID != d.pmtPID {
		d.pmt.Reset()
		d.log.Debugf("onPAT: program map pid=0x%04x", pmtPID)
	}
	d.pmtPID, d.hasPMT = pmtPID, true

	out, err := d.cache.rewrite(cacheKindPAT, sec, func() (ts.Section, error) {
		return RewritePAT(sec, d.disc, d.opts.PATLayout, pmtPID)
	})
	if err != nil {
		d.log.Warnf("onPAT: %v", err)
		return nil
	}
	if _, err := d.muxer.WriteSection(out, ts.PIDPAT); err != nil {
		return err
	}
	d.stats.SectionsRewritten++
	return nil
}

func (d *Driver) onPMT(sec ts.Section) error {
	if sec.TableID() != ts.TableIDPMT {
		d.log.Debugf("onPMT: skip table id 0x%02x", sec.TableID())
		return nil
	}
	pcrPID, err := PCRPID(sec)
	if err != nil {
		d.log.Warnf("onPMT: %v", err)
		return nil
	}
	d.pcrPID, d.hasPCR = pcrPID, true

	out, err := d.cache.rewrite(cacheKindPMT, sec, func() (ts.Section, error) {
		return RewritePMT(sec, d.disc)
	})
	if err != nil {
		d.log.Warnf("onPMT: %v", err)
		return nil
	}
	if _, err := d.muxer.WriteSection(out, d.pmtPID); err != nil {
		return err
	}
	d.stats.SectionsRewritten++
	return nil
}
