package remux

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gwuhaolin/metaremux/container/ts"
	"github.com/gwuhaolin/metaremux/utils/pool"
)

// queued packets are copied into blocks of this size so a queued packet
// never pins a reader block.
const queueBlockSize = 256 * ts.PacketSize

var (
	ErrNoTransportStreamID = errors.New("metadata stream has no PAT")
	ErrNoProgramNumber     = errors.New("metadata stream has no PMT")
)

// Scanner reads the whole metadata stream once. It learns the transport
// stream id, the program number and the replacement streams, and queues
// every packet that will be replayed into the output.
type Scanner struct {
	opts Options
	log  *log.Entry
	si   map[uint16]bool // SI PIDs, always queued

	pat   *ts.Assembler // PID 0
	pmt   *ts.Assembler // pmtPID, reset when the PAT moves it
	clock ts.Clock      // advanced by PCRs on pcrPID only

	pmtPID uint16 // from the latest PAT
	hasPMT bool
	pcrPID uint16 // from the latest PMT
	hasPCR bool

	// first value wins for both
	tsid       uint16
	hasTSID    bool
	program    uint16
	hasProgram bool

	streams map[uint16]ReplacementStream // keyed by metadata PID
	queue   *Queue
	qpool   *pool.Pool // backing store for queued packets
	stats   ScanStats
}

func NewScanner(opts Options) *Scanner {
	opts = opts.withDefaults()
	return &Scanner{
		opts:    opts,
		log:     opts.Logger.WithField("pass", "scan"),
		si:      opts.siSet(),
		pat:     ts.NewAssembler(),
		pmt:     ts.NewAssembler(),
		streams: make(map[uint16]ReplacementStream),
		queue:   NewQueue(),
		qpool:   pool.NewPoolSize(queueBlockSize),
	}
}

// Scan consumes r to its end. A truncated final packet ends the stream.
func (s *Scanner) Scan(r io.Reader) (*Discovery, *Queue, error) {
	pr := ts.NewPacketReader(r)
	for {
		p, err := pr.Read()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "read metadata")
		}
		s.handle(p)
	}
	s.stats.Packets = pr.Count()
	s.stats.Skipped = pr.Skipped()
	s.stats.Elapsed = s.clock.Duration()
	if s.stats.Skipped > 0 {
		s.log.Warnf("Scan: skipped %d bytes looking for sync", s.stats.Skipped)
	}

	if !s.hasTSID {
		return nil, nil, ErrNoTransportStreamID
	}
	if !s.hasProgram {
		return nil, nil, ErrNoProgramNumber
	}

	disc := &Discovery{
		TransportStreamID: s.tsid,
		ProgramNumber:     s.program,
		Streams:           s.streams,
	}
	s.log.WithFields(log.Fields{
		"tsid":    disc.TransportStreamID,
		"program": disc.ProgramNumber,
		"streams": len(disc.Streams),
		"queued":  s.queue.Len(),
	}).Info("metadata scanned")
	return disc, s.queue, nil
}

func (s *Scanner) Stats() ScanStats {
	return s.stats
}

func (s *Scanner) handle(p ts.Packet) {
	pid := p.PID()
	switch {
	case pid == ts.PIDPAT:
		s.pat.Push(p)
		for sec, ok := s.pat.Pop(); ok; sec, ok = s.pat.Pop() {
			s.onPAT(sec)
		}
	case s.hasPMT && pid == s.pmtPID:
		s.pmt.Push(p)
		for sec, ok := s.pmt.Pop(); ok; sec, ok = s.pmt.Pop() {
			s.onPMT(sec)
		}
	}

	if _, ok := s.streams[pid]; ok || s.si[pid] {
		// p lives in a reader block shared with the packets read around it
		s.queue.Push(Entry{
			Elapsed: s.clock.Elapsed(),
			PID:     pid,
			Packet:  ts.Packet(s.qpool.Copy(p)),
		})
		s.stats.Queued++
	}

	if s.hasPCR && pid == s.pcrPID {
		if pcr, ok := p.PCR(); ok {
			s.clock.Update(pcr)
		}
	}
}

func (s *Scanner) onPAT(sec ts.Section) {
	if sec.TableID() != ts.TableIDPAT {
		s.log.Debugf("onPAT: skip table id 0x%02x", sec.TableID())
		return
	}
	if !s.hasTSID {
		s.tsid = sec.TableIDExtension()
		s.hasTSID = true
		s.log.Debugf("onPAT: transport_stream_id=%d", s.tsid)
	}
	pmtPID, _, ok := ProgramMapPID(sec)
	if ok && (!s.hasPMT || pmtPID != s.pmtPID) {
		s.pmt.Reset()
		s.log.Debugf("onPAT: program map pid=0x%04x", pmtPID)
	}
	s.pmtPID, s.hasPMT = pmtPID, ok
}

func (s *Scanner) onPMT(sec ts.Section) {
	if sec.TableID() != ts.TableIDPMT {
		s.log.Debugf("onPMT: skip table id 0x%02x", sec.TableID())
		return
	}
	pcrPID, err := PCRPID(sec)
	if err != nil {
		s.log.Warnf("onPMT: %v", err)
		return
	}
	s.pcrPID, s.hasPCR = pcrPID, true
	if !s.hasProgram {
		s.program = sec.TableIDExtension()
		s.hasProgram = true
		s.log.Debugf("onPMT: program_number=%d pcr pid=0x%04x", s.program, pcrPID)
	}

	entries, err := ParseStreams(sec)
	if err != nil {
		s.log.Warnf("onPMT: %v", err)
	}
	for _, e := range entries {
		if !Qualifies(e.StreamType, e.Descriptors) {
			continue
		}
		rs := ReplacementStream{
			StreamType:  e.StreamType,
			PID:         (e.PID + s.opts.PIDOffset) & 0x1fff,
			Descriptors: append([]byte(nil), e.Descriptors...),
		}
		if _, ok := s.streams[e.PID]; !ok {
			s.log.Debugf("onPMT: replacement stream 0x%04x -> 0x%04x type 0x%02x", e.PID, rs.PID, rs.StreamType)
		}
		s.streams[e.PID] = rs
	}
}
