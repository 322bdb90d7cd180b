package remux

import (
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	// PIDOffset is added to the metadata PID of every replacement stream
	// to get its output PID.
	PIDOffset uint16
	PATLayout PATLayout
	// SIPIDs are dropped from the primary stream and taken from the
	// metadata stream.
	SIPIDs []uint16
	Logger *log.Entry
}

func (o Options) withDefaults() Options {
	if o.PATLayout == "" {
		o.PATLayout = PATLayoutSingle
	}
	if o.SIPIDs == nil {
		o.SIPIDs = append([]uint16(nil), DefaultSIPIDs...)
	}
	if o.Logger == nil {
		o.Logger = log.NewEntry(log.StandardLogger())
	}
	return o
}

func (o Options) siSet() map[uint16]bool {
	si := make(map[uint16]bool, len(o.SIPIDs))
	for _, pid := range o.SIPIDs {
		si[pid] = true
	}
	return si
}

// ScanStats counts what the metadata pass saw.
type ScanStats struct {
	Packets int64
	Skipped int64 // bytes dropped while looking for sync
	Queued  int64
	Elapsed time.Duration
}

// DriveStats counts what the primary pass did.
type DriveStats struct {
	Packets           int64
	Skipped           int64
	Written           int64
	PassedThrough     int64
	Dropped           int64
	Replayed          int64
	Rechanneled       int64
	SectionsRewritten int64
	CacheHits         int64
	Undelivered       int
	Elapsed           time.Duration
}

// Report summarizes one run.
type Report struct {
	RunID     string
	Discovery *Discovery
	Scan      ScanStats
	Drive     DriveStats
}

// Run scans metadata, then remuxes primary into out. The report is
// returned together with any error from the primary pass so partial
// progress can be logged.
func Run(primary, metadata io.Reader, out io.Writer, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	report := &Report{RunID: uuid.New().String()}
	opts.Logger = opts.Logger.WithField("run", report.RunID)

	scanner := NewScanner(opts)
	disc, queue, err := scanner.Scan(metadata)
	report.Scan = scanner.Stats()
	if err != nil {
		return report, err
	}
	report.Discovery = disc

	driver := NewDriver(disc, queue, opts)
	err = driver.Run(primary, out)
	report.Drive = driver.Stats()
	if err != nil {
		return report, err
	}

	opts.Logger.WithFields(log.Fields{
		"written":     report.Drive.Written,
		"replayed":    report.Drive.Replayed,
		"undelivered": report.Drive.Undelivered,
	}).Info("remux finished")
	return report, nil
}
