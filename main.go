package main

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/gwuhaolin/metaremux/configure"
	"github.com/gwuhaolin/metaremux/container/ts"
	"github.com/gwuhaolin/metaremux/remux"
)

var VERSION = "master"

const outputBufferSize = 1024 * ts.PacketSize

func init() {
	log.SetFormatter(configure.TextFormatter())
}

func openInput(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	return f, nil
}

func createOutput(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "create output")
	}
	return f, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func remuxOptions(c *configure.RemuxCfg) remux.Options {
	return remux.Options{
		PIDOffset: c.PIDOffset,
		PATLayout: remux.PATLayout(c.PATLayout),
		SIPIDs:    c.SIPIDs,
		Logger:    log.NewEntry(log.StandardLogger()),
	}
}

// run opens all three streams before any packet is read, so a bad path
// fails without a partial output.
func run(c *configure.RemuxCfg) (*remux.Report, error) {
	metadata, err := os.Open(c.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "open metadata")
	}
	defer metadata.Close()

	primary, err := openInput(c.Input)
	if err != nil {
		return nil, err
	}
	defer primary.Close()

	out, err := createOutput(c.Output)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(out, outputBufferSize)

	report, err := remux.Run(primary, metadata, w, remuxOptions(c))
	if err != nil {
		out.Close()
		return report, err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return report, errors.Wrap(err, "flush output")
	}
	if err := out.Close(); err != nil {
		return report, errors.Wrap(err, "close output")
	}
	return report, nil
}

func logReport(r *remux.Report) {
	fields := log.Fields{
		"run":             r.RunID,
		"scan_packets":    r.Scan.Packets,
		"scan_queued":     r.Scan.Queued,
		"scan_elapsed":    r.Scan.Elapsed,
		"packets":         r.Drive.Packets,
		"written":         r.Drive.Written,
		"passed_through":  r.Drive.PassedThrough,
		"dropped":         r.Drive.Dropped,
		"replayed":        r.Drive.Replayed,
		"rechanneled":     r.Drive.Rechanneled,
		"sections":        r.Drive.SectionsRewritten,
		"cache_hits":      r.Drive.CacheHits,
		"resync_bytes":    r.Scan.Skipped + r.Drive.Skipped,
		"undelivered":     r.Drive.Undelivered,
		"primary_elapsed": r.Drive.Elapsed,
	}
	if r.Discovery != nil {
		fields["tsid"] = r.Discovery.TransportStreamID
		fields["program"] = r.Discovery.ProgramNumber
		fields["streams"] = len(r.Discovery.Streams)
	}
	log.WithFields(fields).Info("report")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("metaremux panic: ", r)
			time.Sleep(1 * time.Second)
			os.Exit(1)
		}
	}()

	c, err := configure.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	logFile := configure.InitLog(c)
	defer logFile.Close()

	log.Infof("metaremux version: %s", VERSION)
	c.Dump()

	report, err := run(c)
	if report != nil {
		logReport(report)
	}
	if err != nil {
		log.Fatal(err)
	}
}
