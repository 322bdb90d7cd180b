package configure

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"

	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func callerPrettyfier(f *runtime.Frame) (string, string) {
	filename := path.Base(f.File)
	return fmt.Sprintf("%s()", f.Function), fmt.Sprintf(" %s:%d", filename, f.Line)
}

// TextFormatter is the default log format.
func TextFormatter() log.Formatter {
	return &log.TextFormatter{
		FullTimestamp:    true,
		CallerPrettyfier: callerPrettyfier,
	}
}

func formatter(name string) log.Formatter {
	if name == "prefixed" {
		return &prefixed.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		}
	}
	return TextFormatter()
}

// InitLog configures the standard logger from c. Logs never go to stdout,
// which may carry the output stream. The returned closer releases the log
// file, if any.
func InitLog(c *RemuxCfg) io.Closer {
	l, err := log.ParseLevel(c.Level)
	if err != nil {
		log.Warningf("InitLog: %v, keeping %s", err, log.GetLevel())
	} else {
		log.SetLevel(l)
		log.SetReportCaller(l == log.DebugLevel)
	}
	log.SetFormatter(formatter(c.LogFormat))

	if c.LogFile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAge,
	}
	log.SetOutput(file)
	return file
}
