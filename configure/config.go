package configure

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

/*
{
  "metadata": "bs.ts",
  "input": "program.ts",
  "output": "out.ts",
  "pat_layout": "preserve",
  "si_pids": [16, 17, 18, 20, 36]
}
*/

var ErrNoMetadata = errors.New("metadata stream is required (-m)")

const EnvPrefix = "METAREMUX"

type RemuxCfg struct {
	Level         string   `json:"level" mapstructure:"level"`
	LogFormat     string   `json:"log_format" mapstructure:"log_format"`
	LogFile       string   `json:"log_file" mapstructure:"log_file"`
	LogMaxSize    int      `json:"log_max_size" mapstructure:"log_max_size"`
	LogMaxBackups int      `json:"log_max_backups" mapstructure:"log_max_backups"`
	LogMaxAge     int      `json:"log_max_age" mapstructure:"log_max_age"`
	ConfigFile    string   `json:"config_file" mapstructure:"config_file"`
	Input         string   `json:"input" mapstructure:"input"`
	Metadata      string   `json:"metadata" mapstructure:"metadata"`
	Output        string   `json:"output" mapstructure:"output"`
	PIDOffset     uint16   `json:"pid_offset" mapstructure:"pid_offset"`
	PATLayout     string   `json:"pat_layout" mapstructure:"pat_layout"`
	SIPIDs        []uint16 `json:"si_pids" mapstructure:"si_pids"`
}

// default config
var defaultConf = RemuxCfg{
	Level:         "info",
	LogFormat:     "text",
	LogMaxSize:    100,
	LogMaxBackups: 3,
	LogMaxAge:     28,
	PATLayout:     "single",
	SIPIDs:        []uint16{0x10, 0x11, 0x12, 0x14, 0x24},
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("metaremux", pflag.ContinueOnError)
	flags.StringP("input", "i", "", "primary transport stream, stdin when empty")
	flags.StringP("metadata", "m", "", "metadata transport stream")
	flags.StringP("output", "o", "", "output transport stream, stdout when empty")
	flags.String("config_file", "", "configure filename")
	flags.String("level", "info", "Log level")
	flags.String("log_format", "text", "log format, text or prefixed")
	flags.String("log_file", "", "write logs to this file with rotation instead of stderr")
	flags.Int("log_max_size", 100, "log file size in megabytes before it is rotated")
	flags.Int("log_max_backups", 3, "rotated log files to keep")
	flags.Int("log_max_age", 28, "days to keep rotated log files")
	flags.Uint16("pid_offset", 0, "added to the PID of every stream taken from the metadata stream")
	flags.String("pat_layout", "single", "program loop of the rewritten PAT, single or preserve")
	flags.StringSlice("si_pids", []string{"16", "17", "18", "20", "36"}, "service information PIDs taken from the metadata stream")
	return flags
}

// Load layers defaults, the optional config file, METAREMUX_* environment
// variables and args, in increasing priority.
func Load(args []string) (*RemuxCfg, error) {
	conf := viper.New()

	// Default config
	b, _ := json.Marshal(defaultConf)
	defaults := viper.New()
	defaults.SetConfigType("json")
	if err := defaults.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, errors.Wrap(err, "default config")
	}
	for k, v := range defaults.AllSettings() {
		conf.SetDefault(k, v)
	}

	// Flags
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if err := conf.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	// Environment
	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	// File
	if file := conf.GetString("config_file"); file != "" {
		conf.SetConfigFile(file)
		if err := conf.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	c := &RemuxCfg{}
	if err := conf.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RemuxCfg) validate() error {
	if c.Metadata == "" {
		return ErrNoMetadata
	}
	switch c.PATLayout {
	case "single", "preserve":
	default:
		return errors.Errorf("pat_layout %q is neither single nor preserve", c.PATLayout)
	}
	if c.PIDOffset > 0x1fff {
		return errors.Errorf("pid_offset 0x%x does not fit in 13 bits", c.PIDOffset)
	}
	for _, pid := range c.SIPIDs {
		if pid > 0x1fff {
			return errors.Errorf("si_pids entry 0x%x does not fit in 13 bits", pid)
		}
	}
	return nil
}

// Dump logs the effective configuration at debug level.
func (c *RemuxCfg) Dump() {
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))
}
