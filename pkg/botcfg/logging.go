package botcfg

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
)

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string
	Format string
	// File, when set, adds a rotated JSON log file next to stdout.
	File string
}

// Logger compiles the logging config into a zerolog logger on stdout.
func (lc LoggingConfig) Logger() (*zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	format := zeroconfig.LogFormat(lc.Format)
	switch format {
	case zeroconfig.LogFormatJSON, zeroconfig.LogFormatPretty, zeroconfig.LogFormatPrettyColored:
	default:
		return nil, fmt.Errorf("invalid log format %q", lc.Format)
	}

	cfg := zeroconfig.Config{
		MinLevel: ptr.Ptr(level),
		Writers: []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStdout,
			Format: format,
		}},
	}
	if lc.File != "" {
		cfg.Writers = append(cfg.Writers, zeroconfig.WriterConfig{
			Type:   zeroconfig.WriterTypeFile,
			Format: zeroconfig.LogFormatJSON,
			FileConfig: zeroconfig.FileConfig{
				Filename:   lc.File,
				MaxSize:    100,
				MaxBackups: 10,
			},
		})
	}
	return cfg.Compile()
}
