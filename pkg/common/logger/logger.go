package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the `log` section of the service config.
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"` // json | console
	TimeFormat string `json:"time_format" yaml:"time_format" mapstructure:"time_format"`
	Output     string `json:"output" yaml:"output" mapstructure:"output"` // stdout | stderr | file path
}

// DefaultConfig is what ForEnvironment starts from before applying NODE_ENV.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

// ForEnvironment picks log defaults for a NODE_ENV value: development gets
// debug-level console output, every other environment info-level json.
func ForEnvironment(env string) *Config {
	cfg := DefaultConfig()
	if env == "development" {
		cfg.Level = "debug"
		return cfg
	}
	cfg.Format = "json"
	return cfg
}

// Init replaces the process logger. The service calls it once at startup,
// right after the config is loaded; loggers handed out earlier keep writing
// to the previous destination.
func Init(cfg *Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = cfg.TimeFormat
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

func openOutput(dest string) (io.Writer, error) {
	switch dest {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", dest, err)
	}
	return f, nil
}

// GetLogger returns the process logger. The entrypoints use it for fatal
// startup errors.
func GetLogger() *zerolog.Logger {
	return &log.Logger
}

// WithComponent tags every entry with the subsystem that wrote it
// (database, gorm, lifecycle, app).
func WithComponent(component string) *zerolog.Logger {
	l := log.Logger.With().Str("component", component).Logger()
	return &l
}

// WithFields returns a child of the process logger carrying fields.
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	l := log.Logger.With().Fields(fields).Logger()
	return &l
}
