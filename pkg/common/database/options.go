package database

import "time"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// LogLevel selects a category of client log output.
type LogLevel string

const (
	LogQuery LogLevel = "query"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// ErrorFormat controls how much detail query errors carry.
type ErrorFormat string

const (
	ErrorFormatDefault   ErrorFormat = ""
	ErrorFormatPretty    ErrorFormat = "pretty"
	ErrorFormatColorless ErrorFormat = "colorless"
	// ErrorFormatMinimal drops bound parameters from logs and translates
	// driver errors into gorm's portable error values.
	ErrorFormatMinimal ErrorFormat = "minimal"
)

// PoolConfig tunes the underlying *sql.DB.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
	// Eager pings the database before the constructor returns.
	Eager bool
}

// Config is resolved once at startup and handed to NewHolder.
type Config struct {
	Environment string
	URL         string
	Pool        PoolConfig
	// BaseDir anchors relative sqlite paths; defaults to the working directory.
	BaseDir string
}

// Options is what a Constructor receives.
type Options struct {
	URL         string
	Log         []LogLevel
	ErrorFormat ErrorFormat
	Pool        PoolConfig
	BaseDir     string
}

// Logs reports whether level is enabled.
func (o Options) Logs(level LogLevel) bool {
	for _, l := range o.Log {
		if l == level {
			return true
		}
	}
	return false
}

// OptionsFor derives constructor options from the environment.
func OptionsFor(cfg Config) Options {
	opts := Options{
		URL:     cfg.URL,
		Log:     []LogLevel{LogError},
		Pool:    cfg.Pool,
		BaseDir: cfg.BaseDir,
	}
	if cfg.Environment == EnvDevelopment {
		opts.Log = []LogLevel{LogQuery, LogError, LogWarn}
	}
	if cfg.Environment == EnvProduction {
		opts.ErrorFormat = ErrorFormatMinimal
	}
	return opts
}
