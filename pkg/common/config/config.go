package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dbkeeper/pkg/common/logger"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the application configuration
type Config struct {
	Debug       bool           `json:"debug" mapstructure:"debug"`
	Environment string         `json:"environment" mapstructure:"environment"`
	DatabaseURL string         `json:"database_url" mapstructure:"database_url"`
	Database    DatabaseConfig `json:"database" mapstructure:"database"`
	Log         logger.Config  `json:"log" mapstructure:"log"`
	Server      ServerConfig   `json:"server" mapstructure:"server"`
}

// DatabaseConfig tunes the connection pool. The connection string itself is DatabaseURL.
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
	Eager           bool          `json:"eager" mapstructure:"eager"`
}

// ServerConfig holds the HTTP surface settings. Header rules are applied verbatim.
type ServerConfig struct {
	Address         string        `json:"address" mapstructure:"address"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	BodyLimit       int64         `json:"body_limit" mapstructure:"body_limit"`
	Compress        bool          `json:"compress" mapstructure:"compress"`
	Headers         []HeaderRule  `json:"headers" mapstructure:"headers"`
}

// HeaderRule sets Headers on every response whose path matches Source.
type HeaderRule struct {
	Source  string   `json:"source" mapstructure:"source"`
	Headers []Header `json:"headers" mapstructure:"headers"`
}

type Header struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value" mapstructure:"value"`
}

// DefaultHeaderRules is the security header policy a fresh config ships with:
// framing, sniffing, referrer and permissions on every path, no caching on /api.
func DefaultHeaderRules() []HeaderRule {
	return []HeaderRule{
		{Source: "/(.*)", Headers: []Header{
			{Key: "X-Frame-Options", Value: "DENY"},
			{Key: "X-Content-Type-Options", Value: "nosniff"},
			{Key: "Referrer-Policy", Value: "origin-when-cross-origin"},
			{Key: "Permissions-Policy", Value: "camera=(), microphone=(), geolocation=()"},
		}},
		{Source: "/api/(.*)", Headers: []Header{
			{Key: "Cache-Control", Value: "no-store, no-cache, must-revalidate, proxy-revalidate"},
		}},
	}
}

// headerRulesSetting converts rules to the plain maps viper stores and writes.
func headerRulesSetting(rules []HeaderRule) []map[string]any {
	out := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		hs := make([]map[string]any, 0, len(r.Headers))
		for _, h := range r.Headers {
			hs = append(hs, map[string]any{"key": h.Key, "value": h.Value})
		}
		out = append(out, map[string]any{"source": r.Source, "headers": hs})
	}
	return out
}

// IsProduction reports whether NODE_ENV selected production behavior.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

var appConfig *Config

func setDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("environment", EnvDevelopment)
	viper.SetDefault("database_url", "")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	viper.SetDefault("database.connect_timeout", 10*time.Second)
	viper.SetDefault("database.eager", false)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.shutdown_timeout", 5*time.Second)
	viper.SetDefault("server.body_limit", 5<<20)
	viper.SetDefault("server.compress", true)
	viper.SetDefault("server.headers", headerRulesSetting(DefaultHeaderRules()))

	// NODE_ENV and DATABASE_URL keep their conventional names.
	_ = viper.BindEnv("environment", "NODE_ENV")
	_ = viper.BindEnv("database_url", "DATABASE_URL")
}

// Load loads the configuration from a config file (json or yaml) plus the environment
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")

	if configPath != "" {
		viper.AddConfigPath(configPath)
	} else {
		// Default paths to look for config file
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		// If config file doesn't exist, create a default one
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig(configPath)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := decode()
	if err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

func decode() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.Environment = strings.TrimSpace(config.Environment)
	if config.Log.Level == "" {
		config.Log = *logger.ForEnvironment(config.Environment)
	}
	return &config, nil
}

// createDefaultConfig writes config.json with the defaults; env bindings still apply.
// Secrets (database_url) are never written to disk.
func createDefaultConfig(configPath string) (*Config, error) {
	dir := configPath
	if dir == "" {
		dir = "."
	}

	defaults := map[string]any{
		"debug":    viper.GetBool("debug"),
		"database": viper.Get("database"),
		"server":   viper.Get("server"),
	}
	w := viper.New()
	w.SetConfigType("json")
	for k, v := range defaults {
		w.Set(k, v)
	}
	w.Set("server.headers", viper.Get("server.headers"))
	configFile := filepath.Join(dir, "config.json")
	if err := w.WriteConfigAs(configFile); err != nil {
		return nil, fmt.Errorf("error creating default config file: %w", err)
	}

	config, err := decode()
	if err != nil {
		return nil, err
	}
	appConfig = config
	return config, nil
}

// Get returns the current configuration
func Get() *Config {
	if appConfig == nil {
		// Return default config if not loaded
		return &Config{
			Environment: EnvDevelopment,
			Log:         *logger.ForEnvironment(EnvDevelopment),
		}
	}
	return appConfig
}

// IsDebug returns whether debug mode is enabled
func IsDebug() bool {
	return Get().Debug
}

// Reload reloads the configuration from file. Values already handed to a
// live database client are not affected.
func Reload() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reloading config: %w", err)
		}
	}

	config, err := decode()
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling reloaded config: %w", err)
	}

	appConfig = config
	return config, nil
}
