package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func reset(t *testing.T) {
	t.Helper()
	viper.Reset()
	appConfig = nil
}

func TestLoad(t *testing.T) {
	t.Run("CreateDefaultConfig", func(t *testing.T) {
		reset(t)
		t.Setenv("NODE_ENV", "")
		t.Setenv("DATABASE_URL", "")
		dir := t.TempDir()

		config, err := Load(dir)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if config.Environment != EnvDevelopment {
			t.Errorf("Expected default environment development, got %q", config.Environment)
		}
		if config.Server.Address != ":8080" {
			t.Errorf("Expected default address :8080, got %q", config.Server.Address)
		}
		if config.Server.BodyLimit != 5<<20 {
			t.Errorf("Expected 5MiB body limit, got %d", config.Server.BodyLimit)
		}
		if config.Log.Level != "debug" {
			t.Errorf("Expected development log level debug, got %q", config.Log.Level)
		}
		if _, err := os.Stat(filepath.Join(dir, "config.json")); os.IsNotExist(err) {
			t.Error("Expected config.json to be created")
		}
	})

	t.Run("DefaultHeaderPolicy", func(t *testing.T) {
		reset(t)
		t.Setenv("NODE_ENV", "")
		t.Setenv("DATABASE_URL", "")
		dir := t.TempDir()

		config, err := Load(dir)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !reflect.DeepEqual(config.Server.Headers, DefaultHeaderRules()) {
			t.Errorf("unexpected default header rules %+v", config.Server.Headers)
		}

		// the written file carries the policy, so a second load from disk agrees
		raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.Contains(string(raw), "X-Frame-Options") || !strings.Contains(string(raw), "/api/(.*)") {
			t.Errorf("default config.json lacks header rules: %s", raw)
		}
		reset(t)
		reloaded, err := Load(dir)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if !reflect.DeepEqual(reloaded.Server.Headers, DefaultHeaderRules()) {
			t.Errorf("header rules did not survive the round trip: %+v", reloaded.Server.Headers)
		}
	})

	t.Run("EnvironmentVariables", func(t *testing.T) {
		reset(t)
		t.Setenv("NODE_ENV", "production")
		t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/app")

		config, err := Load(t.TempDir())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !config.IsProduction() {
			t.Errorf("Expected production, got %q", config.Environment)
		}
		if config.DatabaseURL != "postgres://app:secret@db:5432/app" {
			t.Errorf("Expected DATABASE_URL verbatim, got %q", config.DatabaseURL)
		}
		if config.Log.Format != "json" {
			t.Errorf("Expected json logs in production, got %q", config.Log.Format)
		}
	})

	t.Run("LoadExistingYAML", func(t *testing.T) {
		reset(t)
		t.Setenv("NODE_ENV", "")
		t.Setenv("DATABASE_URL", "")
		dir := t.TempDir()
		content := `
environment: production
database_url: "file:app.db"
database:
  max_open_conns: 3
  connect_timeout: 2s
server:
  address: ":9090"
  compress: false
  headers:
    - source: "/(.*)"
      headers:
        - key: X-Frame-Options
          value: DENY
`
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test config file: %v", err)
		}

		config, err := Load(dir)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if config.DatabaseURL != "file:app.db" {
			t.Errorf("unexpected database url %q", config.DatabaseURL)
		}
		if config.Database.MaxOpenConns != 3 || config.Database.ConnectTimeout != 2*time.Second {
			t.Errorf("unexpected pool config %+v", config.Database)
		}
		if config.Database.MaxIdleConns != 5 {
			t.Errorf("Expected default idle conns 5, got %d", config.Database.MaxIdleConns)
		}
		if config.Server.Address != ":9090" || config.Server.Compress {
			t.Errorf("unexpected server config %+v", config.Server)
		}
		if len(config.Server.Headers) != 1 || config.Server.Headers[0].Headers[0].Value != "DENY" {
			t.Errorf("unexpected header rules %+v", config.Server.Headers)
		}
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		reset(t)
		t.Setenv("NODE_ENV", "development")
		t.Setenv("DATABASE_URL", "")
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"environment":"production"}`), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		config, err := Load(dir)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if config.Environment != EnvDevelopment {
			t.Errorf("Expected NODE_ENV to win, got %q", config.Environment)
		}
	})

	t.Run("MalformedFile", func(t *testing.T) {
		reset(t)
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"debug": `), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(dir); err == nil {
			t.Error("Expected error for malformed config")
		}
	})
}

func TestGet(t *testing.T) {
	t.Run("GetWithoutLoad", func(t *testing.T) {
		appConfig = nil
		config := Get()
		if config.Debug || config.Environment != EnvDevelopment {
			t.Errorf("unexpected default config %+v", config)
		}
		if IsDebug() {
			t.Error("Expected debug to be false")
		}
	})

	t.Run("GetAfterLoad", func(t *testing.T) {
		appConfig = &Config{Debug: true}
		if !Get().Debug || !IsDebug() {
			t.Error("Expected debug to be true")
		}
	})
}

func TestReload(t *testing.T) {
	reset(t)
	t.Setenv("NODE_ENV", "")
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"debug": false}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"debug": true}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	config, err := Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !config.Debug || !IsDebug() {
		t.Error("Expected reloaded debug to be true")
	}
}
