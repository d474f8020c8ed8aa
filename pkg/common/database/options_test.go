package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsForDevelopment(t *testing.T) {
	opts := OptionsFor(Config{Environment: "development", URL: "postgres://u:p@db/app"})

	assert.Equal(t, []LogLevel{LogQuery, LogError, LogWarn}, opts.Log)
	assert.Equal(t, ErrorFormatDefault, opts.ErrorFormat)
	assert.Equal(t, "postgres://u:p@db/app", opts.URL)
	assert.True(t, opts.Logs(LogQuery))
	assert.False(t, opts.Logs(LogInfo))
}

func TestOptionsForProduction(t *testing.T) {
	pool := PoolConfig{MaxOpenConns: 20, ConnectTimeout: time.Second}
	opts := OptionsFor(Config{Environment: "production", URL: "mysql://db/app", Pool: pool})

	assert.Equal(t, []LogLevel{LogError}, opts.Log)
	assert.Equal(t, ErrorFormatMinimal, opts.ErrorFormat)
	assert.Equal(t, pool, opts.Pool)
	assert.False(t, opts.Logs(LogQuery))
}

func TestOptionsForOtherEnvironments(t *testing.T) {
	for _, env := range []string{"test", "staging", ""} {
		opts := OptionsFor(Config{Environment: env})
		assert.Equal(t, []LogLevel{LogError}, opts.Log, env)
		assert.Equal(t, ErrorFormatDefault, opts.ErrorFormat, env)
	}
}
