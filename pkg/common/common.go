package common

import (
	"fmt"

	"dbkeeper/pkg/common/config"
	"dbkeeper/pkg/common/logger"

	"github.com/rs/zerolog"
)

// Init loads configuration and initializes the logger it describes
func Init(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// GetLogger returns the process logger; before Init it is zerolog's default.
func GetLogger() *zerolog.Logger {
	return logger.GetLogger()
}

// IsDebug returns whether debug mode is enabled
func IsDebug() bool {
	return config.IsDebug()
}
