package main

import (
	"context"
	"flag"
	"os"

	"dbkeeper/pkg/app"
	"dbkeeper/pkg/common"
)

func main() {
	configPath := flag.String("config", os.Getenv("APP_CONFIG"), "directory holding config.json or config.yaml")
	flag.Parse()

	if err := app.Run(context.Background(), *configPath); err != nil {
		common.GetLogger().Fatal().Err(err).Msg("dbkeeper failed")
	}
}
