package main

import (
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/app/server"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)

	server.Run(cfg)
}
