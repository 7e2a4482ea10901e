package main

import (
	"context"
	"os"

	"telematics/config"
	"telematics/pkg/logger"
	"telematics/storage/factory"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	ctx := context.Background()
	stg, err := factory.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", logger.Error(err))
		os.Exit(1)
	}
	defer stg.Close()

	// Drivers, records and quotes are all cleared.
	if err := stg.Reset(ctx); err != nil {
		log.Error("failed to truncate tables", logger.Error(err))
		os.Exit(1)
	}
	log.Info("successfully truncated drivers, driver_records and premium_quotes tables")
}
