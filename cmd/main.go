package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telematics/config"
	"telematics/pkg/api"
	"telematics/pkg/bot"
	"telematics/pkg/logger"
	"telematics/pkg/telemetry"
	"telematics/service"
	"telematics/storage/factory"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	shutdownTracing := telemetry.Setup(cfg.ServiceName, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stg, err := factory.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", logger.Error(err))
		os.Exit(1)
	}
	defer stg.Close()

	services := service.New(stg, cfg, log)
	seedRecords(ctx, services, cfg, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           api.New(services, api.OptionsFromConfig(cfg), log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("🚀 driver portal listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", logger.Error(err))
			stop()
		}
	}()

	var tgBot *bot.Bot
	if cfg.TelegramBotToken != "" {
		tgBot, err = bot.New(&cfg, services, log)
		if err != nil {
			log.Error("failed to initialize telegram bot", logger.Error(err))
		} else {
			go tgBot.Start()
		}
	}

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if tgBot != nil {
		tgBot.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", logger.Error(err))
	}
}

// seedRecords loads the telematics CSV when the record table is empty.
func seedRecords(ctx context.Context, services service.IServiceManager, cfg config.Config, log logger.ILogger) {
	n, err := services.Record().Count(ctx)
	if err != nil {
		log.Error("failed to count driver records", logger.Error(err))
		return
	}
	if n > 0 {
		log.Info("driver records present", logger.Int("records", n))
		return
	}
	if _, err := os.Stat(cfg.RecordsCSV); err != nil {
		log.Warning("no driver records loaded, run the pipeline first", logger.String("path", cfg.RecordsCSV))
		return
	}
	if _, err := services.Record().LoadCSV(ctx, cfg.RecordsCSV); err != nil {
		log.Error("failed to import driver records", logger.Error(err))
	}
}
