package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketForecast/internal/app"
	"MarketForecast/internal/config"
	"MarketForecast/internal/logger"
	"MarketForecast/internal/notifier"
	"MarketForecast/internal/scheduler"
	"MarketForecast/internal/server"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init("forecastd", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Msg("forecastd starting")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The daemon is the aggregation service, so it never calls itself.
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("wire pipeline")
	}
	defer a.Close()

	srv := server.New(server.NewHandler(a.Service, a.Ledger), server.Config{
		Addr:   cfg.Server.Addr,
		APIKey: cfg.Service.APIKey,
	}, a.Registry)
	srv.Start()

	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, a.Service, a.Ledger, sender, cfg.Schedule.Symbols)
	if len(cfg.Schedule.Symbols) > 0 {
		if err := sched.RegisterAll(cfg.Schedule.Cron); err != nil {
			log.Fatal().Err(err).Msg("register cron tasks")
		}
		sched.Start()
		defer sched.Stop()
	}

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" && len(cfg.Schedule.Symbols) > 0 {
		log.Info().Msg("RUN_ON_START enabled, forecasting watchlist now")
		go sched.RunNow()
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("forecastd is running, press Ctrl+C to stop")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	if err := srv.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("forecastd stopped")
}
