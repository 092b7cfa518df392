package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/dispatch"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/mpesa"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/payout"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/queue"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	provider, err := mpesa.NewClient(mpesa.Options{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Shortcode:      cfg.MpesaShortcode,
		InitiatorName:  cfg.MpesaInitiator,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build mpesa client")
	}

	runner := infra.NewSQLRunner(dbpool, logger)
	auditLog := audit.NewLog(runner, logger)
	ledgerSvc := ledger.NewService(logger)

	settlementEngine := settlement.NewEngine(dbpool, ledgerSvc, auditLog, cfg.CommissionRate, cfg.VATRate, logger)
	disburser := payout.NewDisburser(dbpool, ledgerSvc, provider, auditLog, cfg.PayoutFeeCents, logger)
	dispatcher := dispatch.New(runner, settlementEngine, disburser, logger)

	q := queue.New(rdb, logger, cfg.QueueMaxAttempts, cfg.QueueRetryBase)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	logger.Info().Msg("callback worker started")
	if err := q.Consume(ctx, dispatcher.Handle); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("queue consumer failed")
	}
	logger.Info().Msg("worker stopped")
}
