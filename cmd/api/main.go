package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/dispatch"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/mpesa"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/payout"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/queue"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/settlement"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		// The gateway settles inline when the queue is down, so a missing
		// redis is degraded service, not a startup failure.
		logger.Error().Err(err).Msg("redis unavailable, callbacks will settle inline")
	}

	publicKey, err := webhook.LoadPublicKey(cfg.WebhookPublicKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load webhook verification key")
	}
	if publicKey == nil {
		logger.Warn().Msg("no webhook verification key configured, all callbacks will be rejected")
	}

	runner := infra.NewSQLRunner(dbpool, logger)
	auditLog := audit.NewLog(runner, logger)
	ledgerSvc := ledger.NewService(logger)

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

	settlementEngine := settlement.NewEngine(dbpool, ledgerSvc, auditLog, cfg.CommissionRate, cfg.VATRate, logger)
	disburser := payout.NewDisburser(dbpool, ledgerSvc, provider, auditLog, cfg.PayoutFeeCents, logger)

	q := queue.New(rdb, logger, cfg.QueueMaxAttempts, cfg.QueueRetryBase)
	dispatcher := dispatch.New(runner, settlementEngine, disburser, logger)

	verifier := webhook.NewVerifier(publicKey, time.Duration(cfg.WebhookTimestampSkewSec)*time.Second)
	gateway := webhook.NewGateway(runner, verifier, q, dispatcher, auditLog, logger)

	server := infra.NewHTTPServer(cfg, webhook.NewRouter(gateway))

	go func() {
		logger.Info().Msgf("webhook gateway listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
