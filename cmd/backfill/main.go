package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/reconcile"
)

func main() {
	mode := flag.String("mode", reconcile.ModeShadow, "shadow | audit | apply")
	limit := flag.Int("limit", 500, "max donations to process in one run")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "backfill")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	auditLog := audit.NewLog(runner, logger)
	ledgerSvc := ledger.NewService(logger)

	backfill := reconcile.NewBackfill(dbpool, ledgerSvc, auditLog, cfg.CommissionRate, cfg.VATRate, logger)
	result, err := backfill.Run(ctx, *mode, *limit)
	if err != nil {
		logger.Fatal().Err(err).Msg("backfill failed")
	}
	logger.Info().
		Str("mode", *mode).
		Int("scanned", result.Scanned).
		Int("mismatched", result.Mismatched).
		Int("posted", result.Posted).
		Msg("backfill finished")
}
