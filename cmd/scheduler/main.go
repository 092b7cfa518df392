package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/directory"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/payout"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/queue"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "scheduler")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	runner := infra.NewSQLRunner(dbpool, logger)
	auditLog := audit.NewLog(runner, logger)
	dir := directory.NewUserDirectory(runner)
	q := queue.New(rdb, logger, cfg.QueueMaxAttempts, cfg.QueueRetryBase)

	payoutScheduler := payout.NewScheduler(dbpool, runner, dir, q, auditLog, payout.SchedulerConfig{
		MaxBatchesPerRun: cfg.PayoutMaxBatchesPerRun,
		HoldWindow:       cfg.PayoutHoldWindow,
		MinPayoutCents:   cfg.PayoutMinCents,
		OrphanSweepAfter: cfg.PayoutOrphanSweepAfter,
	}, logger)

	reconcileJob := reconcile.NewJob(dbpool, cfg.ReconcileToleranceCents, logger)

	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create scheduler")
	}

	register := func(name string, interval time.Duration, task func(context.Context) error) {
		_, jerr := s.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				if err := task(ctx); err != nil {
					logger.Error().Err(err).Str("job", name).Msg("job run failed")
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if jerr != nil {
			logger.Fatal().Err(jerr).Str("job", name).Msg("failed to register job")
		}
	}

	register("payout_schedule", cfg.PayoutScheduleInterval, payoutScheduler.Run)
	register("payout_orphan_sweep", cfg.PayoutOrphanSweepAfter, payoutScheduler.SweepOrphans)
	register("reconcile", cfg.ReconcileWindow, func(ctx context.Context) error {
		to := time.Now().UTC()
		_, err := reconcileJob.Run(ctx, to.Add(-cfg.ReconcileWindow), to)
		return err
	})

	s.Start()
	logger.Info().
		Dur("payout_interval", cfg.PayoutScheduleInterval).
		Dur("reconcile_window", cfg.ReconcileWindow).
		Msg("scheduler started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := s.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown scheduler")
	}
	logger.Info().Msg("scheduler stopped")
}
