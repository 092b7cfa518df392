package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/directory"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Enqueuer is the slice of the callback queue the payout side needs.
type Enqueuer interface {
	PublishPayoutDispatch(ctx context.Context, itemID string) error
}

// SchedulerConfig bounds one scheduling run.
type SchedulerConfig struct {
	MaxBatchesPerRun int
	HoldWindow       time.Duration
	MinPayoutCents   int64
	OrphanSweepAfter time.Duration
}

// Scheduler batches eligible creator balances into payout items. Donations
// are held back for HoldWindow after receipt as a dispute buffer, and a
// creator is only scheduled once their available balance clears
// MinPayoutCents.
type Scheduler struct {
	pool      *pgxpool.Pool
	runner    *infra.SQLRunner
	directory *directory.UserDirectory
	queue     Enqueuer
	auditLog  *audit.Log
	logger    zerolog.Logger
	cfg       SchedulerConfig
	now       func() time.Time
}

func NewScheduler(pool *pgxpool.Pool, runner *infra.SQLRunner, dir *directory.UserDirectory, q Enqueuer, auditLog *audit.Log, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if cfg.MaxBatchesPerRun <= 0 {
		cfg.MaxBatchesPerRun = 5
	}
	return &Scheduler{
		pool:      pool,
		runner:    runner,
		directory: dir,
		queue:     q,
		auditLog:  auditLog,
		logger:    logger.With().Str("component", "payout_scheduler").Logger(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run schedules at most MaxBatchesPerRun batches, earliest-eligible creator
// first. Scheduling and enqueue are deliberately two steps: a crash between
// them leaves a pending item that SweepOrphans later re-enqueues.
func (s *Scheduler) Run(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.HoldWindow)

	rows, err := s.runner.Query(ctx, sqlinline.QSelectEligibleCreators, cutoff, s.cfg.MaxBatchesPerRun*4)
	if err != nil {
		return fmt.Errorf("select eligible creators: %w", err)
	}
	type candidate struct {
		creatorID string
		earliest  time.Time
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.creatorID, &c.earliest); err != nil {
			rows.Close()
			return fmt.Errorf("scan eligible creator: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	scheduled := 0
	for _, c := range candidates {
		if scheduled >= s.cfg.MaxBatchesPerRun {
			break
		}

		profile, err := s.directory.CreatorProfile(ctx, c.creatorID)
		if err != nil {
			s.logger.Warn().Err(err).Str("creator_id", c.creatorID).Msg("skipping creator: profile lookup failed")
			continue
		}
		if !profile.HasUsablePhone() {
			s.logger.Warn().Str("creator_id", c.creatorID).Msg("skipping creator: no usable payout phone")
			continue
		}

		itemID, total, err := s.scheduleCreator(ctx, c.creatorID, profile.Phone, profile.Currency, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("creator_id", c.creatorID).Msg("scheduling attempt failed")
			continue
		}
		if itemID == "" {
			continue
		}

		scheduled++
		s.auditLog.Record(ctx, nil, audit.Entry{
			Actor:    "payout_scheduler",
			Action:   "payout.schedule",
			Resource: "payout_item:" + itemID,
			Outcome:  "scheduled",
			Metadata: map[string]any{"creator_id": c.creatorID, "total_cents": total},
		})

		if err := s.queue.PublishPayoutDispatch(ctx, itemID); err != nil {
			// The item stays pending; the orphan sweep re-enqueues it.
			s.logger.Error().Err(err).Str("payout_item_id", itemID).Msg("dispatch enqueue failed, leaving for sweep")
		}
	}

	s.logger.Info().Int("scheduled", scheduled).Int("candidates", len(candidates)).Msg("scheduler run complete")
	return nil
}

// scheduleCreator performs the atomic part of scheduling for one creator:
// conditional wallet hold, batch and item creation, donation back-references.
// An empty itemID with nil error means the creator was skipped.
func (s *Scheduler) scheduleCreator(ctx context.Context, creatorID, phone, currency string, cutoff time.Time) (string, int64, error) {
	var itemID string
	var total int64

	err := infra.WithTx(ctx, s.pool, s.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
		rows, err := sql.Query(ctx, sqlinline.QSelectEligibleDonationsForUpdate, creatorID, cutoff)
		if err != nil {
			return fmt.Errorf("lock eligible donations: %w", err)
		}
		var donationIDs []string
		var sum int64
		for rows.Next() {
			var id string
			var share int64
			if err := rows.Scan(&id, &share); err != nil {
				rows.Close()
				return fmt.Errorf("scan eligible donation: %w", err)
			}
			donationIDs = append(donationIDs, id)
			sum += share
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(donationIDs) == 0 {
			return nil
		}

		var available, pending int64
		var walletCurrency string
		var updatedAt time.Time
		var walletCreator string
		if err := sql.QueryRow(ctx, sqlinline.QSelectWallet, creatorID).
			Scan(&walletCreator, &available, &pending, &walletCurrency, &updatedAt); err != nil {
			if infra.IsNoRows(err) {
				s.logger.Warn().Str("creator_id", creatorID).Msg("skipping creator: no wallet")
				return nil
			}
			return fmt.Errorf("read wallet: %w", err)
		}
		if available < s.cfg.MinPayoutCents {
			s.logger.Warn().
				Str("creator_id", creatorID).
				Int64("available_cents", available).
				Int64("min_cents", s.cfg.MinPayoutCents).
				Msg("skipping creator: below payout threshold")
			return nil
		}

		// Conditional hold: zero rows means another process moved the
		// balance since we looked; abort this attempt, not the run.
		tag, err := sql.Exec(ctx, sqlinline.QHoldWalletForPayout, creatorID, sum)
		if err != nil {
			return fmt.Errorf("hold wallet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			s.logger.Warn().Str("creator_id", creatorID).Int64("total_cents", sum).Msg("wallet hold lost race, aborting attempt")
			return nil
		}

		var batchID string
		if err := sql.QueryRow(ctx, sqlinline.QInsertPayoutBatch, creatorID, sum, currency).Scan(&batchID); err != nil {
			return fmt.Errorf("insert payout batch: %w", err)
		}
		originator := uuid.NewString()
		if err := sql.QueryRow(ctx, sqlinline.QInsertPayoutItem, batchID, creatorID, phone, sum, currency, originator).Scan(&itemID); err != nil {
			return fmt.Errorf("insert payout item: %w", err)
		}
		if _, err := sql.Exec(ctx, sqlinline.QMarkDonationsScheduled, donationIDs, batchID, itemID); err != nil {
			return fmt.Errorf("mark donations scheduled: %w", err)
		}

		total = sum
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return itemID, total, nil
}

// SweepOrphans re-enqueues dispatch jobs for items stranded between
// scheduling and enqueue (still pending past the sweep age) and for
// call-failed items whose donations still reference them.
func (s *Scheduler) SweepOrphans(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.OrphanSweepAfter)

	ids, err := s.collectIDs(ctx, sqlinline.QSelectOrphanPendingItems, cutoff)
	if err != nil {
		return err
	}
	retryable, err := s.collectIDs(ctx, sqlinline.QSelectRetryableFailedItems)
	if err != nil {
		return err
	}
	ids = append(ids, retryable...)

	for _, id := range ids {
		if err := s.queue.PublishPayoutDispatch(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("payout_item_id", id).Msg("sweep enqueue failed")
			continue
		}
		s.logger.Info().Str("payout_item_id", id).Msg("re-enqueued stranded payout item")
	}
	return nil
}

func (s *Scheduler) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.runner.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
