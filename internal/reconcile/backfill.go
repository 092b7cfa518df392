package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Backfill modes. Shadow only reports, audit additionally verifies the
// stored split against a recomputation, apply posts the missing journal
// entries.
const (
	ModeShadow = "shadow"
	ModeAudit  = "audit"
	ModeApply  = "apply"
)

type BackfillResult struct {
	Scanned    int
	Mismatched int
	Posted     int
}

// Backfill repairs donations that succeeded without a linked journal entry,
// typically after an incident window where ledger writes were skipped.
type Backfill struct {
	pool           *pgxpool.Pool
	ledger         *ledger.Service
	auditLog       *audit.Log
	commissionRate float64
	vatRate        float64
	logger         zerolog.Logger
}

func NewBackfill(pool *pgxpool.Pool, ledgerSvc *ledger.Service, auditLog *audit.Log, commissionRate, vatRate float64, logger zerolog.Logger) *Backfill {
	return &Backfill{
		pool:           pool,
		ledger:         ledgerSvc,
		auditLog:       auditLog,
		commissionRate: commissionRate,
		vatRate:        vatRate,
		logger:         logger.With().Str("component", "backfill").Logger(),
	}
}

type orphanDonation struct {
	ID                 string
	AmountCents        int64
	CreatorShareCents  int64
	PlatformShareCents int64
	PlatformVATCents   int64
	CreatorUserID      string
	Currency           string
	DonatedAt          time.Time
}

func (b *Backfill) Run(ctx context.Context, mode string, limit int) (BackfillResult, error) {
	switch mode {
	case ModeShadow, ModeAudit, ModeApply:
	default:
		return BackfillResult{}, fmt.Errorf("unknown backfill mode %q", mode)
	}
	if limit <= 0 {
		limit = 500
	}

	sql := infra.NewSQLRunner(b.pool, b.logger)
	orphans, err := b.listOrphans(ctx, sql, limit)
	if err != nil {
		return BackfillResult{}, err
	}

	res := BackfillResult{Scanned: len(orphans)}
	for _, d := range orphans {
		mismatch := false
		if mode == ModeAudit || mode == ModeApply {
			split, serr := ledger.ComputeSplit(d.AmountCents, b.commissionRate, b.vatRate)
			if serr != nil {
				return res, fmt.Errorf("recompute split for donation %s: %w", d.ID, serr)
			}
			if split.CreatorShareCents != d.CreatorShareCents ||
				split.CommissionNetCents != d.PlatformShareCents ||
				split.VATCents != d.PlatformVATCents {
				mismatch = true
				res.Mismatched++
				b.logger.Error().
					Str("donation_id", d.ID).
					Int64("stored_creator_cents", d.CreatorShareCents).
					Int64("computed_creator_cents", split.CreatorShareCents).
					Msg("stored split disagrees with recomputation")
			}
		}

		if mode != ModeApply {
			b.logger.Info().
				Str("donation_id", d.ID).
				Int64("amount_cents", d.AmountCents).
				Bool("split_mismatch", mismatch).
				Msg("donation missing journal entry")
			continue
		}
		if mismatch {
			// Never post from disputed numbers; these need a human.
			continue
		}
		if err := b.post(ctx, d); err != nil {
			return res, err
		}
		res.Posted++
	}

	b.logger.Info().
		Str("mode", mode).
		Int("scanned", res.Scanned).
		Int("mismatched", res.Mismatched).
		Int("posted", res.Posted).
		Msg("backfill run complete")
	return res, nil
}

func (b *Backfill) post(ctx context.Context, d orphanDonation) error {
	return infra.WithTx(ctx, b.pool, b.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
		result, err := b.ledger.RecordDonationSuccess(ctx, sql, ledger.DonationPostingParams{
			DonationID:         d.ID,
			AmountCents:        d.AmountCents,
			CreatorShareCents:  d.CreatorShareCents,
			CommissionNetCents: d.PlatformShareCents,
			VATCents:           d.PlatformVATCents,
			CreatorUserID:      d.CreatorUserID,
			Currency:           d.Currency,
			PostedAt:           d.DonatedAt,
		})
		if err != nil {
			return fmt.Errorf("post donation %s: %w", d.ID, err)
		}
		if _, err := sql.Exec(ctx, sqlinline.QLinkDonationJournal, d.ID, result.JournalEntryID); err != nil {
			return fmt.Errorf("link donation %s: %w", d.ID, err)
		}
		b.auditLog.Record(ctx, sql, audit.Entry{
			Actor:    "backfill",
			Action:   "ledger.backfilled",
			Resource: d.ID,
			Outcome:  "posted",
			Metadata: map[string]any{"journal_entry_id": result.JournalEntryID, "created": result.Created},
		})
		return nil
	})
}

func (b *Backfill) listOrphans(ctx context.Context, sql infra.SQLExecutor, limit int) ([]orphanDonation, error) {
	rows, err := sql.Query(ctx, sqlinline.QSelectDonationsMissingJournal, limit)
	if err != nil {
		return nil, fmt.Errorf("list donations missing journal: %w", err)
	}
	defer rows.Close()

	var out []orphanDonation
	for rows.Next() {
		var d orphanDonation
		if err := rows.Scan(&d.ID, &d.AmountCents, &d.CreatorShareCents, &d.PlatformShareCents,
			&d.PlatformVATCents, &d.CreatorUserID, &d.Currency, &d.DonatedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
