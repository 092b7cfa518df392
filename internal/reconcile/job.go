package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/metrics"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Discrepancy categories, ordered by severity. A ledger mismatch means the
// books themselves disagree with the settlement tables and is critical;
// statement mismatches can be timing noise from the provider side.
const (
	CategoryDonationStatement = "donation_statement"
	CategoryDonationLedger    = "donation_ledger"
	CategoryPayoutStatement   = "payout_statement"
	CategoryPayoutLedger      = "payout_ledger"
)

type Discrepancy struct {
	Category   string
	DeltaCents int64
	Critical   bool
}

// Totals are the six independent sums compared against each other for one
// reconciliation window. LedgerCashOutCents is the disbursed amount per the
// books, with transfer fees already stripped.
type Totals struct {
	DonationsCents            int64
	StatementCollectionsCents int64
	LedgerCashInCents         int64
	PayoutsCents              int64
	StatementPayoutsCents     int64
	LedgerCashOutCents        int64
}

type Report struct {
	From          time.Time
	To            time.Time
	Totals        Totals
	Discrepancies []Discrepancy
}

// Compare checks the window totals pairwise against the tolerance. Ledger
// mismatches are critical: those mean the books disagree with the settlement
// tables rather than with the provider's statement.
func Compare(t Totals, toleranceCents int64) []Discrepancy {
	var out []Discrepancy
	if d := t.DonationsCents - t.StatementCollectionsCents; abs(d) > toleranceCents {
		out = append(out, Discrepancy{Category: CategoryDonationStatement, DeltaCents: d})
	}
	if d := t.DonationsCents - t.LedgerCashInCents; abs(d) > toleranceCents {
		out = append(out, Discrepancy{Category: CategoryDonationLedger, DeltaCents: d, Critical: true})
	}
	if d := t.PayoutsCents - t.StatementPayoutsCents; abs(d) > toleranceCents {
		out = append(out, Discrepancy{Category: CategoryPayoutStatement, DeltaCents: d})
	}
	if d := t.PayoutsCents - t.LedgerCashOutCents; abs(d) > toleranceCents {
		out = append(out, Discrepancy{Category: CategoryPayoutLedger, DeltaCents: d, Critical: true})
	}
	return out
}

// Job computes the comparison sums for a time window and alerts on
// discrepancies. It never mutates financial state.
type Job struct {
	pool           *pgxpool.Pool
	toleranceCents int64
	logger         zerolog.Logger
}

func NewJob(pool *pgxpool.Pool, toleranceCents int64, logger zerolog.Logger) *Job {
	return &Job{
		pool:           pool,
		toleranceCents: toleranceCents,
		logger:         logger.With().Str("component", "reconcile").Logger(),
	}
}

func (j *Job) Run(ctx context.Context, from, to time.Time) (Report, error) {
	sql := infra.NewSQLRunner(j.pool, j.logger)

	totals, err := j.gather(ctx, sql, from, to)
	if err != nil {
		return Report{}, err
	}

	report := Report{From: from, To: to, Totals: totals, Discrepancies: Compare(totals, j.toleranceCents)}
	for _, d := range report.Discrepancies {
		metrics.ReconcileDiscrepancies.WithLabelValues(d.Category).Inc()
		evt := j.logger.Warn()
		if d.Critical {
			evt = j.logger.Error()
		}
		evt.Str("category", d.Category).
			Int64("delta_cents", d.DeltaCents).
			Time("from", from).
			Time("to", to).
			Msg("reconciliation discrepancy")
	}
	if len(report.Discrepancies) == 0 {
		j.logger.Info().
			Time("from", from).
			Time("to", to).
			Int64("donations_cents", totals.DonationsCents).
			Int64("payouts_cents", totals.PayoutsCents).
			Msg("reconciliation clean")
	}
	return report, nil
}

func (j *Job) gather(ctx context.Context, sql infra.SQLExecutor, from, to time.Time) (Totals, error) {
	var t Totals
	sums := []struct {
		name  string
		query string
		args  []any
		dst   *int64
	}{
		{"donations", sqlinline.QSumSucceededDonations, []any{from, to}, &t.DonationsCents},
		{"statement_collections", sqlinline.QSumStatementCollections, []any{from, to}, &t.StatementCollectionsCents},
		{"ledger_cash_in", sqlinline.QSumLedgerCashDelta, []any{domain.EventDonationSuccess, from, to}, &t.LedgerCashInCents},
		{"payouts", sqlinline.QSumSucceededPayouts, []any{from, to}, &t.PayoutsCents},
		{"statement_payouts", sqlinline.QSumStatementPayouts, []any{from, to}, &t.StatementPayoutsCents},
		{"ledger_cash_out", sqlinline.QSumLedgerPayoutAmounts, []any{domain.EventPayoutDisbursed, from, to}, &t.LedgerCashOutCents},
	}
	for _, s := range sums {
		if err := sql.QueryRow(ctx, s.query, s.args...).Scan(s.dst); err != nil {
			return Totals{}, fmt.Errorf("sum %s: %w", s.name, err)
		}
	}
	return t, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
