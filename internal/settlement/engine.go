package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/metrics"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/mpesa"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Outcome classifies how a donation callback was consumed.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMissing   Outcome = "missing"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeConflict  Outcome = "conflict"
)

// Engine settles donation callbacks: Pending -> Processing -> Succeeded or
// Failed, idempotent under replay. Each callback runs in exactly one
// transaction covering the donation update, the ledger posting and the audit
// row.
type Engine struct {
	pool           *pgxpool.Pool
	ledger         *ledger.Service
	auditLog       *audit.Log
	logger         zerolog.Logger
	commissionRate float64
	vatRate        float64
	now            func() time.Time
}

func NewEngine(pool *pgxpool.Pool, ledgerSvc *ledger.Service, auditLog *audit.Log, commissionRate, vatRate float64, logger zerolog.Logger) *Engine {
	return &Engine{
		pool:           pool,
		ledger:         ledgerSvc,
		auditLog:       auditLog,
		logger:         logger.With().Str("component", "settlement").Logger(),
		commissionRate: commissionRate,
		vatRate:        vatRate,
		now:            time.Now,
	}
}

// donationRow is the slice of the donation the engine works against.
type donationRow struct {
	ID                 string
	SubmissionID       string
	ChallengeID        string
	CreatorUserID      string
	DonorUserID        *string
	AmountCents        int64
	Currency           string
	Status             domain.DonationStatus
	PayoutState        domain.PayoutState
	CreatorShareCents  int64
	PlatformShareCents int64
	PlatformVATCents   int64
	ProviderReceipt    *string
	ResultCode         *int
	JournalEntryID     *string
	Version            int
}

// HandleCallback consumes one donation callback. The returned error is
// non-nil only for infrastructure failures; malformed, orphan and replayed
// callbacks resolve cleanly with the corresponding outcome.
func (e *Engine) HandleCallback(ctx context.Context, cb mpesa.STKCallback) (Outcome, error) {
	if cb.CheckoutRequestID == "" {
		e.auditLog.Record(ctx, nil, audit.Entry{
			Actor:    "settlement",
			Action:   "donation.callback",
			Resource: "donation",
			Outcome:  string(OutcomeIgnored),
			Metadata: map[string]any{"reason": "no checkout id", "merchant_request_id": audit.MaskIdentifier(cb.MerchantRequestID)},
		})
		metrics.DonationsSettled.WithLabelValues(string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}

	var fields mpesa.STKFields
	if cb.ResultCode == 0 {
		var err error
		fields, err = cb.Fields()
		if err != nil {
			// Unparseable payloads are audited and dropped; retrying them
			// can never succeed.
			e.logger.Warn().Err(err).Str("checkout_id", audit.MaskIdentifier(cb.CheckoutRequestID)).Msg("malformed callback metadata")
			e.auditLog.Record(ctx, nil, audit.Entry{
				Actor:    "settlement",
				Action:   "donation.callback",
				Resource: "donation",
				Outcome:  string(OutcomeIgnored),
				Metadata: map[string]any{"reason": err.Error(), "checkout_id": audit.MaskIdentifier(cb.CheckoutRequestID)},
			})
			metrics.DonationsSettled.WithLabelValues(string(OutcomeIgnored)).Inc()
			return OutcomeIgnored, nil
		}
	}

	outcome := OutcomeProcessed
	err := infra.WithTx(ctx, e.pool, e.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
		d, err := e.loadDonation(ctx, sql, cb.CheckoutRequestID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				outcome = OutcomeMissing
				e.logger.Error().Str("checkout_id", audit.MaskIdentifier(cb.CheckoutRequestID)).Msg("orphan donation callback")
				e.auditLog.Record(ctx, sql, audit.Entry{
					Actor:    "settlement",
					Action:   "donation.callback",
					Resource: "donation",
					Outcome:  string(OutcomeMissing),
					Metadata: map[string]any{"checkout_id": audit.MaskIdentifier(cb.CheckoutRequestID)},
				})
				return nil
			}
			return err
		}

		target := domain.DonationFailed
		if cb.ResultCode == 0 {
			target = domain.DonationSucceeded
		}

		if e.isReplay(d, cb, fields, target) {
			outcome = OutcomeDuplicate
			e.auditLog.Record(ctx, sql, audit.Entry{
				Actor:    "settlement",
				Action:   "donation.callback",
				Resource: "donation:" + d.ID,
				Outcome:  string(OutcomeDuplicate),
				Metadata: map[string]any{"checkout_id": audit.MaskIdentifier(cb.CheckoutRequestID)},
			})
			return nil
		}

		if demotesSettled(d, target) {
			// The journal entry and wallet credit already exist; a late
			// failure delivery must not unwind them here.
			outcome = OutcomeConflict
			e.logger.Error().
				Str("donation_id", d.ID).
				Int("result_code", cb.ResultCode).
				Msg("failure callback for settled donation")
			e.auditLog.Record(ctx, sql, audit.Entry{
				Actor:    "settlement",
				Action:   "donation.callback",
				Resource: "donation:" + d.ID,
				Outcome:  string(OutcomeConflict),
				Metadata: map[string]any{"checkout_id": audit.MaskIdentifier(cb.CheckoutRequestID), "result_code": cb.ResultCode},
			})
			return nil
		}

		amount := d.AmountCents
		shares := shareSet{creator: d.CreatorShareCents, platform: d.PlatformShareCents, vat: d.PlatformVATCents}
		journalID := d.JournalEntryID

		if target == domain.DonationSucceeded {
			amount = fields.AmountCents
			split, err := ledger.ComputeSplit(amount, e.commissionRate, e.vatRate)
			if err != nil {
				return err
			}
			shares = successShares(split)

			if d.JournalEntryID == nil {
				postedAt := fields.TransactionTime
				if postedAt.IsZero() {
					postedAt = e.now()
				}
				res, err := e.ledger.RecordDonationSuccess(ctx, sql, ledger.DonationPostingParams{
					DonationID:         d.ID,
					AmountCents:        amount,
					CreatorShareCents:  split.CreatorShareCents,
					CommissionNetCents: split.CommissionNetCents,
					VATCents:           split.VATCents,
					CreatorUserID:      d.CreatorUserID,
					Currency:           d.Currency,
					PostedAt:           postedAt,
				})
				if err != nil {
					return err
				}
				journalID = &res.JournalEntryID
			}
		}

		history, err := json.Marshal([]domain.StatusTransition{{
			From:       d.Status,
			To:         target,
			At:         e.now().UTC(),
			ResultCode: cb.ResultCode,
		}})
		if err != nil {
			return fmt.Errorf("marshal status history: %w", err)
		}

		var receipt, phone *string
		if target == domain.DonationSucceeded {
			receipt = &fields.Receipt
			phone = &fields.Phone
		}
		if _, err := sql.Exec(ctx, sqlinline.QUpdateDonationSettlement,
			d.ID, string(target), amount, shares.creator, shares.platform, shares.vat,
			receipt, phone, cb.ResultCode, journalID, history); err != nil {
			return fmt.Errorf("update donation %s: %w", d.ID, err)
		}

		meta := map[string]any{
			"checkout_id": audit.MaskIdentifier(cb.CheckoutRequestID),
			"status":      string(target),
			"result_code": cb.ResultCode,
		}
		if receipt != nil {
			meta["receipt"] = audit.MaskIdentifier(*receipt)
		}
		if phone != nil {
			meta["phone"] = audit.MaskIdentifier(*phone)
		}
		e.auditLog.Record(ctx, sql, audit.Entry{
			Actor:    "settlement",
			Action:   "donation.callback",
			Resource: "donation:" + d.ID,
			Outcome:  string(OutcomeProcessed),
			Metadata: meta,
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	metrics.DonationsSettled.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

type shareSet struct {
	creator  int64
	platform int64
	vat      int64
}

// successShares maps a computed split onto the stored donation columns. The
// platform share is the net commission so the three stored parts sum back to
// the donation amount.
func successShares(split ledger.Split) shareSet {
	return shareSet{creator: split.CreatorShareCents, platform: split.CommissionNetCents, vat: split.VATCents}
}

// demotesSettled reports whether applying target would take an already
// settled donation back out of Succeeded.
func demotesSettled(d donationRow, target domain.DonationStatus) bool {
	return d.Status == domain.DonationSucceeded && target == domain.DonationFailed
}

func (e *Engine) loadDonation(ctx context.Context, sql infra.SQLExecutor, checkoutID string) (donationRow, error) {
	var d donationRow
	row := sql.QueryRow(ctx, sqlinline.QSelectDonationByCheckoutID, checkoutID)
	err := row.Scan(&d.ID, &d.SubmissionID, &d.ChallengeID, &d.CreatorUserID, &d.DonorUserID,
		&d.AmountCents, &d.Currency, &d.Status, &d.PayoutState,
		&d.CreatorShareCents, &d.PlatformShareCents, &d.PlatformVATCents,
		&d.ProviderReceipt, &d.ResultCode, &d.JournalEntryID, &d.Version)
	if err != nil {
		if infra.IsNoRows(err) {
			return donationRow{}, domain.ErrNotFound
		}
		return donationRow{}, fmt.Errorf("load donation by checkout id: %w", err)
	}
	return d, nil
}

// isReplay reports whether the callback carries nothing the donation does not
// already record: same amount, receipt, status and result code.
func (e *Engine) isReplay(d donationRow, cb mpesa.STKCallback, fields mpesa.STKFields, target domain.DonationStatus) bool {
	if d.Status != target {
		return false
	}
	if d.ResultCode == nil || *d.ResultCode != cb.ResultCode {
		return false
	}
	if target != domain.DonationSucceeded {
		return true
	}
	if d.AmountCents != fields.AmountCents {
		return false
	}
	return d.ProviderReceipt != nil && *d.ProviderReceipt == fields.Receipt
}
