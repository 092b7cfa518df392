package payout

import (
	"context"
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

// TransferInitiator is the narrow outbound provider contract the disburser
// consumes.
type TransferInitiator interface {
	InitiateTransfer(ctx context.Context, req mpesa.TransferRequest) (mpesa.TransferResponse, error)
}

// Disburser drives payout items through Pending -> Disbursing -> Succeeded or
// Failed. The external transfer call always happens outside any open
// transaction.
type Disburser struct {
	pool     *pgxpool.Pool
	ledger   *ledger.Service
	provider TransferInitiator
	auditLog *audit.Log
	logger   zerolog.Logger
	feeCents int64
	now      func() time.Time
}

func NewDisburser(pool *pgxpool.Pool, ledgerSvc *ledger.Service, provider TransferInitiator, auditLog *audit.Log, feeCents int64, logger zerolog.Logger) *Disburser {
	return &Disburser{
		pool:     pool,
		ledger:   ledgerSvc,
		provider: provider,
		auditLog: auditLog,
		logger:   logger.With().Str("component", "disburser").Logger(),
		feeCents: feeCents,
		now:      time.Now,
	}
}

type itemRow struct {
	ID                       string
	BatchID                  string
	CreatorUserID            string
	Phone                    string
	AmountCents              int64
	Currency                 string
	Status                   domain.PayoutItemStatus
	AttemptCount             int
	OriginatorConversationID *string
	ProviderConversationID   *string
}

// Dispatch initiates the transfer for one payout item. A failed provider
// call marks the item failed but keeps donation linkage so the sweep can
// retry; the returned error also lets the queue apply its own backoff.
func (d *Disburser) Dispatch(ctx context.Context, itemID string) error {
	var item itemRow
	claimed := false
	err := infra.WithTx(ctx, d.pool, d.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
		var err error
		item, err = d.loadItem(ctx, sql, sqlinline.QSelectPayoutItemForUpdate, itemID)
		if err != nil {
			if infra.IsNoRows(err) {
				d.logger.Error().Str("payout_item_id", itemID).Msg("dispatch job references unknown payout item")
				return nil
			}
			return err
		}
		if item.Status != domain.ItemPending && item.Status != domain.ItemFailed {
			// Already disbursing or settled; duplicate dispatch job.
			return nil
		}
		tag, err := sql.Exec(ctx, sqlinline.QMarkPayoutItemDisbursing, item.ID)
		if err != nil {
			return fmt.Errorf("mark item disbursing: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		claimed = true
		if _, err := sql.Exec(ctx, sqlinline.QSetDonationsPayoutStateByItem, item.ID, string(domain.PayoutProcessing)); err != nil {
			return fmt.Errorf("mark donations processing: %w", err)
		}
		if _, err := sql.Exec(ctx, sqlinline.QUpdatePayoutBatchStatus, item.BatchID, string(domain.BatchProcessing)); err != nil {
			return fmt.Errorf("mark batch processing: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	originator := item.ID
	if item.OriginatorConversationID != nil && *item.OriginatorConversationID != "" {
		originator = *item.OriginatorConversationID
	}

	resp, callErr := d.provider.InitiateTransfer(ctx, mpesa.TransferRequest{
		Phone:                    item.Phone,
		AmountCents:              item.AmountCents,
		OriginatorConversationID: originator,
		Remarks:                  "creator payout",
	})
	if callErr != nil {
		revertErr := infra.WithTx(ctx, d.pool, d.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
			if _, err := sql.Exec(ctx, sqlinline.QMarkPayoutItemFailed, item.ID, "DISPATCH_ERROR", callErr.Error()); err != nil {
				return err
			}
			// Donations go back to scheduled with linkage intact: the item
			// itself is re-dispatched, not re-batched.
			if _, err := sql.Exec(ctx, sqlinline.QSetDonationsPayoutStateByItem, item.ID, string(domain.PayoutScheduled)); err != nil {
				return err
			}
			return d.recomputeBatch(ctx, sql, item.BatchID)
		})
		if revertErr != nil {
			d.logger.Error().Err(revertErr).Str("payout_item_id", item.ID).Msg("revert after failed transfer call failed")
		}
		d.auditLog.Record(ctx, nil, audit.Entry{
			Actor:    "disburser",
			Action:   "payout.dispatch",
			Resource: "payout_item:" + item.ID,
			Outcome:  "call_failed",
			Metadata: map[string]any{"error": callErr.Error(), "attempt": item.AttemptCount + 1},
		})
		return fmt.Errorf("initiate transfer for item %s: %w", item.ID, callErr)
	}

	err = infra.WithTx(ctx, d.pool, d.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
		_, err := sql.Exec(ctx, sqlinline.QSetPayoutItemConversation, item.ID, resp.ConversationID)
		return err
	})
	if err != nil {
		// The result callback can still match on the originator id.
		d.logger.Error().Err(err).Str("payout_item_id", item.ID).Msg("storing provider conversation id failed")
	}

	d.auditLog.Record(ctx, nil, audit.Entry{
		Actor:    "disburser",
		Action:   "payout.dispatch",
		Resource: "payout_item:" + item.ID,
		Outcome:  "dispatched",
		Metadata: map[string]any{"conversation_id": audit.MaskIdentifier(resp.ConversationID)},
	})
	return nil
}

// HandleResultCallback consumes one provider transfer result, matched by
// either side of the conversation id pair.
func (d *Disburser) HandleResultCallback(ctx context.Context, res mpesa.B2CResult) (string, error) {
	outcome := "orphan"
	err := infra.WithTx(ctx, d.pool, d.logger, func(ctx context.Context, sql infra.SQLExecutor) error {
		item, err := d.matchItem(ctx, sql, res)
		if err != nil {
			return err
		}
		if item == nil {
			d.logger.Error().
				Str("conversation_id", audit.MaskIdentifier(res.ConversationID)).
				Str("originator_conversation_id", audit.MaskIdentifier(res.OriginatorConversationID)).
				Msg("orphan payout result callback")
			d.auditLog.Record(ctx, sql, audit.Entry{
				Actor:    "disburser",
				Action:   "payout.result",
				Resource: "payout_item",
				Outcome:  "orphan",
				Metadata: map[string]any{"conversation_id": audit.MaskIdentifier(res.ConversationID)},
			})
			return nil
		}

		if res.Succeeded() {
			if item.Status == domain.ItemSucceeded {
				outcome = "duplicate"
				return nil
			}
			return d.applySuccess(ctx, sql, *item, res, &outcome)
		}

		if item.Status == domain.ItemFailed {
			outcome = "duplicate"
			return nil
		}
		return d.applyFailure(ctx, sql, *item, res, &outcome)
	})
	if err != nil {
		return "", err
	}
	metrics.PayoutsDisbursed.WithLabelValues(outcome).Inc()
	return outcome, nil
}

func (d *Disburser) applySuccess(ctx context.Context, sql infra.SQLExecutor, item itemRow, res mpesa.B2CResult, outcome *string) error {
	completedAt, ok := res.CompletedAt()
	if !ok {
		completedAt = d.now()
	}

	if _, err := d.ledger.RecordPayoutDisbursement(ctx, sql, ledger.PayoutPostingParams{
		PayoutItemID:  item.ID,
		AmountCents:   item.AmountCents,
		FeeCents:      d.feeCents,
		CreatorUserID: item.CreatorUserID,
		Currency:      item.Currency,
		PostedAt:      completedAt,
	}); err != nil {
		return err
	}

	if _, err := sql.Exec(ctx, sqlinline.QMarkPayoutItemSucceeded,
		item.ID, res.Receipt(), res.ResultCode.String(), res.ResultDesc, completedAt); err != nil {
		return fmt.Errorf("mark item succeeded: %w", err)
	}
	if _, err := sql.Exec(ctx, sqlinline.QMarkDonationsPaidByItem, item.ID, completedAt); err != nil {
		return fmt.Errorf("mark donations paid: %w", err)
	}
	if err := d.recomputeBatch(ctx, sql, item.BatchID); err != nil {
		return err
	}

	d.auditLog.Record(ctx, sql, audit.Entry{
		Actor:    "disburser",
		Action:   "payout.result",
		Resource: "payout_item:" + item.ID,
		Outcome:  "succeeded",
		Metadata: map[string]any{
			"receipt":      audit.MaskIdentifier(res.Receipt()),
			"amount_cents": item.AmountCents,
		},
	})
	*outcome = "succeeded"
	return nil
}

func (d *Disburser) applyFailure(ctx context.Context, sql infra.SQLExecutor, item itemRow, res mpesa.B2CResult, outcome *string) error {
	// The transfer never happened: the hold moves back to the spendable
	// pool and the donations become schedulable again.
	tag, err := sql.Exec(ctx, sqlinline.QReleaseWalletHold, item.CreatorUserID, item.AmountCents)
	if err != nil {
		return fmt.Errorf("release wallet hold: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: creator %s pending < %d on payout failure", domain.ErrInsufficientBalance, item.CreatorUserID, item.AmountCents)
	}

	if _, err := sql.Exec(ctx, sqlinline.QMarkPayoutItemFailed,
		item.ID, res.ResultCode.String(), res.ResultDesc); err != nil {
		return fmt.Errorf("mark item failed: %w", err)
	}
	if _, err := sql.Exec(ctx, sqlinline.QRevertDonationsPayoutFailedByItem, item.ID); err != nil {
		return fmt.Errorf("revert donations: %w", err)
	}
	if err := d.recomputeBatch(ctx, sql, item.BatchID); err != nil {
		return err
	}

	d.auditLog.Record(ctx, sql, audit.Entry{
		Actor:    "disburser",
		Action:   "payout.result",
		Resource: "payout_item:" + item.ID,
		Outcome:  "failed",
		Metadata: map[string]any{
			"result_code": res.ResultCode.String(),
			"result_desc": res.ResultDesc,
		},
	})
	*outcome = "failed"
	return nil
}

// matchItem resolves the result callback to an item via either conversation
// id. A nil item with nil error is an orphan.
func (d *Disburser) matchItem(ctx context.Context, sql infra.SQLExecutor, res mpesa.B2CResult) (*itemRow, error) {
	for _, key := range []string{res.ConversationID, res.OriginatorConversationID} {
		if key == "" {
			continue
		}
		item, err := d.loadItem(ctx, sql, sqlinline.QSelectPayoutItemByConversation, key)
		if err == nil {
			return &item, nil
		}
		if !infra.IsNoRows(err) {
			return nil, err
		}
	}
	return nil, nil
}

func (d *Disburser) loadItem(ctx context.Context, sql infra.SQLExecutor, query, key string) (itemRow, error) {
	var item itemRow
	row := sql.QueryRow(ctx, query, key)
	err := row.Scan(&item.ID, &item.BatchID, &item.CreatorUserID, &item.Phone,
		&item.AmountCents, &item.Currency, &item.Status, &item.AttemptCount,
		&item.OriginatorConversationID, &item.ProviderConversationID)
	if err != nil {
		return itemRow{}, err
	}
	return item, nil
}

// recomputeBatch derives the batch status from its item statuses.
func (d *Disburser) recomputeBatch(ctx context.Context, sql infra.SQLExecutor, batchID string) error {
	rows, err := sql.Query(ctx, sqlinline.QSelectBatchItemStatuses, batchID)
	if err != nil {
		return fmt.Errorf("load batch item statuses: %w", err)
	}
	var statuses []domain.PayoutItemStatus
	for rows.Next() {
		var s domain.PayoutItemStatus
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return err
		}
		statuses = append(statuses, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	status := domain.BatchStatusFor(statuses)
	if _, err := sql.Exec(ctx, sqlinline.QUpdatePayoutBatchStatus, batchID, string(status)); err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return nil
}
