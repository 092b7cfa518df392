package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/mpesa"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/payout"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/queue"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/settlement"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Dispatcher routes queue envelopes to their engines. Callback envelopes
// reference persisted webhook events, so parsing always starts from the
// durable raw body, never from queue payloads.
type Dispatcher struct {
	sql        infra.SQLExecutor
	settlement *settlement.Engine
	disburser  *payout.Disburser
	logger     zerolog.Logger
}

func New(sql infra.SQLExecutor, settlementEngine *settlement.Engine, disburser *payout.Disburser, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sql:        sql,
		settlement: settlementEngine,
		disburser:  disburser,
		logger:     logger.With().Str("component", "dispatch").Logger(),
	}
}

// Handle implements queue.Handler.
func (d *Dispatcher) Handle(ctx context.Context, kind queue.Kind, refID string) error {
	switch kind {
	case queue.KindDonation, queue.KindPayoutResult:
		return d.processWebhookEvent(ctx, refID)
	case queue.KindPayoutDispatch:
		return d.disburser.Dispatch(ctx, refID)
	default:
		d.logger.Error().Str("kind", string(kind)).Str("ref_id", refID).Msg("unknown envelope kind")
		return nil
	}
}

// ProcessWebhookEvent settles one persisted webhook event synchronously. The
// gateway uses this as the inline fallback when the queue is unavailable.
func (d *Dispatcher) ProcessWebhookEvent(ctx context.Context, eventID string) error {
	return d.processWebhookEvent(ctx, eventID)
}

func (d *Dispatcher) processWebhookEvent(ctx context.Context, eventID string) error {
	var kind string
	var rawBody []byte
	row := d.sql.QueryRow(ctx, sqlinline.QSelectWebhookEventBody, eventID)
	if err := row.Scan(&kind, &rawBody); err != nil {
		if infra.IsNoRows(err) {
			d.logger.Error().Str("event_id", eventID).Msg("queue references unknown webhook event")
			return nil
		}
		return fmt.Errorf("load webhook event %s: %w", eventID, err)
	}

	switch domain.WebhookKind(kind) {
	case domain.WebhookDonation:
		var env mpesa.STKCallbackEnvelope
		if err := json.Unmarshal(rawBody, &env); err != nil {
			d.logger.Warn().Err(err).Str("event_id", eventID).Msg("undecodable donation callback body")
			return nil
		}
		outcome, err := d.settlement.HandleCallback(ctx, env.Body.STKCallback)
		if err != nil {
			return err
		}
		d.logger.Info().Str("event_id", eventID).Str("outcome", string(outcome)).Msg("donation callback settled")
		return nil
	case domain.WebhookPayoutResult:
		var env mpesa.B2CResultEnvelope
		if err := json.Unmarshal(rawBody, &env); err != nil {
			d.logger.Warn().Err(err).Str("event_id", eventID).Msg("undecodable payout result body")
			return nil
		}
		outcome, err := d.disburser.HandleResultCallback(ctx, env.Result)
		if err != nil {
			return err
		}
		d.logger.Info().Str("event_id", eventID).Str("outcome", outcome).Msg("payout result consumed")
		return nil
	default:
		d.logger.Error().Str("event_id", eventID).Str("kind", kind).Msg("webhook event has unknown kind")
		return nil
	}
}
