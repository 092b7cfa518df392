package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/metrics"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/queue"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

const (
	HeaderSignature = "X-Mpesa-Signature"
	HeaderTimestamp = "X-Mpesa-Timestamp"

	maxBodyBytes = 1 << 20
)

// Processor settles a persisted webhook event inline. Used when the queue
// cannot accept the delivery.
type Processor interface {
	ProcessWebhookEvent(ctx context.Context, eventID string) error
}

// Publisher hands an accepted event to the callback queue.
type Publisher interface {
	Publish(ctx context.Context, kind queue.Kind, refID string) error
}

// Gateway terminates provider callbacks. Every delivery is persisted with
// its verification outcome before any response is written, so rejected
// payloads stay available for investigation.
type Gateway struct {
	sql       infra.SQLExecutor
	verifier  *Verifier
	publisher Publisher
	processor Processor
	auditLog  *audit.Log
	logger    zerolog.Logger
}

func NewGateway(sql infra.SQLExecutor, verifier *Verifier, publisher Publisher, processor Processor, auditLog *audit.Log, logger zerolog.Logger) *Gateway {
	return &Gateway{
		sql:       sql,
		verifier:  verifier,
		publisher: publisher,
		processor: processor,
		auditLog:  auditLog,
		logger:    logger.With().Str("component", "webhook_gateway").Logger(),
	}
}

func NewRouter(g *Gateway) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/v1/healthz", g.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/webhooks/mpesa", func(r chi.Router) {
		r.Post("/donation", g.DonationCallback)
		r.Post("/payout-result", g.PayoutResultCallback)
	})

	return r
}

func (g *Gateway) Health(w http.ResponseWriter, r *http.Request) {
	g.json(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (g *Gateway) DonationCallback(w http.ResponseWriter, r *http.Request) {
	g.handleCallback(w, r, domain.WebhookDonation, queue.KindDonation)
}

func (g *Gateway) PayoutResultCallback(w http.ResponseWriter, r *http.Request) {
	g.handleCallback(w, r, domain.WebhookPayoutResult, queue.KindPayoutResult)
}

func (g *Gateway) handleCallback(w http.ResponseWriter, r *http.Request, kind domain.WebhookKind, queueKind queue.Kind) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		g.error(w, http.StatusBadRequest, "unreadable body")
		return
	}

	signature := r.Header.Get(HeaderSignature)
	timestamp := r.Header.Get(HeaderTimestamp)
	result := g.verifier.Verify(body, signature, timestamp)

	outcome := domain.WebhookAccepted
	if !result.Valid {
		outcome = domain.WebhookRejected
	}

	eventID, err := g.persistEvent(r.Context(), kind, body, signature, timestamp, outcome, result)
	if err != nil {
		g.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to persist webhook event")
		g.error(w, http.StatusInternalServerError, "event not recorded")
		return
	}

	if !result.Valid {
		metrics.WebhookEvents.WithLabelValues(string(kind), "rejected").Inc()
		g.auditLog.Record(r.Context(), nil, audit.Entry{
			Actor:    "mpesa",
			Action:   "webhook.rejected",
			Resource: eventID,
			Outcome:  result.FailureReason,
		})
		g.logger.Warn().
			Str("kind", string(kind)).
			Str("event_id", eventID).
			Str("reason", result.FailureReason).
			Int("skew_seconds", result.SkewSeconds).
			Msg("webhook rejected")
		g.error(w, http.StatusBadRequest, result.FailureReason)
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(kind), "accepted").Inc()

	if err := g.publisher.Publish(r.Context(), queueKind, eventID); err != nil {
		// The provider retries on non-2xx, which would duplicate the
		// persisted event. Settle inline instead of failing the delivery.
		g.logger.Error().Err(err).Str("event_id", eventID).Msg("queue unavailable, processing inline")
		if perr := g.processor.ProcessWebhookEvent(r.Context(), eventID); perr != nil {
			g.logger.Error().Err(perr).Str("event_id", eventID).Msg("inline processing failed")
		}
	}

	g.json(w, http.StatusAccepted, map[string]any{"status": "accepted", "event_id": eventID})
}

func (g *Gateway) persistEvent(ctx context.Context, kind domain.WebhookKind, body []byte, signature, timestamp string, outcome string, result VerifyResult) (string, error) {
	var failureReason *string
	if result.FailureReason != "" {
		failureReason = &result.FailureReason
	}
	row := g.sql.QueryRow(ctx, sqlinline.QInsertWebhookEvent,
		string(kind), body, signature, timestamp, outcome, failureReason, result.SkewSeconds)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (g *Gateway) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *Gateway) error(w http.ResponseWriter, code int, msg string) {
	g.json(w, code, map[string]any{"error": msg})
}
