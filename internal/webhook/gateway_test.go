package webhook

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/queue"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

type gatewayRow struct {
	id string
}

func (r gatewayRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.id
	return nil
}

// gatewayStubSQL records persisted webhook events and serves generated ids.
type gatewayStubSQL struct {
	t        *testing.T
	inserted []persistedEvent
}

type persistedEvent struct {
	kind    string
	outcome string
	reason  *string
}

func (s *gatewayStubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if query != sqlinline.QInsertWebhookEvent {
		s.t.Fatalf("unexpected QueryRow: %s", query)
	}
	reason, _ := args[5].(*string)
	s.inserted = append(s.inserted, persistedEvent{
		kind:    args[0].(string),
		outcome: args[4].(string),
		reason:  reason,
	})
	return gatewayRow{id: "event-1"}
}

func (s *gatewayStubSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *gatewayStubSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	s.t.Fatalf("unexpected Query: %s", query)
	return nil, nil
}

type stubPublisher struct {
	err       error
	published []string
}

func (p *stubPublisher) Publish(_ context.Context, kind queue.Kind, refID string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, string(kind)+":"+refID)
	return nil
}

type stubProcessor struct {
	processed []string
}

func (p *stubProcessor) ProcessWebhookEvent(_ context.Context, eventID string) error {
	p.processed = append(p.processed, eventID)
	return nil
}

func newTestGateway(t *testing.T, pub *stubPublisher) (*Gateway, *rsa.PrivateKey, time.Time, *gatewayStubSQL, *stubProcessor) {
	t.Helper()
	v, key, now := testVerifier(t)
	sql := &gatewayStubSQL{t: t}
	proc := &stubProcessor{}
	g := NewGateway(sql, v, pub, proc, audit.NewLog(sql, zerolog.Nop()), zerolog.Nop())
	return g, key, now, sql, proc
}

func TestDonationCallback_AcceptedAndQueued(t *testing.T) {
	pub := &stubPublisher{}
	g, key, now, sql, proc := newTestGateway(t, pub)

	body := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	req := httptest.NewRequest("POST", "/webhooks/mpesa/donation", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, sign(t, key, body))
	req.Header.Set(HeaderTimestamp, now.Format(time.RFC3339))
	rr := httptest.NewRecorder()

	handler := NewRouter(g)
	handler.ServeHTTP(rr, req)

	require.Equal(t, 202, rr.Code)
	require.Len(t, sql.inserted, 1)
	require.Equal(t, "donation", sql.inserted[0].kind)
	require.Equal(t, "accepted", sql.inserted[0].outcome)
	require.Equal(t, []string{"donation:event-1"}, pub.published)
	require.Empty(t, proc.processed)
}

func TestDonationCallback_BadSignaturePersistedAndRejected(t *testing.T) {
	pub := &stubPublisher{}
	g, key, now, sql, proc := newTestGateway(t, pub)

	body := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	req := httptest.NewRequest("POST", "/webhooks/mpesa/donation", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, sign(t, key, []byte("different body")))
	req.Header.Set(HeaderTimestamp, now.Format(time.RFC3339))
	rr := httptest.NewRecorder()

	NewRouter(g).ServeHTTP(rr, req)

	require.Equal(t, 400, rr.Code)
	require.Len(t, sql.inserted, 1, "rejected payloads must still be persisted")
	require.Equal(t, "rejected", sql.inserted[0].outcome)
	require.NotNil(t, sql.inserted[0].reason)
	require.Equal(t, ReasonBadSignature, *sql.inserted[0].reason)
	require.Empty(t, pub.published)
	require.Empty(t, proc.processed)
}

func TestPayoutResultCallback_QueueDownFallsBackInline(t *testing.T) {
	pub := &stubPublisher{err: errors.New("redis down")}
	g, key, now, sql, proc := newTestGateway(t, pub)

	body := []byte(`{"Result":{"ResultCode":0}}`)
	req := httptest.NewRequest("POST", "/webhooks/mpesa/payout-result", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, sign(t, key, body))
	req.Header.Set(HeaderTimestamp, now.Format(time.RFC3339))
	rr := httptest.NewRecorder()

	NewRouter(g).ServeHTTP(rr, req)

	require.Equal(t, 202, rr.Code, "queue failure must not bounce the delivery")
	require.Len(t, sql.inserted, 1)
	require.Equal(t, "payout_result", sql.inserted[0].kind)
	require.Equal(t, []string{"event-1"}, proc.processed)
}
