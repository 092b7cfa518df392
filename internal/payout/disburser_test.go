package payout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/audit"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/mpesa"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

// disburserStubSQL scripts the executor for result-callback handling:
// batchStatuses feeds recomputeBatch, holdShort makes the wallet release
// update match zero rows.
type disburserStubSQL struct {
	t             *testing.T
	batchStatuses []domain.PayoutItemStatus
	holdShort     bool
	execs         []execCall
}

func (s *disburserStubSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	switch query {
	case sqlinline.QInsertJournalEntry:
		return disburserStubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "entry-payout"
			return nil
		}}
	default:
		s.t.Fatalf("unexpected QueryRow: %s", query)
		return disburserStubRow{}
	}
}

func (s *disburserStubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if query == sqlinline.QReleaseWalletHold && s.holdShort {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *disburserStubSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	if query != sqlinline.QSelectBatchItemStatuses {
		s.t.Fatalf("unexpected Query: %s", query)
	}
	return &statusRows{statuses: s.batchStatuses}, nil
}

type disburserStubRow struct {
	scan func(dest ...any) error
}

func (r disburserStubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// statusRows is a minimal pgx.Rows over a fixed status list.
type statusRows struct {
	statuses []domain.PayoutItemStatus
	pos      int
}

func (r *statusRows) Next() bool {
	if r.pos >= len(r.statuses) {
		return false
	}
	r.pos++
	return true
}

func (r *statusRows) Scan(dest ...any) error {
	*(dest[0].(*domain.PayoutItemStatus)) = r.statuses[r.pos-1]
	return nil
}

func (r *statusRows) Close()                                       {}
func (r *statusRows) Err() error                                   { return nil }
func (r *statusRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *statusRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *statusRows) Values() ([]any, error)                       { return nil, nil }
func (r *statusRows) RawValues() [][]byte                          { return nil }
func (r *statusRows) Conn() *pgx.Conn                              { return nil }

func testItem() itemRow {
	return itemRow{
		ID:            "item-1",
		BatchID:       "batch-1",
		CreatorUserID: "creator-1",
		Phone:         "254708374149",
		AmountCents:   7000,
		Currency:      "KES",
		Status:        domain.ItemDisbursing,
	}
}

func testDisburser(sql *disburserStubSQL) *Disburser {
	return &Disburser{
		ledger:   ledger.NewService(zerolog.Nop()),
		auditLog: audit.NewLog(sql, zerolog.Nop()),
		logger:   zerolog.Nop(),
		feeCents: 50,
		now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func successResult() mpesa.B2CResult {
	return mpesa.B2CResult{
		ResultCode: json.Number("0"),
		ResultDesc: "The service request is processed successfully.",
		ResultParameters: mpesa.ResultParameters{
			ResultParameter: []mpesa.ResultParameter{
				{Key: "TransactionReceipt", Value: "NLJ41HAY6Q"},
				{Key: "TransactionCompletedDateTime", Value: "01.03.2026 11:45:50"},
			},
		},
	}
}

func failureResult() mpesa.B2CResult {
	return mpesa.B2CResult{
		ResultCode: json.Number("2001"),
		ResultDesc: "The initiator information is invalid.",
	}
}

func countExecs(execs []execCall, query string) int {
	n := 0
	for _, e := range execs {
		if e.query == query {
			n++
		}
	}
	return n
}

func findExec(t *testing.T, execs []execCall, query string) execCall {
	t.Helper()
	for _, e := range execs {
		if e.query == query {
			return e
		}
	}
	t.Fatalf("query not executed: %s", query)
	return execCall{}
}

func TestApplySuccess_PostsLedgerAndMarksPaid(t *testing.T) {
	stub := &disburserStubSQL{t: t, batchStatuses: []domain.PayoutItemStatus{domain.ItemSucceeded}}
	d := testDisburser(stub)

	outcome := ""
	if err := d.applySuccess(context.Background(), stub, testItem(), successResult(), &outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != "succeeded" {
		t.Fatalf("outcome: got %q, want succeeded", outcome)
	}
	if countExecs(stub.execs, sqlinline.QSettleWalletPending) != 1 {
		t.Fatalf("pending balance not settled: %+v", stub.execs)
	}

	paid := findExec(t, stub.execs, sqlinline.QMarkDonationsPaidByItem)
	wantAt := time.Date(2026, 3, 1, 11, 45, 50, 0, time.UTC)
	if got := paid.args[1].(time.Time); !got.Equal(wantAt) {
		t.Fatalf("paid_at: got %v, want callback completion time %v", got, wantAt)
	}

	succeeded := findExec(t, stub.execs, sqlinline.QMarkPayoutItemSucceeded)
	if got := succeeded.args[1].(string); got != "NLJ41HAY6Q" {
		t.Fatalf("receipt: got %q", got)
	}

	batch := findExec(t, stub.execs, sqlinline.QUpdatePayoutBatchStatus)
	if got := batch.args[1].(string); got != string(domain.BatchPaid) {
		t.Fatalf("batch status: got %q, want paid", got)
	}
}

func TestApplyFailure_RestoresWalletAndRevertsDonations(t *testing.T) {
	stub := &disburserStubSQL{t: t, batchStatuses: []domain.PayoutItemStatus{domain.ItemFailed}}
	d := testDisburser(stub)

	outcome := ""
	if err := d.applyFailure(context.Background(), stub, testItem(), failureResult(), &outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != "failed" {
		t.Fatalf("outcome: got %q, want failed", outcome)
	}

	release := findExec(t, stub.execs, sqlinline.QReleaseWalletHold)
	if release.args[0].(string) != "creator-1" || release.args[1].(int64) != 7000 {
		t.Fatalf("wallet release args: %+v", release.args)
	}
	if countExecs(stub.execs, sqlinline.QRevertDonationsPayoutFailedByItem) != 1 {
		t.Fatalf("donations not reverted: %+v", stub.execs)
	}
	if countExecs(stub.execs, sqlinline.QInsertJournalEntry) != 0 {
		t.Fatalf("failed transfer must not post to the ledger: %+v", stub.execs)
	}

	batch := findExec(t, stub.execs, sqlinline.QUpdatePayoutBatchStatus)
	if got := batch.args[1].(string); got != string(domain.BatchFailed) {
		t.Fatalf("batch status: got %q, want failed", got)
	}
}

func TestApplyFailure_RejectsWhenHoldAlreadyGone(t *testing.T) {
	stub := &disburserStubSQL{t: t, holdShort: true}
	d := testDisburser(stub)

	outcome := ""
	err := d.applyFailure(context.Background(), stub, testItem(), failureResult(), &outcome)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	if countExecs(stub.execs, sqlinline.QMarkPayoutItemFailed) != 0 {
		t.Fatalf("item must not be marked failed when the hold is gone: %+v", stub.execs)
	}
}
