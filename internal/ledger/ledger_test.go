package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// ledgerStubSQL scripts the executor for ledger postings: entryExists makes
// the journal insert hit the unique conflict path, pendingShort makes the
// wallet settle update match zero rows.
type ledgerStubSQL struct {
	t            *testing.T
	entryExists  bool
	pendingShort bool
	execQueries  []string
}

func (s *ledgerStubSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	switch query {
	case sqlinline.QInsertJournalEntry:
		if s.entryExists {
			return stubRow{}
		}
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "entry-new"
			return nil
		}}
	case sqlinline.QSelectJournalEntryIDByEvent:
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "entry-existing"
			return nil
		}}
	default:
		s.t.Fatalf("unexpected QueryRow: %s", query)
		return stubRow{}
	}
}

func (s *ledgerStubSQL) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	s.execQueries = append(s.execQueries, query)
	if query == sqlinline.QSettleWalletPending && s.pendingShort {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *ledgerStubSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	s.t.Fatalf("unexpected Query: %s", query)
	return nil, nil
}

func countQueries(queries []string, query string) int {
	n := 0
	for _, q := range queries {
		if q == query {
			n++
		}
	}
	return n
}

func donationParams() DonationPostingParams {
	return DonationPostingParams{
		DonationID:         "don-1",
		AmountCents:        5000,
		CreatorShareCents:  3500,
		CommissionNetCents: 1293,
		VATCents:           207,
		CreatorUserID:      "creator-1",
		Currency:           "KES",
		PostedAt:           time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRecordDonationSuccess_PostsFourLinesAndWallet(t *testing.T) {
	stub := &ledgerStubSQL{t: t}
	svc := NewService(zerolog.Nop())

	res, err := svc.RecordDonationSuccess(context.Background(), stub, donationParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created || res.JournalEntryID != "entry-new" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := countQueries(stub.execQueries, sqlinline.QInsertJournalLine); got != 4 {
		t.Fatalf("journal lines: got %d, want 4", got)
	}
	if countQueries(stub.execQueries, sqlinline.QUpsertWalletCredit) != 1 {
		t.Fatalf("wallet credit not written: %v", stub.execQueries)
	}
	if countQueries(stub.execQueries, sqlinline.QInsertCompanyLedgerEntry) != 1 {
		t.Fatalf("company ledger entry not written: %v", stub.execQueries)
	}
}

func TestRecordDonationSuccess_ReplayWritesNothing(t *testing.T) {
	stub := &ledgerStubSQL{t: t, entryExists: true}
	svc := NewService(zerolog.Nop())

	res, err := svc.RecordDonationSuccess(context.Background(), stub, donationParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created {
		t.Fatal("replay reported as a new posting")
	}
	if res.JournalEntryID != "entry-existing" {
		t.Fatalf("unexpected entry id: %s", res.JournalEntryID)
	}
	if len(stub.execQueries) != 0 {
		t.Fatalf("replay must not write, got %v", stub.execQueries)
	}
}

func TestRecordDonationSuccess_RejectsUnbalancedParams(t *testing.T) {
	stub := &ledgerStubSQL{t: t}
	svc := NewService(zerolog.Nop())

	p := donationParams()
	p.VATCents++
	if _, err := svc.RecordDonationSuccess(context.Background(), stub, p); !errors.Is(err, domain.ErrUnbalancedSplit) {
		t.Fatalf("got %v, want ErrUnbalancedSplit", err)
	}
	if len(stub.execQueries) != 0 {
		t.Fatalf("unbalanced params must not write, got %v", stub.execQueries)
	}
}

func TestRecordPayoutDisbursement_SettlesPendingBalance(t *testing.T) {
	stub := &ledgerStubSQL{t: t}
	svc := NewService(zerolog.Nop())

	res, err := svc.RecordPayoutDisbursement(context.Background(), stub, PayoutPostingParams{
		PayoutItemID:  "item-1",
		AmountCents:   7000,
		FeeCents:      50,
		CreatorUserID: "creator-1",
		Currency:      "KES",
		PostedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Fatalf("unexpected result: %+v", res)
	}
	// Payable debit, fee debit, cash credit.
	if got := countQueries(stub.execQueries, sqlinline.QInsertJournalLine); got != 3 {
		t.Fatalf("journal lines: got %d, want 3", got)
	}
	if countQueries(stub.execQueries, sqlinline.QSettleWalletPending) != 1 {
		t.Fatalf("pending balance not settled: %v", stub.execQueries)
	}
}

func TestRecordPayoutDisbursement_FailsWhenPendingTooLow(t *testing.T) {
	stub := &ledgerStubSQL{t: t, pendingShort: true}
	svc := NewService(zerolog.Nop())

	_, err := svc.RecordPayoutDisbursement(context.Background(), stub, PayoutPostingParams{
		PayoutItemID:  "item-1",
		AmountCents:   7000,
		CreatorUserID: "creator-1",
		Currency:      "KES",
		PostedAt:      time.Now(),
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
}
