package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Service posts balanced journal entries and the wallet/company rollups that
// hang off them. Idempotency rests on the (event_type, event_ref_id) unique
// constraint: the insert either lands or yields the existing entry id, never
// a second posting. Callers supply the transaction-scoped executor; every
// write here joins the caller's unit of work.
type Service struct {
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger.With().Str("component", "ledger").Logger()}
}

// PostResult reports the journal entry an event resolved to and whether this
// call created it.
type PostResult struct {
	JournalEntryID string
	Created        bool
}

type line struct {
	account string
	debit   int64
	credit  int64
}

// DonationPostingParams describes one succeeded donation to post.
type DonationPostingParams struct {
	DonationID         string
	AmountCents        int64
	CreatorShareCents  int64
	CommissionNetCents int64
	VATCents           int64
	CreatorUserID      string
	Currency           string
	PostedAt           time.Time
}

// RecordDonationSuccess posts the four-line donation entry, credits the
// creator's wallet and appends the wallet and company ledger rows. A replayed
// event returns the existing entry with Created=false and writes nothing.
func (s *Service) RecordDonationSuccess(ctx context.Context, sql infra.SQLExecutor, p DonationPostingParams) (PostResult, error) {
	if p.CreatorShareCents+p.CommissionNetCents+p.VATCents != p.AmountCents ||
		p.CreatorShareCents < 0 || p.CommissionNetCents < 0 || p.VATCents < 0 {
		return PostResult{}, fmt.Errorf("%w: donation %s", domain.ErrUnbalancedSplit, p.DonationID)
	}

	entryID, created, err := s.insertOrGetEntry(ctx, sql, domain.EventDonationSuccess, p.DonationID, p.Currency, p.PostedAt)
	if err != nil {
		return PostResult{}, err
	}
	if !created {
		s.logger.Debug().Str("donation_id", p.DonationID).Str("journal_entry_id", entryID).Msg("donation entry already posted")
		return PostResult{JournalEntryID: entryID, Created: false}, nil
	}

	lines := []line{
		{account: domain.AccountCash, debit: p.AmountCents},
		{account: domain.AccountCreatorsPayable, credit: p.CreatorShareCents},
		{account: domain.AccountVATOutput, credit: p.VATCents},
		{account: domain.AccountPlatformCommission, credit: p.CommissionNetCents},
	}
	if err := s.insertLines(ctx, sql, entryID, lines); err != nil {
		return PostResult{}, err
	}

	if _, err := sql.Exec(ctx, sqlinline.QUpsertWalletCredit, p.CreatorUserID, p.CreatorShareCents, p.Currency); err != nil {
		return PostResult{}, fmt.Errorf("credit wallet: %w", err)
	}
	if _, err := sql.Exec(ctx, sqlinline.QInsertWalletLedgerEntry,
		p.CreatorUserID, entryID, p.CreatorShareCents, int64(0), domain.EventDonationSuccess); err != nil {
		return PostResult{}, fmt.Errorf("wallet ledger entry: %w", err)
	}
	if _, err := sql.Exec(ctx, sqlinline.QInsertCompanyLedgerEntry,
		entryID, p.CommissionNetCents, p.VATCents, int64(0), p.AmountCents); err != nil {
		return PostResult{}, fmt.Errorf("company ledger entry: %w", err)
	}

	return PostResult{JournalEntryID: entryID, Created: true}, nil
}

// PayoutPostingParams describes one successfully disbursed payout item.
type PayoutPostingParams struct {
	PayoutItemID  string
	AmountCents   int64
	FeeCents      int64
	CreatorUserID string
	Currency      string
	PostedAt      time.Time
}

// RecordPayoutDisbursement posts the payout entry and settles the creator's
// pending balance. The funds left available_cents at scheduling time, so only
// pending_cents moves here.
func (s *Service) RecordPayoutDisbursement(ctx context.Context, sql infra.SQLExecutor, p PayoutPostingParams) (PostResult, error) {
	if p.AmountCents <= 0 || p.FeeCents < 0 {
		return PostResult{}, fmt.Errorf("%w: payout item %s amount=%d fee=%d", domain.ErrUnbalancedEntry, p.PayoutItemID, p.AmountCents, p.FeeCents)
	}

	entryID, created, err := s.insertOrGetEntry(ctx, sql, domain.EventPayoutDisbursed, p.PayoutItemID, p.Currency, p.PostedAt)
	if err != nil {
		return PostResult{}, err
	}
	if !created {
		s.logger.Debug().Str("payout_item_id", p.PayoutItemID).Str("journal_entry_id", entryID).Msg("payout entry already posted")
		return PostResult{JournalEntryID: entryID, Created: false}, nil
	}

	lines := []line{
		{account: domain.AccountCreatorsPayable, debit: p.AmountCents},
	}
	if p.FeeCents > 0 {
		lines = append(lines, line{account: domain.AccountPayoutFees, debit: p.FeeCents})
	}
	lines = append(lines, line{account: domain.AccountCash, credit: p.AmountCents + p.FeeCents})
	if err := s.insertLines(ctx, sql, entryID, lines); err != nil {
		return PostResult{}, err
	}

	tag, err := sql.Exec(ctx, sqlinline.QSettleWalletPending, p.CreatorUserID, p.AmountCents)
	if err != nil {
		return PostResult{}, fmt.Errorf("settle wallet pending: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return PostResult{}, fmt.Errorf("%w: creator %s pending < %d", domain.ErrInsufficientBalance, p.CreatorUserID, p.AmountCents)
	}
	if _, err := sql.Exec(ctx, sqlinline.QInsertWalletLedgerEntry,
		p.CreatorUserID, entryID, int64(0), -p.AmountCents, domain.EventPayoutDisbursed); err != nil {
		return PostResult{}, fmt.Errorf("wallet ledger entry: %w", err)
	}
	if _, err := sql.Exec(ctx, sqlinline.QInsertCompanyLedgerEntry,
		entryID, int64(0), int64(0), p.FeeCents, -(p.AmountCents + p.FeeCents)); err != nil {
		return PostResult{}, fmt.Errorf("company ledger entry: %w", err)
	}

	return PostResult{JournalEntryID: entryID, Created: true}, nil
}

// insertOrGetEntry resolves the event to its journal entry id. A unique
// conflict yields no inserted row; the existing entry is re-read instead of
// retrying the insert, so concurrent deliveries of the same event converge
// without a check-then-act race.
func (s *Service) insertOrGetEntry(ctx context.Context, sql infra.SQLExecutor, eventType, eventRefID, currency string, postedAt time.Time) (string, bool, error) {
	var id string
	err := sql.QueryRow(ctx, sqlinline.QInsertJournalEntry, eventType, eventRefID, currency, postedAt).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !infra.IsNoRows(err) {
		return "", false, fmt.Errorf("insert journal entry: %w", err)
	}
	if err := sql.QueryRow(ctx, sqlinline.QSelectJournalEntryIDByEvent, eventType, eventRefID).Scan(&id); err != nil {
		return "", false, fmt.Errorf("re-read journal entry %s/%s: %w", eventType, eventRefID, err)
	}
	return id, false, nil
}

func (s *Service) insertLines(ctx context.Context, sql infra.SQLExecutor, entryID string, lines []line) error {
	var debits, credits int64
	for _, l := range lines {
		debits += l.debit
		credits += l.credit
	}
	if debits != credits {
		return fmt.Errorf("%w: entry %s debits=%d credits=%d", domain.ErrUnbalancedEntry, entryID, debits, credits)
	}
	for _, l := range lines {
		if _, err := sql.Exec(ctx, sqlinline.QInsertJournalLine, entryID, l.account, l.debit, l.credit); err != nil {
			return fmt.Errorf("insert journal line %s: %w", l.account, err)
		}
	}
	return nil
}
