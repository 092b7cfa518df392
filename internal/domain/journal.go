package domain

import "time"

// Ledger account names. The chart of accounts is fixed; there is no
// account-management surface.
const (
	AccountCash               = "Assets:Cash"
	AccountCreatorsPayable    = "Liability:CreatorsPayable"
	AccountVATOutput          = "Liability:VATOutput"
	AccountPlatformCommission = "Revenue:PlatformCommission"
	AccountPayoutFees         = "Expense:PayoutFees"
)

// Journal event types. (event_type, event_ref_id) is the idempotency boundary:
// one journal entry per financial event, ever.
const (
	EventDonationSuccess = "donation.success"
	EventPayoutDisbursed = "payout.disbursed"
	// EventDonationReversal is reserved for correcting postings; no current
	// tool emits it.
	EventDonationReversal = "donation.reversal"
)

// JournalEntry is an immutable balanced set of debit/credit lines posted for
// one financial event.
type JournalEntry struct {
	ID         string
	EventType  string
	EventRefID string
	Currency   string
	PostedAt   time.Time
	CreatedAt  time.Time
	Lines      []JournalLine
}

// JournalLine carries exactly one of DebitCents or CreditCents.
type JournalLine struct {
	ID             string
	JournalEntryID string
	Account        string
	DebitCents     int64
	CreditCents    int64
}

// Wallet holds a creator's spendable and in-flight balances. Mutated only via
// ledger-linked deltas.
type Wallet struct {
	CreatorUserID  string
	AvailableCents int64
	PendingCents   int64
	Currency       string
	UpdatedAt      time.Time
}

// WalletLedgerEntry ties one wallet delta to exactly one journal entry.
type WalletLedgerEntry struct {
	ID                  string
	CreatorUserID       string
	JournalEntryID      string
	DeltaAvailableCents int64
	DeltaPendingCents   int64
	Reason              string
	CreatedAt           time.Time
}

// CompanyLedgerEntry summarizes one journal entry for treasury reporting.
type CompanyLedgerEntry struct {
	ID             string
	JournalEntryID string
	RevenueCents   int64
	VATCents       int64
	ExpenseCents   int64
	CashDeltaCents int64
	CreatedAt      time.Time
}
