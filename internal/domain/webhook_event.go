package domain

import "time"

// WebhookKind identifies which provider callback shape a raw event carries.
type WebhookKind string

const (
	WebhookDonation     WebhookKind = "donation"
	WebhookPayoutResult WebhookKind = "payout_result"
)

// Verification outcomes for webhook events.
const (
	WebhookAccepted = "accepted"
	WebhookRejected = "rejected"
)

// WebhookEvent is the immutable record of one raw inbound callback. It is
// persisted before verification so forensic history exists even for rejected
// payloads.
type WebhookEvent struct {
	ID                  string
	Kind                WebhookKind
	RawBody             []byte
	Signature           string
	TimestampHeader     string
	VerificationOutcome string
	FailureReason       *string
	SkewSeconds         *int
	ReceivedAt          time.Time
}

// ProviderStatementKind distinguishes collection rows from payout rows in an
// imported statement.
type ProviderStatementKind string

const (
	StatementCollection ProviderStatementKind = "collection"
	StatementPayout     ProviderStatementKind = "payout"
)

// ProviderStatement is one row of an external provider statement, imported
// for reconciliation only.
type ProviderStatement struct {
	ID           string
	Kind         ProviderStatementKind
	ProviderRef  string
	AmountCents  int64
	Currency     string
	TransactedAt time.Time
	ImportedAt   time.Time
}
