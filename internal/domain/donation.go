package domain

import (
	"encoding/json"
	"time"
)

// DonationStatus tracks the collection lifecycle of a donation.
type DonationStatus string

const (
	DonationPending    DonationStatus = "pending"
	DonationProcessing DonationStatus = "processing"
	DonationSucceeded  DonationStatus = "succeeded"
	DonationFailed     DonationStatus = "failed"
	DonationRefunded   DonationStatus = "refunded"
)

// PayoutState tracks where a succeeded donation sits in the payout lifecycle.
type PayoutState string

const (
	PayoutUnassigned PayoutState = "unassigned"
	PayoutScheduled  PayoutState = "scheduled"
	PayoutProcessing PayoutState = "processing"
	PayoutPaid       PayoutState = "paid"
	PayoutFailed     PayoutState = "failed"
)

// Donation is created at donation-request time and only ever mutated by
// callback settlement and payout transitions. When Status is succeeded,
// CreatorShareCents + PlatformShareCents + PlatformVATCents == AmountCents.
type Donation struct {
	ID                 string
	SubmissionID       string
	ChallengeID        string
	CreatorUserID      string
	DonorUserID        *string
	AmountCents        int64
	Currency           string
	Status             DonationStatus
	PayoutState        PayoutState
	CreatorShareCents  int64
	PlatformShareCents int64
	PlatformVATCents   int64
	StatusHistory      json.RawMessage
	CheckoutRequestID  *string
	MerchantRequestID  *string
	ProviderReceipt    *string
	PayerPhone         *string
	ResultCode         *int
	JournalEntryID     *string
	PayoutBatchID      *string
	PayoutItemID       *string
	PaidAt             *time.Time
	DonatedAt          time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusTransition is one append-only element of a donation's status history.
type StatusTransition struct {
	From       DonationStatus `json:"from"`
	To         DonationStatus `json:"to"`
	At         time.Time      `json:"at"`
	ResultCode int            `json:"resultCode"`
}
