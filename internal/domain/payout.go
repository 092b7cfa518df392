package domain

import "time"

// PayoutBatchStatus is derived from the statuses of the batch's items.
type PayoutBatchStatus string

const (
	BatchScheduled  PayoutBatchStatus = "scheduled"
	BatchProcessing PayoutBatchStatus = "processing"
	BatchPaid       PayoutBatchStatus = "paid"
	BatchFailed     PayoutBatchStatus = "failed"
)

// PayoutItemStatus tracks the transfer lifecycle of a payout item.
type PayoutItemStatus string

const (
	ItemPending    PayoutItemStatus = "pending"
	ItemDisbursing PayoutItemStatus = "disbursing"
	ItemSucceeded  PayoutItemStatus = "succeeded"
	ItemFailed     PayoutItemStatus = "failed"
)

// PayoutBatch groups a creator's eligible donations for one payout cycle.
type PayoutBatch struct {
	ID            string
	CreatorUserID string
	TotalCents    int64
	Currency      string
	Status        PayoutBatchStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PayoutItem is the unit actually transferred: one phone number, one amount.
// OriginatorConversationID and ProviderConversationID are the provider-side
// correlation keys a result callback is matched by.
type PayoutItem struct {
	ID                       string
	BatchID                  string
	CreatorUserID            string
	Phone                    string
	AmountCents              int64
	Currency                 string
	Status                   PayoutItemStatus
	AttemptCount             int
	OriginatorConversationID *string
	ProviderConversationID   *string
	ProviderReceipt          *string
	ResultCode               *string
	ResultDescription        *string
	DisbursedAt              *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// BatchStatusFor derives a batch's status from its item statuses: all
// succeeded means paid; at least one failed with none still pending or
// disbursing means failed; anything else is processing.
func BatchStatusFor(items []PayoutItemStatus) PayoutBatchStatus {
	if len(items) == 0 {
		return BatchScheduled
	}
	allSucceeded := true
	anyFailed := false
	anyOpen := false
	for _, s := range items {
		switch s {
		case ItemSucceeded:
		case ItemFailed:
			allSucceeded = false
			anyFailed = true
		case ItemPending, ItemDisbursing:
			allSucceeded = false
			anyOpen = true
		default:
			allSucceeded = false
			anyOpen = true
		}
	}
	switch {
	case allSucceeded:
		return BatchPaid
	case anyFailed && !anyOpen:
		return BatchFailed
	default:
		return BatchProcessing
	}
}
