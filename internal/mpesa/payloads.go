package mpesa

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
)

// STKCallbackEnvelope is the donation (customer-to-business) callback shape.
type STKCallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one loosely typed name/value pair in the callback metadata
// list. Values arrive as JSON numbers or strings depending on the field.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// STKFields is the strict, typed projection of the callback metadata.
type STKFields struct {
	AmountCents      int64
	Receipt          string
	Phone            string
	TransactionTime  time.Time
	AccountReference string
}

// Fields parses the callback metadata into STKFields. Required fields for a
// success-coded callback are Amount, MpesaReceiptNumber, PhoneNumber and
// TransactionDate; an unknown metadata name is rejected rather than silently
// skipped.
func (c STKCallback) Fields() (STKFields, error) {
	var f STKFields
	seen := map[string]bool{}
	for _, item := range c.CallbackMetadata.Item {
		seen[item.Name] = true
		switch item.Name {
		case "Amount":
			cents, err := amountToCents(item.Value)
			if err != nil {
				return STKFields{}, fmt.Errorf("%w: Amount: %v", domain.ErrInvalidCallback, err)
			}
			f.AmountCents = cents
		case "MpesaReceiptNumber":
			f.Receipt = valueToString(item.Value)
		case "PhoneNumber":
			f.Phone = valueToString(item.Value)
		case "TransactionDate":
			ts, err := parseTransactionDate(item.Value)
			if err != nil {
				return STKFields{}, fmt.Errorf("%w: TransactionDate: %v", domain.ErrInvalidCallback, err)
			}
			f.TransactionTime = ts
		case "AccountReference":
			f.AccountReference = valueToString(item.Value)
		case "Balance":
			// Present on some callbacks; carries no settlement meaning.
		default:
			return STKFields{}, fmt.Errorf("%w: unknown metadata field %q", domain.ErrInvalidCallback, item.Name)
		}
	}
	for _, required := range []string{"Amount", "MpesaReceiptNumber", "PhoneNumber", "TransactionDate"} {
		if !seen[required] {
			return STKFields{}, fmt.Errorf("%w: missing metadata field %q", domain.ErrInvalidCallback, required)
		}
	}
	return f, nil
}

// B2CResultEnvelope is the payout (business-to-customer) result callback shape.
type B2CResultEnvelope struct {
	Result B2CResult `json:"Result"`
}

type B2CResult struct {
	ResultCode               json.Number      `json:"ResultCode"`
	ResultDesc               string           `json:"ResultDesc"`
	ConversationID           string           `json:"ConversationID"`
	OriginatorConversationID string           `json:"OriginatorConversationID"`
	TransactionID            string           `json:"TransactionID"`
	ResultParameters         ResultParameters `json:"ResultParameters"`
}

type ResultParameters struct {
	ResultParameter []ResultParameter `json:"ResultParameter"`
}

type ResultParameter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

// Succeeded reports whether the result code is one of the provider's success
// codes ("0" or "00000000").
func (r B2CResult) Succeeded() bool {
	code := strings.TrimSpace(r.ResultCode.String())
	return code == "0" || code == "00000000"
}

// Receipt returns the transfer receipt, preferring the TransactionReceipt
// result parameter over the envelope's TransactionID.
func (r B2CResult) Receipt() string {
	for _, p := range r.ResultParameters.ResultParameter {
		if p.Key == "TransactionReceipt" {
			if v := valueToString(p.Value); v != "" {
				return v
			}
		}
	}
	return r.TransactionID
}

// CompletedAt parses the TransactionCompletedDateTime result parameter. The
// boolean is false when the parameter is absent or unparseable; callers fall
// back to their own clock.
func (r B2CResult) CompletedAt() (time.Time, bool) {
	for _, p := range r.ResultParameters.ResultParameter {
		if p.Key != "TransactionCompletedDateTime" {
			continue
		}
		raw := valueToString(p.Value)
		for _, layout := range []string{"02.01.2006 15:04:05", "20060102150405", time.RFC3339} {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func amountToCents(v any) (int64, error) {
	switch val := v.(type) {
	case float64:
		if val < 0 {
			return 0, fmt.Errorf("negative amount %v", val)
		}
		return int64(math.Round(val * 100)), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("unparseable amount %q", val)
		}
		return int64(math.Round(f * 100)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil || f < 0 {
			return 0, fmt.Errorf("unparseable amount %q", val.String())
		}
		return int64(math.Round(f * 100)), nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

func parseTransactionDate(v any) (time.Time, error) {
	raw := valueToString(v)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty transaction date")
	}
	ts, err := time.Parse("20060102150405", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable transaction date %q", raw)
	}
	return ts, nil
}

func valueToString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}
