package settlement

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/ledger"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/mpesa"
)

func settledDonation() donationRow {
	code := 0
	receipt := "NLJ7RT61SV"
	journal := "entry-1"
	return donationRow{
		ID:                 "don-1",
		CreatorUserID:      "creator-1",
		AmountCents:        5000,
		Currency:           "KES",
		Status:             domain.DonationSucceeded,
		CreatorShareCents:  3500,
		PlatformShareCents: 1293,
		PlatformVATCents:   207,
		ProviderReceipt:    &receipt,
		ResultCode:         &code,
		JournalEntryID:     &journal,
	}
}

func successCallback() (mpesa.STKCallback, mpesa.STKFields) {
	cb := mpesa.STKCallback{CheckoutRequestID: "ws_CO_1", ResultCode: 0}
	fields := mpesa.STKFields{
		AmountCents:     5000,
		Receipt:         "NLJ7RT61SV",
		Phone:           "254708374149",
		TransactionTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	return cb, fields
}

func TestSuccessShares_SumToDonationAmount(t *testing.T) {
	split, err := ledger.ComputeSplit(5000, 0.30, 0.16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := successShares(split)
	if s.platform != split.CommissionNetCents {
		t.Fatalf("stored platform share must be the net commission, got %d", s.platform)
	}
	if got := s.creator + s.platform + s.vat; got != 5000 {
		t.Fatalf("stored shares sum to %d (creator %d + platform %d + vat %d), want 5000",
			got, s.creator, s.platform, s.vat)
	}
}

func TestDemotesSettled(t *testing.T) {
	if !demotesSettled(settledDonation(), domain.DonationFailed) {
		t.Fatal("failure callback for a settled donation must be a conflict")
	}
	if demotesSettled(settledDonation(), domain.DonationSucceeded) {
		t.Fatal("success redelivery is not a demotion")
	}
	d := settledDonation()
	d.Status = domain.DonationProcessing
	if demotesSettled(d, domain.DonationFailed) {
		t.Fatal("failing a donation still processing is a normal transition")
	}
}

func TestIsReplay(t *testing.T) {
	e := NewEngine(nil, nil, nil, 0.30, 0.16, zerolog.Nop())

	t.Run("identical success delivery", func(t *testing.T) {
		cb, fields := successCallback()
		if !e.isReplay(settledDonation(), cb, fields, domain.DonationSucceeded) {
			t.Fatal("identical redelivery must be a replay")
		}
	})

	t.Run("status differs", func(t *testing.T) {
		cb, fields := successCallback()
		d := settledDonation()
		d.Status = domain.DonationProcessing
		if e.isReplay(d, cb, fields, domain.DonationSucceeded) {
			t.Fatal("a donation still processing is not a replay")
		}
	})

	t.Run("amount differs", func(t *testing.T) {
		cb, fields := successCallback()
		fields.AmountCents = 7000
		if e.isReplay(settledDonation(), cb, fields, domain.DonationSucceeded) {
			t.Fatal("a different amount must not be treated as a replay")
		}
	})

	t.Run("receipt differs", func(t *testing.T) {
		cb, fields := successCallback()
		fields.Receipt = "OTHER"
		if e.isReplay(settledDonation(), cb, fields, domain.DonationSucceeded) {
			t.Fatal("a different receipt must not be treated as a replay")
		}
	})

	t.Run("result code differs", func(t *testing.T) {
		cb, fields := successCallback()
		cb.ResultCode = 1032
		if e.isReplay(settledDonation(), cb, fields, domain.DonationFailed) {
			t.Fatal("a failure after success is a conflict, not a replay")
		}
	})

	t.Run("repeated failure", func(t *testing.T) {
		cb := mpesa.STKCallback{CheckoutRequestID: "ws_CO_1", ResultCode: 1032}
		code := 1032
		d := settledDonation()
		d.Status = domain.DonationFailed
		d.ResultCode = &code
		d.ProviderReceipt = nil
		d.JournalEntryID = nil
		if !e.isReplay(d, cb, mpesa.STKFields{}, domain.DonationFailed) {
			t.Fatal("redelivered failure must be a replay")
		}
	})
}
