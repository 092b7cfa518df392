package ledger

import (
	"fmt"
	"math"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
)

// Split is the integer-cent decomposition of one donation amount.
// CreatorShareCents + CommissionNetCents + VATCents == AmountCents always
// holds for a Split returned without error.
type Split struct {
	AmountCents          int64
	CommissionGrossCents int64
	CommissionNetCents   int64
	VATCents             int64
	CreatorShareCents    int64
}

// ComputeSplit decomposes amountCents into creator share, net platform
// commission and VAT. The commission is floored in the platform's disfavor;
// VAT is extracted from the gross commission (VAT-inclusive rate). Any
// violation of the conservation invariant is a logic bug and returns
// ErrUnbalancedSplit rather than ever being persisted.
func ComputeSplit(amountCents int64, commissionRate, vatRate float64) (Split, error) {
	if amountCents < 0 {
		return Split{}, fmt.Errorf("%w: negative amount %d", domain.ErrUnbalancedSplit, amountCents)
	}
	if commissionRate < 0 || commissionRate >= 1 {
		return Split{}, fmt.Errorf("%w: commission rate %v out of range", domain.ErrUnbalancedSplit, commissionRate)
	}
	if vatRate < 0 || vatRate >= 1 {
		return Split{}, fmt.Errorf("%w: vat rate %v out of range", domain.ErrUnbalancedSplit, vatRate)
	}

	commissionGross := int64(math.Floor(float64(amountCents) * commissionRate))
	vat := int64(math.Round(float64(commissionGross) * vatRate / (1 + vatRate)))
	commissionNet := commissionGross - vat
	creatorShare := amountCents - commissionGross

	s := Split{
		AmountCents:          amountCents,
		CommissionGrossCents: commissionGross,
		CommissionNetCents:   commissionNet,
		VATCents:             vat,
		CreatorShareCents:    creatorShare,
	}

	if creatorShare < 0 || commissionNet < 0 || vat < 0 {
		return Split{}, fmt.Errorf("%w: negative component in %+v", domain.ErrUnbalancedSplit, s)
	}
	if creatorShare+commissionNet+vat != amountCents {
		return Split{}, fmt.Errorf("%w: %d+%d+%d != %d", domain.ErrUnbalancedSplit, creatorShare, commissionNet, vat, amountCents)
	}

	return s, nil
}
