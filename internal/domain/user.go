package domain

// CreatorProfile is the narrow read-only view of a user that the settlement
// core consumes: identity, payout currency and payout phone. Nothing here is
// ever mutated by this module.
type CreatorProfile struct {
	CreatorID string
	Currency  string
	Phone     string
}

// HasUsablePhone reports whether the profile carries a phone number a
// transfer can be initiated against.
func (p CreatorProfile) HasUsablePhone() bool {
	return len(p.Phone) >= 9
}
