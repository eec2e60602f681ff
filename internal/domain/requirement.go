package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequirement is a demand for payment issued by the backend or
// synthesized locally from a known tool price. Values are immutable
// after validation; a changed demand arrives as a fresh requirement.
type PaymentRequirement struct {
	Amount   decimal.Decimal
	Currency string
	Network  string
	Address  string
	// Resource names the tool the payment unlocks. Optional; when set it
	// becomes the invocation method on submission.
	Resource string
	Memo     string
	// ExpiresAt is the settlement deadline. Zero means the demand does
	// not expire.
	ExpiresAt time.Time
}

func (r PaymentRequirement) Validate(now time.Time) error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", r.Amount)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("currency is required")
	}
	if strings.TrimSpace(r.Network) == "" {
		return fmt.Errorf("network is required")
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now) {
		return fmt.Errorf("expiry %s is not in the future", r.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

func (r PaymentRequirement) HasExpiry() bool {
	return !r.ExpiresAt.IsZero()
}

func (r PaymentRequirement) Expired(now time.Time) bool {
	return r.HasExpiry() && !now.Before(r.ExpiresAt)
}

// ExpiresIn returns the remaining settlement window, floored at zero.
// Requirements without expiry return zero; check HasExpiry first.
func (r PaymentRequirement) ExpiresIn(now time.Time) time.Duration {
	if !r.HasExpiry() {
		return 0
	}
	remaining := r.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Key identifies the requirement for deduplication. Two demands with
// identical fields are the same payment and must share one submission.
func (r PaymentRequirement) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		r.Amount.String(), r.Currency, r.Network, r.Address, r.Resource, r.Memo, r.ExpiresAt.UnixNano())
}

// TransferIntent derives the unsigned transfer the wallet is asked to
// authorize.
func (r PaymentRequirement) TransferIntent() TransferIntent {
	return TransferIntent{
		To:         r.Address,
		Amount:     r.Amount,
		Currency:   r.Currency,
		Network:    r.Network,
		Memo:       r.Memo,
		ValidUntil: r.ExpiresAt,
	}
}
