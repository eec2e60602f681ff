package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

// Submission is one payment attempt handed to the verification
// endpoint: the tool invocation in the body, the witness out-of-band.
type Submission struct {
	UserID      string
	Requirement domain.PaymentRequirement
	Witness     domain.PaymentWitness
	Method      string
	Params      map[string]any
}

// BillingStatus is the backend's view of the caller's account.
// TotalPaid is unset when the backend reports no usage block.
type BillingStatus struct {
	Authenticated bool
	TotalPaid     decimal.NullDecimal
}

// Facilitator verifies payments and reports billing status.
//
// Submit performs exactly one verification call: nil means the payment
// was accepted for settlement, a *domain.VerificationError means it was
// definitively rejected, any other error is a transport failure. No
// retries happen at this layer.
type Facilitator interface {
	Submit(ctx context.Context, sub Submission) error
	Status(ctx context.Context, userID string) (BillingStatus, error)
}
