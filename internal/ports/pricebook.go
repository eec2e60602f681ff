package ports

import (
	"time"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

// PriceBook knows the local cost of tools and synthesizes payment
// requirements for them without waiting for a backend demand.
type PriceBook interface {
	Tools() []string
	Requirement(tool string, now time.Time) (domain.PaymentRequirement, error)
}
