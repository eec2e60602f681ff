package application

import (
	"github.com/shopspring/decimal"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

// Snapshot is an immutable copy of the session state for consumers.
// Nothing in it aliases coordinator internals.
type Snapshot struct {
	ConnectionStatus domain.ConnectionStatus
	// IsConnected reports whether the transport is up; payment_required
	// implies a live connection.
	IsConnected        bool
	Authenticated      bool
	SessionCost        decimal.Decimal
	TotalSpent         decimal.Decimal
	RecentTransactions []domain.UsageRecord
	LastPayment        *domain.UsageRecord
	CurrentRequirement *domain.PaymentRequirement
	PendingAttempt     *domain.UsageRecord
	LastError          string
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ConnectionStatus:   c.status,
		IsConnected:        c.status == domain.StatusConnected || c.status == domain.StatusPaymentRequired,
		Authenticated:      c.authenticated,
		SessionCost:        c.ledger.SessionCost(),
		TotalSpent:         c.ledger.TotalSpent(),
		RecentTransactions: c.ledger.Recent(),
		LastPayment:        c.ledger.LastPayment(),
		LastError:          c.lastError,
	}
	if c.current != nil {
		current := *c.current
		snap.CurrentRequirement = &current
	}
	if c.pendingAttempt != nil {
		pending := *c.pendingAttempt
		snap.PendingAttempt = &pending
	}

	return snap
}
