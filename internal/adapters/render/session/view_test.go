package session

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/x402-pay-cli/internal/application"
	"github.com/bnema/x402-pay-cli/internal/domain"
)

func TestRenderConnectedSessionShowsTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	output, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusConnected,
		IsConnected:      true,
		Authenticated:    true,
		SessionCost:      decimal.RequireFromString("0.002"),
		TotalSpent:       decimal.RequireFromString("12.3456"),
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "x402 payment session")
	assert.Contains(t, output, "status:")
	assert.Contains(t, output, "connected")
	assert.Contains(t, output, "(authenticated)")
	assert.Contains(t, output, "0.002")
	assert.Contains(t, output, "12.3456")
	assert.Contains(t, output, "No payments settled this session.")
}

func TestRenderPaymentRequiredShowsDemandAndCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	output, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusPaymentRequired,
		IsConnected:      true,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		CurrentRequirement: &domain.PaymentRequirement{
			Amount:    decimal.RequireFromString("0.002"),
			Currency:  "USDC",
			Network:   "base",
			Address:   "0xabc0000000000000000000000000000000000001",
			Resource:  "getAccounts",
			Memo:      "invoice-42",
			ExpiresAt: now.Add(5 * time.Minute),
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "payment required")
	assert.Contains(t, output, "Payment required: 0.002 USDC on base")
	assert.Contains(t, output, "pay to: 0xabc0000000000000000000000000000000000001")
	assert.Contains(t, output, "tool: getAccounts")
	assert.Contains(t, output, "memo: invoice-42")
	assert.Contains(t, output, "expires: in 5m0s")
}

func TestRenderExpiredDemandIsMarked(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	output, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusPaymentRequired,
		IsConnected:      true,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		CurrentRequirement: &domain.PaymentRequirement{
			Amount:    decimal.RequireFromString("0.002"),
			Currency:  "USDC",
			Network:   "base",
			Address:   "0xabc0000000000000000000000000000000000001",
			ExpiresAt: now.Add(-time.Minute),
		},
		LastError: domain.ErrRequirementExpired.Error(),
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "expires: expired")
	assert.Contains(t, output, "last error: payment requirement expired")
}

func TestRenderDemandWithoutExpiryOrNow(t *testing.T) {
	expiresAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	withoutExpiry, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusPaymentRequired,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		CurrentRequirement: &domain.PaymentRequirement{
			Amount:   decimal.RequireFromString("0.002"),
			Currency: "USDC",
			Network:  "base",
			Address:  "0xabc0000000000000000000000000000000000001",
		},
	}, RenderOptions{Now: time.Now()})
	require.NoError(t, err)
	assert.Contains(t, withoutExpiry, "expires: never")

	withoutNow, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusPaymentRequired,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		CurrentRequirement: &domain.PaymentRequirement{
			Amount:    decimal.RequireFromString("0.002"),
			Currency:  "USDC",
			Network:   "base",
			Address:   "0xabc0000000000000000000000000000000000001",
			ExpiresAt: expiresAt,
		},
	}, RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, withoutNow, "expires: 2026-03-01T10:30:00Z")
}

func TestRenderRecentPaymentsWithStatusGlyphs(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	output, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusConnected,
		IsConnected:      true,
		SessionCost:      decimal.RequireFromString("0.003"),
		TotalSpent:       decimal.RequireFromString("0.003"),
		RecentTransactions: []domain.UsageRecord{
			{
				ID:        "rec-2",
				Tool:      "search",
				Cost:      decimal.RequireFromString("0.001"),
				Timestamp: now,
				TxHash:    "0xbeef",
				Status:    domain.RecordStatusConfirmed,
			},
			{
				ID:        "rec-1",
				Tool:      "getAccounts",
				Cost:      decimal.RequireFromString("0.002"),
				Timestamp: now.Add(-time.Minute),
				Status:    domain.RecordStatusFailed,
			},
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "recent payments: 2")
	assert.Contains(t, output, "+ 0.001  search")
	assert.Contains(t, output, "tx 0xbeef")
	assert.Contains(t, output, "10:00:00")
	assert.Contains(t, output, "x 0.002  getAccounts")
	assert.NotContains(t, output, "No payments settled")
}

func TestRenderPendingAttemptLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	output, err := Render(application.Snapshot{
		ConnectionStatus: domain.StatusConnected,
		IsConnected:      true,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		PendingAttempt: &domain.UsageRecord{
			ID:     "rec-1",
			Tool:   "getAccounts",
			Cost:   decimal.RequireFromString("0.002"),
			Status: domain.RecordStatusPending,
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "~ submitting 0.002 for getAccounts, awaiting settlement")
}

func TestViewMatchesRender(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := application.Snapshot{
		ConnectionStatus: domain.StatusDisconnected,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		LastError:        "dial refused",
	}

	rendered, err := Render(snap, RenderOptions{Now: now})
	require.NoError(t, err)

	assert.Equal(t, rendered, View(snap, RenderOptions{Now: now}))
	assert.Contains(t, rendered, "disconnected")
	assert.Contains(t, rendered, "last error: dial refused")
}
