package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequirement(now time.Time) PaymentRequirement {
	return PaymentRequirement{
		Amount:    decimal.RequireFromString("0.002"),
		Currency:  "USDC",
		Network:   "base",
		Address:   "0xabc0000000000000000000000000000000000001",
		Resource:  "getAccounts",
		ExpiresAt: now.Add(2 * time.Minute),
	}
}

func TestPaymentRequirementValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*PaymentRequirement)
		wantErr string
	}{
		{name: "valid", mutate: func(*PaymentRequirement) {}},
		{
			name:   "valid without expiry",
			mutate: func(r *PaymentRequirement) { r.ExpiresAt = time.Time{} },
		},
		{
			name:    "zero amount",
			mutate:  func(r *PaymentRequirement) { r.Amount = decimal.Zero },
			wantErr: "amount must be positive",
		},
		{
			name:    "negative amount",
			mutate:  func(r *PaymentRequirement) { r.Amount = decimal.RequireFromString("-0.01") },
			wantErr: "amount must be positive",
		},
		{
			name:    "missing currency",
			mutate:  func(r *PaymentRequirement) { r.Currency = " " },
			wantErr: "currency is required",
		},
		{
			name:    "missing network",
			mutate:  func(r *PaymentRequirement) { r.Network = "" },
			wantErr: "network is required",
		},
		{
			name:    "missing address",
			mutate:  func(r *PaymentRequirement) { r.Address = "" },
			wantErr: "address is required",
		},
		{
			name:    "expiry in the past",
			mutate:  func(r *PaymentRequirement) { r.ExpiresAt = now.Add(-time.Second) },
			wantErr: "not in the future",
		},
		{
			name:    "expiry exactly now",
			mutate:  func(r *PaymentRequirement) { r.ExpiresAt = now },
			wantErr: "not in the future",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := validRequirement(now)
			tc.mutate(&req)
			err := req.Validate(now)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestPaymentRequirementExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := validRequirement(now)

	assert.True(t, req.HasExpiry())
	assert.False(t, req.Expired(now))
	assert.False(t, req.Expired(now.Add(2*time.Minute-time.Second)))
	assert.True(t, req.Expired(now.Add(2*time.Minute)))
	assert.True(t, req.Expired(now.Add(time.Hour)))

	assert.Equal(t, 2*time.Minute, req.ExpiresIn(now))
	assert.Equal(t, time.Duration(0), req.ExpiresIn(now.Add(time.Hour)))

	open := req
	open.ExpiresAt = time.Time{}
	assert.False(t, open.HasExpiry())
	assert.False(t, open.Expired(now.Add(1000*time.Hour)))
}

func TestPaymentRequirementKeyIdentity(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := validRequirement(now)
	b := validRequirement(now)
	require.Equal(t, a.Key(), b.Key())

	c := validRequirement(now)
	c.Amount = decimal.RequireFromString("0.003")
	assert.NotEqual(t, a.Key(), c.Key())

	d := validRequirement(now)
	d.Memo = "invoice-42"
	assert.NotEqual(t, a.Key(), d.Key())
}

func TestPaymentRequirementTransferIntent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := validRequirement(now)
	req.Memo = "invoice-42"

	intent := req.TransferIntent()

	assert.Equal(t, req.Address, intent.To)
	assert.True(t, intent.Amount.Equal(req.Amount))
	assert.Equal(t, "USDC", intent.Currency)
	assert.Equal(t, "base", intent.Network)
	assert.Equal(t, "invoice-42", intent.Memo)
	assert.Equal(t, req.ExpiresAt, intent.ValidUntil)
}

func TestUsageRecordTerminalImmutability(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pending := UsageRecord{ID: "rec-1", Tool: "getAccounts", Cost: decimal.New(2, -3), Status: RecordStatusPending}

	confirmed := pending.Confirmed("0xdead", at)
	require.Equal(t, RecordStatusConfirmed, confirmed.Status)
	require.Equal(t, "0xdead", confirmed.TxHash)

	again := confirmed.Failed(at.Add(time.Minute))
	assert.Equal(t, RecordStatusConfirmed, again.Status)
	assert.Equal(t, "0xdead", again.TxHash)

	failed := pending.Failed(at)
	require.Equal(t, RecordStatusFailed, failed.Status)
	reconfirmed := failed.Confirmed("0xbeef", at)
	assert.Equal(t, RecordStatusFailed, reconfirmed.Status)
	assert.Empty(t, reconfirmed.TxHash)
}
