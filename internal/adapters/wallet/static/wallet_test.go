package static

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testIntent() domain.TransferIntent {
	return domain.TransferIntent{
		To:       "0xabc0000000000000000000000000000000000001",
		Amount:   decimal.RequireFromString("0.002"),
		Currency: "USDC",
		Network:  "base-sepolia",
	}
}

type devPayload struct {
	From     string                `json:"from"`
	Transfer domain.TransferIntent `json:"transfer"`
	Nonce    string                `json:"nonce"`
	SignedAt time.Time             `json:"signedAt"`
}

func TestConnectReturnsConfiguredIdentity(t *testing.T) {
	t.Parallel()

	w := Wallet{Address: "0x1111111111111111111111111111111111111111", Network: "base"}

	identity, err := w.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", identity.Address)
	assert.Equal(t, "base", identity.Network)
}

func TestConnectWithoutAddressIsUnavailable(t *testing.T) {
	t.Parallel()

	_, err := Wallet{Network: "base"}.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrWalletUnavailable)
}

func TestSignStampsDevWitness(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := Wallet{
		Address: "0x1111111111111111111111111111111111111111",
		Network: "base",
		Clock:   fixedClock{now: now},
	}
	intent := testIntent()

	witness, err := w.Sign(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "dev", witness.Scheme)
	assert.Equal(t, "base-sepolia", witness.Network, "the intent network wins over the wallet default")

	var payload devPayload
	require.NoError(t, json.Unmarshal(witness.Payload, &payload))
	assert.Equal(t, "0x1111111111111111111111111111111111111111", payload.From)
	assert.Equal(t, intent.To, payload.Transfer.To)
	assert.True(t, payload.Transfer.Amount.Equal(intent.Amount))
	assert.Equal(t, "USDC", payload.Transfer.Currency)
	assert.NotEmpty(t, payload.Nonce)
	assert.True(t, payload.SignedAt.Equal(now))
}

func TestSignNoncesAreUnique(t *testing.T) {
	t.Parallel()

	w := Wallet{Address: "0x1111111111111111111111111111111111111111", Network: "base"}

	first, err := w.Sign(context.Background(), testIntent())
	require.NoError(t, err)
	second, err := w.Sign(context.Background(), testIntent())
	require.NoError(t, err)

	var a, b devPayload
	require.NoError(t, json.Unmarshal(first.Payload, &a))
	require.NoError(t, json.Unmarshal(second.Payload, &b))
	assert.NotEqual(t, a.Nonce, b.Nonce)
}

func TestSignFallsBackToWalletNetwork(t *testing.T) {
	t.Parallel()

	w := Wallet{Address: "0x1111111111111111111111111111111111111111", Network: "base"}
	intent := testIntent()
	intent.Network = ""

	witness, err := w.Sign(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "base", witness.Network)
}

func TestSignWithoutAddressIsUnavailable(t *testing.T) {
	t.Parallel()

	_, err := Wallet{Network: "base"}.Sign(context.Background(), testIntent())
	require.ErrorIs(t, err, domain.ErrWalletUnavailable)
}

func TestSignHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	w := Wallet{Address: "0x1111111111111111111111111111111111111111", Network: "base"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Sign(ctx, testIntent())
	require.ErrorIs(t, err, context.Canceled)
}
