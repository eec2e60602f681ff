// Package static is a development wallet: it answers with a configured
// identity and stamps pre-authorized witnesses without any cryptography.
// Useful against local backends that skip on-chain verification.
package static

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

const witnessScheme = "dev"

type Wallet struct {
	Address string
	Network string
	Clock   ports.Clock
}

var _ ports.Wallet = Wallet{}

func (w Wallet) Connect(ctx context.Context) (domain.WalletIdentity, error) {
	if err := ctx.Err(); err != nil {
		return domain.WalletIdentity{}, err
	}
	if w.Address == "" {
		return domain.WalletIdentity{}, fmt.Errorf("%w: static wallet has no address configured", domain.ErrWalletUnavailable)
	}

	return domain.WalletIdentity{Address: w.Address, Network: w.Network}, nil
}

// Sign stamps a dev witness over the intent. The payload echoes the
// transfer plus a fresh nonce so each witness stays unique; backends
// that accept the dev scheme treat it as pre-authorized.
func (w Wallet) Sign(ctx context.Context, intent domain.TransferIntent) (domain.PaymentWitness, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaymentWitness{}, err
	}
	if w.Address == "" {
		return domain.PaymentWitness{}, fmt.Errorf("%w: static wallet has no address configured", domain.ErrWalletUnavailable)
	}

	payload, err := json.Marshal(struct {
		From     string                `json:"from"`
		Transfer domain.TransferIntent `json:"transfer"`
		Nonce    string                `json:"nonce"`
		SignedAt string                `json:"signedAt"`
	}{
		From:     w.Address,
		Transfer: intent,
		Nonce:    uuid.NewString(),
		SignedAt: w.clock().Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return domain.PaymentWitness{}, fmt.Errorf("%w: encode dev witness: %v", domain.ErrSigningFailed, err)
	}

	network := intent.Network
	if network == "" {
		network = w.Network
	}

	return domain.PaymentWitness{
		Scheme:  witnessScheme,
		Network: network,
		Payload: payload,
	}, nil
}

func (w Wallet) clock() ports.Clock {
	if w.Clock != nil {
		return w.Clock
	}
	return ports.SystemClock{}
}
