package ports

import (
	"context"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

// Wallet is the external signing capability. Connect and Sign report
// domain.ErrWalletUnavailable, domain.ErrUserRejected and
// domain.ErrSigningFailed through errors.Is.
type Wallet interface {
	Connect(ctx context.Context) (domain.WalletIdentity, error)
	Sign(ctx context.Context, intent domain.TransferIntent) (domain.PaymentWitness, error)
}
