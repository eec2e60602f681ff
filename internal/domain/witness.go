package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WalletIdentity is the connected wallet's public identity.
type WalletIdentity struct {
	Address string
	Network string
}

// TransferIntent is the unsigned payment the wallet is asked to
// authorize: who gets paid, how much, on which network.
type TransferIntent struct {
	To         string          `json:"to"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Network    string          `json:"network"`
	Memo       string          `json:"memo,omitempty"`
	ValidUntil time.Time       `json:"validUntil,omitzero"`
}

// PaymentWitness is the signed transfer authorization produced by the
// wallet. Payload is opaque to this client; it travels verbatim to the
// verification endpoint and is never inspected or persisted.
type PaymentWitness struct {
	Scheme  string          `json:"scheme"`
	Network string          `json:"network"`
	Payload json.RawMessage `json:"payload"`
}

func (w PaymentWitness) Empty() bool {
	return w.Scheme == "" && len(w.Payload) == 0
}
