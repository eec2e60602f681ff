package ws

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

// eventEnvelope is the wire shape of every channel message. Fields
// beyond Type are populated per event kind: payment_required nests the
// requirement, payment_confirmed carries the settlement inline.
type eventEnvelope struct {
	Type            string           `json:"type"`
	Requirement     *wireRequirement `json:"requirement"`
	ID              string           `json:"id"`
	Tool            string           `json:"tool"`
	Amount          string           `json:"amount"`
	TransactionHash string           `json:"transaction_hash"`
	Timestamp       *time.Time       `json:"timestamp"`
}

type wireRequirement struct {
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
	Network   string     `json:"network"`
	Address   string     `json:"address"`
	Resource  string     `json:"resource"`
	Memo      string     `json:"memo"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (e eventEnvelope) paymentRequirement(now time.Time) (domain.PaymentRequirement, error) {
	if e.Requirement == nil {
		return domain.PaymentRequirement{}, fmt.Errorf("missing requirement")
	}

	amount, err := decimal.NewFromString(e.Requirement.Amount)
	if err != nil {
		return domain.PaymentRequirement{}, fmt.Errorf("parse amount %q: %w", e.Requirement.Amount, err)
	}

	req := domain.PaymentRequirement{
		Amount:   amount,
		Currency: e.Requirement.Currency,
		Network:  e.Requirement.Network,
		Address:  e.Requirement.Address,
		Resource: e.Requirement.Resource,
		Memo:     e.Requirement.Memo,
	}
	if e.Requirement.ExpiresAt != nil {
		req.ExpiresAt = *e.Requirement.ExpiresAt
	}

	if err := req.Validate(now); err != nil {
		return domain.PaymentRequirement{}, err
	}

	return req, nil
}

func (e eventEnvelope) usageRecord(now time.Time) (domain.UsageRecord, error) {
	cost, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("parse amount %q: %w", e.Amount, err)
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	timestamp := now
	if e.Timestamp != nil {
		timestamp = *e.Timestamp
	}

	return domain.UsageRecord{
		ID:        id,
		Tool:      e.Tool,
		Cost:      cost,
		Timestamp: timestamp,
		TxHash:    e.TransactionHash,
		Status:    domain.RecordStatusConfirmed,
	}, nil
}
