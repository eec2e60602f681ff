package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusConfirmed RecordStatus = "confirmed"
	RecordStatusFailed    RecordStatus = "failed"
)

func (s RecordStatus) Terminal() bool {
	return s == RecordStatusConfirmed || s == RecordStatusFailed
}

// UsageRecord is one paid tool invocation. Records are values; once a
// record reaches a terminal status further status changes are ignored.
type UsageRecord struct {
	ID        string
	Tool      string
	Cost      decimal.Decimal
	Timestamp time.Time
	TxHash    string
	Status    RecordStatus
}

// Confirmed returns a confirmed copy of the record. Terminal records
// are returned unchanged.
func (r UsageRecord) Confirmed(txHash string, at time.Time) UsageRecord {
	if r.Status.Terminal() {
		return r
	}
	r.Status = RecordStatusConfirmed
	if txHash != "" {
		r.TxHash = txHash
	}
	if !at.IsZero() {
		r.Timestamp = at
	}
	return r
}

// Failed returns a failed copy of the record. Terminal records are
// returned unchanged.
func (r UsageRecord) Failed(at time.Time) UsageRecord {
	if r.Status.Terminal() {
		return r
	}
	r.Status = RecordStatusFailed
	if !at.IsZero() {
		r.Timestamp = at
	}
	return r
}
