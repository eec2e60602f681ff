package domain

import "github.com/shopspring/decimal"

// RecentTransactionLimit caps the rolling transaction history. When a
// new record lands on a full ledger the oldest inserted one drops.
const RecentTransactionLimit = 10

// Ledger is the session's spending book. It never performs I/O and is
// mutated only by confirmed usage records; callers own synchronization.
type Ledger struct {
	sessionCost decimal.Decimal
	totalSpent  decimal.Decimal
	recent      []UsageRecord
	lastPayment *UsageRecord
}

func NewLedger() *Ledger {
	return &Ledger{
		sessionCost: decimal.Zero,
		totalSpent:  decimal.Zero,
	}
}

// RecordConfirmed settles a confirmed record into the ledger: both
// running totals grow by the record's cost and the record becomes the
// newest entry in the history.
func (l *Ledger) RecordConfirmed(rec UsageRecord) {
	l.sessionCost = l.sessionCost.Add(rec.Cost)
	l.totalSpent = l.totalSpent.Add(rec.Cost)

	l.recent = append([]UsageRecord{rec}, l.recent...)
	if len(l.recent) > RecentTransactionLimit {
		l.recent = l.recent[:RecentTransactionLimit]
	}

	last := rec
	l.lastPayment = &last
}

// SeedTotalSpent installs a lifetime total fetched from the backend.
// The total never decreases: a seed below the locally accumulated value
// is ignored.
func (l *Ledger) SeedTotalSpent(total decimal.Decimal) {
	if total.GreaterThan(l.totalSpent) {
		l.totalSpent = total
	}
}

func (l *Ledger) SessionCost() decimal.Decimal {
	return l.sessionCost
}

func (l *Ledger) TotalSpent() decimal.Decimal {
	return l.totalSpent
}

// Recent returns a copy of the history, newest first.
func (l *Ledger) Recent() []UsageRecord {
	if len(l.recent) == 0 {
		return nil
	}
	out := make([]UsageRecord, len(l.recent))
	copy(out, l.recent)
	return out
}

func (l *Ledger) LastPayment() *UsageRecord {
	if l.lastPayment == nil {
		return nil
	}
	last := *l.lastPayment
	return &last
}
