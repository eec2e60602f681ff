package domain

// ConnectionStatus is the payment session's connection state as seen by
// consumers. The coordinator owns the current value; everything else
// reads snapshots.
type ConnectionStatus string

const (
	StatusDisconnected    ConnectionStatus = "disconnected"
	StatusConnecting      ConnectionStatus = "connecting"
	StatusConnected       ConnectionStatus = "connected"
	StatusPaymentRequired ConnectionStatus = "payment_required"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusPaymentRequired:
		return true
	default:
		return false
	}
}

// connectionTransitions is the full set of allowed status changes.
// A connection loss is global, so every live state may fall back to
// disconnected.
var connectionTransitions = map[ConnectionStatus]map[ConnectionStatus]struct{}{
	StatusDisconnected: {
		StatusConnecting: {},
	},
	StatusConnecting: {
		StatusConnected:       {},
		StatusDisconnected:    {},
		StatusPaymentRequired: {},
	},
	StatusConnected: {
		StatusConnecting:      {},
		StatusPaymentRequired: {},
		StatusDisconnected:    {},
	},
	StatusPaymentRequired: {
		StatusConnecting:   {},
		StatusConnected:    {},
		StatusDisconnected: {},
	},
}

// CanTransition reports whether moving from s to next is allowed.
// Same-state transitions are allowed and treated as no-ops.
func (s ConnectionStatus) CanTransition(next ConnectionStatus) bool {
	if s == next {
		return true
	}
	allowed, ok := connectionTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

// Transition validates a status change against the table. Unlisted
// transitions return an InvalidTransitionError and leave the caller's
// state untouched.
func Transition(from, to ConnectionStatus) (ConnectionStatus, error) {
	if !from.CanTransition(to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}
