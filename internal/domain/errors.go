package domain

import (
	"errors"
	"fmt"
)

var (
	ErrChannelClosed      = errors.New("channel closed")
	ErrRequirementExpired = errors.New("payment requirement expired")
	ErrNoRequirement      = errors.New("no payment requirement")
	ErrWalletUnavailable  = errors.New("wallet unavailable")
	ErrUserRejected       = errors.New("signing rejected by user")
	ErrSigningFailed      = errors.New("signing failed")
)

// VerificationError is a definitive rejection from the verification
// endpoint. It is not retried automatically.
type VerificationError struct {
	StatusCode int
	Reason     string
}

func (e *VerificationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("verification rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("verification rejected (status %d): %s", e.StatusCode, e.Reason)
}

// InvalidTransitionError reports a connection status change that the
// transition table does not allow. It indicates a logic error in the
// caller, not a recoverable runtime condition.
type InvalidTransitionError struct {
	From ConnectionStatus
	To   ConnectionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid connection transition %s -> %s", e.From, e.To)
}
