package ports

import (
	"context"

	"github.com/bnema/x402-pay-cli/internal/domain"
)

// Channel is the persistent realtime connection to the tool backend.
//
// Open is idempotent while the channel is live and returns
// domain.ErrChannelClosed after Close. Events delivers decoded events
// strictly in arrival order; the channel owns reconnection and keeps
// the stream alive across drops. Close cancels any pending reconnect
// and is terminal; Events is closed once no further events can arrive.
type Channel interface {
	Open(ctx context.Context, userID string) error
	Events() <-chan domain.ChannelEvent
	Close() error
}
