package domain

type ChannelEventType string

const (
	// EventConnecting is emitted when the channel starts a reconnect
	// attempt after a drop. The initial dial does not emit it; that
	// transition belongs to the caller of Open.
	EventConnecting       ChannelEventType = "connecting"
	EventConnected        ChannelEventType = "connected"
	EventDisconnected     ChannelEventType = "disconnected"
	EventPaymentRequired  ChannelEventType = "payment_required"
	EventPaymentConfirmed ChannelEventType = "payment_confirmed"
)

// ChannelEvent is one decoded message from the realtime channel.
// Requirement is set for payment_required events, Record for
// payment_confirmed, Reason for disconnections.
type ChannelEvent struct {
	Type        ChannelEventType
	Requirement *PaymentRequirement
	Record      *UsageRecord
	Reason      string
}
