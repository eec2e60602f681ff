package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

// countdownInterval is how often the expiry countdown is recomputed.
const countdownInterval = time.Second

// defaultInvokeMethod is submitted when a requirement does not name the
// tool it unlocks.
const defaultInvokeMethod = "x402/verify"

// Coordinator drives the payment session: it owns the connection state
// machine, the ledger and the current payment demand. All mutable state
// lives behind one mutex; channel events are applied by a single
// goroutine in arrival order. External readers only ever get snapshots.
type Coordinator struct {
	channel     ports.Channel
	wallet      ports.Wallet
	facilitator ports.Facilitator
	clock       ports.Clock
	log         *slog.Logger

	submissions singleflight.Group

	tickInterval time.Duration

	mu             sync.Mutex
	status         domain.ConnectionStatus
	ledger         *domain.Ledger
	current        *domain.PaymentRequirement
	pendingAttempt *domain.UsageRecord
	userID         string
	authenticated  bool
	lastError      string
	expiredKey     string
	opened         bool
	closed         bool
	loopCancel     context.CancelFunc
	loopDone       sync.WaitGroup
}

func NewCoordinator(channel ports.Channel, wallet ports.Wallet, facilitator ports.Facilitator, clock ports.Clock, log *slog.Logger) *Coordinator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coordinator{
		channel:      channel,
		wallet:       wallet,
		facilitator:  facilitator,
		clock:        clock,
		log:          log,
		tickInterval: countdownInterval,
		status:       domain.StatusDisconnected,
		ledger:       domain.NewLedger(),
	}
}

// Open connects the realtime channel for the given user, starts the
// event and countdown loops, and seeds the lifetime total from the
// backend. A failed seed is logged and ignored. Open is idempotent
// while the session is live and returns domain.ErrChannelClosed after
// Close.
func (c *Coordinator) Open(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.opened {
		c.mu.Unlock()
		return nil
	}
	if err := c.transitionLocked(domain.StatusConnecting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.opened = true
	c.userID = userID
	c.mu.Unlock()

	if err := c.channel.Open(ctx, userID); err != nil {
		c.mu.Lock()
		c.applyTransitionLocked(domain.StatusDisconnected)
		c.opened = false
		c.mu.Unlock()
		return fmt.Errorf("open channel: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.loopCancel = cancel
	c.mu.Unlock()

	c.loopDone.Add(2)
	go c.consumeEvents(loopCtx)
	go c.watchExpiry(loopCtx)

	if err := c.RefreshStatus(ctx); err != nil {
		c.log.Warn("billing status seed failed", "error", err)
	}

	return nil
}

// MakePayment signs and submits a payment for the requirement. A nil
// requirement pays the current demand. Concurrent calls for the same
// requirement share a single submission and its outcome.
//
// True means the verification endpoint accepted the payment; the ledger
// stays untouched until the settlement event arrives on the channel.
// False carries the reason: expiry, wallet refusal, verification
// rejection or transport failure. None of these are fatal to the
// session.
func (c *Coordinator) MakePayment(ctx context.Context, req *domain.PaymentRequirement) (bool, error) {
	if req == nil {
		c.mu.Lock()
		if c.current == nil {
			c.mu.Unlock()
			return false, domain.ErrNoRequirement
		}
		current := *c.current
		c.mu.Unlock()
		req = &current
	}

	if req.Expired(c.clock.Now()) {
		c.noteExpired(*req)
		return false, domain.ErrRequirementExpired
	}

	_, err, shared := c.submissions.Do(req.Key(), func() (any, error) {
		return nil, c.submit(ctx, *req)
	})
	if shared {
		c.log.Debug("joined in-flight submission", "requirement", req.Key())
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (c *Coordinator) submit(ctx context.Context, req domain.PaymentRequirement) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	userID := c.userID
	if err := c.transitionLocked(domain.StatusConnecting); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.current == nil || c.current.Key() != req.Key() {
		demanded := req
		c.current = &demanded
	}
	pending := domain.UsageRecord{
		ID:        uuid.NewString(),
		Tool:      req.Resource,
		Cost:      req.Amount,
		Timestamp: c.clock.Now(),
		Status:    domain.RecordStatusPending,
	}
	c.pendingAttempt = &pending
	c.mu.Unlock()

	witness, err := c.wallet.Sign(ctx, req.TransferIntent())
	if err != nil {
		return c.failSubmission(req, fmt.Errorf("sign transfer: %w", err))
	}

	subCtx := ctx
	if req.HasExpiry() {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithDeadline(ctx, req.ExpiresAt)
		defer cancel()
	}

	err = c.facilitator.Submit(subCtx, ports.Submission{
		UserID:      userID,
		Requirement: req,
		Witness:     witness,
		Method:      invokeMethod(req),
	})
	if err != nil {
		// The submission deadline is the requirement's expiry; when it
		// fires without the caller's context being done, the window
		// lapsed with no definitive answer.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: no verification response before expiry", domain.ErrRequirementExpired)
		}
		return c.failSubmission(req, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.lastError = ""
	c.applyTransitionLocked(domain.StatusConnected)
	c.log.Info("payment submitted", "amount", req.Amount.String(), "currency", req.Currency, "network", req.Network)

	return nil
}

func (c *Coordinator) failSubmission(req domain.PaymentRequirement, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return err
	}
	c.lastError = err.Error()
	if c.pendingAttempt != nil {
		failed := c.pendingAttempt.Failed(c.clock.Now())
		c.log.Warn("payment attempt failed", "record", failed.ID, "tool", failed.Tool, "error", err)
		c.pendingAttempt = nil
	}
	c.applyTransitionLocked(domain.StatusPaymentRequired)

	return err
}

// RefreshStatus re-fetches the backend billing status and seeds the
// lifetime total. On failure all prior state stays unchanged.
func (c *Coordinator) RefreshStatus(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	status, err := c.facilitator.Status(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch billing status: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = status.Authenticated
	if status.TotalPaid.Valid {
		c.ledger.SeedTotalSpent(status.TotalPaid.Decimal)
	}

	return nil
}

// SetPaymentRequired is the manual override: true forces the session
// into payment_required, false clears the current demand back to
// connected.
func (c *Coordinator) SetPaymentRequired(required bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if required {
		return c.transitionLocked(domain.StatusPaymentRequired)
	}

	c.current = nil
	c.pendingAttempt = nil
	c.lastError = ""
	c.expiredKey = ""
	if c.status == domain.StatusPaymentRequired {
		return c.transitionLocked(domain.StatusConnected)
	}

	return nil
}

// Close tears the session down: the channel closes (cancelling its
// reconnect timer), both loops stop, and any in-flight submission
// completes naturally with its result discarded. Close is terminal and
// idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.loopCancel
	c.mu.Unlock()

	var err error
	if c.channel != nil {
		err = c.channel.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.loopDone.Wait()

	c.mu.Lock()
	c.applyTransitionLocked(domain.StatusDisconnected)
	c.mu.Unlock()

	return err
}

func (c *Coordinator) consumeEvents(ctx context.Context) {
	defer c.loopDone.Done()

	events := c.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.apply(ev)
		}
	}
}

// apply folds one channel event into the session state. Events arrive
// on a single goroutine, so ordering is the channel's arrival order.
func (c *Coordinator) apply(ev domain.ChannelEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case domain.EventConnecting:
		c.applyTransitionLocked(domain.StatusConnecting)

	case domain.EventConnected:
		c.applyTransitionLocked(domain.StatusConnected)
		if c.current != nil && !c.current.Expired(c.clock.Now()) {
			// The demand outlived the drop; surface it again.
			c.applyTransitionLocked(domain.StatusPaymentRequired)
		}

	case domain.EventDisconnected:
		if ev.Reason != "" {
			c.log.Debug("channel disconnected", "reason", ev.Reason)
		}
		c.applyTransitionLocked(domain.StatusDisconnected)

	case domain.EventPaymentRequired:
		if ev.Requirement == nil {
			c.log.Warn("payment_required event without requirement")
			return
		}
		if err := c.transitionLocked(domain.StatusPaymentRequired); err != nil {
			c.log.Error("refused payment demand", "error", err)
			return
		}
		demanded := *ev.Requirement
		c.current = &demanded
		c.lastError = ""
		c.expiredKey = ""
		c.log.Info("payment required",
			"amount", demanded.Amount.String(),
			"currency", demanded.Currency,
			"network", demanded.Network)

	case domain.EventPaymentConfirmed:
		if ev.Record == nil {
			c.log.Warn("payment_confirmed event without record")
			return
		}
		c.settleLocked(*ev.Record)

	default:
		c.log.Debug("ignoring channel event", "type", string(ev.Type))
	}
}

// settleLocked books a confirmed record. Settlement is authoritative:
// it lands in the ledger even when the demand it answers is no longer
// current, but a stale confirmation never re-enters payment_required.
func (c *Coordinator) settleLocked(rec domain.UsageRecord) {
	if rec.Status != domain.RecordStatusConfirmed {
		rec.Status = domain.RecordStatusConfirmed
	}

	if p := c.pendingAttempt; p != nil && rec.Cost.Equal(p.Cost) {
		c.pendingAttempt = nil
	}

	c.ledger.RecordConfirmed(rec)
	c.log.Info("payment confirmed", "record", rec.ID, "tool", rec.Tool, "cost", rec.Cost.String(), "tx", rec.TxHash)

	if c.current == nil || !rec.Cost.Equal(c.current.Amount) {
		return
	}
	c.current = nil
	c.lastError = ""
	c.expiredKey = ""
	if c.status == domain.StatusPaymentRequired {
		c.applyTransitionLocked(domain.StatusConnected)
	}
}

func (c *Coordinator) watchExpiry(ctx context.Context) {
	defer c.loopDone.Done()

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkExpiry()
		}
	}
}

func (c *Coordinator) checkExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || !c.current.Expired(c.clock.Now()) {
		return
	}
	if c.expiredKey == c.current.Key() {
		return
	}
	c.expiredKey = c.current.Key()
	c.lastError = domain.ErrRequirementExpired.Error()
	if c.pendingAttempt != nil {
		failed := c.pendingAttempt.Failed(c.clock.Now())
		c.log.Warn("pending attempt expired", "record", failed.ID)
		c.pendingAttempt = nil
	}
	// The session stays in payment_required until a fresh demand arrives
	// or the demand is cleared explicitly.
	c.log.Warn("payment requirement expired",
		"amount", c.current.Amount.String(),
		"currency", c.current.Currency)
}

func (c *Coordinator) noteExpired(req domain.PaymentRequirement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = domain.ErrRequirementExpired.Error()
	if c.current != nil && c.current.Key() == req.Key() {
		c.expiredKey = req.Key()
	}
	c.log.Warn("refusing to submit expired requirement",
		"amount", req.Amount.String(),
		"currency", req.Currency)
}

// transitionLocked validates a status change against the table and
// returns the table's verdict. Callers that must not fail use
// applyTransitionLocked instead.
func (c *Coordinator) transitionLocked(next domain.ConnectionStatus) error {
	status, err := domain.Transition(c.status, next)
	if err != nil {
		return err
	}
	c.status = status
	return nil
}

// applyTransitionLocked applies a change that the caller believes is
// always legal. A table refusal here is a logic error: it is logged
// loudly and the state is left untouched rather than silently forced.
func (c *Coordinator) applyTransitionLocked(next domain.ConnectionStatus) {
	if err := c.transitionLocked(next); err != nil {
		c.log.Error("connection transition refused", "error", err)
	}
}

func invokeMethod(req domain.PaymentRequirement) string {
	if req.Resource != "" {
		return req.Resource
	}
	return defaultInvokeMethod
}
