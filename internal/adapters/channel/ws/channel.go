package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReconnectDelay   = 3 * time.Second
	maxMessageSize          = 1 << 20
	eventBuffer             = 32
)

// Channel keeps one websocket to the backend event stream alive. After
// a drop it schedules exactly one reconnect attempt on an owned timer
// and keeps retrying until Close. Decoded events are delivered in
// arrival order on a single buffered channel.
type Channel struct {
	endpoint string
	dialer   *websocket.Dialer
	delay    backoff.BackOff
	clock    ports.Clock
	log      *slog.Logger

	events chan domain.ChannelEvent
	done   chan struct{}

	mu             sync.Mutex
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	userID         string
	opened         bool
	closed         bool

	readers sync.WaitGroup
	pending sync.WaitGroup
}

var _ ports.Channel = (*Channel)(nil)

type Config struct {
	// URL is the ws:// or wss:// endpoint of the event stream.
	URL              string
	HandshakeTimeout time.Duration
	// ReconnectDelay is the fixed pause between a drop and the next
	// dial attempt.
	ReconnectDelay time.Duration
	Clock          ports.Clock
	Logger         *slog.Logger
}

func New(cfg Config) (*Channel, error) {
	endpoint, err := buildEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Channel{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshake,
		},
		delay:  backoff.NewConstantBackOff(delay),
		clock:  clock,
		log:    log,
		events: make(chan domain.ChannelEvent, eventBuffer),
		done:   make(chan struct{}),
	}, nil
}

func buildEndpoint(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("channel URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse channel URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("channel URL must use ws or wss scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("channel URL is missing a host")
	}
	return u.String(), nil
}

// Open dials the event stream for the given user. It is a no-op while
// the channel is already open and returns domain.ErrChannelClosed after
// Close. An empty user identity leaves the channel offline: the stream
// is keyed by user, so there is nothing to subscribe to.
func (c *Channel) Open(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.opened {
		c.mu.Unlock()
		return nil
	}
	if strings.TrimSpace(userID) == "" {
		c.mu.Unlock()
		c.log.Warn("no user identity; realtime channel stays offline")
		return nil
	}
	c.userID = userID
	c.opened = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.opened = false
		c.mu.Unlock()
		return fmt.Errorf("dial realtime channel: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return domain.ErrChannelClosed
	}
	c.conn = conn
	c.readers.Add(1)
	c.mu.Unlock()

	c.emit(domain.ChannelEvent{Type: domain.EventConnected})
	go c.readLoop(conn)

	return nil
}

func (c *Channel) Events() <-chan domain.ChannelEvent {
	return c.events
}

// Close cancels any pending reconnect, closes the socket and seals the
// event stream. It is terminal and idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.reconnectTimer != nil {
		if c.reconnectTimer.Stop() {
			c.pending.Done()
		}
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.done)

	var err error
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = conn.Close()
	}

	c.readers.Wait()
	c.pending.Wait()
	close(c.events)

	return err
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("user_id", userID)
	endpoint.RawQuery = query.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)

	return conn, nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.readers.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(err)
			return
		}
		c.handleMessage(data)
	}
}

func (c *Channel) handleDrop(err error) {
	c.mu.Lock()
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}

	c.log.Warn("realtime channel lost", "error", err)
	c.emit(domain.ChannelEvent{Type: domain.EventDisconnected, Reason: err.Error()})
	c.scheduleReconnect()
}

// scheduleReconnect arms the owned reconnect timer. At most one attempt
// is ever pending; a failed attempt arms the next one.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnectTimer != nil {
		return
	}

	delay := c.delay.NextBackOff()
	c.log.Info("reconnecting realtime channel", "in", delay)
	c.pending.Add(1)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		defer c.pending.Done()
		c.redial()
	})
}

func (c *Channel) redial() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()

	c.emit(domain.ChannelEvent{Type: domain.EventConnecting})

	ctx, cancel := context.WithTimeout(context.Background(), c.dialer.HandshakeTimeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		c.log.Warn("reconnect failed", "error", err)
		c.emit(domain.ChannelEvent{Type: domain.EventDisconnected, Reason: err.Error()})
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.readers.Add(1)
	c.mu.Unlock()

	c.delay.Reset()
	c.log.Info("realtime channel restored")
	c.emit(domain.ChannelEvent{Type: domain.EventConnected})
	go c.readLoop(conn)
}

// handleMessage decodes one wire payload. Malformed payloads are
// logged and dropped; unknown event types are ignored. Neither ever
// tears the connection down.
func (c *Channel) handleMessage(data []byte) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping malformed channel payload", "error", err)
		return
	}

	switch env.Type {
	case string(domain.EventPaymentRequired):
		req, err := env.paymentRequirement(c.clock.Now())
		if err != nil {
			c.log.Warn("dropping malformed payment_required event", "error", err)
			return
		}
		c.emit(domain.ChannelEvent{Type: domain.EventPaymentRequired, Requirement: &req})

	case string(domain.EventPaymentConfirmed):
		rec, err := env.usageRecord(c.clock.Now())
		if err != nil {
			c.log.Warn("dropping malformed payment_confirmed event", "error", err)
			return
		}
		c.emit(domain.ChannelEvent{Type: domain.EventPaymentConfirmed, Record: &rec})

	case "":
		c.log.Warn("dropping channel payload without event type")

	default:
		c.log.Debug("ignoring channel event", "type", env.Type)
	}
}

func (c *Channel) emit(ev domain.ChannelEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
