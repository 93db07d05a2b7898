// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/metrics"
)

const handshakeTimeout = 10 * time.Second

// TopicKind identifies a realtime feed.
type TopicKind int

// Supported topics.
const (
	TopicTracking TopicKind = iota
	TopicDashboard
	TopicNotifications
)

// String returns the topic path segment, also used as a metrics label.
func (k TopicKind) String() string {
	switch k {
	case TopicTracking:
		return "tracking"
	case TopicDashboard:
		return "dashboard"
	case TopicNotifications:
		return "notifications"
	default:
		return "unknown"
	}
}

// ParamMissionID keys the mission identifier in ChannelConfig.Params.
const ParamMissionID = "mission_id"

// BackoffPolicy governs reconnection after unexpected closes.
// The delay before attempt n (1-based) is n * BaseInterval.
type BackoffPolicy struct {
	BaseInterval time.Duration
	MaxAttempts  int
}

// DefaultBackoff is the tracking/dashboard production policy.
var DefaultBackoff = BackoffPolicy{BaseInterval: 5 * time.Second, MaxAttempts: 10}

// Delay returns the wait before reconnect attempt n (1-based): n * BaseInterval.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseInterval
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.BaseInterval <= 0 {
		p.BaseInterval = DefaultBackoff.BaseInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultBackoff.MaxAttempts
	}
	return p
}

// ChannelConfig describes one logical connection. Immutable once the Channel
// is constructed.
type ChannelConfig struct {
	Kind    TopicKind
	Params  map[string]string
	BaseURL string // http(s) base URL of the backend
	Token   string // carried as ?token= on every topic when non-empty
	Backoff BackoffPolicy
}

// State is the connection state, owned exclusively by the Channel.
type State int

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Envelope is the inbound wire frame. Data is decoded lazily by the router.
// The "error" frame is the one irregular shape on the wire: it carries its
// text in a top-level message field instead of under data.
type Envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// ErrChannelClosed is returned by Connect after an explicit Disconnect.
// A Channel is single-use: construct a new one to reconnect.
var ErrChannelClosed = errors.New("realtime: channel has been disconnected")

// ErrChannelFailed is returned by Connect once the reconnect budget is
// exhausted.
var ErrChannelFailed = errors.New("realtime: channel failed after exhausting reconnect attempts")

type subscription[T any] struct {
	id int
	fn T
}

// Channel is one resilient duplex connection to a single realtime topic.
//
// All inbound messages and state changes are delivered sequentially from the
// channel's reader goroutine, preserving per-connection FIFO order. Across a
// reconnect no ordering or delivery guarantee holds; consumers must tolerate
// gaps.
type Channel struct {
	cfg     ChannelConfig
	backoff BackoffPolicy
	wsURL   string
	logger  zerolog.Logger

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	attempts       int
	reconnectTimer *time.Timer
	ctx            context.Context

	writeMu sync.Mutex

	subMu     sync.RWMutex
	nextSubID int
	msgSubs   []subscription[func(Envelope)]
	stateSubs []subscription[func(State)]

	// notifyMu serializes state-change delivery so observers see transitions
	// in the order they happened.
	notifyMu   sync.Mutex
	delivering bool
	stateQueue []State
}

// NewChannel validates the configuration and builds the topic URL.
// The returned Channel is Idle; call Connect to open it.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	cfg.Backoff = cfg.Backoff.withDefaults()

	wsURL, err := buildTopicURL(cfg)
	if err != nil {
		return nil, err
	}

	return &Channel{
		cfg:     cfg,
		backoff: cfg.Backoff,
		wsURL:   wsURL,
		state:   StateIdle,
		logger:  logging.With().Str("component", "channel").Str("topic", cfg.Kind.String()).Logger(),
	}, nil
}

// buildTopicURL converts the HTTP base URL into the topic's WebSocket URL.
//
// Patterns: /ws/tracking/<missionID>/, /ws/dashboard/, /ws/notifications/.
// The auth token rides as a ?token= query parameter on every topic.
func buildTopicURL(cfg ChannelConfig) (string, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return "", fmt.Errorf("base url %q has no host", cfg.BaseURL)
	}

	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}

	var path string
	switch cfg.Kind {
	case TopicTracking:
		missionID := cfg.Params[ParamMissionID]
		if missionID == "" {
			return "", errors.New("tracking topic requires a mission id")
		}
		path = fmt.Sprintf("/ws/tracking/%s/", url.PathEscape(missionID))
	case TopicDashboard:
		path = "/ws/dashboard/"
	case TopicNotifications:
		path = "/ws/notifications/"
	default:
		return "", fmt.Errorf("unsupported topic kind %d", cfg.Kind)
	}

	u := url.URL{Scheme: scheme, Host: base.Host, Path: path}
	if cfg.Token != "" {
		q := u.Query()
		q.Set("token", cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Topic returns the topic label ("tracking", "dashboard", "notifications").
func (c *Channel) Topic() string {
	return c.cfg.Kind.String()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the connection. Idempotent: calling while Connecting or Open
// is a no-op. After an explicit Disconnect or a terminal failure it returns
// an error; construct a new Channel instead.
//
// A failed dial is not returned to the caller: it is treated like an
// unexpected close and surfaces only as a Reconnecting state change.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateConnecting, StateOpen, StateReconnecting:
		c.mu.Unlock()
		return nil
	case StateClosed:
		c.mu.Unlock()
		return ErrChannelClosed
	case StateFailed:
		c.mu.Unlock()
		return ErrChannelFailed
	}

	c.ctx = ctx
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	c.flushStateChanges()

	c.dial()
	return nil
}

// dial attempts the WebSocket handshake and transitions accordingly.
func (c *Channel) dial() {
	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(c.ctx, c.wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("websocket dial failed")
		c.handleClose()
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// Disconnected while dialing; drop the fresh connection.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.attempts = 0
	c.setStateLocked(StateOpen)
	c.mu.Unlock()
	c.flushStateChanges()

	metrics.ChannelsActive.Inc()
	metrics.ConnectsTotal.WithLabelValues(c.Topic()).Inc()
	c.logger.Info().Msg("channel open")

	go c.readLoop(conn)
}

// readLoop pumps inbound frames to message subscribers until the connection
// drops. Runs on its own goroutine, one per connection instance; this is what
// gives per-connection FIFO delivery.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			explicit := c.state == StateClosed
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			metrics.ChannelsActive.Dec()

			if explicit {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("unexpected websocket close")
			} else {
				c.logger.Info().Msg("websocket closed")
			}
			c.handleClose()
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("dropping unparseable frame")
			metrics.MessagesDropped.WithLabelValues(c.Topic(), "malformed").Inc()
			continue
		}
		c.notifyMessage(env)
	}
}

// handleClose runs the reconnect policy after an unexpected close or a
// failed dial attempt.
func (c *Channel) handleClose() {
	c.mu.Lock()

	if c.state == StateClosed || c.state == StateFailed {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.backoff.MaxAttempts {
		c.setStateLocked(StateFailed)
		c.mu.Unlock()
		c.flushStateChanges()
		metrics.ChannelFailures.WithLabelValues(c.Topic()).Inc()
		c.logger.Error().Int("attempts", c.backoff.MaxAttempts).Msg("reconnect attempts exhausted, channel failed")
		return
	}

	c.attempts++
	delay := c.backoff.Delay(c.attempts)
	c.setStateLocked(StateReconnecting)
	c.reconnectTimer = time.AfterFunc(delay, c.retry)
	attempt := c.attempts
	c.mu.Unlock()
	c.flushStateChanges()

	metrics.ReconnectsTotal.WithLabelValues(c.Topic()).Inc()
	c.logger.Info().
		Int("attempt", attempt).
		Int("max_attempts", c.backoff.MaxAttempts).
		Dur("delay", delay).
		Msg("scheduling reconnect")
}

// retry fires from the backoff timer.
func (c *Channel) retry() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	if c.ctx != nil && c.ctx.Err() != nil {
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		c.flushStateChanges()
		return
	}
	c.mu.Unlock()

	c.dial()
}

// Send marshals v and writes it to the connection. Only has effect while
// Open; otherwise the message is dropped and Send returns false. Deliberate
// at-most-once, best-effort: nothing is queued while disconnected.
func (c *Channel) Send(v any) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		metrics.SendsDropped.WithLabelValues(c.Topic()).Inc()
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal outbound message")
		return false
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("websocket write failed")
		metrics.SendsDropped.WithLabelValues(c.Topic()).Inc()
		return false
	}
	return true
}

// OnMessage registers an observer for inbound envelopes. Multiple observers
// are allowed; the returned function unregisters this one. Safe to call the
// unsubscribe function more than once.
func (c *Channel) OnMessage(fn func(Envelope)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.msgSubs = append(c.msgSubs, subscription[func(Envelope)]{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, sub := range c.msgSubs {
			if sub.id == id {
				c.msgSubs = append(c.msgSubs[:i], c.msgSubs[i+1:]...)
				return
			}
		}
	}
}

// OnStateChange registers an observer for connection state transitions.
func (c *Channel) OnStateChange(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.stateSubs = append(c.stateSubs, subscription[func(State)]{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, sub := range c.stateSubs {
			if sub.id == id {
				c.stateSubs = append(c.stateSubs[:i], c.stateSubs[i+1:]...)
				return
			}
		}
	}
}

// Disconnect closes the channel permanently: cancels any pending reconnect,
// sends a close frame, and transitions to Closed. Idempotent: calling it
// again, or on a never-connected channel, is a no-op.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateClosed)
	c.mu.Unlock()
	c.flushStateChanges()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.logger.Info().Msg("channel disconnected")
}

// setStateLocked transitions state and queues observer notification.
// Must be called with c.mu held; callers invoke flushStateChanges after
// releasing the lock.
func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s

	c.notifyMu.Lock()
	c.stateQueue = append(c.stateQueue, s)
	c.notifyMu.Unlock()
}

// flushStateChanges delivers queued transitions to subscribers, preserving
// transition order. Runs outside c.mu so observers may call back into the
// channel.
func (c *Channel) flushStateChanges() {
	c.notifyMu.Lock()
	if c.delivering {
		// Another goroutine (possibly an observer triggering a transition)
		// is already draining; it will pick up what we queued.
		c.notifyMu.Unlock()
		return
	}
	c.delivering = true

	for len(c.stateQueue) > 0 {
		s := c.stateQueue[0]
		c.stateQueue = c.stateQueue[1:]
		c.notifyMu.Unlock()

		c.subMu.RLock()
		subs := make([]subscription[func(State)], len(c.stateSubs))
		copy(subs, c.stateSubs)
		c.subMu.RUnlock()

		for _, sub := range subs {
			sub.fn(s)
		}

		c.notifyMu.Lock()
	}

	c.delivering = false
	c.notifyMu.Unlock()
}

// notifyMessage fans an envelope out to subscribers, in registration order.
func (c *Channel) notifyMessage(env Envelope) {
	c.subMu.RLock()
	subs := make([]subscription[func(Envelope)], len(c.msgSubs))
	copy(subs, c.msgSubs)
	c.subMu.RUnlock()

	for _, sub := range subs {
		sub.fn(env)
	}
}
