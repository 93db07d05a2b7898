// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package feeds

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/metrics"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/realtime"
	"github.com/adam-announ/fleetlive/internal/validation"
)

// NotificationsBackoff is the default reconnect policy for the notifications
// topic. It gives up much sooner than tracking: a missed toast is cheap, a
// reconnect storm across every open session is not.
var NotificationsBackoff = realtime.BackoffPolicy{
	BaseInterval: time.Second,
	MaxAttempts:  5,
}

// Read-receipt actions on the notifications topic.
const (
	actionMarkRead    = "mark_read"
	actionMarkAllRead = "mark_all_read"
)

// NotificationsConfig configures the notifications feed.
type NotificationsConfig struct {
	BaseURL string
	Token   string
	// Backoff defaults to NotificationsBackoff when zero.
	Backoff realtime.BackoffPolicy
}

// Notifications consumes the per-user notification topic and carries read
// receipts back to the server.
type Notifications struct {
	ch     *realtime.Channel
	router *realtime.Router

	mu      sync.Mutex
	started bool
}

// NewNotifications builds the feed without connecting.
func NewNotifications(cfg NotificationsConfig) (*Notifications, error) {
	backoff := cfg.Backoff
	if backoff.BaseInterval <= 0 && backoff.MaxAttempts <= 0 {
		backoff = NotificationsBackoff
	}

	ch, err := realtime.NewChannel(realtime.ChannelConfig{
		Kind:    realtime.TopicNotifications,
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Backoff: backoff,
	})
	if err != nil {
		return nil, err
	}

	n := &Notifications{
		ch:     ch,
		router: realtime.NewRouter(realtime.TopicNotifications.String()),
	}
	n.router.Register(models.MessageTypeError, logServerError)
	return n, nil
}

// OnNotification subscribes to validated incoming notifications.
func (n *Notifications) OnNotification(fn func(models.NotificationPayload)) (unsubscribe func()) {
	return realtime.RegisterTyped(n.router, models.MessageTypeNotification, fn)
}

// OnUnread subscribes to the unread backlog the server pushes immediately
// after each connect. Items that fail validation are dropped individually;
// the rest of the backlog is still delivered.
func (n *Notifications) OnUnread(fn func([]models.NotificationPayload)) (unsubscribe func()) {
	return n.router.Register(models.MessageTypeUnreadBacklog, func(env realtime.Envelope) {
		var raw []models.NotificationPayload
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			logging.Warn().Err(err).Msg("Dropping malformed unread backlog")
			metrics.MessagesDropped.WithLabelValues(realtime.TopicNotifications.String(), "malformed").Inc()
			return
		}
		backlog := raw[:0]
		for _, item := range raw {
			if verr := validation.ValidateStruct(&item); verr != nil {
				logging.Warn().Err(verr).Int64("id", item.ID).Msg("Dropping invalid backlog notification")
				metrics.MessagesDropped.WithLabelValues(realtime.TopicNotifications.String(), "invalid").Inc()
				continue
			}
			backlog = append(backlog, item)
		}
		fn(backlog)
	})
}

// OnStateChange exposes connection state transitions, for a badge that
// tells the user live notifications are degraded.
func (n *Notifications) OnStateChange(fn func(realtime.State)) (unsubscribe func()) {
	return n.ch.OnStateChange(fn)
}

// Start connects the channel.
func (n *Notifications) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nil
	}
	n.router.Bind(n.ch)
	if err := n.ch.Connect(ctx); err != nil {
		return err
	}
	n.started = true
	return nil
}

// MarkRead sends a read receipt for one notification. Returns false when
// the channel is not open; receipts are not queued.
func (n *Notifications) MarkRead(notificationID int64) bool {
	return n.ch.Send(models.MarkReadRequest{
		Action:         actionMarkRead,
		NotificationID: notificationID,
	})
}

// MarkAllRead sends a bulk read receipt.
func (n *Notifications) MarkAllRead() bool {
	return n.ch.Send(models.MarkAllReadRequest{Action: actionMarkAllRead})
}

// Stop disconnects. Safe to call twice.
func (n *Notifications) Stop() {
	n.mu.Lock()
	n.started = false
	n.mu.Unlock()
	n.ch.Disconnect()
}
