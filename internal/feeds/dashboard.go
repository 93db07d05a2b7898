// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package feeds specializes the channel/router pair for the dashboard and
// notifications topics.
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
)

// DefaultRefreshInterval is how often the dashboard asks the server to push
// fresh aggregate stats.
const DefaultRefreshInterval = 30 * time.Second

// DashboardConfig configures the dashboard feed.
type DashboardConfig struct {
	BaseURL string
	Token   string
	Backoff realtime.BackoffPolicy
	// RefreshInterval between refresh_stats requests. Zero means
	// DefaultRefreshInterval; negative disables periodic refresh.
	RefreshInterval time.Duration
}

// Dashboard consumes the aggregate stats topic. The stats payload is an
// opaque mapping owned by the server; the feed hands it to subscribers
// without interpreting it.
type Dashboard struct {
	ch      *realtime.Channel
	router  *realtime.Router
	refresh time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	started bool
}

// NewDashboard builds the feed without connecting.
func NewDashboard(cfg DashboardConfig) (*Dashboard, error) {
	ch, err := realtime.NewChannel(realtime.ChannelConfig{
		Kind:    realtime.TopicDashboard,
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Backoff: cfg.Backoff,
	})
	if err != nil {
		return nil, err
	}

	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = DefaultRefreshInterval
	}

	d := &Dashboard{
		ch:      ch,
		router:  realtime.NewRouter(realtime.TopicDashboard.String()),
		refresh: refresh,
	}
	d.router.Register(models.MessageTypeError, logServerError)
	return d, nil
}

// OnStats subscribes to stats updates. The map is freshly decoded per
// delivery; subscribers may keep it.
func (d *Dashboard) OnStats(fn func(map[string]any)) (unsubscribe func()) {
	return d.router.Register(models.MessageTypeStatsUpdate, func(env realtime.Envelope) {
		var stats map[string]any
		if err := json.Unmarshal(env.Data, &stats); err != nil {
			logging.Warn().Err(err).Msg("Dropping malformed stats payload")
			metrics.MessagesDropped.WithLabelValues(realtime.TopicDashboard.String(), "malformed").Inc()
			return
		}
		fn(stats)
	})
}

// Start connects the channel and begins the periodic refresh loop.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	d.router.Bind(d.ch)
	if err := d.ch.Connect(ctx); err != nil {
		return err
	}
	d.started = true

	if d.refresh > 0 {
		d.stop = make(chan struct{})
		go d.refreshLoop(d.stop)
	}
	return nil
}

func (d *Dashboard) refreshLoop(stop chan struct{}) {
	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.RequestRefresh()
		case <-stop:
			return
		}
	}
}

// RequestRefresh asks the server for a stats push now. Returns false when
// the channel is not open.
func (d *Dashboard) RequestRefresh() bool {
	return d.ch.Send(models.RefreshStatsRequest{Type: models.MessageTypeRefreshStats})
}

// State exposes the underlying connection state for status badges.
func (d *Dashboard) State() realtime.State {
	return d.ch.State()
}

// Stop halts the refresh loop and disconnects. Safe to call twice.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	d.started = false
	d.mu.Unlock()
	d.ch.Disconnect()
}

// logServerError handles the "error" message the server may push on any
// topic: log it, never retry. The server sends the text at the top level of
// the frame; older payload shapes nest it under data, so both are accepted.
func logServerError(env realtime.Envelope) {
	logging.Warn().Str("message", serverErrorText(env)).Msg("Server reported error")
}

func serverErrorText(env realtime.Envelope) string {
	if env.Message != "" {
		return env.Message
	}
	var p models.ErrorPayload
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &p) == nil {
		return p.Message
	}
	return ""
}
