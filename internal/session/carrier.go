// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package session

import (
	"context"
	"sync"
	"time"

	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/position"
	"github.com/adam-announ/fleetlive/internal/realtime"
)

// CarrierConfig configures one carrier upload session.
type CarrierConfig struct {
	BaseURL   string
	Token     string
	MissionID string
	Backoff   realtime.BackoffPolicy
	// UploadThrottle caps position sends; zero means the production default.
	UploadThrottle time.Duration
}

// Carrier is the transporteur-side session: it watches the local position
// source and uploads throttled fixes over the tracking channel. Sensor
// failures do not tear the channel down; the session keeps receiving remote
// updates while local sensing is broken.
type Carrier struct {
	ch       *realtime.Channel
	uploader *position.Uploader

	mu      sync.Mutex
	stopped bool
}

// CarrierOption forwards to the underlying uploader.
type CarrierOption = position.UploaderOption

// WithLocalDisplay mirrors emitted positions to the carrier's own view.
func WithLocalDisplay(fn func(models.DisplayPosition)) CarrierOption {
	return position.WithLocalDisplay(fn)
}

// WithSensorErrorHandler surfaces classified sensor errors to the view.
func WithSensorErrorHandler(fn func(*position.SensorError)) CarrierOption {
	return position.WithSensorErrorHandler(fn)
}

// StartCarrier connects the tracking channel and begins watching the
// source. On error nothing is left running.
func StartCarrier(ctx context.Context, cfg CarrierConfig, source position.Source, opts ...CarrierOption) (*Carrier, error) {
	ch, err := realtime.NewChannel(realtime.ChannelConfig{
		Kind:    realtime.TopicTracking,
		Params:  map[string]string{realtime.ParamMissionID: cfg.MissionID},
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Backoff: cfg.Backoff,
	})
	if err != nil {
		return nil, err
	}

	uploader := position.NewUploader(ch, source, position.Config{MinInterval: cfg.UploadThrottle}, opts...)

	if err := ch.Connect(ctx); err != nil {
		return nil, err
	}
	if err := uploader.Start(ctx); err != nil {
		ch.Disconnect()
		return nil, err
	}

	return &Carrier{ch: ch, uploader: uploader}, nil
}

// State reports the underlying connection state.
func (c *Carrier) State() realtime.State {
	return c.ch.State()
}

// OnStateChange exposes connection transitions for the carrier UI badge.
func (c *Carrier) OnStateChange(fn func(realtime.State)) (unsubscribe func()) {
	return c.ch.OnStateChange(fn)
}

// Stop halts the sensor watch and disconnects. Safe to call twice.
func (c *Carrier) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	c.uploader.Stop()
	c.ch.Disconnect()
}
