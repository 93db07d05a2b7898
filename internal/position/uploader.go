// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package position

import (
	"context"
	"sync"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/metrics"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/realtime"
)

// Sender is the outbound half of a realtime channel, as the uploader needs
// it. realtime.Channel satisfies it.
type Sender interface {
	Send(v any) bool
}

var _ Sender = (*realtime.Channel)(nil)

// UploaderOption customizes an Uploader.
type UploaderOption func(*Uploader)

// WithLocalDisplay registers a callback invoked with every emitted position,
// so the carrier's own view can track itself without a server round trip.
func WithLocalDisplay(fn func(models.DisplayPosition)) UploaderOption {
	return func(u *Uploader) { u.onLocal = fn }
}

// WithSensorErrorHandler registers a callback for classified sensor errors.
func WithSensorErrorHandler(fn func(*SensorError)) UploaderOption {
	return func(u *Uploader) { u.onError = fn }
}

// Uploader is the carrier-side pipeline: it watches a position Source, runs
// samples through a Reducer, and sends surviving positions over the tracking
// channel. Sends while the channel is down are dropped, not buffered; the
// next emission after reconnect carries the current fix.
type Uploader struct {
	sender  Sender
	source  Source
	reducer *Reducer

	onLocal func(models.DisplayPosition)
	onError func(*SensorError)

	mu      sync.Mutex
	stop    func()
	started bool
}

// NewUploader builds an uploader over the given channel and source.
func NewUploader(sender Sender, source Source, cfg Config, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		sender:  sender,
		source:  source,
		reducer: NewReducer(cfg),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start begins watching the source. It is an error to start twice.
func (u *Uploader) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.started {
		return nil
	}
	stop, err := u.source.Watch(ctx, u.handleSample, u.handleError)
	if err != nil {
		return err
	}
	u.stop = stop
	u.started = true
	return nil
}

// Stop halts the source watch. Safe to call more than once.
func (u *Uploader) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stop != nil {
		u.stop()
		u.stop = nil
	}
	u.started = false
}

func (u *Uploader) handleSample(s models.PositionSample) {
	dp, ok := u.reducer.Accept(s)
	if !ok {
		return
	}
	if sent := u.sender.Send(models.NewPositionUpdate(dp)); !sent {
		logging.Debug().
			Int64("timestamp_ms", dp.AtMillis).
			Msg("Position update dropped, channel not open")
	}
	if u.onLocal != nil {
		u.onLocal(dp)
	}
}

func (u *Uploader) handleError(serr *SensorError) {
	metrics.SensorErrors.WithLabelValues(serr.Kind.String()).Inc()
	logging.Warn().
		Str("kind", serr.Kind.String()).
		Str("detail", serr.Detail).
		Msg("Geolocation sensor error")
	if u.onError != nil {
		u.onError(serr)
	}
}
