// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package position turns raw, possibly bursty position sources into
// throttled, strictly ordered display streams, and carries the carrier-side
// upload pipeline (sensor -> reducer -> channel).
package position

import (
	"time"

	"github.com/adam-announ/fleetlive/internal/metrics"
	"github.com/adam-announ/fleetlive/internal/models"
)

// DefaultMinInterval is the production throttle window for both upload and
// display reduction.
const DefaultMinInterval = 10 * time.Second

// Config tunes a Reducer.
type Config struct {
	// MinInterval is the minimum gap between emissions. The first sample of
	// a fresh reducer always emits regardless.
	MinInterval time.Duration

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Reducer filters a position stream: samples whose timestamp is not strictly
// greater than the last accepted one are dropped (GPS jitter can deliver a
// stale fix after a fresher one), and accepted samples are rate-limited to
// one emission per MinInterval.
//
// Not safe for concurrent use; each stream owns its reducer.
type Reducer struct {
	minInterval time.Duration
	now         func() time.Time

	hasAccepted  bool
	lastAccepted int64

	emitted  bool
	lastEmit time.Time
}

// NewReducer creates a reducer with defaults filled in.
func NewReducer(cfg Config) *Reducer {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reducer{
		minInterval: cfg.MinInterval,
		now:         cfg.Now,
	}
}

// Accept runs one sample through the reducer. It emits at most one
// DisplayPosition; ok reports whether an emission happened.
func (r *Reducer) Accept(s models.PositionSample) (models.DisplayPosition, bool) {
	if r.hasAccepted && s.TimestampMillis <= r.lastAccepted {
		metrics.SamplesDropped.WithLabelValues("stale").Inc()
		return models.DisplayPosition{}, false
	}

	now := r.now()
	if r.emitted && now.Sub(r.lastEmit) < r.minInterval {
		metrics.SamplesDropped.WithLabelValues("throttled").Inc()
		return models.DisplayPosition{}, false
	}

	r.hasAccepted = true
	r.lastAccepted = s.TimestampMillis
	r.emitted = true
	r.lastEmit = now

	metrics.SamplesEmitted.Inc()
	return models.DisplayPosition{
		Position:   models.LatLng{Lat: s.Lat, Lng: s.Lng},
		SpeedKmh:   s.SpeedKmh,
		HeadingDeg: s.HeadingDeg,
		AccuracyM:  s.AccuracyM,
		AtMillis:   s.TimestampMillis,
	}, true
}
