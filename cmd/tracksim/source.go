// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package main

import (
	"context"
	"sync"
	"time"

	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/position"
)

// walkingSource simulates a vehicle sensor: it interpolates from one
// coordinate to another, emitting a fix every tick with a plausible speed.
type walkingSource struct {
	from models.LatLng
	to   models.LatLng
	tick time.Duration
}

func newWalkingSource(from, to models.LatLng) *walkingSource {
	return &walkingSource{from: from, to: to, tick: 2 * time.Second}
}

// Watch emits fixes until the context is cancelled or stop is called. The
// walk takes 200 ticks end to end, then holds at the destination.
func (w *walkingSource) Watch(ctx context.Context, onSample func(models.PositionSample), _ func(*position.SensorError)) (func(), error) {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		const steps = 200
		ticker := time.NewTicker(w.tick)
		defer ticker.Stop()

		speedMs := 25.0 // ~90 km/h
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}

			progress := float64(i) / steps
			if progress > 1 {
				progress = 1
				speedMs = 0
			}
			lat := w.from.Lat + (w.to.Lat-w.from.Lat)*progress
			lng := w.from.Lng + (w.to.Lng-w.from.Lng)*progress
			accuracy := 8.0
			onSample(models.SampleFromSensor(lat, lng, &speedMs, nil, &accuracy, time.Now().UnixMilli()))
		}
	}()

	return stop, nil
}
