// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package session wires mission load, channel, router, reducer, and
// projector into the two session shapes the app mounts: an observer
// tracking view and a carrier upload loop.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/missionapi"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/position"
	"github.com/adam-announ/fleetlive/internal/projector"
	"github.com/adam-announ/fleetlive/internal/realtime"
)

// TrackingConfig configures one observer tracking session.
type TrackingConfig struct {
	BaseURL   string
	Token     string
	MissionID string
	Backoff   realtime.BackoffPolicy
	// DisplayThrottle caps marker updates; zero means the production
	// default.
	DisplayThrottle time.Duration
}

// Tracking is an observer session over one mission: it loads initial state
// over REST, then projects the realtime feed onto a map surface. The
// channel is only opened after the initial load succeeds.
type Tracking struct {
	mission *models.Mission
	ch      *realtime.Channel
	proj    *projector.Projector

	mu      sync.Mutex
	stopped bool
}

// StartTracking loads the mission and starts the realtime session. On any
// error nothing is left running and the surface is left empty.
func StartTracking(ctx context.Context, cfg TrackingConfig, api *missionapi.Client, surface projector.Surface) (*Tracking, error) {
	mission, err := api.GetMission(ctx, cfg.MissionID)
	if err != nil {
		return nil, fmt.Errorf("session: initial mission load: %w", err)
	}

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

	proj := projector.New(surface)
	proj.Init(mission)

	reducer := position.NewReducer(position.Config{MinInterval: cfg.DisplayThrottle})

	router := realtime.NewRouter(realtime.TopicTracking.String())
	realtime.RegisterTyped(router, models.MessageTypePosition, func(p models.PositionPayload) {
		if dp, ok := reducer.Accept(p.Sample()); ok {
			proj.ApplyPosition(dp)
		}
	})
	realtime.RegisterTyped(router, models.MessageTypeStatus, func(p models.StatusPayload) {
		proj.ApplyStatus(p.Status)
	})
	realtime.RegisterTyped(router, models.MessageTypeIncident, func(p models.IncidentPayload) {
		ts := p.TimestampMillis
		if ts <= 0 {
			ts = time.Now().UnixMilli()
		}
		proj.ApplyIncident(p.IncidentType, p.Description, ts)
	})
	router.Register(models.MessageTypeError, func(env realtime.Envelope) {
		// The server puts the error text at the top level of the frame, not
		// under data like every other type.
		msg := env.Message
		if msg == "" {
			var p models.ErrorPayload
			if len(env.Data) > 0 && json.Unmarshal(env.Data, &p) == nil {
				msg = p.Message
			}
		}
		logging.Warn().Str("mission_id", cfg.MissionID).Str("message", msg).Msg("Server reported error")
	})
	router.Bind(ch)

	ch.OnStateChange(proj.ApplyChannelState)

	if err := ch.Connect(ctx); err != nil {
		proj.Release()
		return nil, err
	}

	return &Tracking{mission: mission, ch: ch, proj: proj}, nil
}

// Mission returns the initially loaded mission.
func (t *Tracking) Mission() *models.Mission {
	return t.mission
}

// Snapshot returns a deep copy of the current view state.
func (t *Tracking) Snapshot() projector.ViewState {
	return t.proj.Snapshot()
}

// State reports the underlying connection state.
func (t *Tracking) State() realtime.State {
	return t.ch.State()
}

// Stop tears the session down: disconnects the channel and releases every
// marker. Safe to call twice; rapid navigation may do exactly that.
func (t *Tracking) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	t.ch.Disconnect()
	t.proj.Release()
}
