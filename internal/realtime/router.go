// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package realtime

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/metrics"
	"github.com/adam-announ/fleetlive/internal/validation"
)

// Handler consumes one inbound envelope of a registered type.
type Handler func(Envelope)

// Router demultiplexes inbound envelopes by their type tag to zero or more
// registered handlers, invoked in registration order. Messages with no
// registered handler are dropped silently, which keeps the router
// forward-compatible with message types the server introduces later.
type Router struct {
	topic  string
	logger zerolog.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[string][]subscription[Handler]
}

// NewRouter creates a router. topic is only used for logging and metrics.
func NewRouter(topic string) *Router {
	return &Router{
		topic:    topic,
		logger:   logging.With().Str("component", "router").Str("topic", topic).Logger(),
		handlers: make(map[string][]subscription[Handler]),
	}
}

// Register adds a handler for a message type. Multiple handlers per type are
// allowed; dispatch preserves registration order. The returned function
// removes this handler; calling it more than once is safe.
func (r *Router) Register(msgType string, h Handler) (unregister func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[msgType] = append(r.handlers[msgType], subscription[Handler]{id: id, fn: h})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		hs := r.handlers[msgType]
		for i, sub := range hs {
			if sub.id == id {
				r.handlers[msgType] = append(hs[:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch routes one envelope. Unknown types are counted and dropped, never
// treated as an error.
func (r *Router) Dispatch(env Envelope) {
	r.mu.RLock()
	hs := make([]subscription[Handler], len(r.handlers[env.Type]))
	copy(hs, r.handlers[env.Type])
	r.mu.RUnlock()

	if len(hs) == 0 {
		r.logger.Debug().Str("type", env.Type).Msg("no handler registered, dropping message")
		metrics.MessagesDropped.WithLabelValues(r.topic, "unhandled").Inc()
		return
	}

	metrics.MessagesReceived.WithLabelValues(r.topic, env.Type).Inc()
	for _, sub := range hs {
		sub.fn(env)
	}
}

// Bind subscribes the router's Dispatch to a channel's inbound messages.
// The returned function unbinds.
func (r *Router) Bind(ch *Channel) (unbind func()) {
	return ch.OnMessage(r.Dispatch)
}

// RegisterTyped registers a handler that first decodes the envelope data
// into T and validates its struct tags. Malformed or invalid payloads are
// dropped with a diagnostic log; they never propagate as errors.
func RegisterTyped[T any](r *Router, msgType string, fn func(T)) (unregister func()) {
	return r.Register(msgType, func(env Envelope) {
		var payload T
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			r.logger.Warn().Err(err).Str("type", msgType).Msg("dropping malformed payload")
			metrics.MessagesDropped.WithLabelValues(r.topic, "malformed").Inc()
			return
		}
		if err := validation.ValidateStruct(&payload); err != nil {
			r.logger.Warn().Err(err).Str("type", msgType).Msg("dropping invalid payload")
			metrics.MessagesDropped.WithLabelValues(r.topic, "invalid").Inc()
			return
		}
		fn(payload)
	})
}
