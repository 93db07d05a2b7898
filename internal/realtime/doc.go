// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

/*
Package realtime provides resilient WebSocket channels to the transport
backend's realtime topics, and a type-tag router that demultiplexes inbound
messages to registered handlers.

Key Components:

  - Channel: one logical duplex connection to a single topic. Owns the
    connection state machine and the reconnect/backoff policy; reconnection is
    invisible to callers except as state-change notifications.
  - Router: decodes inbound envelopes by their "type" tag and dispatches to
    zero or more handlers per type, in registration order.
  - Envelope: the inbound wire frame {type, data}.

State Machine:

	Idle ──Connect──▶ Connecting ──open──▶ Open
	                      │                  │
	                 dial failed        unexpected close
	                      ▼                  ▼
	                 Reconnecting ◀──────────┘
	                      │ attempts exhausted
	                      ▼
	                   Failed (terminal)

	Disconnect() from any state ──▶ Closed (terminal)

Reconnection uses linear backoff: the delay before attempt n is
n * BaseInterval. A successful open resets the attempt counter. Once
MaxAttempts consecutive attempts fail, the channel enters Failed and stays
there; the caller constructs a fresh Channel to retry.

Sends are best-effort, at-most-once: Send silently drops (returning false)
unless the channel is Open. Nothing is queued across disconnects.

Usage Example - observer side:

	ch, err := realtime.NewChannel(realtime.ChannelConfig{
	    Kind:    realtime.TopicTracking,
	    Params:  map[string]string{realtime.ParamMissionID: missionID},
	    BaseURL: "https://transport.example.com",
	    Token:   token,
	})
	if err != nil { ... }

	router := realtime.NewRouter(ch.Topic())
	defer router.Bind(ch)()

	realtime.RegisterTyped(router, models.MessageTypePosition,
	    func(p models.PositionPayload) { ... })

	if err := ch.Connect(ctx); err != nil { ... }
	defer ch.Disconnect()
*/
package realtime
