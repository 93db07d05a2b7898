// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package realtime

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/adam-announ/fleetlive/internal/models"
)

func envelope(t *testing.T, msgType string, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Envelope{Type: msgType, Data: data}
}

func TestDispatchRegistrationOrder(t *testing.T) {
	r := NewRouter("tracking")

	var order []string
	r.Register(models.MessageTypeIncident, func(Envelope) {
		order = append(order, "first")
	})
	r.Register(models.MessageTypeIncident, func(Envelope) {
		order = append(order, "second")
	})

	r.Dispatch(envelope(t, models.MessageTypeIncident, models.IncidentPayload{
		IncidentType: "panne",
		Description:  "pneu creve",
	}))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handlers invoked as %v, want [first second]", order)
	}
}

func TestDispatchUnknownTypeDropped(t *testing.T) {
	r := NewRouter("tracking")

	var called bool
	r.Register(models.MessageTypeStatus, func(Envelope) { called = true })

	// Server-introduced type with no handler: silent drop, no panic.
	r.Dispatch(envelope(t, "telemetry_v2", map[string]int{"x": 1}))

	if called {
		t.Error("handler for a different type must not fire")
	}
}

func TestUnregisterHandler(t *testing.T) {
	r := NewRouter("tracking")

	var calls int
	unregister := r.Register(models.MessageTypeStatus, func(Envelope) { calls++ })

	r.Dispatch(envelope(t, models.MessageTypeStatus, models.StatusPayload{Status: "en_cours"}))
	unregister()
	unregister() // safe twice
	r.Dispatch(envelope(t, models.MessageTypeStatus, models.StatusPayload{Status: "livree"}))

	if calls != 1 {
		t.Errorf("expected one call before unregister, got %d", calls)
	}
}

func TestRegisterTypedDecodesAndValidates(t *testing.T) {
	r := NewRouter("tracking")

	got := make(chan models.PositionPayload, 1)
	RegisterTyped(r, models.MessageTypePosition, func(p models.PositionPayload) {
		got <- p
	})

	r.Dispatch(envelope(t, models.MessageTypePosition, models.PositionPayload{
		Lat: 33.60, Lon: -7.55, TimestampMillis: 1000,
	}))

	select {
	case p := <-got:
		if p.Lat != 33.60 || p.Lon != -7.55 {
			t.Errorf("decoded payload mismatch: %+v", p)
		}
	default:
		t.Fatal("typed handler never invoked")
	}
}

func TestRegisterTypedDropsMalformed(t *testing.T) {
	r := NewRouter("tracking")

	var called bool
	RegisterTyped(r, models.MessageTypePosition, func(models.PositionPayload) {
		called = true
	})

	r.Dispatch(Envelope{Type: models.MessageTypePosition, Data: json.RawMessage(`"not an object"`)})

	if called {
		t.Error("malformed payload must be dropped before the handler")
	}
}

func TestRegisterTypedDropsInvalid(t *testing.T) {
	r := NewRouter("tracking")

	var called bool
	RegisterTyped(r, models.MessageTypePosition, func(models.PositionPayload) {
		called = true
	})

	// lat out of range fails struct validation
	r.Dispatch(envelope(t, models.MessageTypePosition, map[string]any{
		"lat": 95.0, "lon": -7.55, "timestamp": 1000,
	}))

	if called {
		t.Error("invalid payload must be dropped before the handler")
	}
}

func TestBindRoutesChannelMessages(t *testing.T) {
	server := setupTopicServer(t, nil, func(conn *websocket.Conn, _ *http.Request) {
		frames := []string{
			`{"type":"status","data":{"status":"en_cours"}}`,
			`{"type":"incident","data":{"incident_type":"embouteillage","description":"A7"}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		blockUntilClosed(conn, nil)
	})
	defer server.Close()

	ch, err := NewChannel(trackingConfig(server, BackoffPolicy{}))
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer ch.Disconnect()

	r := NewRouter(ch.Topic())
	defer r.Bind(ch)()

	status := make(chan models.StatusPayload, 1)
	incident := make(chan models.IncidentPayload, 1)
	RegisterTyped(r, models.MessageTypeStatus, func(p models.StatusPayload) { status <- p })
	RegisterTyped(r, models.MessageTypeIncident, func(p models.IncidentPayload) { incident <- p })

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case p := <-status:
		if p.Status != "en_cours" {
			t.Errorf("status = %q", p.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("status message never routed")
	}

	select {
	case p := <-incident:
		if p.IncidentType != "embouteillage" {
			t.Errorf("incident type = %q", p.IncidentType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("incident message never routed")
	}
}
