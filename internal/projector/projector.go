// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package projector maintains the view state of one tracking session as a
// reduction over channel state changes, routed messages, and reduced
// position events. It emits redraw instructions to a map surface and never
// talks to the network.
package projector

import (
	"sync"

	"github.com/google/uuid"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/realtime"
)

// Well-known marker identifiers. Incident markers get a fresh uuid each.
const (
	MarkerPickup      = "pickup"
	MarkerDelivery    = "delivery"
	MarkerTransporter = "transporter"
)

// Marker color classes understood by the map surface.
const (
	ColorPickup      = "green"
	ColorDelivery    = "red"
	ColorTransporter = "blue"
	ColorIncident    = "orange"
)

// AnimationSteps is the fixed interpolation step count the surface is asked
// to animate a marker move over (about 200ms at a 4ms frame budget).
const AnimationSteps = 50

// Marker is one drawable point on the map surface.
type Marker struct {
	ID         string
	Position   models.LatLng
	Label      string
	ColorClass string
}

// Incident is a reported event pinned to the map.
type Incident struct {
	MarkerID        string
	Position        models.LatLng
	IncidentType    string
	Description     string
	TimestampMillis int64
}

// ViewState is everything that should currently be drawn for one session.
// It is owned exclusively by the Projector; the surface reads snapshots.
type ViewState struct {
	Markers     map[string]Marker
	Route       []models.LatLng
	StatusLabel string
	Incidents   []Incident
}

// Surface is the one-way update contract to the map rendering layer. The
// projector only emits instructions; it never reads the surface back.
// Implementations must tolerate redundant RemoveMarker calls.
type Surface interface {
	AddMarker(m Marker)
	MoveMarker(id string, steps []models.LatLng)
	RemoveMarker(id string)
	DrawRoute(points []models.LatLng)
	SetStatus(label string)
}

// Projector folds tracking events into ViewState and mirrors each change to
// the Surface. Safe for concurrent use; channel callbacks and position
// events may arrive from different goroutines.
type Projector struct {
	surface Surface

	mu       sync.Mutex
	state    ViewState
	released bool
}

// New creates a projector bound to a surface.
func New(surface Surface) *Projector {
	return &Projector{
		surface: surface,
		state: ViewState{
			Markers: make(map[string]Marker),
		},
	}
}

// Init seeds the view from the initial mission load: pickup and delivery
// markers, plus the precomputed route when the mission carries one.
func (p *Projector) Init(m *models.Mission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}

	pickup := Marker{
		ID:         MarkerPickup,
		Position:   m.Pickup(),
		Label:      "Point de ramassage",
		ColorClass: ColorPickup,
	}
	delivery := Marker{
		ID:         MarkerDelivery,
		Position:   m.Delivery(),
		Label:      "Point de livraison",
		ColorClass: ColorDelivery,
	}
	p.state.Markers[pickup.ID] = pickup
	p.state.Markers[delivery.ID] = delivery
	p.surface.AddMarker(pickup)
	p.surface.AddMarker(delivery)

	if m.Route != nil && len(m.Route.Points) > 0 {
		p.state.Route = append([]models.LatLng(nil), m.Route.Points...)
		p.surface.DrawRoute(p.state.Route)
	}
}

// ApplyPosition moves the transporter marker to a reduced position, creating
// it on first sight and animating subsequent moves via fixed-step
// interpolation.
func (p *Projector) ApplyPosition(dp models.DisplayPosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}

	prev, exists := p.state.Markers[MarkerTransporter]
	next := Marker{
		ID:         MarkerTransporter,
		Position:   dp.Position,
		Label:      "Transporteur",
		ColorClass: ColorTransporter,
	}
	p.state.Markers[MarkerTransporter] = next

	if !exists {
		p.surface.AddMarker(next)
		return
	}
	p.surface.MoveMarker(MarkerTransporter, InterpolateSteps(prev.Position, dp.Position, AnimationSteps))
}

// ApplyStatus replaces the status label.
func (p *Projector) ApplyStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.state.StatusLabel = status
	p.surface.SetStatus(status)
}

// ApplyChannelState projects connection health onto the status badge.
// Steady states (Idle, Open after the first) leave the label alone so a
// server-driven status is not clobbered.
func (p *Projector) ApplyChannelState(s realtime.State) {
	label, ok := badgeForState(s)
	if !ok {
		return
	}
	p.ApplyStatus(label)
}

func badgeForState(s realtime.State) (string, bool) {
	switch s {
	case realtime.StateReconnecting:
		return "Reconnexion en cours...", true
	case realtime.StateFailed:
		return "Connexion perdue", true
	default:
		return "", false
	}
}

// ApplyIncident records an incident and pins a transient marker at the last
// known transporter position. Without a transporter fix yet there is nothing
// to pin to; the incident is still recorded in the view state.
func (p *Projector) ApplyIncident(incidentType, description string, timestampMillis int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}

	inc := Incident{
		MarkerID:        uuid.NewString(),
		IncidentType:    incidentType,
		Description:     description,
		TimestampMillis: timestampMillis,
	}

	transporter, hasFix := p.state.Markers[MarkerTransporter]
	if hasFix {
		inc.Position = transporter.Position
		marker := Marker{
			ID:         inc.MarkerID,
			Position:   inc.Position,
			Label:      description,
			ColorClass: ColorIncident,
		}
		p.state.Markers[marker.ID] = marker
		p.surface.AddMarker(marker)
	} else {
		logging.Debug().
			Str("incident_type", incidentType).
			Msg("Incident before first transporter fix, recorded without marker")
	}
	p.state.Incidents = append(p.state.Incidents, inc)
}

// Snapshot returns a deep copy of the current view state.
func (p *Projector) Snapshot() ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := ViewState{
		Markers:     make(map[string]Marker, len(p.state.Markers)),
		StatusLabel: p.state.StatusLabel,
	}
	for id, m := range p.state.Markers {
		snap.Markers[id] = m
	}
	if p.state.Route != nil {
		snap.Route = append([]models.LatLng(nil), p.state.Route...)
	}
	if p.state.Incidents != nil {
		snap.Incidents = append([]Incident(nil), p.state.Incidents...)
	}
	return snap
}

// Release removes every marker from the surface and drops the state. The
// projector accepts no further events afterwards. Safe to call twice.
func (p *Projector) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true

	for id := range p.state.Markers {
		p.surface.RemoveMarker(id)
	}
	p.state = ViewState{Markers: make(map[string]Marker)}
}

// InterpolateSteps returns steps points evenly spaced from just past `from`
// to exactly `to`, for marker move animation.
func InterpolateSteps(from, to models.LatLng, steps int) []models.LatLng {
	if steps < 1 {
		steps = 1
	}
	out := make([]models.LatLng, steps)
	dLat := (to.Lat - from.Lat) / float64(steps)
	dLng := (to.Lng - from.Lng) / float64(steps)
	for i := 1; i <= steps; i++ {
		out[i-1] = models.LatLng{
			Lat: from.Lat + dLat*float64(i),
			Lng: from.Lng + dLng*float64(i),
		}
	}
	return out
}
