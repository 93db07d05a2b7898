// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package main

import (
	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/projector"
)

// consoleSurface renders the projector's redraw instructions as log lines,
// standing in for the map layer a real client would drive.
type consoleSurface struct{}

func newConsoleSurface() *consoleSurface {
	return &consoleSurface{}
}

func (s *consoleSurface) AddMarker(m projector.Marker) {
	logging.Info().
		Str("marker", m.ID).
		Str("label", m.Label).
		Str("color", m.ColorClass).
		Float64("lat", m.Position.Lat).
		Float64("lng", m.Position.Lng).
		Msg("Marker added")
}

func (s *consoleSurface) MoveMarker(id string, steps []models.LatLng) {
	if len(steps) == 0 {
		return
	}
	final := steps[len(steps)-1]
	logging.Info().
		Str("marker", id).
		Int("steps", len(steps)).
		Float64("lat", final.Lat).
		Float64("lng", final.Lng).
		Msg("Marker moved")
}

func (s *consoleSurface) RemoveMarker(id string) {
	logging.Info().Str("marker", id).Msg("Marker removed")
}

func (s *consoleSurface) DrawRoute(points []models.LatLng) {
	logging.Info().Int("points", len(points)).Msg("Route drawn")
}

func (s *consoleSurface) SetStatus(label string) {
	logging.Info().Str("status", label).Msg("Status updated")
}
