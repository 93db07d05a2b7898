// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package models

// Mission is the initial tracking state loaded over REST before the realtime
// session starts: pickup and delivery coordinates plus an optional
// precomputed route.
type Mission struct {
	ID          string        `json:"id"`
	PickupLat   float64       `json:"pickup_lat" validate:"min=-90,max=90"`
	PickupLng   float64       `json:"pickup_lng" validate:"min=-180,max=180"`
	DeliveryLat float64       `json:"delivery_lat" validate:"min=-90,max=90"`
	DeliveryLng float64       `json:"delivery_lng" validate:"min=-180,max=180"`
	Route       *MissionRoute `json:"route,omitempty"`
}

// MissionRoute is a precomputed itinerary. The server sends it as a Google
// encoded polyline; Points is populated by the API client after decoding.
type MissionRoute struct {
	Polyline string   `json:"polyline"`
	Points   []LatLng `json:"-"`
}

// Pickup returns the pickup coordinate.
func (m *Mission) Pickup() LatLng {
	return LatLng{Lat: m.PickupLat, Lng: m.PickupLng}
}

// Delivery returns the delivery coordinate.
func (m *Mission) Delivery() LatLng {
	return LatLng{Lat: m.DeliveryLat, Lng: m.DeliveryLng}
}
