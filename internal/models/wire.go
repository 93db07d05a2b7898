// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package models

// Inbound message type tags carried in the realtime envelope.
const (
	MessageTypePosition     = "position"
	MessageTypeStatus       = "status"
	MessageTypeIncident     = "incident"
	MessageTypeStatsUpdate   = "stats_update"
	MessageTypeNotification  = "new_notification"
	MessageTypeUnreadBacklog = "unread_notifications"
	MessageTypeError         = "error"
)

// Outbound message type tags.
const (
	MessageTypePositionUpdate = "position_update"
	MessageTypeRefreshStats   = "refresh_stats"
)

// Notification priorities as the server emits them.
const (
	PriorityLow    = "BASSE"
	PriorityNormal = "NORMALE"
	PriorityHigh   = "HAUTE"
)

// PositionPayload is the inbound "position" message body.
// Speed is km/h on the wire; optional fields are omitted when unknown.
type PositionPayload struct {
	Lat             float64  `json:"lat" validate:"min=-90,max=90"`
	Lon             float64  `json:"lon" validate:"min=-180,max=180"`
	SpeedKmh        *float64 `json:"speed,omitempty" validate:"omitempty,min=0"`
	HeadingDeg      *float64 `json:"heading,omitempty" validate:"omitempty,min=0,max=360"`
	AccuracyM       *float64 `json:"accuracy,omitempty" validate:"omitempty,min=0"`
	TimestampMillis int64    `json:"timestamp" validate:"gt=0"`
}

// Sample converts the wire payload into a PositionSample. No unit conversion:
// wire speed is already km/h.
func (p PositionPayload) Sample() PositionSample {
	return PositionSample{
		Lat:             p.Lat,
		Lng:             p.Lon,
		SpeedKmh:        p.SpeedKmh,
		HeadingDeg:      p.HeadingDeg,
		AccuracyM:       p.AccuracyM,
		TimestampMillis: p.TimestampMillis,
	}
}

// StatusPayload is the inbound "status" message body.
type StatusPayload struct {
	Status string `json:"status" validate:"required"`
}

// IncidentPayload is the inbound "incident" message body. The timestamp is
// the reporting client's clock in millis; it may be absent.
type IncidentPayload struct {
	IncidentType    string `json:"incident_type" validate:"required"`
	Description     string `json:"description"`
	TimestampMillis int64  `json:"timestamp,omitempty"`
}

// NotificationPayload is the inbound "new_notification" message body.
// Field names follow the server's French data model.
type NotificationPayload struct {
	ID       int64  `json:"id" validate:"required"`
	Titre    string `json:"titre" validate:"required"`
	Message  string `json:"message"`
	Priorite string `json:"priorite" validate:"required,oneof=BASSE NORMALE HAUTE"`
	Date     string `json:"date"`
}

// ErrorPayload is the inbound "error" message body. Logged, never retried.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PositionUpdate is the outbound carrier upload envelope. Unlike inbound
// messages it carries its type tag inline rather than in a wrapper.
type PositionUpdate struct {
	Type            string   `json:"type"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	SpeedKmh        *float64 `json:"speed"`
	HeadingDeg      *float64 `json:"heading"`
	AccuracyM       *float64 `json:"accuracy"`
	TimestampMillis int64    `json:"timestamp"`
}

// NewPositionUpdate wraps a display position for upload.
func NewPositionUpdate(p DisplayPosition) PositionUpdate {
	return PositionUpdate{
		Type:            MessageTypePositionUpdate,
		Lat:             p.Position.Lat,
		Lon:             p.Position.Lng,
		SpeedKmh:        p.SpeedKmh,
		HeadingDeg:      p.HeadingDeg,
		AccuracyM:       p.AccuracyM,
		TimestampMillis: p.AtMillis,
	}
}

// MarkReadRequest asks the notifications topic to mark one notification read.
type MarkReadRequest struct {
	Action         string `json:"action"`
	NotificationID int64  `json:"notification_id"`
}

// MarkAllReadRequest asks the notifications topic to mark everything read.
type MarkAllReadRequest struct {
	Action string `json:"action"`
}

// RefreshStatsRequest asks the dashboard topic to push fresh stats.
type RefreshStatsRequest struct {
	Type string `json:"type"`
}
