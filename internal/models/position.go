// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package models

// msToKmh converts a sensor speed reading from m/s to km/h.
const msToKmh = 3.6

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PositionSample is a raw position fix, either read from a local sensor on
// the carrier side or decoded from a "position" message on the observer side.
//
// Speed is always stored in km/h; sensor sources reporting m/s must convert
// at the source (see SampleFromSensor). Optional readings are nil when the
// source did not provide them.
type PositionSample struct {
	Lat             float64
	Lng             float64
	SpeedKmh        *float64
	HeadingDeg      *float64
	AccuracyM       *float64
	TimestampMillis int64
}

// SampleFromSensor builds a PositionSample from a raw sensor reading.
// speedMs is the sensor speed in m/s and is converted to km/h here, at the
// source, so every downstream consumer sees one unit.
func SampleFromSensor(lat, lng float64, speedMs, headingDeg, accuracyM *float64, timestampMillis int64) PositionSample {
	s := PositionSample{
		Lat:             lat,
		Lng:             lng,
		HeadingDeg:      headingDeg,
		AccuracyM:       accuracyM,
		TimestampMillis: timestampMillis,
	}
	if speedMs != nil {
		kmh := *speedMs * msToKmh
		s.SpeedKmh = &kmh
	}
	return s
}

// DisplayPosition is a throttled, validated position ready for rendering or
// upload. Emitted by the position reducer; at most one per accepted sample.
type DisplayPosition struct {
	Position   LatLng
	SpeedKmh   *float64
	HeadingDeg *float64
	AccuracyM  *float64
	AtMillis   int64
}

// Float64Ptr returns a pointer to v. Convenience for optional readings.
func Float64Ptr(v float64) *float64 {
	return &v
}
