// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package position

import (
	"context"
	"fmt"

	"github.com/adam-announ/fleetlive/internal/models"
)

// ErrorKind classifies a sensor failure. A sensor error never stops the
// stream; the caller decides whether to keep watching.
type ErrorKind int

const (
	// ErrPermissionDenied means the user or platform refused location access.
	ErrPermissionDenied ErrorKind = iota + 1
	// ErrPositionUnavailable means the sensor could not produce a fix.
	ErrPositionUnavailable
	// ErrTimeout means the sensor did not answer within its deadline.
	ErrTimeout
)

// String returns the metric/log label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrPositionUnavailable:
		return "position_unavailable"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Message returns the operator-facing description for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrPermissionDenied:
		return "location permission denied"
	case ErrPositionUnavailable:
		return "position unavailable"
	case ErrTimeout:
		return "location request timed out"
	default:
		return "unknown location error"
	}
}

// SensorError is a classified geolocation failure.
type SensorError struct {
	Kind   ErrorKind
	Detail string
}

func (e *SensorError) Error() string {
	if e.Detail == "" {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Message(), e.Detail)
}

// ClassifyCode maps a platform geolocation error code to a SensorError.
// Codes follow the common 1/2/3 convention (denied/unavailable/timeout);
// anything else is treated as unavailable.
func ClassifyCode(code int, detail string) *SensorError {
	switch code {
	case 1:
		return &SensorError{Kind: ErrPermissionDenied, Detail: detail}
	case 2:
		return &SensorError{Kind: ErrPositionUnavailable, Detail: detail}
	case 3:
		return &SensorError{Kind: ErrTimeout, Detail: detail}
	default:
		return &SensorError{Kind: ErrPositionUnavailable, Detail: detail}
	}
}

// Source is a stream of raw position samples, typically backed by a device
// geolocation sensor. Watch delivers samples and classified errors until the
// context is cancelled or the returned stop function is called. Errors do
// not terminate the stream.
type Source interface {
	Watch(ctx context.Context, onSample func(models.PositionSample), onError func(*SensorError)) (stop func(), err error)
}
