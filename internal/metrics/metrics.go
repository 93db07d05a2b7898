// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the realtime client:
// - Channel lifecycle (connects, reconnects, terminal failures)
// - Message throughput and drops per topic
// - Position reducer drop reasons
var (
	// Channel Metrics
	ChannelsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlive_channels_active",
			Help: "Number of channels currently in the Open state",
		},
	)

	ConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_connects_total",
			Help: "Total successful channel opens, including reconnects",
		},
		[]string{"topic"},
	)

	ReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_reconnect_attempts_total",
			Help: "Total reconnect attempts scheduled after unexpected closes",
		},
		[]string{"topic"},
	)

	ChannelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_channel_failures_total",
			Help: "Channels that exhausted their reconnect budget",
		},
		[]string{"topic"},
	)

	// Message Metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_messages_received_total",
			Help: "Inbound messages dispatched by the router",
		},
		[]string{"topic", "type"},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_messages_dropped_total",
			Help: "Inbound messages dropped at the router",
		},
		[]string{"topic", "reason"}, // "unhandled", "malformed", "invalid"
	)

	SendsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_sends_dropped_total",
			Help: "Outbound sends dropped because the channel was not open",
		},
		[]string{"topic"},
	)

	// Position Reducer Metrics
	SamplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_samples_dropped_total",
			Help: "Position samples rejected by the reducer",
		},
		[]string{"reason"}, // "stale", "throttled"
	)

	SamplesEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetlive_samples_emitted_total",
			Help: "Display positions emitted by the reducer",
		},
	)

	SensorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlive_sensor_errors_total",
			Help: "Geolocation sensor errors by classified kind",
		},
		[]string{"kind"},
	)
)
