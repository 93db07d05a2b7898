// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

/*
Package metrics provides Prometheus instrumentation for the realtime client.

All metrics are registered on the default registry via promauto; embedding
applications expose them with their own /metrics handler.

Metric families:
  - fleetlive_channels_active: gauge of channels in the Open state
  - fleetlive_connects_total / fleetlive_reconnect_attempts_total /
    fleetlive_channel_failures_total: channel lifecycle by topic
  - fleetlive_messages_received_total / fleetlive_messages_dropped_total:
    router throughput and drop reasons per topic
  - fleetlive_sends_dropped_total: best-effort sends lost while disconnected
  - fleetlive_samples_dropped_total / fleetlive_samples_emitted_total:
    position reducer decisions
  - fleetlive_sensor_errors_total: classified geolocation failures
*/
package metrics
