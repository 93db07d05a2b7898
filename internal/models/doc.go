// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package models defines the data model shared across FleetLive components:
// position samples and display positions, mission data returned by the
// transport API, and the JSON wire payloads exchanged over realtime topics.
//
// Wire payloads carry go-playground/validator tags; they are validated at the
// router boundary before any handler sees them.
package models
