// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package main is tracksim, a terminal harness for the FleetLive tracking
// core. It runs one live session against a real backend, in one of three
// modes:
//
//   - observer: load the mission over REST, open the tracking channel, and
//     print every redraw instruction the projector emits.
//   - carrier: walk a simulated position sensor along a line and upload
//     throttled fixes over the tracking channel.
//   - feeds: consume the dashboard and notifications topics.
//
// Configuration comes from FLEETLIVE_* environment variables or a YAML file
// (see internal/config). Example:
//
//	export FLEETLIVE_SERVER_URL=http://localhost:8000
//	export FLEETLIVE_SERVER_TOKEN=dev-token
//	tracksim -mode observer -mission 42
//
// The process exits on SIGINT/SIGTERM after tearing the session down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adam-announ/fleetlive/internal/config"
	"github.com/adam-announ/fleetlive/internal/feeds"
	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/missionapi"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/realtime"
	"github.com/adam-announ/fleetlive/internal/session"
)

func main() {
	mode := flag.String("mode", "observer", "session mode: observer, carrier, or feeds")
	mission := flag.String("mission", "", "mission id (required for observer and carrier modes)")
	configPath := flag.String("config", "", "path to a YAML config file (overrides "+config.ConfigPathEnvVar+")")
	flag.Parse()

	if *configPath != "" {
		os.Setenv(config.ConfigPathEnvVar, *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logging.Info().
		Str("mode", *mode).
		Str("server", cfg.Server.URL).
		Msg("Starting tracksim")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var teardown func()
	switch *mode {
	case "observer":
		teardown, err = runObserver(ctx, cfg, *mission)
	case "carrier":
		teardown, err = runCarrier(ctx, cfg, *mission)
	case "feeds":
		teardown, err = runFeeds(ctx, cfg)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logging.Error().Err(err).Str("mode", *mode).Msg("Failed to start session")
		os.Exit(1)
	}

	sig := <-sigs
	logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	teardown()
}

func trackingBackoff(cfg *config.Config) realtime.BackoffPolicy {
	return realtime.BackoffPolicy{
		BaseInterval: cfg.Backoff.BaseInterval,
		MaxAttempts:  cfg.Backoff.MaxAttempts,
	}
}

func runObserver(ctx context.Context, cfg *config.Config, mission string) (func(), error) {
	if mission == "" {
		return nil, fmt.Errorf("observer mode requires -mission")
	}

	api := missionapi.NewClient(cfg.Server.URL, cfg.Server.Token, cfg.Server.RequestTimeout)
	tr, err := session.StartTracking(ctx, session.TrackingConfig{
		BaseURL:         cfg.Server.URL,
		Token:           cfg.Server.Token,
		MissionID:       mission,
		Backoff:         trackingBackoff(cfg),
		DisplayThrottle: cfg.Throttle.DisplayInterval,
	}, api, newConsoleSurface())
	if err != nil {
		return nil, err
	}

	m := tr.Mission()
	logging.Info().
		Float64("pickup_lat", m.Pickup().Lat).
		Float64("pickup_lng", m.Pickup().Lng).
		Float64("delivery_lat", m.Delivery().Lat).
		Float64("delivery_lng", m.Delivery().Lng).
		Msg("Tracking session started")

	return tr.Stop, nil
}

func runCarrier(ctx context.Context, cfg *config.Config, mission string) (func(), error) {
	if mission == "" {
		return nil, fmt.Errorf("carrier mode requires -mission")
	}

	source := newWalkingSource(
		models.LatLng{Lat: 33.5731, Lng: -7.5898}, // Casablanca
		models.LatLng{Lat: 34.0209, Lng: -6.8416}, // Rabat
	)

	carrier, err := session.StartCarrier(ctx, session.CarrierConfig{
		BaseURL:        cfg.Server.URL,
		Token:          cfg.Server.Token,
		MissionID:      mission,
		Backoff:        trackingBackoff(cfg),
		UploadThrottle: cfg.Throttle.UploadInterval,
	}, source,
		session.WithLocalDisplay(func(dp models.DisplayPosition) {
			logging.Info().
				Float64("lat", dp.Position.Lat).
				Float64("lng", dp.Position.Lng).
				Int64("timestamp_ms", dp.AtMillis).
				Msg("Position uploaded")
		}),
	)
	if err != nil {
		return nil, err
	}
	return carrier.Stop, nil
}

func runFeeds(ctx context.Context, cfg *config.Config) (func(), error) {
	dash, err := feeds.NewDashboard(feeds.DashboardConfig{
		BaseURL: cfg.Server.URL,
		Token:   cfg.Server.Token,
		Backoff: trackingBackoff(cfg),
	})
	if err != nil {
		return nil, err
	}
	dash.OnStats(func(stats map[string]any) {
		logging.Info().Interface("stats", stats).Msg("Dashboard stats")
	})

	notif, err := feeds.NewNotifications(feeds.NotificationsConfig{
		BaseURL: cfg.Server.URL,
		Token:   cfg.Server.Token,
		Backoff: realtime.BackoffPolicy{
			BaseInterval: cfg.Backoff.NotificationsBaseInterval,
			MaxAttempts:  cfg.Backoff.NotificationsMaxAttempts,
		},
	})
	if err != nil {
		return nil, err
	}
	notif.OnNotification(func(n models.NotificationPayload) {
		logging.Info().
			Int64("id", n.ID).
			Str("titre", n.Titre).
			Str("priorite", n.Priorite).
			Msg("Notification received")
	})

	if err := dash.Start(ctx); err != nil {
		return nil, err
	}
	if err := notif.Start(ctx); err != nil {
		dash.Stop()
		return nil, err
	}

	return func() {
		notif.Stop()
		dash.Stop()
	}, nil
}
