// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package missionapi loads the initial tracking state over REST. The
// realtime session must not start until this load succeeds.
package missionapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	polyline "github.com/twpayne/go-polyline"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/validation"
)

// DefaultTimeout bounds one mission load request.
const DefaultTimeout = 10 * time.Second

// ErrMissionNotFound is returned for a 404 on the mission resource.
var ErrMissionNotFound = errors.New("mission not found")

// StatusError is a non-2xx REST response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mission api: unexpected status %d", e.Code)
}

// Client fetches missions from the FleetLive REST API. Calls are wrapped in
// a circuit breaker so a flapping backend does not hammer retries from every
// mounted tracking view.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*models.Mission]
}

// NewClient creates a mission API client. baseURL is the HTTP origin of the
// server, e.g. "https://fleet.example.com".
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[*models.Mission](gobreaker.Settings{
		Name:        "mission-api",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// GetMission fetches one mission and decodes its precomputed route polyline,
// when present, into Route.Points.
func (c *Client) GetMission(ctx context.Context, missionID string) (*models.Mission, error) {
	if missionID == "" {
		return nil, errors.New("mission api: empty mission id")
	}

	m, err := c.breaker.Execute(func() (*models.Mission, error) {
		return c.fetchMission(ctx, missionID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Str("mission_id", missionID).Msg("Mission load rejected by circuit breaker")
		}
		return nil, err
	}
	return m, nil
}

func (c *Client) fetchMission(ctx context.Context, missionID string) (*models.Mission, error) {
	endpoint := fmt.Sprintf("%s/api/mission/%s/", c.baseURL, url.PathEscape(missionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mission api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mission api: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrMissionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var m models.Mission
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("mission api: decode response: %w", err)
	}
	if m.ID == "" {
		m.ID = missionID
	}
	if verr := validation.ValidateStruct(&m); verr != nil {
		return nil, fmt.Errorf("mission api: invalid mission payload: %w", verr)
	}

	if err := decodeRoute(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// decodeRoute expands the Google encoded polyline into coordinates.
func decodeRoute(m *models.Mission) error {
	if m.Route == nil || m.Route.Polyline == "" {
		return nil
	}
	coords, rest, err := polyline.DecodeCoords([]byte(m.Route.Polyline))
	if err != nil {
		return fmt.Errorf("mission api: decode route polyline: %w", err)
	}
	if len(rest) != 0 {
		return fmt.Errorf("mission api: trailing bytes after polyline: %q", rest)
	}
	points := make([]models.LatLng, 0, len(coords))
	for _, c := range coords {
		points = append(points, models.LatLng{Lat: c[0], Lng: c[1]})
	}
	m.Route.Points = points
	return nil
}
