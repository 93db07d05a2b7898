// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package missionapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func missionJSON(route string) string {
	body := `{
		"id": "m-42",
		"pickup_lat": 33.57,
		"pickup_lng": -7.58,
		"delivery_lat": 34.02,
		"delivery_lng": -6.83`
	if route != "" {
		body += `, "route": {"polyline": "` + route + `"}`
	}
	return body + "}"
}

func TestGetMissionDecodesPayload(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(missionJSON("")))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret-token", time.Second)
	m, err := c.GetMission(context.Background(), "m-42")
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}

	if gotPath != "/api/mission/m-42/" {
		t.Errorf("path = %q, want /api/mission/m-42/", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if m.Pickup().Lat != 33.57 || m.Delivery().Lng != -6.83 {
		t.Errorf("mission coords = %+v", m)
	}
	if m.Route != nil {
		t.Error("mission without route should have nil Route")
	}
}

func TestGetMissionDecodesRoutePolyline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(missionJSON("_p~iF~ps|U_ulLnnqC_mqNvxq`@")))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	m, err := c.GetMission(context.Background(), "m-42")
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if m.Route == nil {
		t.Fatal("route missing")
	}
	pts := m.Route.Points
	if len(pts) != 3 {
		t.Fatalf("decoded %d route points, want 3", len(pts))
	}
	want := [][2]float64{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}}
	for i, w := range want {
		if math.Abs(pts[i].Lat-w[0]) > 1e-5 || math.Abs(pts[i].Lng-w[1]) > 1e-5 {
			t.Errorf("point %d = %+v, want %v", i, pts[i], w)
		}
	}
}

func TestGetMissionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	_, err := c.GetMission(context.Background(), "missing")
	if !errors.Is(err, ErrMissionNotFound) {
		t.Errorf("err = %v, want ErrMissionNotFound", err)
	}
}

func TestGetMissionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	_, err := c.GetMission(context.Background(), "m-42")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Code != http.StatusInternalServerError {
		t.Errorf("err = %v, want StatusError 500", err)
	}
}

func TestGetMissionRejectsOutOfRangeCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m-1","pickup_lat":95.0,"pickup_lng":-7.58,"delivery_lat":34.02,"delivery_lng":-6.83}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	if _, err := c.GetMission(context.Background(), "m-1"); err == nil {
		t.Error("latitude 95 should fail validation")
	}
}

func TestGetMissionRejectsBadPolyline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(missionJSON(`not a polyline ÿ`)))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	if _, err := c.GetMission(context.Background(), "m-42"); err == nil {
		t.Error("malformed polyline should fail the load")
	}
}

func TestGetMissionEmptyID(t *testing.T) {
	c := NewClient("http://localhost:1", "", time.Second)
	if _, err := c.GetMission(context.Background(), ""); err == nil {
		t.Error("empty mission id should error without a request")
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	for i := 0; i < 5; i++ {
		if _, err := c.GetMission(context.Background(), "m-42"); err == nil {
			t.Fatalf("request %d unexpectedly succeeded", i)
		}
	}

	server.Close()
	_, err := c.GetMission(context.Background(), "m-42")
	if err == nil {
		t.Fatal("expected breaker rejection")
	}
}
