// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

package feeds

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/adam-announ/fleetlive/internal/logging"
	"github.com/adam-announ/fleetlive/internal/models"
	"github.com/adam-announ/fleetlive/internal/realtime"
)

// syncBuffer collects log output written from channel goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setupTopicServer creates a test WebSocket server. The handler runs once
// per accepted connection.
func setupTopicServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
}

func writeFrame(t *testing.T, conn *websocket.Conn, msgType string, data string) {
	t.Helper()
	frame := `{"type":"` + msgType + `","data":` + data + `}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Errorf("write frame: %v", err)
	}
}

func drainUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestDashboardDeliversStats(t *testing.T) {
	server := setupTopicServer(t, func(conn *websocket.Conn, r *http.Request) {
		if r.URL.Path != "/ws/dashboard/" {
			t.Errorf("path = %q, want /ws/dashboard/", r.URL.Path)
		}
		writeFrame(t, conn, models.MessageTypeStatsUpdate, `{"missions_actives":7,"retards":2}`)
		drainUntilClosed(conn)
	})
	defer server.Close()

	d, err := NewDashboard(DashboardConfig{
		BaseURL:         server.URL,
		RefreshInterval: -1,
	})
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	defer d.Stop()

	stats := make(chan map[string]any, 1)
	d.OnStats(func(m map[string]any) { stats <- m })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case m := <-stats:
		if m["missions_actives"] != float64(7) {
			t.Errorf("missions_actives = %v, want 7", m["missions_actives"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stats")
	}
}

func TestDashboardPeriodicRefresh(t *testing.T) {
	requests := make(chan models.RefreshStatsRequest, 8)
	server := setupTopicServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req models.RefreshStatsRequest
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("unmarshal refresh request: %v", err)
				continue
			}
			requests <- req
		}
	})
	defer server.Close()

	d, err := NewDashboard(DashboardConfig{
		BaseURL:         server.URL,
		RefreshInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case req := <-requests:
		if req.Type != models.MessageTypeRefreshStats {
			t.Errorf("request type = %q, want refresh_stats", req.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for periodic refresh request")
	}
}

func TestDashboardStopIdempotent(t *testing.T) {
	server := setupTopicServer(t, func(conn *websocket.Conn, _ *http.Request) {
		drainUntilClosed(conn)
	})
	defer server.Close()

	d, err := NewDashboard(DashboardConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()
	d.Stop()

	if got := d.State(); got != realtime.StateClosed {
		t.Errorf("state after Stop = %v, want closed", got)
	}
}

func TestNotificationsDeliversValidated(t *testing.T) {
	server := setupTopicServer(t, func(conn *websocket.Conn, r *http.Request) {
		if r.URL.Path != "/ws/notifications/" {
			t.Errorf("path = %q, want /ws/notifications/", r.URL.Path)
		}
		if got := r.URL.Query().Get("token"); got != "tok-1" {
			t.Errorf("token = %q, want tok-1", got)
		}
		// Invalid priority first; must be dropped, not delivered.
		writeFrame(t, conn, models.MessageTypeNotification,
			`{"id":1,"titre":"Oops","priorite":"URGENT"}`)
		writeFrame(t, conn, models.MessageTypeNotification,
			`{"id":2,"titre":"Mission affectee","message":"Nouvelle mission","priorite":"HAUTE","date":"2026-03-14T09:00:00Z"}`)
		drainUntilClosed(conn)
	})
	defer server.Close()

	n, err := NewNotifications(NotificationsConfig{BaseURL: server.URL, Token: "tok-1"})
	if err != nil {
		t.Fatalf("NewNotifications: %v", err)
	}
	defer n.Stop()

	got := make(chan models.NotificationPayload, 4)
	n.OnNotification(func(p models.NotificationPayload) { got <- p })

	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case p := <-got:
		if p.ID != 2 || p.Priorite != models.PriorityHigh {
			t.Errorf("notification = %+v, want id 2 HAUTE", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	select {
	case p := <-got:
		t.Errorf("unexpected extra notification %+v, invalid one should be dropped", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotificationsReadReceipts(t *testing.T) {
	frames := make(chan map[string]any, 4)
	server := setupTopicServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Errorf("unmarshal receipt: %v", err)
				continue
			}
			frames <- m
		}
	})
	defer server.Close()

	n, err := NewNotifications(NotificationsConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNotifications: %v", err)
	}
	defer n.Stop()
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !n.MarkRead(42) {
		t.Fatal("MarkRead should succeed while open")
	}
	if !n.MarkAllRead() {
		t.Fatal("MarkAllRead should succeed while open")
	}

	want := []map[string]any{
		{"action": "mark_read", "notification_id": float64(42)},
		{"action": "mark_all_read"},
	}
	for i, w := range want {
		select {
		case m := <-frames:
			for k, v := range w {
				if m[k] != v {
					t.Errorf("receipt %d field %q = %v, want %v", i, k, m[k], v)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for receipt %d", i)
		}
	}
}

func TestNotificationsReceiptsDroppedWhenDown(t *testing.T) {
	server := setupTopicServer(t, func(conn *websocket.Conn, _ *http.Request) {
		drainUntilClosed(conn)
	})
	n, err := NewNotifications(NotificationsConfig{BaseURL: server.URL})
	server.Close()
	if err != nil {
		t.Fatalf("NewNotifications: %v", err)
	}
	if n.MarkRead(1) {
		t.Error("MarkRead before connect should report the drop")
	}
}

func TestServerErrorTextTopLevelField(t *testing.T) {
	// The server sends its error text at the top level of the frame, not
	// nested under data like every other type.
	var env realtime.Envelope
	if err := json.Unmarshal([]byte(`{"type": "error", "message": "Erreur serveur"}`), &env); err != nil {
		t.Fatalf("unmarshal error frame: %v", err)
	}
	if env.Type != models.MessageTypeError {
		t.Errorf("type = %q", env.Type)
	}
	if got := serverErrorText(env); got != "Erreur serveur" {
		t.Errorf("serverErrorText = %q, want Erreur serveur", got)
	}

	// Nested shape still accepted.
	nested := realtime.Envelope{Type: models.MessageTypeError, Data: []byte(`{"message":"nested"}`)}
	if got := serverErrorText(nested); got != "nested" {
		t.Errorf("serverErrorText nested = %q, want nested", got)
	}
}

func TestDashboardLogsServerErrorFrame(t *testing.T) {
	buf := &syncBuffer{}
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(buf))
	defer logging.SetLogger(prev)

	server := setupTopicServer(t, func(conn *websocket.Conn, _ *http.Request) {
		raw := `{"type": "error", "message": "Erreur serveur"}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Errorf("write error frame: %v", err)
		}
		drainUntilClosed(conn)
	})
	defer server.Close()

	d, err := NewDashboard(DashboardConfig{BaseURL: server.URL, RefreshInterval: -1})
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	defer d.Stop()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "Erreur serveur") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("error text never logged; log output: %s", buf.String())
}

func TestNotificationsUnreadBacklogDelivered(t *testing.T) {
	server := setupTopicServer(t, func(conn *websocket.Conn, _ *http.Request) {
		// Backlog pushed immediately on connect; the invalid middle item
		// must be dropped without losing the rest.
		writeFrame(t, conn, models.MessageTypeUnreadBacklog,
			`[{"id":1,"titre":"Mission affectee","priorite":"HAUTE","date":"2026-03-14T08:00:00Z"},
			  {"id":2,"titre":"Oops","priorite":"URGENT"},
			  {"id":3,"titre":"Retard signale","priorite":"NORMALE","date":"2026-03-14T08:30:00Z"}]`)
		drainUntilClosed(conn)
	})
	defer server.Close()

	n, err := NewNotifications(NotificationsConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNotifications: %v", err)
	}
	defer n.Stop()

	backlogs := make(chan []models.NotificationPayload, 1)
	n.OnUnread(func(items []models.NotificationPayload) { backlogs <- items })

	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case items := <-backlogs:
		if len(items) != 2 {
			t.Fatalf("backlog has %d items, want 2 after dropping the invalid one", len(items))
		}
		if items[0].ID != 1 || items[1].ID != 3 {
			t.Errorf("backlog ids = %d,%d, want 1,3", items[0].ID, items[1].ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unread backlog")
	}
}

func TestNotificationsDefaultBackoff(t *testing.T) {
	if NotificationsBackoff.BaseInterval != time.Second || NotificationsBackoff.MaxAttempts != 5 {
		t.Errorf("default backoff = %+v", NotificationsBackoff)
	}
}
