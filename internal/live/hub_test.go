package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	return conn
}

func waitForViewers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d viewers, got %d", n, h.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsUpdates(t *testing.T) {
	hub := NewHub([]string{"*"}, 4)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.CloseNow()
	waitForViewers(t, hub, 1)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.Notify(domain.Application{
		FullName:        "Alex",
		Phone:           "89991234567",
		ExperienceLevel: "Новичок",
		CreatedAt:       created,
	}, 42)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}

	if strings.Contains(string(data), "89991234567") || strings.Contains(string(data), "Alex") {
		t.Errorf("Expected no personal data on the feed, got %s", data)
	}

	var upd Update
	if err := json.Unmarshal(data, &upd); err != nil {
		t.Fatalf("Failed to decode update: %v", err)
	}
	if upd.Total != 42 || upd.ExperienceLevel != "Новичок" || !upd.At.Equal(created) {
		t.Errorf("Unexpected update: %+v", upd)
	}
}

func TestHub_ViewerLeaves(t *testing.T) {
	hub := NewHub([]string{"*"}, 4)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitForViewers(t, hub, 1)

	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	waitForViewers(t, hub, 0)
}

func TestHub_CloseDisconnectsViewers(t *testing.T) {
	hub := NewHub([]string{"*"}, 4)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.CloseNow()
	waitForViewers(t, hub, 1)

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("Expected going-away close, got %v", err)
	}

	// Notify after close is a no-op.
	hub.Notify(domain.Application{}, 1)
}

func TestHub_SlowViewerDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, 1)
	sub, ok := hub.subscribe()
	if !ok {
		t.Fatal("Expected subscription")
	}
	defer hub.unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Notify(domain.Application{}, int64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow viewer")
	}
	if got := (<-sub.ch).Total; got != 0 {
		t.Errorf("Expected the first update to be kept, got %d", got)
	}
}

func TestNewHub_OriginPatterns(t *testing.T) {
	hub := NewHub([]string{"https://club.example", "*.example.org", "*"}, 0)

	want := []string{"club.example", "*.example.org", "*"}
	if len(hub.origins) != len(want) {
		t.Fatalf("Expected %v, got %v", want, hub.origins)
	}
	for i := range want {
		if hub.origins[i] != want[i] {
			t.Errorf("Pattern %d: expected %q, got %q", i, want[i], hub.origins[i])
		}
	}
	if hub.buffer != 8 {
		t.Errorf("Expected default buffer 8, got %d", hub.buffer)
	}
}
