// Package live pushes new-application updates to status page viewers over
// WebSocket.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

const writeTimeout = 5 * time.Second

// Update is one message on the feed. It carries no contact details.
type Update struct {
	Total           int64     `json:"total"`
	ExperienceLevel string    `json:"experience_level"`
	At              time.Time `json:"at"`
}

type subscriber struct {
	ch chan Update
}

// Hub fans application updates out to connected viewers. Slow viewers
// miss updates rather than holding up the intake.
type Hub struct {
	origins []string
	buffer  int

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub creates a hub accepting WebSocket upgrades from the given origins.
// Entries may be full URLs or host patterns such as "*.example.org".
func NewHub(origins []string, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		patterns = append(patterns, o)
	}
	return &Hub{
		origins: patterns,
		buffer:  buffer,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Notify broadcasts a saved application to every viewer.
func (h *Hub) Notify(app domain.Application, total int64) {
	upd := Update{Total: total, ExperienceLevel: app.ExperienceLevel, At: app.CreatedAt}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- upd:
		default:
			slog.Debug("Live update dropped for slow viewer")
		}
	}
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects all viewers and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	sub := &subscriber{ch: make(chan Update, h.buffer)}
	h.subs[sub] = struct{}{}
	return sub, true
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// ServeHTTP upgrades the request and streams updates until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subscribe()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.unsubscribe(sub)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Warn("Failed to accept live feed connection", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.CloseNow(); closeErr != nil {
			slog.Debug("Failed to close live feed connection", "error", closeErr)
		}
	}()

	// The feed is one-way; CloseRead handles pings and reports disconnects.
	ctx := ws.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-sub.ch:
			if !ok {
				_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, ws, upd); err != nil {
				slog.Debug("Live feed write failed", "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, ws *websocket.Conn, upd Update) error {
	data, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
