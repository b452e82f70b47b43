// Package dashboard serves the live web dashboard: a snapshot endpoint and
// a websocket stream that fans out new events, alerts, and periodic stats.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vigil/internal/events"
	"vigil/internal/samplers"
)

const (
	maxRecentAlerts = 50
	maxRecentEvents = 100
	statsInterval   = 5 * time.Second
)

// Handle is the narrow view of *Server: read a snapshot, or broadcast a new
// event/alert. The engine and pipeline do not import this package; they
// declare their own one-method interfaces (engine.Dashboard,
// pipeline.Broadcaster), which *Server satisfies.
type Handle interface {
	Snapshot() Snapshot
	BroadcastEvent(event events.Event)
	BroadcastAlert(alert events.Alert)
}

// StateProvider reports live sampler health for the stats feed.
type StateProvider interface {
	States() []samplers.State
}

// Snapshot is the dashboard's point-in-time view, served from
// `/api/snapshot` and sent to every websocket client on connect.
type Snapshot struct {
	RecentEvents []events.Event  `json:"recent_events"`
	RecentAlerts []events.Alert  `json:"recent_alerts"`
	Samplers     []samplers.State `json:"samplers"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// message is the envelope sent over the websocket stream.
type message struct {
	Type string `json:"type"` // "snapshot", "event", "alert", "stats"
	Data any    `json:"data"`
}

// Server implements Handle and serves the dashboard's HTTP and websocket
// endpoints.
type Server struct {
	states StateProvider

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	ringMu       sync.Mutex
	recentEvents []events.Event
	recentAlerts []events.Alert
}

// New creates a dashboard server. states may be nil if no sampler health
// feed is wired yet.
func New(states StateProvider) *Server {
	return &Server{
		states:  states,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes wires the dashboard's handlers onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
}

// Run starts the periodic stats broadcast and blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.states == nil {
				continue
			}
			s.broadcast(message{Type: "stats", Data: s.states.States()})
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("vigil dashboard: see /api/snapshot and /ws"))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Snapshot())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("dashboard: websocket upgrade failed", "err", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	if err := conn.WriteJSON(message{Type: "snapshot", Data: s.Snapshot()}); err != nil {
		s.dropClient(conn)
		return
	}

	// Drain and discard client frames until the connection closes; this
	// dashboard stream is one-directional (server to browser).
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Snapshot returns the current recent-events/recent-alerts/sampler-state
// view.
func (s *Server) Snapshot() Snapshot {
	s.ringMu.Lock()
	evts := make([]events.Event, len(s.recentEvents))
	copy(evts, s.recentEvents)
	alerts := make([]events.Alert, len(s.recentAlerts))
	copy(alerts, s.recentAlerts)
	s.ringMu.Unlock()

	var states []samplers.State
	if s.states != nil {
		states = s.states.States()
	}

	return Snapshot{
		RecentEvents: evts,
		RecentAlerts: alerts,
		Samplers:     states,
		GeneratedAt:  time.Now(),
	}
}

// BroadcastEvent records event in the ring buffer and fans it out to
// connected clients.
func (s *Server) BroadcastEvent(event events.Event) {
	s.ringMu.Lock()
	s.recentEvents = appendBounded(s.recentEvents, event, maxRecentEvents)
	s.ringMu.Unlock()

	s.broadcast(message{Type: "event", Data: event})
}

// BroadcastAlert records alert in the ring buffer and fans it out to
// connected clients.
func (s *Server) BroadcastAlert(alert events.Alert) {
	s.ringMu.Lock()
	s.recentAlerts = appendBounded(s.recentAlerts, alert, maxRecentAlerts)
	s.ringMu.Unlock()

	s.broadcast(message{Type: "alert", Data: alert})
}

func (s *Server) broadcast(msg message) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteJSON(msg); err != nil {
			s.dropClient(c)
		}
	}
}

func appendBounded[T any](ring []T, item T, max int) []T {
	ring = append(ring, item)
	if len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	return ring
}
