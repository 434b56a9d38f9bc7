// Package server is the presentation layer: it reads score records on stdin,
// serves the live chart page, pushes each record to WebSocket clients, and
// persists the session to a JSONL file.
package server

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static/index.html
var staticFS embed.FS

// maxHistory bounds the records replayed to newly connected clients.
const maxHistory = 300

// noDataWarnAfter is how long the server waits before warning that nothing
// arrived on stdin. The engine needs ~30 RR intervals before its first
// emission, so anything much shorter fires during normal warm-up.
const noDataWarnAfter = 90 * time.Second

// Server owns the hub, the replay history and the session recorder.
type Server struct {
	hub      *Hub
	recorder *Recorder
	upgrader websocket.Upgrader

	lines   atomic.Int64
	histMu  sync.Mutex
	history [][]byte
	mux     *http.ServeMux
}

// New creates a Server recording sessions under logsDir.
func New(logsDir string) *Server {
	s := &Server{
		hub:      NewHub(),
		recorder: NewRecorder(logsDir),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /", s.index)
	s.mux.HandleFunc("GET /status", s.status)
	s.mux.HandleFunc("GET /ws", s.ws)
	s.mux.HandleFunc("GET /healthz", s.healthz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// Handler returns the HTTP handler with logging applied.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.mux)
}

// Close releases the session recorder.
func (s *Server) Close() error {
	return s.recorder.Close()
}

// Consume reads score lines from r (normally stdin) until EOF or ctx
// cancellation, broadcasting each to connected clients and recording it.
func (s *Server) Consume(ctx context.Context, r io.Reader) error {
	go s.warnIfSilent(ctx)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		n := s.lines.Add(1)
		if n == 1 {
			slog.Info("receiving data from pipeline")
		} else if n%50 == 0 {
			slog.Info("pipeline progress", "lines", n)
		}

		msg := []byte(line)
		s.pushHistory(msg)
		if err := s.recorder.Append(msg); err != nil {
			slog.Warn("session record failed", "err", err)
		}
		s.hub.Broadcast(msg)
	}
	return sc.Err()
}

func (s *Server) warnIfSilent(ctx context.Context) {
	select {
	case <-time.After(noDataWarnAfter):
		if s.lines.Load() == 0 {
			slog.Warn("no data on stdin yet; run the full pipeline",
				"example", "hrv-sim | hrv-engine | hrv-server",
				"waited", noDataWarnAfter)
		}
	case <-ctx.Done():
	}
}

func (s *Server) pushHistory(msg []byte) {
	s.histMu.Lock()
	s.history = append(s.history, msg)
	if len(s.history) > maxHistory {
		s.history = s.history[1:]
	}
	s.histMu.Unlock()
}

func (s *Server) snapshotHistory() [][]byte {
	s.histMu.Lock()
	out := make([][]byte, len(s.history))
	copy(out, s.history)
	s.histMu.Unlock()
	return out
}

// GET / — the chart page.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	body, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chart page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// GET /status — whether the server is receiving pipeline data.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	n := s.lines.Load()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stdin_lines": n,
		"receiving":   n > 0,
		"clients":     s.hub.Count(),
		"session":     s.recorder.Path(),
	})
}

// GET /healthz — liveness probe.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /ws — upgrade, replay history, then listen for region markers.
func (s *Server) ws(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Replay before joining the hub: broadcasts and the replay loop must not
	// write to the same connection concurrently.
	for _, msg := range s.snapshotHistory() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	s.hub.Add(conn)
	defer s.hub.Remove(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Event  string  `json:"event"`
			Region string  `json:"region"`
			TS     float64 `json:"ts"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Event != "region" || msg.Region == "" {
			continue
		}
		if err := s.recorder.SetRegion(msg.Region, msg.TS); err != nil {
			slog.Warn("region marker failed", "err", err)
		}
	}
}
