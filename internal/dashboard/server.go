package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/icg-systems/icg/internal/ledger"
)

// Server serves the read-only dashboard: GET /work-order/{session_id}
// returns the latest Work Order artifact for that session, and
// /signals/stream upgrades to the live Signal WebSocket feed.
type Server struct {
	Hub       *Hub
	OutDir    string
	Store     *ledger.Store
	Logger    *slog.Logger
	workOrder func(sessionID string) string // artifact path resolver, injected to avoid an orchestrator import cycle
}

// NewServer wires a Server. workOrderPath resolves a session ID to its
// interactive-work-order.json artifact path (orchestrator.Orchestrator's
// SessionDir joined with the fixed filename), injected by the caller so
// this package never imports internal/orchestrator.
func NewServer(hub *Hub, outDir string, store *ledger.Store, logger *slog.Logger, workOrderPath func(string) string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Hub: hub, OutDir: outDir, Store: store, Logger: logger.With("component", "dashboard.Server"), workOrder: workOrderPath}
}

// Handler returns the dashboard's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /work-order/{session_id}", s.handleWorkOrder)
	mux.HandleFunc("GET /signals/stream", s.Hub.HandleWebSocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleWorkOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	path := s.workOrder(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "work order not found for session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// PollSignals polls the ledger for rows newer than the last poll and
// broadcasts each to connected dashboard clients, until ctx is done. The
// ledger's signal stream is append-only JSONL with no push mechanism of
// its own, so a short poll interval is the simplest bridge to a live
// feed, matching the teacher's broadcast-on-append style without
// requiring the writer (the orchestrator, running as a separate `icg
// run` invocation) to know a dashboard is listening.
func (s *Server) PollSignals(ctx context.Context, interval time.Duration) {
	since := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			rows, err := s.Store.Signals(since, now)
			if err != nil {
				s.Logger.Warn("poll signals failed", "error", err)
				continue
			}
			for _, sig := range rows {
				s.Hub.Broadcast(sig)
			}
			since = now
		}
	}
}

