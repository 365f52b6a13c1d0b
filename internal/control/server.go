package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/guardrail/internal/resilience/threshold"
)

// Server exposes health, status, metrics and the admin surface over HTTP.
// Admin identity arrives pre-verified in the X-Admin-Id header; the gateway
// in front of this service enforces authentication.
type Server struct {
	engine *Engine
	server *http.Server
}

// NewServer creates the HTTP server on the given port.
func NewServer(engine *Engine, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		engine: engine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admin/config", s.handleSetConfig)
	mux.HandleFunc("/admin/reset-metrics", s.handleResetMetrics)
	mux.HandleFunc("/admin/reset-cooldown", s.handleResetCooldown)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, err := s.engine.Monitor().IsCooldownActive(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := "healthy"
	if active {
		status = "cooldown"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var cfg threshold.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.SetThresholdConfig(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	slog.Info("threshold config updated", "admin", admin)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	if err := s.engine.ResetMetrics(r.Context(), admin); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResetCooldown(w http.ResponseWriter, r *http.Request) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	if err := s.engine.ResetCooldownMultiplier(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("cooldown multiplier reset", "admin", admin)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	admin := r.Header.Get("X-Admin-Id")
	if admin == "" {
		http.Error(w, "missing X-Admin-Id", http.StatusUnauthorized)
		return "", false
	}
	return admin, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
