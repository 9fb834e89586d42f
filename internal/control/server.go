// Package control exposes the daemon's HTTP control surface: a status query,
// a partial parameter write, a health probe, and Prometheus metrics.
//
// The server works against the Controller interface rather than the concrete
// engine so tests can substitute a fake. Writes return only after the engine
// has recomputed and reapplied the pump command, so the response status
// always reflects a fresh interlock evaluation.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/udare/waterctl/internal/engine"
	"github.com/udare/waterctl/internal/logger"
	"github.com/udare/waterctl/internal/models"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Controller is the engine surface the control server needs.
type Controller interface {
	Status() engine.Status
	Apply(req models.ControlRequest) engine.Status
}

// Server serves the inbound control interface.
type Server struct {
	ctrl Controller
	http *http.Server
}

// NewServer creates a control server listening on addr.
func NewServer(addr string, ctrl Controller) *Server {
	s := &Server{ctrl: ctrl}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the listener in its own goroutine.
func (s *Server) Start() {
	go func() {
		logger.Info("control surface listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control surface terminated: %v", err)
		}
	}()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ControlRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Apply returns only after the pump command has been recomputed and
	// forced onto the output.
	st := s.ctrl.Apply(req)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response: %v", err)
	}
}
