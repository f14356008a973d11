// Package status serves the bot's health and readiness endpoints over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"recurry/pkg/config"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 8390
)

// Server reports process health at /healthz and readiness at /readyz.
// Components register their run state through MarkRunning and MarkStopped;
// the process is ready while at least one component runs.
type Server struct {
	cfg config.StatusConfig
	log *slog.Logger

	mu         sync.RWMutex
	startedAt  time.Time
	backend    string
	components map[string]componentState
}

type componentState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status         string                    `json:"status"`
	UptimeSeconds  int64                     `json:"uptime_seconds"`
	SessionBackend string                    `json:"session_backend"`
	Components     map[string]componentState `json:"components"`
}

func NewServer(cfg config.StatusConfig, sessionBackend string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg:        cfg,
		log:        log.With("component", "status"),
		backend:    sessionBackend,
		components: make(map[string]componentState),
	}
}

// MarkRunning records that a named component is serving.
func (s *Server) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[name] = componentState{Running: true}
}

// MarkStopped records that a named component exited, with its terminal error
// if any.
func (s *Server) MarkStopped(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[name] = componentState{Running: false, Error: errorString(err)}
}

// Run serves the status endpoints until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	addr := s.addr()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}

	return nil
}

func (s *Server) addr() string {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	return host + ":" + strconv.Itoa(port)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Server) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Server) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	components := make(map[string]componentState, len(s.components))
	for name, state := range s.components {
		components[name] = state
	}

	return statusResponse{
		Status:         status,
		UptimeSeconds:  uptime,
		SessionBackend: s.backend,
		Components:     components,
	}
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.components {
		if state.Running {
			return true
		}
	}

	return false
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
