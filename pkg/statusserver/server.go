package statusserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/logging"
	"github.com/fair-eva/supervisor/pkg/monitoring"
)

// ProcessStatus is the per-process view served by the status endpoint.
type ProcessStatus struct {
	ID          string                         `json:"id"`
	Name        string                         `json:"name,omitempty"`
	Primary     bool                           `json:"primary"`
	PID         int                            `json:"pid"`
	Running     bool                           `json:"running"`
	StartedAt   time.Time                      `json:"started_at"`
	ExitCode    *int                           `json:"exit_code,omitempty"`
	Diagnostics *monitoring.ProcessDiagnostics `json:"diagnostics,omitempty"`
}

// StatusProvider returns the current state of all managed processes.
type StatusProvider func() []ProcessStatus

// Server exposes supervisor health, process status and prometheus metrics on
// the observability port.
type Server struct {
	port     int
	provider StatusProvider
	metrics  *Metrics
	logger   logging.Logger

	listener   net.Listener
	httpServer *http.Server
}

func New(port int, provider StatusProvider, metrics *Metrics, logger logging.Logger) *Server {
	return &Server{
		port:     port,
		provider: provider,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return errors.NewIOError("failed to bind status server port", err).
			WithContext("port", fmt.Sprintf("%d", s.port))
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Status server failed: %v", err)
		}
	}()

	s.logger.Infof("Status server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","component":"supervisor"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.provider()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		s.logger.Errorf("Failed to encode status response: %v", err)
	}
}
