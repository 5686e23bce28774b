package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Overall statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckTimeout bounds all checks of a single request.
const CheckTimeout = 5 * time.Second

// Check is a named liveness check.
type Check struct {
	Name     string
	Critical bool // A failure makes the service unhealthy instead of degraded
	Fn       func(ctx context.Context) error
}

// Info is a named component that only reports data, such as counters.
type Info struct {
	Name string
	Fn   func() any
}

// Response is the /health body.
type Response struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// NewHandler returns the HTTP handler serving /health.
func NewHandler(checks []Check, infos []Info) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), CheckTimeout)
		defer cancel()

		resp := Evaluate(ctx, checks, infos)

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})

	return mux
}

// Evaluate runs every check and collects every info component.
func Evaluate(ctx context.Context, checks []Check, infos []Info) Response {
	resp := Response{
		Status:     StatusHealthy,
		Components: make(map[string]any, len(checks)+len(infos)),
	}

	for _, c := range checks {
		if err := c.Fn(ctx); err != nil {
			resp.Components[c.Name] = map[string]string{
				"status": "down",
				"error":  err.Error(),
			}
			if c.Critical {
				resp.Status = StatusUnhealthy
			} else if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
			continue
		}
		resp.Components[c.Name] = "up"
	}

	for _, i := range infos {
		resp.Components[i.Name] = i.Fn()
	}

	return resp
}

// Server runs the health handler until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server listening on port. Port 0 picks a free port.
func NewServer(port int, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting health server", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown health server: %w", err)
	}
	s.logger.Info("health server stopped")
	return nil
}
