package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server exposes /health, /health/live and /metrics alongside whatever
// routes the caller mounts for estimate/budget lookups.
type Server struct {
	httpServer *http.Server
	checker    *HealthChecker
}

func NewServer(port int, checker *HealthChecker, extra map[string]http.HandlerFunc) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.Handler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.Handle("/metrics", MetricsHandler())
	for path, h := range extra {
		mux.HandleFunc(path, h)
	}

	return &Server{
		checker: checker,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
