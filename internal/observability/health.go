package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one named probe, e.g. "redis" pinging the cache/cost
// backing store.
type HealthCheck struct {
	Name      string
	CheckFunc func(context.Context) error
	Timeout   time.Duration
	Critical  bool
}

// HealthChecker runs every registered HealthCheck and folds the results
// into one overall status.
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]*HealthCheck
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]*HealthCheck)}
}

func (hc *HealthChecker) Register(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = 5 * time.Second
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name] = check
}

type checkStatus struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

type healthResponse struct {
	Status HealthStatus           `json:"status"`
	Checks map[string]checkStatus `json:"checks"`
}

func (hc *HealthChecker) run(ctx context.Context) healthResponse {
	hc.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hc.checks))
	for _, c := range hc.checks {
		checks = append(checks, c)
	}
	hc.mu.RUnlock()

	results := make(map[string]checkStatus, len(checks))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		c := c
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, c.Timeout)
			err := c.CheckFunc(checkCtx)
			cancel()

			status := checkStatus{Status: HealthStatusHealthy, Message: "ok"}
			if err != nil {
				status.Message = err.Error()
				status.Status = HealthStatusDegraded
				if c.Critical {
					status.Status = HealthStatusUnhealthy
				}
			}
			resultsMu.Lock()
			results[c.Name] = status
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // each check reports via results, never returns an error itself

	overall := HealthStatusHealthy
	for _, status := range results {
		switch status.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}

	return healthResponse{Status: overall, Checks: results}
}

// Handler serves the aggregate health response.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := hc.run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if resp.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// LivenessHandler never checks dependencies; it only proves the process
// is scheduled and answering.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}
