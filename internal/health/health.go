// Package health runs the service's dependency checks and serves the
// liveness and readiness endpoints. Every check result is also exported
// as a Prometheus gauge.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a check or of the whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 3 * time.Second

func (s Status) gaugeValue() float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// severity orders statuses so the report takes the worst one.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckFunc returns nil when the dependency is usable.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency probe.
type Check struct {
	Name string
	Tags []string

	// FailureStatus is reported when Func fails. Defaults to unhealthy.
	FailureStatus Status
	Func          CheckFunc
}

// Result is the outcome of one check.
type Result struct {
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Tags     []string `json:"tags,omitempty"`
	Error    string   `json:"error,omitempty"`
	Duration string   `json:"duration"`
}

// Report aggregates every check. Status is the worst check status.
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Result  `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry holds the registered checks.
type Registry struct {
	mu      sync.RWMutex
	checks  []Check
	timeout time.Duration
	gauge   *prometheus.GaugeVec
	logger  *zap.Logger
}

// NewRegistry creates a registry and registers the health_check_status
// gauge on reg.
//
// Parameters:
//   - timeout: Per-check deadline, DefaultTimeout when zero
//   - reg: Prometheus registerer for the status gauge
//   - logger: Zap logger for failing checks
//
// Returns:
//   - *Registry: Empty registry
//   - error: Gauge registration error
func NewRegistry(timeout time.Duration, reg prometheus.Registerer, logger *zap.Logger) (*Registry, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status: 1 healthy, 0.5 degraded, 0 unhealthy.",
	}, []string{"check"})

	if err := reg.Register(gauge); err != nil {
		return nil, fmt.Errorf("register health gauge: %w", err)
	}

	return &Registry{
		timeout: timeout,
		gauge:   gauge,
		logger:  logger,
	}, nil
}

// Register adds a check.
func (r *Registry) Register(c Check) {
	if c.FailureStatus == "" {
		c.FailureStatus = StatusUnhealthy
	}

	r.mu.Lock()
	r.checks = append(r.checks, c)
	r.mu.Unlock()
}

// Run executes every check concurrently, each under its own timeout, and
// updates the gauge.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	checks := append([]Check(nil), r.checks...)
	r.mu.RUnlock()

	results := make([]Result, len(checks))

	var g errgroup.Group

	for i, c := range checks {
		g.Go(func() error {
			results[i] = r.run(ctx, c)
			return nil
		})
	}

	_ = g.Wait()

	report := Report{
		Status:    StatusHealthy,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}

	for _, res := range results {
		r.gauge.WithLabelValues(res.Name).Set(res.Status.gaugeValue())

		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
	}

	return report
}

func (r *Registry) run(ctx context.Context, c Check) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := c.Func(ctx)

	res := Result{
		Name:     c.Name,
		Status:   StatusHealthy,
		Tags:     c.Tags,
		Duration: time.Since(start).String(),
	}

	if err != nil {
		res.Status = c.FailureStatus
		res.Error = err.Error()

		r.logger.Warn("health check failed",
			zap.String("check", c.Name),
			zap.String("status", string(c.FailureStatus)),
			zap.Error(err))
	}

	return res
}

// LiveHandler reports that the process is serving.
func (r *Registry) LiveHandler(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]string{"status": string(StatusHealthy)})
}

// ReadyHandler runs every check. Unhealthy yields 503, degraded still
// yields 200.
func (r *Registry) ReadyHandler(w http.ResponseWriter, req *http.Request) {
	report := r.Run(req.Context())

	status := http.StatusOK
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	r.writeJSON(w, status, report)
}

func (r *Registry) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("failed to encode health response", zap.Error(err))
	}
}
