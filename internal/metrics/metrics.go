package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlanRuns counts monthly plan generations by final status
	PlanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plan_runs_total", Help: "Monthly plan generations by status."},
		[]string{"status"},
	)
	// SolveDuration tracks assignment solve wall time in seconds
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_solve_duration_seconds", Help: "Assignment solve duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}},
	)
	// UnmetClients records how many clients each plan left short of demand
	UnmetClients = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_unmet_clients", Help: "Clients with unmet demand per plan.", Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100}},
	)
	// RouteFallbacks counts technician routes sequenced by the fallback by reason
	RouteFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_fallbacks_total", Help: "Routes sequenced by the deterministic fallback."},
		[]string{"reason"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlanRuns)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(UnmetClients)
		Registry.MustRegister(RouteFallbacks)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
