// Package metrics exposes Prometheus collectors for the stock engine and HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service reports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	FEFOViolations    prometheus.Counter
	AlertsCreated     *prometheus.CounterVec
	TasksCreated      *prometheus.CounterVec
	MovementFailures  prometheus.Counter
	AlertSweeps       *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	HTTPRequestLength *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry under namespace
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Processed scan movements by type and result",
		}, []string{"type", "result"}),
		ScanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of scan processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		FEFOViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fefo_violations_total",
			Help:      "Exits that consumed a lot other than the FEFO one",
		}),
		AlertsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts stored, by type",
		}, []string{"type"}),
		TasksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Tasks stored, by type and origin",
		}, []string{"type", "origin"}),
		MovementFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_failures_total",
			Help:      "Movements rejected with an unexpected error",
		}),
		AlertSweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_sweeps_total",
			Help:      "Scheduled alert sweeps by result",
		}, []string{"result"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_sweep_duration_seconds",
			Help:      "Duration of scheduled alert sweeps",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestLength: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScan records one processed scan
func (m *Metrics) ObserveScan(movementType, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(movementType, result).Inc()
	m.ScanDuration.WithLabelValues(movementType).Observe(elapsed.Seconds())
}

// IncViolation counts a FEFO violation
func (m *Metrics) IncViolation() {
	if m == nil {
		return
	}
	m.FEFOViolations.Inc()
}

// IncAlert counts a stored alert
func (m *Metrics) IncAlert(alertType string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(alertType).Inc()
}

// IncTask counts a stored task
func (m *Metrics) IncTask(taskType, origin string) {
	if m == nil {
		return
	}
	m.TasksCreated.WithLabelValues(taskType, origin).Inc()
}

// IncFailure counts a movement that failed unexpectedly
func (m *Metrics) IncFailure() {
	if m == nil {
		return
	}
	m.MovementFailures.Inc()
}

// ObserveSweep records one scheduled alert sweep
func (m *Metrics) ObserveSweep(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AlertSweeps.WithLabelValues(result).Inc()
	m.SweepDuration.Observe(elapsed.Seconds())
}

// Middleware records request counts and latency labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestLength.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
