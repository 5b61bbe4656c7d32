// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access core
	GuardDecisionsTotal      *prometheus.CounterVec
	IdentityResolutionsTotal *prometheus.CounterVec
	IdentityCacheTotal       *prometheus.CounterVec
	JoinTransitionsTotal     *prometheus.CounterVec
	MembershipConflictsTotal prometheus.Counter
	SuperAdminDemotionsTotal prometheus.Counter
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crmhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_guard_decisions_total",
				Help: "Access guard decisions by outcome (allowed or the error kind)",
			},
			[]string{"outcome"},
		),
		IdentityResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_identity_resolutions_total",
				Help: "Identity resolutions by result",
			},
			[]string{"result"},
		),
		IdentityCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_identity_cache_total",
				Help: "Verified-identity cache lookups by result",
			},
			[]string{"result"},
		),
		JoinTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_join_request_transitions_total",
				Help: "Join request transitions by target status",
			},
			[]string{"status"},
		),
		MembershipConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crmhub_membership_version_conflicts_total",
				Help: "User document version conflicts retried by membership writes",
			},
		),
		SuperAdminDemotionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crmhub_superadmin_demotions_total",
				Help: "Super-admin records demoted because their email no longer matches",
			},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GuardDecisionsTotal,
		m.IdentityResolutionsTotal,
		m.IdentityCacheTotal,
		m.JoinTransitionsTotal,
		m.MembershipConflictsTotal,
		m.SuperAdminDemotionsTotal,
	)
	return m
}

// Registry exposes the private registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Guard(outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Identity(result string) {
	if m == nil {
		return
	}
	m.IdentityResolutionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IdentityCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.IdentityCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) JoinTransition(status string) {
	if m == nil {
		return
	}
	m.JoinTransitionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) MembershipConflict() {
	if m == nil {
		return
	}
	m.MembershipConflictsTotal.Inc()
}

func (m *Metrics) SuperAdminDemoted() {
	if m == nil {
		return
	}
	m.SuperAdminDemotionsTotal.Inc()
}

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. The route label is the chi route pattern
// so that path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
