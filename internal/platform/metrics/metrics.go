package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the HTTP surface and the portal
// domain counters.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec

	UsersCreated   prometheus.Counter
	LoginsTotal    *prometheus.CounterVec
	BorrowRequests prometheus.Counter
	ReturnRequests prometheus.Counter
}

// New creates and registers all metrics on the given registerer. A nil
// registerer falls back to the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libris_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libris_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "libris_users_created_total",
			Help: "Total number of accounts created.",
		}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libris_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		BorrowRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "libris_borrow_requests_total",
			Help: "Total number of borrow requests submitted.",
		}),
		ReturnRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "libris_return_requests_total",
			Help: "Total number of return requests submitted.",
		}),
	}
}

// IncrementUsersCreated bumps the account-creation counter.
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

// ObserveLogin records a login attempt with outcome "success" or "failure".
func (m *Metrics) ObserveLogin(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// Middleware instruments handlers with request duration and count metrics,
// labelled by the chi route pattern rather than the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
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
