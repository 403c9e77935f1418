package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	Recomputes        prometheus.Counter
	RecomputeDuration prometheus.Histogram
	ShippingQuotes    *prometheus.CounterVec
	HTTPRequests      *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		Recomputes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "candleworks",
			Name:      "pricing_recomputes_total",
			Help:      "Pricing passes computed.",
		}),
		RecomputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "candleworks",
			Name:      "pricing_recompute_seconds",
			Help:      "Time spent in one pricing pass.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005},
		}),
		ShippingQuotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "candleworks",
			Name:      "shipping_quotes_total",
			Help:      "Shipping quote requests by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "candleworks",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveRecompute records one pricing pass.
func (m *Metrics) ObserveRecompute(d time.Duration) {
	m.Recomputes.Inc()
	m.RecomputeDuration.Observe(d.Seconds())
}

// ObserveQuote records a shipping quote outcome.
func (m *Metrics) ObserveQuote(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ShippingQuotes.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware times requests, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
