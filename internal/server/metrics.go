package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Quote outcomes recorded by the quotes counter.
const (
	outcomeOK         = "ok"
	outcomeInvalid    = "invalid"
	outcomeInfeasible = "infeasible"
	outcomeError      = "error"
)

type metrics struct {
	registry *prometheus.Registry

	quotes      *prometheus.CounterVec
	quoteTime   prometheus.Histogram
	breakdowns  prometheus.Counter
	overrides   *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// newMetrics registers the server's collectors on a private registry so that
// several servers can live in one process.
func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressquote",
			Name:      "quotes_total",
			Help:      "Quote requests by outcome.",
		}, []string{"outcome"}),
		quoteTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pressquote",
			Name:      "quote_duration_seconds",
			Help:      "Time spent pricing one quote request, rate lookups included.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		breakdowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pressquote",
			Name:      "breakdowns_total",
			Help:      "Breakdowns produced, one per requested quantity.",
		}),
		overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressquote",
			Name:      "overrides_total",
			Help:      "Line item overrides and resets by line item.",
		}, []string{"item", "action"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressquote",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pressquote",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.quotes, m.quoteTime, m.breakdowns, m.overrides, m.httpReqs, m.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, o := range []string{outcomeOK, outcomeInvalid, outcomeInfeasible, outcomeError} {
		m.quotes.WithLabelValues(o)
	}
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// instrument records every request under its chi route pattern, so path
// parameters do not blow up label cardinality.
func (m *metrics) instrument(next http.Handler) http.Handler {
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
		m.httpReqs.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
