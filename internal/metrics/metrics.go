// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodgram",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "foodgram",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	ShoppingListDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "foodgram",
		Name:      "shopping_list_downloads_total",
		Help:      "Shopping lists built.",
	})

	ShoppingListLines = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "foodgram",
		Name:      "shopping_list_lines",
		Help:      "Number of lines per built shopping list.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
	})

	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodgram",
		Name:      "events_published_total",
		Help:      "AMQP events published by type and outcome.",
	}, []string{"type", "outcome"})

	EventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodgram",
		Name:      "events_consumed_total",
		Help:      "AMQP events handled by the worker by type and outcome.",
	}, []string{"type", "outcome"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "foodgram",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state by name (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})

	BreakerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodgram",
		Name:      "circuit_breaker_requests_total",
		Help:      "Calls through a circuit breaker by name and result.",
	}, []string{"name", "result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests, HTTPDuration,
		ShoppingListDownloads, ShoppingListLines,
		EventsPublished, EventsConsumed,
		BreakerState, BreakerRequests,
	)
}

// Handler serves the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and latency labelled by the chi route
// pattern, so ids in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
