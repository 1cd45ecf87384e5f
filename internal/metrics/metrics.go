// Package metrics holds the Prometheus collectors for the recompute engine
// and the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "healthmap_recompute_duration_seconds",
		Help:    "Duration of demand-zone recompute passes",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	RecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthmap_recompute_total",
		Help: "Recompute passes by outcome (ok, error, busy)",
	}, []string{"outcome"})
	DemandZones = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "healthmap_demand_zones",
		Help: "Demand zones in the current cache version by priority",
	}, []string{"priority"})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthmap_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "healthmap_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	TileCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthmap_tile_cache_hits_total",
		Help: "Vector tile cache hits by layer",
	}, []string{"layer"})
	TileCacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthmap_tile_cache_misses_total",
		Help: "Vector tile cache misses by layer",
	}, []string{"layer"})
)

// Recompute outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeBusy  = "busy"
)

func init() {
	prometheus.MustRegister(RecomputeDuration)
	prometheus.MustRegister(RecomputeTotal)
	prometheus.MustRegister(DemandZones)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(TileCacheHits)
	prometheus.MustRegister(TileCacheMisses)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
