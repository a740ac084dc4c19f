// Package metrics registers the Prometheus series exported by the market maker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PlannerCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_cycles_total", Help: "Planner cycles by job type and outcome"},
		[]string{"job", "outcome"},
	)
	LiquiditySubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "liquidity_submissions_total", Help: "Liquidity provision instructions sent"},
		[]string{"market"},
	)
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Quote orders submitted"},
		[]string{"market", "side"},
	)
	OrdersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_cancelled_total", Help: "Quote orders cancelled"},
		[]string{"market"},
	)
	ReferenceUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reference_updates_total", Help: "Reference price updates ingested"},
		[]string{"market"},
	)
	CacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "cache_entries", Help: "Entries held per exchange state collection"},
		[]string{"collection"},
	)
)

func init() {
	prometheus.MustRegister(PlannerCycles, LiquiditySubmissions, OrdersSubmitted, OrdersCancelled, ReferenceUpdates, CacheEntries)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
