// Package metrics holds the Prometheus collectors shared by every subcommand.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	RPCRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archon_rpc_requests_total",
			Help: "Solana RPC HTTP requests by status class",
		},
		[]string{"status"},
	)

	RPCRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "archon_rpc_retries_total",
			Help: "Solana RPC requests retried after a rate limit",
		},
	)

	TradesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archon_trades_classified_total",
			Help: "Validator trades classified into sea-life tiers",
		},
		[]string{"side", "classification"},
	)

	SwapAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archon_swap_attempts_total",
			Help: "Swap script invocations by side and result",
		},
		[]string{"side", "result"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archon_decisions_total",
			Help: "Trading loop decisions by action",
		},
		[]string{"action"},
	)

	SignalRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archon_signal_refreshes_total",
			Help: "Signal cache refreshes by kind and result",
		},
		[]string{"kind", "result"},
	)

	CandlesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archon_candles_built_total",
			Help: "Candles finalized by resolution",
		},
		[]string{"resolution"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archon_cycle_duration_seconds",
			Help:    "Duration of one loop cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"loop"},
	)
)

func init() {
	prometheus.MustRegister(
		RPCRequests,
		RPCRetries,
		TradesClassified,
		SwapAttempts,
		Decisions,
		SignalRefreshes,
		CandlesBuilt,
		CycleDuration,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records the time since start for the named loop.
func ObserveCycle(loop string, start time.Time) {
	CycleDuration.WithLabelValues(loop).Observe(time.Since(start).Seconds())
}

// Serve runs a standalone /metrics listener until ctx is done. An empty
// addr disables it.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("📈 metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
}
