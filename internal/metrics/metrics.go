// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exposes detector run counters as an optional Prometheus
// exposition endpoint, registered
// against its own Registry instead of the global default so repeated
// analyzer runs within one process (tests, the worker pool) never hit a
// duplicate-registration panic.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "aegleak_"

// Collector bundles every counter/gauge the detector updates across a run.
// It owns a private Registry so constructing one never collides with
// another Collector or with prometheus's global default registry.
type Collector struct {
	registry *prometheus.Registry

	FunctionsAnalyzed prometheus.Counter
	WitnessesFound    *prometheus.CounterVec
	SolverChecks      prometheus.Counter
	SolverTimeouts    prometheus.Counter
	SolverCheckTime   prometheus.Histogram
	ActiveWorkers     prometheus.Gauge
}

// NewCollector builds and registers a fresh Collector.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		FunctionsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "functions_analyzed_total",
			Help: "Total number of functions the detector has finished analyzing.",
		}),
		WitnessesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "witnesses_found_total",
			Help: "Total number of leakage witnesses found, by kind.",
		}, []string{"kind"}),
		SolverChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "solver_checks_total",
			Help: "Total number of SMT solver Check calls issued.",
		}),
		SolverTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "solver_timeouts_total",
			Help: "Total number of SMT solver Check calls that returned unknown (step budget exhausted).",
		}),
		SolverCheckTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "solver_check_duration_seconds",
			Help:    "Wall-clock duration of individual SMT solver Check calls.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "active_workers",
			Help: "Number of function-analysis worker processes currently running.",
		}),
	}
	reg.MustRegister(
		c.FunctionsAnalyzed,
		c.WitnessesFound,
		c.SolverChecks,
		c.SolverTimeouts,
		c.SolverCheckTime,
		c.ActiveWorkers,
	)
	return c
}

// RecordCheck folds one solver Check call's outcome into SolverChecks,
// SolverTimeouts and SolverCheckTime.
func (c *Collector) RecordCheck(d time.Duration, timedOut bool) {
	c.SolverChecks.Inc()
	if timedOut {
		c.SolverTimeouts.Inc()
	}
	c.SolverCheckTime.Observe(d.Seconds())
}

// Server serves the collector's registry over HTTP at /metrics.
type Server struct {
	httpServer *http.Server
}

// StartServer starts a background HTTP server exposing c's registry at
// addr: a dedicated ServeMux, a bounded ReadHeaderTimeout, and non-fatal
// logging if the listener fails.
func StartServer(addr string, c *Collector) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	slog.Info("metrics: starting Prometheus exposition server", slog.String("address", addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics: exposition server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()
	return &Server{httpServer: srv}
}

// Shutdown gracefully stops the exposition server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
