// internal/telemetry/telemetry.go
// Package telemetry exposes run counters and timings in Prometheus format.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the run metrics on its own registry so several
// collectors can coexist in one process.
type Collector struct {
	registry        *prometheus.Registry
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	samplesAnalyzed prometheus.Counter
	activeRuns      prometheus.Gauge
	stopRequests    prometheus.Counter
}

// NewCollector creates and registers the run metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Collector{
		registry: registry,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadpilot_runs_total",
				Help: "Total number of load test runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadpilot_run_duration_seconds",
				Help:    "Wall time of load test runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"outcome"},
		),
		samplesAnalyzed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loadpilot_samples_analyzed_total",
				Help: "Total number of sample log rows summarized",
			},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "loadpilot_runs_active",
				Help: "Number of runs whose worker is executing",
			},
		),
		stopRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loadpilot_stop_requests_total",
				Help: "Total number of stop requests sent to running tests",
			},
		),
	}
}

// RunStarted marks a worker as active.
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.activeRuns.Inc()
}

// RunFinished records the outcome and wall time of a run.
func (c *Collector) RunFinished(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SamplesAnalyzed adds n summarized samples.
func (c *Collector) SamplesAnalyzed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.samplesAnalyzed.Add(float64(n))
}

// StopRequested counts a stop request.
func (c *Collector) StopRequested() {
	if c == nil {
		return
	}
	c.stopRequests.Inc()
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the Prometheus metrics handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
