// Package metrics exposes live benchmark figures to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

const namespace = "pseudobench"

// Exporter implements stats.Observer and runner.RowObserver. It uses its own registry so
// several exporters can coexist in tests.
type Exporter struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	ignored    prometheus.Counter
	latency    *prometheus.HistogramVec
	tps        *prometheus.GaugeVec
	total      *prometheus.GaugeVec
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Completed backend operations by kind.",
		}, []string{"kind"}),
		ignored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_errors_total",
			Help:      "Backend errors swallowed after the scenario deadline.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of completed backend operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"kind"}),
		tps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interval_tps",
			Help:      "Throughput of the last reporting interval.",
		}, []string{"scenario"}),
		total: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_operations",
			Help:      "Operations completed in the scenario so far.",
		}, []string{"scenario", "kind"}),
	}
	e.registry.MustRegister(e.operations, e.ignored, e.latency, e.tps, e.total)
	return e
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Operation(kind workload.Kind, latency time.Duration) {
	e.operations.WithLabelValues(kind.String()).Inc()
	e.latency.WithLabelValues(kind.String()).Observe(latency.Seconds())
}

func (e *Exporter) Ignored() {
	e.ignored.Inc()
}

func (e *Exporter) Row(scenario string, row stats.Row) {
	e.tps.WithLabelValues(scenario).Set(row.IntervalTPS)
	for _, k := range workload.Kinds {
		e.total.WithLabelValues(scenario, k.String()).Set(float64(row.Counts[k]))
	}
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
