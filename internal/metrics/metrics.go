// Package metrics exposes Prometheus collectors for load steps and catalog
// requests, plus an optional HTTP listener serving them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

const namespace = "dumpload"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	rowsStaged      *prometheus.CounterVec
	rowsWritten     *prometheus.CounterVec
	rowsSkipped     *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	catalogRequests *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rowsStaged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_staged_total",
			Help:      "Rows written to staging tables.",
		}, []string{"type"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows inserted or updated in permanent tables.",
		}, []string{"type"}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows dropped because a referenced id is absent from its dump.",
		}, []string{"type"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of load steps.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"type", "status"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Requests issued to the dump bucket.",
		}, []string{"op", "status"}),
	}
	m.registry.MustRegister(
		m.rowsStaged,
		m.rowsWritten,
		m.rowsSkipped,
		m.stepDuration,
		m.catalogRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RowsStaged(t domain.EntityType, n int) {
	m.rowsStaged.WithLabelValues(t.String()).Add(float64(n))
}

func (m *Metrics) RowsWritten(t domain.EntityType, n int64) {
	m.rowsWritten.WithLabelValues(t.String()).Add(float64(n))
}

func (m *Metrics) RowsSkipped(t domain.EntityType, n int) {
	m.rowsSkipped.WithLabelValues(t.String()).Add(float64(n))
}

func (m *Metrics) StepFinished(t domain.EntityType, status string, d time.Duration) {
	m.stepDuration.WithLabelValues(t.String(), status).Observe(d.Seconds())
}

// CatalogRequest counts one bucket request; err decides the status label.
func (m *Metrics) CatalogRequest(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.catalogRequests.WithLabelValues(op, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a listener on addr until ctx is cancelled. An empty addr
// disables the listener and returns immediately.
func (m *Metrics) Serve(ctx context.Context, log *slog.Logger, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listener started", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
