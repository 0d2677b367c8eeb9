// Package metrics provides Prometheus metrics for sync runs and identifier
// resolution.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filinglens"

// Metrics holds all filinglens collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FilingsProcessed *prometheus.CounterVec
	RowsWritten      *prometheus.CounterVec
	SyncRuns         *prometheus.CounterVec
	ResolverLookups  *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec

	BackfillQuarter *prometheus.GaugeVec

	SyncDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FilingsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filings_processed_total",
			Help:      "Filings seen by sync runs by outcome",
		},
		[]string{"source", "outcome"}, // "processed", "skipped", "failed"
	)

	m.RowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to the analytical store by table",
		},
		[]string{"table"},
	)

	m.SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Completed sync runs by source and status",
		},
		[]string{"source", "status"},
	)

	m.ResolverLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_lookups_total",
			Help:      "Identifier lookups by kind and cache tier",
		},
		[]string{"kind", "result"}, // kind: "cik", "cusip"; result: "memory", "durable", "remote", "miss"
	)

	m.UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to external services by status class",
		},
		[]string{"service", "status"},
	)

	m.BackfillQuarter = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backfill_rows_loaded",
			Help:      "Rows loaded by the latest bulk import of a quarter",
		},
		[]string{"family", "quarter"},
	)

	m.SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of a sync run",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"source"},
	)

	m.registry.MustRegister(
		m.FilingsProcessed,
		m.RowsWritten,
		m.SyncRuns,
		m.ResolverLookups,
		m.UpstreamRequests,
		m.BackfillQuarter,
		m.SyncDuration,
	)
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordFiling increments the filing counter for source with outcome.
func (m *Metrics) RecordFiling(source, outcome string, n int) {
	if m != nil && n > 0 {
		m.FilingsProcessed.WithLabelValues(source, outcome).Add(float64(n))
	}
}

// RecordRowsWritten increments rows written for a table.
func (m *Metrics) RecordRowsWritten(table string, count int64) {
	if m != nil && count > 0 {
		m.RowsWritten.WithLabelValues(table).Add(float64(count))
	}
}

// RecordSyncRun records a finished run and its duration.
func (m *Metrics) RecordSyncRun(source string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	m.SyncRuns.WithLabelValues(source, status).Inc()
	m.SyncDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordLookup counts an identifier lookup served from tier.
func (m *Metrics) RecordLookup(kind, result string) {
	if m != nil {
		m.ResolverLookups.WithLabelValues(kind, result).Inc()
	}
}

// RecordUpstream counts one request to an external service.
func (m *Metrics) RecordUpstream(service string, statusCode int) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, statusClass(statusCode)).Inc()
}

// SetBackfillRows records the rows loaded for one quarter of a family.
func (m *Metrics) SetBackfillRows(family, quarter string, rows int64) {
	if m != nil {
		m.BackfillQuarter.WithLabelValues(family, quarter).Set(float64(rows))
	}
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code == http.StatusTooManyRequests:
		return "429"
	case code < 500:
		return "4xx"
	}
	return "5xx"
}
