// Package metrics exposes Prometheus counters for triage decisions and
// gauges for the record store.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scholarscout/scraper/models"
)

// Metrics owns a private registry so tests and multiple servers never
// collide on the global one
type Metrics struct {
	registry *prometheus.Registry

	ingest            *prometheus.CounterVec
	classifications   *prometheus.CounterVec
	enrichmentUpdates prometheus.Counter
	enrichmentChecks  prometheus.Counter
	fetchFailures     *prometheus.CounterVec

	records              prometheus.Gauge
	recordsMissingAmount prometheus.Gauge

	dbOpenConnections prometheus.Gauge
	dbInUse           prometheus.Gauge
	dbIdle            prometheus.Gauge
	dbWaitCount       prometheus.Gauge
	dbWaitDuration    prometheus.Gauge
}

// New creates Metrics with every collector registered under namespace
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "scholarships"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Ingestion decisions by platform and outcome.",
		}, []string{"platform", "outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Page classifications by verdict and path (ai, heuristic, unknown).",
		}, []string{"classification", "path"}),
		enrichmentUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_updates_total",
			Help:      "Records changed by enrichment.",
		}),
		enrichmentChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_checks_total",
			Help:      "Records enrichment fetched and examined.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed page fetches by component.",
		}, []string{"component"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Stored scholarship records.",
		}),
		recordsMissingAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_missing_amount",
			Help:      "Stored records without an amount, the enrichment backlog.",
		}),
		dbOpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Established database connections.",
		}),
		dbInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "in_use_connections",
			Help:      "Database connections currently in use.",
		}),
		dbIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "idle_connections",
			Help:      "Idle database connections.",
		}),
		dbWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "wait_count",
			Help:      "Total connections waited for.",
		}),
		dbWaitDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "wait_duration_seconds",
			Help:      "Total time blocked waiting for a connection.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingest,
		m.classifications,
		m.enrichmentUpdates,
		m.enrichmentChecks,
		m.fetchFailures,
		m.records,
		m.recordsMissingAmount,
		m.dbOpenConnections,
		m.dbInUse,
		m.dbIdle,
		m.dbWaitCount,
		m.dbWaitDuration,
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest counts one ingestion decision
func (m *Metrics) ObserveIngest(platform models.Platform, reason models.IngestReason) {
	m.ingest.WithLabelValues(string(platform), string(reason)).Inc()
}

// ObserveClassification counts one classifier verdict
func (m *Metrics) ObserveClassification(classification models.Classification, path string) {
	m.classifications.WithLabelValues(string(classification), path).Inc()
}

// ObserveEnrichment counts one examined record
func (m *Metrics) ObserveEnrichment(updated bool) {
	m.enrichmentChecks.Inc()
	if updated {
		m.enrichmentUpdates.Inc()
	}
}

// ObserveFetchFailure counts one failed fetch
func (m *Metrics) ObserveFetchFailure(component string) {
	m.fetchFailures.WithLabelValues(component).Inc()
}

// UpdateRecordStats sets the record gauges
func (m *Metrics) UpdateRecordStats(total, missingAmount int) {
	m.records.Set(float64(total))
	m.recordsMissingAmount.Set(float64(missingAmount))
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	stats := db.Stats()
	m.dbOpenConnections.Set(float64(stats.OpenConnections))
	m.dbInUse.Set(float64(stats.InUse))
	m.dbIdle.Set(float64(stats.Idle))
	m.dbWaitCount.Set(float64(stats.WaitCount))
	m.dbWaitDuration.Set(stats.WaitDuration.Seconds())
}
