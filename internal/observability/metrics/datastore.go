// Package metrics provides datastore metrics for observability
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for model repository operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	dbTransactionsTotal   *prometheus.CounterVec
	dbTransactionDuration *prometheus.HistogramVec

	dbTableRowCountGauge *prometheus.GaugeVec
	dbSizeBytesGauge     prometheus.Gauge

	lockWaitTimeHistogram *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_db_operations_total",
			Help: "Total number of repository operations",
		},
		[]string{"operation", "status"},
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kamiai_db_operation_duration_seconds",
			Help:    "Time taken for repository operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_db_operation_errors_total",
			Help: "Total number of repository operation errors",
		},
		[]string{"operation", "error_type"},
	)

	m.dbTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_db_transactions_total",
			Help: "Total number of repository transactions",
		},
		[]string{"operation", "status"}, // status: committed, rolled_back
	)

	m.dbTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kamiai_db_transaction_duration_seconds",
			Help:    "Time taken for repository transactions",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.dbTableRowCountGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kamiai_db_table_rows",
			Help: "Row count per table, refreshed after destructive operations",
		},
		[]string{"table"},
	)

	m.dbSizeBytesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kamiai_db_size_bytes",
			Help: "Size of the database file in bytes",
		},
	)

	m.lockWaitTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kamiai_db_lock_wait_seconds",
			Help:    "Time spent waiting for the repository lock",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor4, BucketCount10),
		},
		[]string{"lock_type"}, // shared, exclusive
	)

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbTransactionsTotal,
		m.dbTransactionDuration,
		m.dbTableRowCountGauge,
		m.dbSizeBytesGauge,
		m.lockWaitTimeHistogram,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordOperation records a repository operation and its status.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration records how long a repository operation took.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.dbOperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records a repository error by type.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordTransaction records the outcome and duration of a transaction.
func (m *DatastoreMetrics) RecordTransaction(operation string, committed bool, seconds float64) {
	status := "committed"
	if !committed {
		status = "rolled_back"
	}
	m.dbTransactionsTotal.WithLabelValues(operation, status).Inc()
	m.dbTransactionDuration.WithLabelValues(operation).Observe(seconds)
}

// UpdateTableRowCount sets the row count gauge for table.
func (m *DatastoreMetrics) UpdateTableRowCount(table string, rows int64) {
	m.dbTableRowCountGauge.WithLabelValues(table).Set(float64(rows))
}

// UpdateDatabaseSize sets the database file size gauge.
func (m *DatastoreMetrics) UpdateDatabaseSize(sizeBytes int64) {
	m.dbSizeBytesGauge.Set(float64(sizeBytes))
}

// RecordLockWait records how long an operation waited for the repository lock.
func (m *DatastoreMetrics) RecordLockWait(lockType string, seconds float64) {
	m.lockWaitTimeHistogram.WithLabelValues(lockType).Observe(seconds)
}

var _ Recorder = (*DatastoreMetrics)(nil)
