// Package metrics exports Prometheus metrics for the ingest pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sercha_ingest"

// Metrics holds all pipeline Prometheus metrics.
type Metrics struct {
	// Task queue metrics
	TasksSubmitted *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksRetried   *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	QueueDepth     prometheus.Gauge
	ActiveWorkers  prometheus.Gauge

	// Change consumer metrics
	ChangeBatches  prometheus.Counter
	ChangesSeen    prometheus.Counter
	CursorPosition prometheus.Gauge
	ConsumerErrors prometheus.Counter

	// Crawl metrics
	CrawlFetches      *prometheus.CounterVec
	CrawlRecords      *prometheus.CounterVec
	SourcesDisabled   prometheus.Counter
	SiblingsPersisted prometheus.Counter

	// Index metrics
	IndexOperations *prometheus.CounterVec
}

// New registers all metrics on reg. Pass prometheus.NewRegistry() in tests
// so registrations never collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.TasksSubmitted = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Total tasks durably enqueued",
	}, []string{"kind"})

	m.TasksCompleted = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_completed_total",
		Help:      "Total tasks finished successfully",
	}, []string{"kind"})

	m.TasksRetried = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_retried_total",
		Help:      "Total task attempts that failed and were rescheduled",
	}, []string{"kind"})

	m.TasksFailed = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_failed_total",
		Help:      "Total tasks that reached the failed state",
	}, []string{"kind", "reason"})

	m.TaskDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time spent in a task handler",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	m.QueueDepth = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Pending and running tasks seen on the last dispatch tick",
	})

	m.ActiveWorkers = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Task handlers currently running",
	})

	m.ChangeBatches = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "change_batches_total",
		Help:      "Change batches whose tasks were accepted",
	})

	m.ChangesSeen = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changes_total",
		Help:      "Changes read from the change log",
	})

	m.CursorPosition = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cursor_position",
		Help:      "Last durably processed change sequence",
	})

	m.ConsumerErrors = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumer_errors_total",
		Help:      "Subscription or enqueue failures in the change consumer",
	})

	m.CrawlFetches = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_fetches_total",
		Help:      "Feed fetches by outcome",
	}, []string{"outcome"})

	m.CrawlRecords = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_records_total",
		Help:      "Crawled records by result (written, skipped, sibling)",
	}, []string{"result"})

	m.SourcesDisabled = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sources_disabled_total",
		Help:      "Feed sources auto-disabled after repeated failures",
	})

	m.SiblingsPersisted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "siblings_persisted_total",
		Help:      "Candidate revisions kept as siblings after a conflict",
	})

	m.IndexOperations = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_operations_total",
		Help:      "Search index operations by op and outcome",
	}, []string{"op", "outcome"})

	return m
}

// NewNop returns metrics registered on a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus HTTP handler for a /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
