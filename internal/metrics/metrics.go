package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "turnover"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "code"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Per-account sync runs by result.",
		},
		[]string{"result"},
	)

	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of a per-account sync.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	upserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_upserts_total",
			Help:      "Reconciled external entities by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	tasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Cleaning tasks derived from bookings.",
		},
	)

	taskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transitions_total",
			Help:      "Task lifecycle transitions by target status and outcome.",
		},
		[]string{"to", "outcome"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Task reminders enqueued by mark.",
		},
		[]string{"mark"},
	)

	outboxOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_tasks_total",
			Help:      "Processed outbox tasks by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Listing cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, syncRuns, syncDuration, upserts, tasksCreated,
			taskTransitions, remindersSent, outboxOutcomes, cacheLookups)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func ObserveSync(result string, d time.Duration) {
	syncRuns.WithLabelValues(result).Inc()
	syncDuration.Observe(d.Seconds())
}

func IncUpsert(kind, outcome string) {
	upserts.WithLabelValues(kind, outcome).Inc()
}

func IncTaskCreated() {
	tasksCreated.Inc()
}

func IncTransition(to, outcome string) {
	taskTransitions.WithLabelValues(to, outcome).Inc()
}

func IncReminder(mark string) {
	remindersSent.WithLabelValues(mark).Inc()
}

func IncOutbox(taskType, outcome string) {
	outboxOutcomes.WithLabelValues(taskType, outcome).Inc()
}

func IncCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
