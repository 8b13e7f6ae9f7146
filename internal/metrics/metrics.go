package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline
type Metrics struct {
	// Reactor metrics
	ReactorInvocations prometheus.CounterVec
	ReactorOutcomes    prometheus.CounterVec
	ReactorDuration    prometheus.HistogramVec
	Redeliveries       prometheus.CounterVec

	// Classifier metrics
	ClassifierCalls    prometheus.CounterVec
	ClassifierDuration prometheus.HistogramVec

	// Moderation metrics
	ModerationDecisions prometheus.CounterVec
	GuardrailVerdicts   prometheus.CounterVec

	// Notification metrics
	NotificationsCreated prometheus.CounterVec
	DedupSkips           prometheus.CounterVec

	// Change stream metrics
	StreamConnectionAttempts prometheus.Counter
	StreamConnectionErrors   prometheus.Counter
	StreamEventsReceived     prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			ReactorInvocations: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_reactor_invocations_total",
					Help: "Total reactor invocations by reactor name",
				},
				[]string{"reactor"},
			),
			ReactorOutcomes: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_reactor_outcomes_total",
					Help: "Reactor invocation outcomes (ok, noop, error)",
				},
				[]string{"reactor", "outcome"},
			),
			ReactorDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pipeline_reactor_duration_seconds",
					Help:    "Reactor invocation latency in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"reactor"},
			),
			Redeliveries: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_event_redeliveries_total",
					Help: "Deliveries retried after a reactor failure",
				},
				[]string{"collection"},
			),
			ClassifierCalls: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_classifier_calls_total",
					Help: "Outbound classifier calls by kind and result",
				},
				[]string{"kind", "result"},
			),
			ClassifierDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pipeline_classifier_duration_seconds",
					Help:    "Classifier call latency in seconds",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
				},
				[]string{"kind"},
			),
			ModerationDecisions: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_moderation_decisions_total",
					Help: "Combined moderation decisions applied to posts",
				},
				[]string{"decision"},
			),
			GuardrailVerdicts: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_guardrail_verdicts_total",
					Help: "REVIEW verdicts synthesized for unevaluatable content",
				},
				[]string{"reason"},
			),
			NotificationsCreated: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_notifications_created_total",
					Help: "Notifications created by type",
				},
				[]string{"type"},
			),
			DedupSkips: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_notification_dedup_skips_total",
					Help: "Social notifications skipped as recent duplicates",
				},
				[]string{"type"},
			),
			StreamConnectionAttempts: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pipeline_change_stream_connection_attempts_total",
					Help: "Connection attempts to the change stream",
				},
			),
			StreamConnectionErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pipeline_change_stream_connection_errors_total",
					Help: "Change stream connection errors",
				},
			),
			StreamEventsReceived: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_change_stream_events_total",
					Help: "Change events received by collection and kind",
				},
				[]string{"collection", "kind"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	return Initialize()
}
