package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madrasa_events_dispatched_total",
			Help: "Number of dispatched domain events",
		},
		[]string{"kind"},
	)

	ListenerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madrasa_listener_failures_total",
			Help: "Number of listener invocations or enqueues that failed",
		},
		[]string{"listener"},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madrasa_jobs_processed_total",
			Help: "Number of executed jobs by outcome",
		},
		[]string{"handler", "outcome"},
	)

	JobAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madrasa_job_attempts_total",
			Help: "Number of job attempts",
		},
		[]string{"handler"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "madrasa_job_duration_seconds",
			Help:    "Time taken to run a job, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madrasa_notifications_created_total",
			Help: "Number of in-app notifications written",
		},
		[]string{"type"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madrasa_http_requests_total",
			Help: "Number of handled API requests",
		},
		[]string{"method", "route", "code"},
	)
)

func Register() {
	prometheus.MustRegister(
		EventsDispatched,
		ListenerFailures,
		JobsProcessed,
		JobAttempts,
		JobDuration,
		NotificationsCreated,
		HTTPRequests,
	)
}
