package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klarita_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klarita_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BreakdownsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klarita_breakdowns_total",
			Help: "Total number of breakdown generations by outcome.",
		},
		[]string{"outcome"},
	)

	GenerationRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klarita_generation_retries_total",
			Help: "Total number of generation retries, transient and strict re-prompts.",
		},
	)

	RetrievalFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klarita_retrieval_fallbacks_total",
			Help: "Total number of retrievals degraded to zero memories.",
		},
	)

	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klarita_tasks_completed_total",
			Help: "Total number of tasks marked completed.",
		},
	)

	XPAwardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klarita_xp_awarded_total",
			Help: "Total XP awarded across all users.",
		},
	)

	LevelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klarita_level_ups_total",
			Help: "Total number of level-ups.",
		},
	)

	MemoriesPromotedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klarita_memories_promoted_total",
			Help: "Total number of sessions promoted to memories.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BreakdownsTotal,
		GenerationRetriesTotal,
		RetrievalFallbacksTotal,
		TasksCompletedTotal,
		XPAwardedTotal,
		LevelUpsTotal,
		MemoriesPromotedTotal,
	)
}
