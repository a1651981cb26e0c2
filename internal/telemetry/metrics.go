package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scholar_jobs_submitted_total", Help: "Jobs submitted to the queue"}, []string{"type"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "scholar_jobs_completed_total", Help: "Jobs completed successfully"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "scholar_jobs_failed_total", Help: "Jobs that failed and will retry"})
	JobsDeadLetter   = prometheus.NewCounter(prometheus.CounterOpts{Name: "scholar_jobs_dead_letter_total", Help: "Jobs moved to the DLQ"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scholar_queue_depth", Help: "Ready queue depth across priorities"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scholar_jobs_inflight", Help: "Jobs currently leased"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "scholar_rate_limit_rejects_total", Help: "Requests rejected by the rate limiter"})

	SSESessions   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scholar_sse_sessions", Help: "Open SSE streaming sessions"})
	SSEEventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scholar_sse_events_sent_total", Help: "SSE events delivered to clients"}, []string{"kind"})

	BatchItems        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scholar_batch_items_total", Help: "Batch dispatcher per-item outcomes"}, []string{"action"})
	AssistantRequests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scholar_assistant_requests_total", Help: "Gemini assistant calls"}, []string{"outcome"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsCompleted,
			JobsFailed,
			JobsDeadLetter,
			QueueDepthGauge,
			InFlightGauge,
			RateLimitRejects,
			SSESessions,
			SSEEventsSent,
			BatchItems,
			AssistantRequests,
		)
	})
	return promhttp.Handler()
}
