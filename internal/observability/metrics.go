package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotlight",
		Name:      "detections_ingested_total",
		Help:      "Total number of detections accepted into a tracker",
	}, []string{"session_id"})

	DetectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotlight",
		Name:      "detections_rejected_total",
		Help:      "Total number of detections dropped at the ingestion boundary",
	}, []string{"reason"})

	GuardViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotlight",
		Name:      "guard_violations_total",
		Help:      "Coordinate invariant violations by pipeline stage and check",
	}, []string{"stage", "check"})

	EstimatesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotlight",
		Name:      "estimates_served_total",
		Help:      "Box estimates returned to the render layer, by estimation path",
	}, []string{"source"})

	EstimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spotlight",
		Name:      "estimate_duration_seconds",
		Help:      "Duration of render-time box estimation",
		Buckets:   prometheus.ExponentialBuckets(0.000005, 2, 12),
	}, []string{"stage"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spotlight",
		Name:      "active_sessions",
		Help:      "Number of currently open tracking sessions",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spotlight",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spotlight",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spotlight",
		Name:      "queue_depth",
		Help:      "Number of pending detection frames in the DETECTIONS stream",
	})
)
