package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	trackingEventsTotal      *prometheus.CounterVec
	pasteClassificationTotal *prometheus.CounterVec
	modificationDepth        prometheus.Histogram
	activeSessions           prometheus.Gauge
	feedConnections          prometheus.Gauge

	recordingChunksTotal   *prometheus.CounterVec
	recordingRejectedTotal *prometheus.CounterVec
	recordingBytesTotal    prometheus.Counter
	recordingStoreLatency  prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors exported by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promora_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promora_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promora_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		trackingEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promora_tracking_events_total",
			Help: "Tracking events by type and delivery outcome.",
		}, []string{"event_type", "status"})

		pasteClassificationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promora_paste_classifications_total",
			Help: "Editor pastes by inferred origin.",
		}, []string{"origin"})

		modificationDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promora_modification_depth",
			Help:    "Distribution of modification depth scores for AI-originated lines.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promora_attribution_sessions_active",
			Help: "Attribution sessions currently tracked on this node.",
		})

		feedConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promora_attribution_feed_connections",
			Help: "Live attribution feed subscribers on this node.",
		})

		recordingChunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promora_recording_chunks_total",
			Help: "Recording chunks stored, by detected MIME type.",
		}, []string{"mime"})

		recordingRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promora_recording_chunks_rejected_total",
			Help: "Recording chunks rejected, by reason.",
		}, []string{"reason"})

		recordingBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promora_recording_bytes_total",
			Help: "Bytes of recording data stored.",
		})

		recordingStoreLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promora_recording_store_latency_seconds",
			Help:    "Time spent validating and storing a recording chunk.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			trackingEventsTotal, pasteClassificationTotal, modificationDepth,
			activeSessions, feedConnections,
			recordingChunksTotal, recordingRejectedTotal, recordingBytesTotal, recordingStoreLatency,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// TrackingEvents exposes the dispatched tracking event counter.
func TrackingEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return trackingEventsTotal
}

// PasteClassifications exposes the paste origin counter.
func PasteClassifications() *prometheus.CounterVec {
	RegisterMetrics()
	return pasteClassificationTotal
}

// ModificationDepth exposes the modification depth histogram.
func ModificationDepth() prometheus.Histogram {
	RegisterMetrics()
	return modificationDepth
}

// ActiveSessions exposes the open session gauge.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}

// FeedConnections exposes the live feed subscriber gauge.
func FeedConnections() prometheus.Gauge {
	RegisterMetrics()
	return feedConnections
}

// RecordingChunks exposes the stored chunk counter.
func RecordingChunks() *prometheus.CounterVec {
	RegisterMetrics()
	return recordingChunksTotal
}

// RecordingRejected exposes the rejected chunk counter.
func RecordingRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return recordingRejectedTotal
}

// RecordingBytes exposes the stored byte counter.
func RecordingBytes() prometheus.Counter {
	RegisterMetrics()
	return recordingBytesTotal
}

// RecordingStoreLatency exposes the chunk store latency histogram.
func RecordingStoreLatency() prometheus.Histogram {
	RegisterMetrics()
	return recordingStoreLatency
}
