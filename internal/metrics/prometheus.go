package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the call session service
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
	CapacityRejects   prometheus.Counter

	// Audio pipeline metrics
	MediaEventsReceived prometheus.Counter
	FramesProcessed     prometheus.Counter
	EndpointsDetected   prometheus.Counter
	RecognitionErrors   prometheus.Counter

	// Enrichment metrics
	EnrichmentRequests prometheus.Counter
	EnrichmentFailures prometheus.Counter
	EnrichmentDuration prometheus.Histogram

	// Booking metrics
	BookingRequests  prometheus.Counter
	BookingSuccesses prometheus.Counter
	BookingFailures  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "call_active_sessions",
			Help: "Current number of active call sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_sessions_created_total",
			Help: "Total number of call sessions created",
		}),
		SessionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "call_sessions_completed_total",
			Help: "Total number of call sessions finished, by final status",
		}, []string{"status"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "call_session_duration_seconds",
			Help:    "Duration of call sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		CapacityRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_capacity_rejects_total",
			Help: "Total number of sessions rejected for lack of engine capacity",
		}),

		// Audio pipeline metrics
		MediaEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_media_events_received_total",
			Help: "Total number of media events received over websocket",
		}),
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_frames_processed_total",
			Help: "Total number of audio frames fed to speech recognition",
		}),
		EndpointsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_endpoints_detected_total",
			Help: "Total number of utterance boundaries detected",
		}),
		RecognitionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_recognition_errors_total",
			Help: "Total number of speech recognition errors",
		}),

		// Enrichment metrics
		EnrichmentRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_enrichment_requests_total",
			Help: "Total number of AI summary requests sent",
		}),
		EnrichmentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_enrichment_failures_total",
			Help: "Total number of AI summary requests that fell back to the default card",
		}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "call_enrichment_duration_seconds",
			Help:    "Duration of AI summary requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Booking metrics
		BookingRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_booking_requests_total",
			Help: "Total number of booking requests received",
		}),
		BookingSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_booking_successes_total",
			Help: "Total number of bookings created on the calendar",
		}),
		BookingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "call_booking_failures_total",
			Help: "Total number of booking attempts that failed",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "call_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "call_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "call_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionCompleted records a finished session with its final status
func (m *Metrics) RecordSessionCompleted(status string, durationSeconds float64) {
	m.SessionsCompleted.WithLabelValues(status).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordCapacityReject increments the capacity rejects counter
func (m *Metrics) RecordCapacityReject() {
	m.CapacityRejects.Inc()
}

// RecordMediaEvent increments the media events counter
func (m *Metrics) RecordMediaEvent() {
	m.MediaEventsReceived.Inc()
}

// RecordFrameProcessed records a recognized frame and whether it closed an utterance
func (m *Metrics) RecordFrameProcessed(isEndpoint bool) {
	m.FramesProcessed.Inc()
	if isEndpoint {
		m.EndpointsDetected.Inc()
	}
}

// RecordRecognitionError increments the recognition errors counter
func (m *Metrics) RecordRecognitionError() {
	m.RecognitionErrors.Inc()
}

// RecordEnrichment records one summary request
func (m *Metrics) RecordEnrichment(failed bool, durationSeconds float64) {
	m.EnrichmentRequests.Inc()
	if failed {
		m.EnrichmentFailures.Inc()
	}
	m.EnrichmentDuration.Observe(durationSeconds)
}

// RecordBooking records a booking attempt and its outcome
func (m *Metrics) RecordBooking(success bool) {
	m.BookingRequests.Inc()
	if success {
		m.BookingSuccesses.Inc()
	} else {
		m.BookingFailures.Inc()
	}
}

// RecordHTTPRequest records an HTTP request with duration
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
