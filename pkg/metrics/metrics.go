package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Detection metrics
	DetectionsTotal     *prometheus.CounterVec
	DetectionLatency    *prometheus.HistogramVec
	DetectionConfidence *prometheus.HistogramVec
	DetectionTimeouts   prometheus.Counter
	DecodeFailures      *prometheus.CounterVec
	BeepsDetected       *prometheus.CounterVec
	DetectorAccuracy    prometheus.Gauge

	// STT metrics
	STTRequestsTotal *prometheus.CounterVec
	STTLatency       *prometheus.HistogramVec
	TranscriptSource *prometheus.CounterVec

	// Delivery metrics
	DeliveryAttempts *prometheus.CounterVec
	DeliveryResults  *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge

	// Campaign metrics
	CampaignCalls      *prometheus.CounterVec
	CampaignsActive    prometheus.Gauge
	CulturalEngagement prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Dialer metrics
	DialerQueueDepth prometheus.Gauge
	DialerJobs       *prometheus.CounterVec
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		DetectionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_detections_total",
				Help: "Total number of detections by outcome and recommended action",
			},
			[]string{"outcome", "action"},
		)

		DetectionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amd_detection_latency_seconds",
				Help:    "Time taken to produce a detection result",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"outcome"},
		)

		DetectionConfidence = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amd_detection_confidence",
				Help:    "Distribution of fused detection confidence",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"outcome"},
		)

		DetectionTimeouts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "amd_detection_timeouts_total",
				Help: "Detections that hit the deadline and returned the fallback decision",
			},
		)

		DecodeFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_decode_failures_total",
				Help: "Audio payloads that could not be decoded",
			},
			[]string{"decoder"},
		)

		BeepsDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_beep_scans_total",
				Help: "Beep scans by result",
			},
			[]string{"detected"},
		)

		DetectorAccuracy = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "amd_detector_accuracy",
				Help: "Accuracy derived from labelled feedback",
			},
		)

		STTRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_stt_requests_total",
				Help: "Total number of speech-to-text requests",
			},
			[]string{"vendor", "status"},
		)

		STTLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amd_stt_latency_seconds",
				Help:    "Latency of speech-to-text requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"vendor"},
		)

		TranscriptSource = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_transcripts_total",
				Help: "Transcripts used for greeting analysis by source",
			},
			[]string{"source"},
		)

		DeliveryAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_delivery_attempts_total",
				Help: "Individual message delivery attempts",
			},
			[]string{"channel", "status"},
		)

		DeliveryResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_deliveries_total",
				Help: "Message deliveries by final status and attempts used",
			},
			[]string{"channel", "status", "attempts"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_amqp_published_messages_total",
				Help: "Total number of messages published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "amd_amqp_connection_status",
				Help: "AMQP connection status (1 = connected, 0 = disconnected)",
			},
		)

		CampaignCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_campaign_calls_total",
				Help: "Campaign calls by outcome and action",
			},
			[]string{"outcome", "action"},
		)

		CampaignsActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "amd_campaigns",
				Help: "Number of campaigns currently stored",
			},
		)

		CulturalEngagement = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "amd_cultural_engagement_total",
				Help: "Calls answered with a Malayalam or Manglish greeting",
			},
		)

		CircuitBreakerState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "amd_circuit_breaker_state",
				Help: "Circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
			},
			[]string{"name"},
		)

		DialerQueueDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "amd_dialer_queue_depth",
				Help: "Calls waiting for a dialer worker",
			},
		)

		DialerJobs = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amd_dialer_jobs_total",
				Help: "Dialer jobs by status",
			},
			[]string{"status"},
		)

		registry.MustRegister(
			DetectionsTotal,
			DetectionLatency,
			DetectionConfidence,
			DetectionTimeouts,
			DecodeFailures,
			BeepsDetected,
			DetectorAccuracy,
			STTRequestsTotal,
			STTLatency,
			TranscriptSource,
			DeliveryAttempts,
			DeliveryResults,
			AMQPPublishedMessages,
			AMQPConnectionStatus,
			CampaignCalls,
			CampaignsActive,
			CulturalEngagement,
			CircuitBreakerState,
			DialerQueueDepth,
			DialerJobs,
		)
		registerRuntimeMetrics()

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetMetricsPath sets the HTTP path for metrics endpoint
func SetMetricsPath(path string) {
	defaultMetricsPath = path
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

func active() bool {
	return metricsEnabled && registry != nil
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if active() {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// RecordDetection records a completed detection
func RecordDetection(isMachine bool, action string, confidence float64, duration time.Duration) {
	if !active() {
		return
	}
	outcome := outcomeLabel(isMachine)
	DetectionsTotal.WithLabelValues(outcome, action).Inc()
	DetectionLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	DetectionConfidence.WithLabelValues(outcome).Observe(confidence)
}

// RecordDetectionTimeout records a detection that returned the fallback decision
func RecordDetectionTimeout() {
	if active() {
		DetectionTimeouts.Inc()
	}
}

// RecordDecodeFailure records an undecodable payload
func RecordDecodeFailure(decoder string) {
	if active() {
		DecodeFailures.WithLabelValues(decoder).Inc()
	}
}

// RecordBeepScan records the result of a beep scan
func RecordBeepScan(detected bool) {
	if active() {
		BeepsDetected.WithLabelValues(strconv.FormatBool(detected)).Inc()
	}
}

// SetDetectorAccuracy publishes the feedback-derived accuracy
func SetDetectorAccuracy(accuracy float64) {
	if active() {
		DetectorAccuracy.Set(accuracy)
	}
}

// RecordSTTRequest records metrics for an STT request
func RecordSTTRequest(vendor, status string) {
	if active() {
		STTRequestsTotal.WithLabelValues(vendor, status).Inc()
	}
}

// ObserveSTTLatency records STT latency with a timer function
func ObserveSTTLatency(vendor string) func() {
	if !active() {
		return func() {}
	}

	start := time.Now()
	return func() {
		STTLatency.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
	}
}

// RecordTranscriptSource records where the analysed greeting text came from
func RecordTranscriptSource(source string) {
	if active() {
		TranscriptSource.WithLabelValues(source).Inc()
	}
}

// RecordDeliveryAttempt records one attempt on a delivery channel
func RecordDeliveryAttempt(channel, status string) {
	if active() {
		DeliveryAttempts.WithLabelValues(channel, status).Inc()
	}
}

// RecordDelivery records the final outcome of a delivery
func RecordDelivery(channel string, delivered bool, attempts int) {
	if !active() {
		return
	}
	status := "failed"
	if delivered {
		status = "delivered"
	}
	DeliveryResults.WithLabelValues(channel, status, strconv.Itoa(attempts)).Inc()
}

// RecordAMQPPublish records metrics for an AMQP publish
func RecordAMQPPublish(queue, status string) {
	if active() {
		AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
	}
}

// SetAMQPConnectionStatus sets the AMQP connection status
func SetAMQPConnectionStatus(connected bool) {
	if active() {
		if connected {
			AMQPConnectionStatus.Set(1)
		} else {
			AMQPConnectionStatus.Set(0)
		}
	}
}

// RecordCampaignCall records a processed campaign call
func RecordCampaignCall(isMachine bool, action string, culturalEngagement bool) {
	if !active() {
		return
	}
	CampaignCalls.WithLabelValues(outcomeLabel(isMachine), action).Inc()
	if culturalEngagement {
		CulturalEngagement.Inc()
	}
}

// SetCampaignCount publishes the number of stored campaigns
func SetCampaignCount(n int) {
	if active() {
		CampaignsActive.Set(float64(n))
	}
}

// SetCircuitBreakerState publishes a breaker's state as 0 closed, 1 half-open, 2 open
func SetCircuitBreakerState(name string, state int) {
	if active() {
		CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// SetDialerQueueDepth publishes the number of queued calls
func SetDialerQueueDepth(n int) {
	if active() {
		DialerQueueDepth.Set(float64(n))
	}
}

// RecordDialerJob records a finished dialer job
func RecordDialerJob(status string) {
	if active() {
		DialerJobs.WithLabelValues(status).Inc()
	}
}

func outcomeLabel(isMachine bool) string {
	if isMachine {
		return "machine"
	}
	return "human"
}
