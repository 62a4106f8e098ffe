package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// Runs first: nothing is registered yet, so every helper must be a no-op
func TestHelpersBeforeInit(t *testing.T) {
	require.Nil(t, GetRegistry())
	assert.NotPanics(t, func() {
		RecordDetection(true, "leave_message", 0.9, time.Second)
		RecordDetectionTimeout()
		RecordDeliveryAttempt("memory", "success")
		SetCircuitBreakerState("stt_deepgram", 2)
		ObserveSTTLatency("deepgram")()
	})
}

func TestRecordersUpdateRegistry(t *testing.T) {
	StartMetrics(testLogger(), true)
	require.NotNil(t, GetRegistry())

	RecordDetection(true, "leave_message", 0.9, 120*time.Millisecond)
	RecordDetection(false, "continue_call", 0.3, 80*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(DetectionsTotal.WithLabelValues("machine", "leave_message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(DetectionsTotal.WithLabelValues("human", "continue_call")))

	RecordDelivery("amqp", true, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(DeliveryResults.WithLabelValues("amqp", "delivered", "2")))

	RecordCampaignCall(true, "leave_message", true)
	RecordCampaignCall(false, "human_transfer", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(CulturalEngagement))

	SetAMQPConnectionStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(AMQPConnectionStatus))
	SetAMQPConnectionStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(AMQPConnectionStatus))

	SetCircuitBreakerState("delivery_amqp", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("delivery_amqp")))

	SetDialerQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(DialerQueueDepth))
}

func TestDisabledMetricsAreIgnored(t *testing.T) {
	StartMetrics(testLogger(), true)
	before := testutil.ToFloat64(DetectionTimeouts)

	EnableMetrics(false)
	defer EnableMetrics(true)
	RecordDetectionTimeout()
	assert.Equal(t, before, testutil.ToFloat64(DetectionTimeouts))
}

func TestHandlerServesRegistry(t *testing.T) {
	StartMetrics(testLogger(), true)
	RecordTranscriptSource("placeholder")

	mux := http.NewServeMux()
	RegisterHandler(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "transcript")
}
