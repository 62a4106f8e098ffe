package campaign

import (
	"testing"
	"time"

	"amd-server/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntoBusinessHours(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		at       time.Time
		expected time.Time
	}{
		{"before opening", time.Date(2024, 8, 29, 7, 15, 0, 0, ist), time.Date(2024, 8, 29, 9, 0, 0, 0, ist)},
		{"during hours", time.Date(2024, 8, 29, 11, 45, 0, 0, ist), time.Date(2024, 8, 29, 11, 45, 0, 0, ist)},
		{"at closing", time.Date(2024, 8, 29, 18, 0, 0, 0, ist), time.Date(2024, 8, 30, 9, 0, 0, 0, ist)},
		{"late night", time.Date(2024, 8, 29, 23, 59, 0, 0, ist), time.Date(2024, 8, 30, 9, 0, 0, 0, ist)},
		{"month end", time.Date(2024, 8, 31, 20, 0, 0, 0, ist), time.Date(2024, 9, 1, 9, 0, 0, 0, ist)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := intoBusinessHours(tc.at, 9, 18, ist)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}

	// An empty window leaves the time alone
	at := time.Date(2024, 8, 29, 23, 0, 0, 0, ist)
	assert.True(t, at.Equal(intoBusinessHours(at, 18, 9, ist)))
}

func TestNextCallback(t *testing.T) {
	now := time.Date(2024, 8, 29, 4, 0, 0, 0, time.UTC) // 09:30 IST

	settings := models.CallbackSettings{RetryInterval: 2 * time.Hour}
	assert.True(t, now.Add(2*time.Hour).Equal(nextCallback(now, settings, false)))
	assert.True(t, now.Add(2*time.Hour).Equal(nextCallback(now, settings, true)))

	// Default one hour retry lands at 23:30 IST, pushed to the next morning
	late := time.Date(2024, 8, 29, 17, 0, 0, 0, time.UTC)
	got := nextCallback(late, models.CallbackSettings{}, true)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 30, got.Day())

	// Unknown zones fall back to UTC
	got = nextCallback(late, models.CallbackSettings{TimeZone: "Mars/Olympus_Mons"}, true)
	assert.True(t, time.Date(2024, 8, 30, 9, 0, 0, 0, time.UTC).Equal(got))
}

func TestWithCallbackDefaults(t *testing.T) {
	s := withCallbackDefaults(models.CallbackSettings{BusinessHoursStart: 10, BusinessHoursEnd: 16, TimeZone: "UTC"})
	assert.Equal(t, 10, s.BusinessHoursStart)
	assert.Equal(t, 16, s.BusinessHoursEnd)
	assert.Equal(t, "UTC", s.TimeZone)
	assert.Equal(t, defaultRetryInterval, s.RetryInterval)
	assert.Equal(t, defaultCallbackAttempts, s.MaxAttempts)
}
