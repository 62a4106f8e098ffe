package campaign

import (
	"time"
	// Campaign time zones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"amd-server/pkg/models"
)

const (
	defaultTimeZone           = "Asia/Kolkata"
	defaultBusinessHoursStart = 9
	defaultBusinessHoursEnd   = 18
	defaultRetryInterval      = time.Hour
	defaultCallbackAttempts   = 3
)

// withCallbackDefaults fills unset callback fields
func withCallbackDefaults(s models.CallbackSettings) models.CallbackSettings {
	if s.BusinessHoursStart == 0 && s.BusinessHoursEnd == 0 {
		s.BusinessHoursStart = defaultBusinessHoursStart
		s.BusinessHoursEnd = defaultBusinessHoursEnd
	}
	if s.TimeZone == "" {
		s.TimeZone = defaultTimeZone
	}
	if s.RetryInterval <= 0 {
		s.RetryInterval = defaultRetryInterval
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = defaultCallbackAttempts
	}
	return s
}

// nextCallback picks when to call back a machine-answered number. With
// business hours on, the time is moved into the campaign's calling window.
func nextCallback(now time.Time, s models.CallbackSettings, businessHours bool) time.Time {
	s = withCallbackDefaults(s)
	at := now.Add(s.RetryInterval)
	if !businessHours {
		return at
	}

	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return intoBusinessHours(at, s.BusinessHoursStart, s.BusinessHoursEnd, loc)
}

// intoBusinessHours returns t if it falls within [start, end) local hours,
// otherwise the next opening time.
func intoBusinessHours(t time.Time, start, end int, loc *time.Location) time.Time {
	if start < 0 || end > 24 || start >= end {
		return t
	}

	local := t.In(loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), start, 0, 0, 0, loc)
	closing := time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, loc)

	switch {
	case local.Before(open):
		return open
	case !local.Before(closing):
		return open.AddDate(0, 0, 1)
	default:
		return local
	}
}
