package circuitbreaker

import "time"

// STTConfig returns a breaker config for transcription services. Requests are
// bounded by the detection deadline, so the breaker mainly spares calls from
// waiting on a provider that is already known to be down.
func STTConfig() *Config {
	return &Config{
		FailureThreshold:     3,
		SuccessThreshold:     2,
		Timeout:              30 * time.Second,
		MaxTimeout:           180 * time.Second,
		RequestTimeout:       5 * time.Second,
		ExponentialBackoff:   true,
		FailureRateThreshold: 0.6,
		MinRequestThreshold:  5,
		TimeWindow:           45 * time.Second,
	}
}

// DeliveryConfig returns a breaker config for message delivery channels
func DeliveryConfig() *Config {
	return &Config{
		FailureThreshold:     5,
		SuccessThreshold:     2,
		Timeout:              60 * time.Second,
		MaxTimeout:           300 * time.Second,
		RequestTimeout:       10 * time.Second,
		ExponentialBackoff:   true,
		FailureRateThreshold: 0.5,
		MinRequestThreshold:  10,
		TimeWindow:           60 * time.Second,
	}
}
