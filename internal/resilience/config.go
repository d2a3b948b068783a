package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a RetryConfig. Zero values keep
// the defaults.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if jitterFraction > 0 {
		cfg.JitterFraction = jitterFraction
	}
	return cfg
}
