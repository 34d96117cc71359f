package config

import (
	"time"

	"github.com/inamasaru/leadsync/internal/resilience"
)

// Policy converts the configured retry settings to a resilience.RetryConfig,
// falling back to defaults for unset values.
func (r Retry) Policy() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	return cfg
}
