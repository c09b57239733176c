package resilience

import (
	"time"

	"docextract/internal/config"
)

// Policy bounds the retries and circuit breaking around one outbound call.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultPolicy makes a single attempt, with the breaker enabled.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// PolicyFromConfig builds a policy; maxRetries is the provider's retry count
// on top of the first attempt.
func PolicyFromConfig(rc config.ResilienceConfig, maxRetries int) Policy {
	return Policy{
		MaxAttempts:             1 + maxRetries,
		InitialBackoff:          rc.RetryInitialBackoff,
		MaxBackoff:              rc.RetryMaxBackoff,
		Multiplier:              rc.RetryMultiplier,
		BreakerEnabled:          rc.BreakerEnabled,
		BreakerMinRequests:      rc.BreakerMinRequests,
		BreakerFailureRatio:     rc.BreakerFailureRatio,
		BreakerOpenTimeout:      rc.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: rc.BreakerHalfOpenMaxCalls,
	}
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
