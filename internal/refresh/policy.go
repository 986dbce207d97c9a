package refresh

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy tunes when and how hard the coordinator refreshes.
type Policy struct {
	// Threshold is how long before expiry a token counts as expiring.
	Threshold time.Duration

	// MaxAttempts bounds refresh calls per ticket, first call included.
	MaxAttempts int

	// BaseDelay is the linear backoff step: attempt n waits n*BaseDelay.
	BaseDelay time.Duration

	// Timeout bounds each provider call.
	Timeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Threshold:   5 * time.Minute,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Timeout:     10 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Threshold <= 0 {
		p.Threshold = def.Threshold
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p
}

// backOff returns a fresh retry schedule for one ticket.
func (p Policy) backOff() backoff.BackOff {
	return backoff.WithMaxRetries(&linearBackOff{step: p.BaseDelay}, uint64(p.MaxAttempts-1))
}

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
