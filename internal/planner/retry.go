package planner

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/tazhate/familyreminders/internal/domain"
)

// RetryPolicy controls how dispatcher calls are retried.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	RatePerSec  int           `yaml:"rate_per_sec"`
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	RatePerSec:  20,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if p.RatePerSec <= 0 {
		p.RatePerSec = DefaultRetryPolicy.RatePerSec
	}
	return p
}

// delay returns the wait before attempt+1.
func (p RetryPolicy) delay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1)
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// retryable reports whether a failed dispatcher call is worth repeating.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrPastTriggerRejected):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		t := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}
