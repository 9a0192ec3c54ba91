package batch

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy applies to failed model invocations only. Those never write to
// the store, so running the record again cannot duplicate turns.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	JitterPercent int
}

func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delay is the wait before attempt+1.
func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	d := base
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	return jittered(d, maxDelay, p.JitterPercent)
}

func jittered(base, maxDelay time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 {
		jitterPct = 25
	}
	delta := (rand.Float64()*2 - 1) * float64(jitterPct) / 100.0
	wait := time.Duration(float64(base) * (1 + delta))
	if wait < 0 {
		wait = base
	}
	if wait > maxDelay {
		wait = maxDelay
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
