package llm

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const defaultMaxConcurrent = 8

// Limiter bounds the number of in-flight completions and smooths the
// request rate. One Limiter is shared by every extraction facade in the
// process so the cap holds across all concurrent sessions.
type Limiter struct {
	sem      *semaphore.Weighted
	rate     *rate.Limiter
	inFlight atomic.Int64
}

// NewLimiter creates a limiter allowing maxConcurrent simultaneous calls.
// A non-positive maxConcurrent falls back to the default. rps <= 0 disables
// rate smoothing; burst defaults to ceil(rps) when unset.
func NewLimiter(maxConcurrent int, rps float64, burst int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	l := &Limiter{sem: semaphore.NewWeighted(int64(maxConcurrent))}
	if rps > 0 {
		if burst <= 0 {
			burst = int(rps)
			if burst < 1 {
				burst = 1
			}
		}
		l.rate = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

// Acquire blocks until a concurrency slot and a rate token are available,
// or ctx ends. On error no slot is held.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if l.rate != nil {
		if err := l.rate.Wait(ctx); err != nil {
			l.sem.Release(1)
			return err
		}
	}
	l.inFlight.Add(1)
	return nil
}

// Release returns a slot acquired with Acquire.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// InFlight reports the number of currently held slots.
func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}
