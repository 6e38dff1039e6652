package catalog

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// Limiter is the process-wide scheduler for outbound shop API calls.
// It runs queued calls strictly FIFO, one at a time, and enforces a minimum
// spacing between the start of one call and the start of the next so the
// shop's rate budget is never exceeded no matter how many logical operations
// are queued concurrently.
type Limiter struct {
	jobs     chan limiterJob
	interval time.Duration
}

type limiterJob struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// NewLimiter builds a limiter from a requests-per-second budget
// (e.g. 2/s means 500ms spacing between call starts).
func NewLimiter(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	l := &Limiter{
		jobs:     make(chan limiterJob, 256),
		interval: time.Duration(float64(time.Second) / requestsPerSecond),
	}
	go l.loop()
	return l
}

// NewLimiterFromEnv reads SHOP_RATE_LIMIT_PER_SEC (default 2).
func NewLimiterFromEnv() *Limiter {
	rps := 2.0
	if v := strings.TrimSpace(os.Getenv("SHOP_RATE_LIMIT_PER_SEC")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			rps = n
		}
	}
	return NewLimiter(rps)
}

func (l *Limiter) loop() {
	var next time.Time
	for job := range l.jobs {
		// A caller that gave up while queued never dispatches and
		// consumes no rate budget.
		if err := job.ctx.Err(); err != nil {
			job.done <- err
			continue
		}
		if wait := time.Until(next); wait > 0 {
			time.Sleep(wait)
		}
		next = time.Now().Add(l.interval)
		job.done <- job.fn(job.ctx)
	}
}

// Do submits one outbound call and blocks until it has run. A call's own
// failure fails only its submitter; the queue keeps processing.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	select {
	case l.jobs <- limiterJob{ctx: ctx, fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-done
}

// Interval exposes the enforced spacing (used by the service main for logging).
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
