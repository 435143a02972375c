package worker

import (
	"time"

	"turnover/internal/models"
)

// RetryPolicy schedules redelivery of failed outbox tasks. Zero fields fall back to defaults.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = models.OutboxMaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = 2
	}
	return r
}

// NextDelay is the pause before the given (1-based) attempt is retried.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()

	d := r.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * r.BackoffFactor)
		if d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	return d
}

// Schedule returns when a task that has already failed retryCount times should run again.
// ok is false once the task has used up its attempts.
func (r RetryPolicy) Schedule(retryCount int, now time.Time) (at time.Time, ok bool) {
	r = r.withDefaults()
	attempt := retryCount + 1
	if attempt >= r.MaxRetries {
		return time.Time{}, false
	}
	return now.Add(r.NextDelay(attempt)), true
}
