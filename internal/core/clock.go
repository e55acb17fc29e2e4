package core

import "time"

// Clock abstracts wall-clock time so backoff and stale-claim arithmetic
// can be tested without real sleeps.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
