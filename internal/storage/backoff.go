package storage

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MinRetryDelay is the smallest base delay a LinearBackOff uses.
const MinRetryDelay = 100 * time.Millisecond

// LinearBackOff waits n × Base before the (n+1)th attempt.
type LinearBackOff struct {
	Base    time.Duration
	attempt int
}

var _ backoff.BackOff = (*LinearBackOff)(nil)

func NewLinearBackOff(base time.Duration) *LinearBackOff {
	if base < MinRetryDelay {
		base = MinRetryDelay
	}
	return &LinearBackOff{Base: base}
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Base
}

func (b *LinearBackOff) Reset() {
	b.attempt = 0
}
