package core

import (
	"math"
	"time"
)

// Retrier chooses how long to back off before retry number retries, where
// maxretries bounds the ladder.
type Retrier interface {
	RetryIn(retries, maxretries int) time.Duration
	Name() string
}

// ExponentialRetrier doubles a 10 second base with each retry. Once retries
// passes maxretries the duration stops growing.
type ExponentialRetrier struct{}

func (r ExponentialRetrier) RetryIn(retries, maxretries int) time.Duration {
	if retries > maxretries {
		retries = maxretries
	}
	return time.Duration(math.Pow(2, float64(retries))) * (10 * time.Second)
}

func (r ExponentialRetrier) Name() string {
	return "exponential"
}

// FixedRetrier waits the same duration every time.
type FixedRetrier struct {
	Duration time.Duration
}

func (r FixedRetrier) RetryIn(retries, maxretries int) time.Duration {
	return r.Duration
}

func (r FixedRetrier) Name() string {
	return "fixed"
}
