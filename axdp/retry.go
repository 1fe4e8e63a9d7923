package axdp

import "time"

// RetryPolicy implements exponential backoff with an optional jitter
// fraction, used for AXDP ACK/NACK retransmission.
type RetryPolicy struct {
	BaseInterval   time.Duration
	MaxInterval    time.Duration
	MaxRetries     int
	JitterFraction float64 // 0 disables jitter
}

// DefaultRetryPolicy returns a 1s base interval doubling up to 30s, with
// at most 8 retries and no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseInterval: time.Second,
		MaxInterval:  30 * time.Second,
		MaxRetries:   8,
	}
}

// Interval returns min(MaxInterval, BaseInterval * 2^attempt), optionally
// jittered by ±JitterFraction using rnd for the jitter draw.
func (p RetryPolicy) Interval(attempt int, rnd func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mult := int64(1) << uint(min(attempt, 32))
	interval := p.BaseInterval * time.Duration(mult)
	if interval > p.MaxInterval || interval <= 0 {
		interval = p.MaxInterval
	}
	if p.JitterFraction > 0 && rnd != nil {
		// Map rnd()'s [0,1) to [-jitter, +jitter].
		delta := (rnd()*2 - 1) * p.JitterFraction
		interval = time.Duration(float64(interval) * (1 + delta))
		if interval < 0 {
			interval = 0
		}
		if interval > p.MaxInterval {
			interval = p.MaxInterval
		}
	}
	return interval
}

// ShouldRetry reports whether another attempt is permitted.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
