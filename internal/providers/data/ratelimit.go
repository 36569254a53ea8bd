package data

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Sleeper inserts a randomized pause before scraper-style requests so
// burst patterns do not look machine-generated to the upstream.
type Sleeper struct {
	min time.Duration
	max time.Duration
}

// NewSleeper creates a sleeper with the given jitter window. A zero or
// inverted window disables sleeping.
func NewSleeper(min, max time.Duration) *Sleeper {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Sleeper{min: min, max: max}
}

// Sleep blocks for a random duration within the window, or until the
// context is cancelled.
func (s *Sleeper) Sleep(ctx context.Context) error {
	d := s.min
	if span := s.max - s.min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// NewQuotaLimiter builds a per-minute request limiter for quota-metered
// APIs. Burst is capped so a cold process cannot spend the whole minute
// quota instantly.
func NewQuotaLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}
