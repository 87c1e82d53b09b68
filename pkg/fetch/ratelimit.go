package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces out requests to the same host.
// Each caller reserves the next free slot for its host before sleeping, so
// concurrent callers queue behind each other instead of firing together.
type RateLimiter struct {
	nextSlot     map[string]time.Time // host -> earliest start of the next request
	mu           sync.Mutex
	defaultDelay time.Duration // Used when ApplyDelay gets a non-positive delay
	log          *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		nextSlot:     make(map[string]time.Time),
		defaultDelay: defaultDelay,
		log:          log,
	}
}

// ApplyDelay blocks until this caller's slot for host arrives, or ctx is done.
// The first request to a host never waits. Sleeps carry +/-10% jitter.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) error {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return nil
	}

	now := time.Now()
	rl.mu.Lock()
	slot, exists := rl.nextSlot[host]
	if !exists || slot.Before(now) {
		slot = now
	}
	rl.nextSlot[host] = slot.Add(minDelay)
	rl.mu.Unlock()

	sleepDuration := slot.Sub(now)
	if sleepDuration <= 0 {
		return nil
	}
	if jitterRange := int64(sleepDuration) / 5; jitterRange > 0 {
		sleepDuration += time.Duration(rand.Int63n(jitterRange)) - sleepDuration/10
	}

	rl.log.WithFields(logrus.Fields{"host": host, "sleep": sleepDuration, "required_delay": minDelay}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(sleepDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
