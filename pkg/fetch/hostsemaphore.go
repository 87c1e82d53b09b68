package fetch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// HostSemaphorePool caps concurrent requests per host. It sits underneath
// the global permit, so the effective limit for a host is the smaller of the two.
// A nil pool imposes no limit.
type HostSemaphorePool struct {
	sems  map[string]*semaphore.Weighted
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool with the given per-host limit.
// A limit <= 0 disables per-host limiting and returns nil.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	if maxPerHost <= 0 {
		return nil
	}
	return &HostSemaphorePool{
		sems:  make(map[string]*semaphore.Weighted),
		limit: int64(maxPerHost),
		log:   log,
	}
}

// Acquire gets or creates the host semaphore and acquires one permit.
// Blocks until the permit is available or ctx is cancelled.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	if p == nil {
		return nil
	}
	return p.get(host).Acquire(ctx, 1)
}

// Release releases one permit for the given host.
func (p *HostSemaphorePool) Release(host string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	sem, exists := p.sems[host]
	p.mu.Unlock()
	if !exists {
		p.log.Errorf("hostsemaphore: Release called for unknown host: %s", host)
		return
	}
	sem.Release(1)
}

// Len returns the current number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sems)
}

func (p *HostSemaphorePool) get(host string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, exists := p.sems[host]
	if !exists {
		sem = semaphore.NewWeighted(p.limit)
		p.sems[host] = sem
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Created new host semaphore")
	}
	return sem
}
