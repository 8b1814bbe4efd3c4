// Package health reports runtime status for the health endpoint.
package health

import (
	"runtime"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the running process.
type Snapshot struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	GoVersion      string `json:"goVersion"`
}

// Collector gathers runtime metrics. Results are cached for CacheTTL to
// handle rapid polling by load balancers.
type Collector struct {
	startedAt time.Time
	cacheTTL  time.Duration

	mu       sync.RWMutex
	cached   *Snapshot
	cachedAt time.Time
}

// NewCollector creates a collector. A zero cacheTTL defaults to 5s.
func NewCollector(cacheTTL time.Duration) *Collector {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}
	return &Collector{
		startedAt: time.Now(),
		cacheTTL:  cacheTTL,
	}
}

// Collect returns the current snapshot, possibly cached.
func (c *Collector) Collect() Snapshot {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
		snap := *c.cached
		c.mu.RUnlock()
		return snap
	}
	c.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := Snapshot{
		Status:         "healthy",
		UptimeSeconds:  int64(time.Since(c.startedAt).Seconds()),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		GoVersion:      runtime.Version(),
	}

	c.mu.Lock()
	c.cached = &snap
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return snap
}
