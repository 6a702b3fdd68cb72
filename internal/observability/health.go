package observability

import (
	"sync/atomic"
	"time"
)

// HealthChecker tracks liveness and readiness state. Readiness flips
// on once the store, the optional database, and the optional broker
// are connected, and off again during shutdown.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the service as ready (or not) to accept traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service accepts traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// Uptime returns time since process start.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}
