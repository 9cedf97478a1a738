package platform

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// ConnectionGuard enforces static admission limits on gateway connections:
// a hard connection cap plus CPU/memory/goroutine emergency brakes, backed
// by a ResourceMonitor's periodic samples. Static and deterministic by
// design — it enforces configured thresholds, it does not calculate or
// auto-adjust them.
type ConnectionGuard struct {
	monitor            *ResourceMonitor
	maxConnections     int
	cpuRejectThreshold float64
	memoryLimitBytes   int64
	maxGoroutines      int
	currentConns       int64
}

// NewConnectionGuard builds a ConnectionGuard reading samples from monitor.
// memoryLimitBytes of 0 disables the memory brake (no cgroup limit
// detected).
func NewConnectionGuard(monitor *ResourceMonitor, maxConnections int, cpuRejectThreshold float64, memoryLimitBytes int64, maxGoroutines int) *ConnectionGuard {
	return &ConnectionGuard{
		monitor:            monitor,
		maxConnections:     maxConnections,
		cpuRejectThreshold: cpuRejectThreshold,
		memoryLimitBytes:   memoryLimitBytes,
		maxGoroutines:      maxGoroutines,
	}
}

// ShouldAcceptConnection checks, in order, the hard connection cap, the CPU
// emergency brake, the memory emergency brake, and the goroutine limit.
func (g *ConnectionGuard) ShouldAcceptConnection() (accept bool, reason string) {
	current := atomic.LoadInt64(&g.currentConns)
	if current >= int64(g.maxConnections) {
		return false, fmt.Sprintf("at max connections (%d)", g.maxConnections)
	}

	snap := g.monitor.Latest()
	if g.cpuRejectThreshold > 0 && snap.CPUPercent > g.cpuRejectThreshold {
		return false, fmt.Sprintf("CPU %.1f%% > %.1f%%", snap.CPUPercent, g.cpuRejectThreshold)
	}
	if g.memoryLimitBytes > 0 && int64(snap.MemoryRSSBytes) > g.memoryLimitBytes {
		return false, "memory limit exceeded"
	}
	if goros := runtime.NumGoroutine(); goros > g.maxGoroutines {
		return false, fmt.Sprintf("goroutine limit exceeded (%d > %d)", goros, g.maxGoroutines)
	}

	return true, "OK"
}

// ConnectionOpened increments the tracked connection count. Call once a
// connection is admitted and before ConnectionClosed can be called for it.
func (g *ConnectionGuard) ConnectionOpened() int64 {
	return atomic.AddInt64(&g.currentConns, 1)
}

// ConnectionClosed decrements the tracked connection count.
func (g *ConnectionGuard) ConnectionClosed() int64 {
	return atomic.AddInt64(&g.currentConns, -1)
}

// CurrentConnections returns the current tracked connection count.
func (g *ConnectionGuard) CurrentConnections() int64 {
	return atomic.LoadInt64(&g.currentConns)
}
