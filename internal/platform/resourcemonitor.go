package platform

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time read of process and host resource usage.
type Snapshot struct {
	CPUPercent      float64
	MemoryRSSBytes  uint64
	MemoryAvailable uint64
	Goroutines      int
	Timestamp       time.Time
}

// ResourceMonitor periodically samples CPU and memory usage in the
// background and serves the latest Snapshot to any number of readers. A
// single instance is meant to be shared across a process via Get.
type ResourceMonitor struct {
	mu       sync.RWMutex
	latest   Snapshot
	interval time.Duration
	logger   zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	monitorOnce sync.Once
	monitor     *ResourceMonitor
)

// Get returns the process-wide ResourceMonitor, starting its background
// sampling loop on first call. Subsequent calls return the same instance
// regardless of the arguments passed.
func Get(interval time.Duration, logger zerolog.Logger) *ResourceMonitor {
	monitorOnce.Do(func() {
		monitor = newResourceMonitor(interval, logger)
		monitor.start()
	})
	return monitor
}

func newResourceMonitor(interval time.Duration, logger zerolog.Logger) *ResourceMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ResourceMonitor{interval: interval, logger: logger}
}

func (m *ResourceMonitor) start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.sample(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample(ctx)
			}
		}
	}()
}

func (m *ResourceMonitor) sample(ctx context.Context) {
	snap := Snapshot{
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		m.logger.Warn().Err(err).Msg("cpu sample failed")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryAvailable = vm.Available
	} else {
		m.logger.Warn().Err(err).Msg("memory sample failed")
	}

	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)
	snap.MemoryRSSBytes = rt.Sys

	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()
}

// Latest returns the most recently sampled Snapshot.
func (m *ResourceMonitor) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Stop cancels the background sampling loop and waits for it to exit.
// Intended for tests; the process-wide instance normally lives for the
// lifetime of the program.
func (m *ResourceMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
