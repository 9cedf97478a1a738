// Package platform holds the ambient process concerns the medium's core
// deliberately treats as external collaborators: container-aware resource
// limits, periodic CPU/memory sampling, and the health-check endpoint.
package platform

import (
	"os"
	"strconv"
	"strings"
)

// MemoryLimitBytes returns the container memory limit in bytes, read
// straight from the cgroup filesystem. Tries cgroup v2 first, falls back
// to v1, and returns 0 (with no error) when no limit is detected —
// bare-metal hosts, VMs, and unconstrained containers all look the same
// to this function.
func MemoryLimitBytes() (int64, error) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limit := strings.TrimSpace(string(data))
		if limit != "max" {
			return strconv.ParseInt(limit, 10, 64)
		}
		return 0, nil
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		limit, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, err
		}
		// cgroup v1 reports an unconstrained group as a page-aligned value
		// just under MaxInt64 rather than a "max" sentinel.
		if limit >= 1<<62 {
			return 0, nil
		}
		return limit, nil
	}

	return 0, nil
}

// runtimeOverheadBytes is reserved for the Go runtime, transport client,
// and goroutine stacks before sizing task-pool capacity off the remainder.
const runtimeOverheadBytes = 64 * 1024 * 1024

// bytesPerInflightTask is a conservative estimate of one in-flight task's
// working set: the wave it's handling, its retry/circuit-breaker state,
// and goroutine stack.
const bytesPerInflightTask = 64 * 1024

// RecommendedMaxInflight sizes a task pool's max_inflight from the
// container memory limit, within a safe floor and ceiling. A zero limit
// (no cgroup constraint detected) falls back to a conservative default.
func RecommendedMaxInflight(memoryLimitBytes int64) int {
	const (
		minInflight     = 16
		maxInflight     = 10000
		defaultInflight = 256
	)

	if memoryLimitBytes == 0 {
		return defaultInflight
	}

	available := memoryLimitBytes - runtimeOverheadBytes
	if available < 0 {
		available = memoryLimitBytes / 2
	}

	n := int(available / bytesPerInflightTask)
	if n < minInflight {
		return minInflight
	}
	if n > maxInflight {
		return maxInflight
	}
	return n
}
