package reliability

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TaskPool bounds the number of concurrently in-flight tasks with a counting
// semaphore, optionally pacing spawns with a shared token-bucket limiter.
// Safe for concurrent use.
type TaskPool struct {
	sem     chan struct{}
	limiter *rate.Limiter
	wg      sync.WaitGroup
	logger  zerolog.Logger

	mu       sync.Mutex
	shutdown bool
}

// NewTaskPool builds a pool with room for maxInflight concurrently running
// tasks. ratePerSec <= 0 disables the rate limiter. maxInflight is clamped
// to at least 1.
func NewTaskPool(maxInflight int, ratePerSec float64, logger zerolog.Logger) *TaskPool {
	if maxInflight < 1 {
		maxInflight = 1
	}

	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}

	return &TaskPool{
		sem:     make(chan struct{}, maxInflight),
		limiter: limiter,
		logger:  logger,
	}
}

// Spawn waits for the rate limiter (if any) and a free permit, then runs f
// in a new goroutine with the permit held for its lifetime. If the pool has
// been shut down, Spawn is a no-op. Panics inside f are recovered and
// logged; the permit is always released.
func (p *TaskPool) Spawn(ctx context.Context, f func(context.Context)) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().
					Interface("panic_value", r).
					Str("stack_trace", string(debug.Stack())).
					Msg("task pool: recovered panic, permit released")
			}
		}()
		f(ctx)
	}()
}

// Reap is a no-op placeholder for parity with the source's explicit
// finished-task drain: Go's goroutines release their semaphore slot on
// completion without a separate join step.
func (p *TaskPool) Reap() {}

// Shutdown marks the pool closed to new Spawn calls and waits for all
// in-flight tasks to finish.
func (p *TaskPool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Inflight returns the number of tasks currently holding a permit.
func (p *TaskPool) Inflight() int {
	return len(p.sem)
}
