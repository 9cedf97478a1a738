package reliability

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTaskPoolBoundsConcurrentInflight(t *testing.T) {
	pool := NewTaskPool(2, 0, zerolog.Nop())
	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		pool.Spawn(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestTaskPoolRecoversPanicAndReleasesPermit(t *testing.T) {
	pool := NewTaskPool(1, 0, zerolog.Nop())
	var wg sync.WaitGroup

	wg.Add(1)
	pool.Spawn(context.Background(), func(ctx context.Context) {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	var ran int32
	wg.Add(1)
	pool.Spawn(context.Background(), func(ctx context.Context) {
		defer wg.Done()
		atomic.StoreInt32(&ran, 1)
	})
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestTaskPoolShutdownRejectsNewSpawns(t *testing.T) {
	pool := NewTaskPool(1, 0, zerolog.Nop())
	pool.Shutdown()

	var ran int32
	pool.Spawn(context.Background(), func(ctx context.Context) {
		atomic.StoreInt32(&ran, 1)
	})
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}
