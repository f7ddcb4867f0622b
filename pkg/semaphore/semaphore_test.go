package semaphore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/snok/self-limiters/pkg/limiterobs"
	"github.com/snok/self-limiters/pkg/limiterstore"
	"github.com/snok/self-limiters/pkg/semaphore"
)

func newTestStore(t *testing.T) (*limiterstore.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return limiterstore.New(rdb), mr
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// S1: a single caller against capacity 1 acquires and releases cleanly.
func TestSemaphore_EnterExit(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "s1", 1)
	require.NoError(t, err)

	ctx := context.Background()
	acq, err := sem.Enter(ctx)
	require.NoError(t, err)
	require.NotNil(t, acq)

	require.NoError(t, acq.Exit(ctx))
	// idempotent
	require.NoError(t, acq.Exit(ctx))
}

// S2: capacity N admits exactly N concurrent holders; the (N+1)th blocks
// until one of the first N releases.
func TestSemaphore_CapacityBoundsConcurrency(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "s2", 2)
	require.NoError(t, err)

	ctx := context.Background()
	a1, err := sem.Enter(ctx)
	require.NoError(t, err)
	a2, err := sem.Enter(ctx)
	require.NoError(t, err)

	thirdAcquired := make(chan struct{})
	go func() {
		a3, err := sem.Enter(context.Background())
		if err == nil {
			close(thirdAcquired)
			_ = a3.Exit(context.Background())
		}
	}()

	select {
	case <-thirdAcquired:
		t.Fatal("third Enter acquired while capacity was exhausted")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, a1.Exit(ctx))

	select {
	case <-thirdAcquired:
	case <-time.After(2 * time.Second):
		t.Fatal("third Enter never acquired after a release")
	}

	require.NoError(t, a2.Exit(ctx))
}

// S3: a blocked Enter past WithMaxSleep returns ErrMaxSleepExceeded, not
// StoreError.
func TestSemaphore_MaxSleepExceeded(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "s3", 1, semaphore.WithMaxSleep(50*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	acq, err := sem.Enter(ctx)
	require.NoError(t, err)
	defer func() { _ = acq.Exit(ctx) }()

	_, err = sem.Enter(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, limiterobs.ErrMaxSleepExceeded))
	assert.False(t, errors.Is(err, limiterstore.StoreError))
}

// Invariant: FIFO fairness. Waiters are served in arrival order.
func TestSemaphore_FIFOOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "s4", 1)
	require.NoError(t, err)

	ctx := context.Background()
	holder, err := sem.Enter(ctx)
	require.NoError(t, err)

	const waiters = 5
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	started := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			time.Sleep(20 * time.Millisecond) // let goroutines queue roughly in order
			acq, err := sem.Enter(context.Background())
			if err != nil {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			_ = acq.Exit(context.Background())
		}(i)
		<-started
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, holder.Exit(ctx))
	wg.Wait()

	require.Len(t, order, waiters)
	// BLPOP serves strictly in blocking order; since each goroutine was
	// staggered 5ms apart before blocking, order should be ascending.
	for i := 1; i < len(order); i++ {
		assert.LessOrEqual(t, order[i-1], order[i])
	}
}

// Invariant: Do releases the slot even when fn panics.
func TestSemaphore_DoReleasesOnPanic(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "s5", 1)
	require.NoError(t, err)

	ctx := context.Background()

	assert.Panics(t, func() {
		_ = sem.Do(ctx, func(context.Context) error {
			panic("boom")
		})
	})

	// the slot must have been returned: a second Enter succeeds promptly.
	doneCh := make(chan struct{})
	go func() {
		acq, err := sem.Enter(context.Background())
		if err == nil {
			_ = acq.Exit(context.Background())
			close(doneCh)
		}
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("slot was not released after panic")
	}
}

// Invariant: a dead store surfaces StoreError, never silently hangs.
func TestSemaphore_StoreErrorOnUnreachableStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}) // nothing listening
	defer func() { _ = rdb.Close() }()
	store := limiterstore.New(rdb, limiterstore.WithBreakerTripAfter(100))
	sem, err := semaphore.New(store, "s6", 1, semaphore.WithMaxSleep(time.Second))
	require.NoError(t, err)

	_, err = sem.Enter(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, limiterstore.StoreError))
}

// Query reports available slots without consuming one.
func TestSemaphore_Query(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "s7", 3)
	require.NoError(t, err)

	ctx := context.Background()
	acq, err := sem.Enter(ctx)
	require.NoError(t, err)

	available, capacity, err := sem.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, capacity)
	assert.Equal(t, 2, available)

	require.NoError(t, acq.Exit(ctx))

	available, _, err = sem.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestSemaphore_RejectsInvalidConstruction(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := semaphore.New(store, "", 1)
	require.Error(t, err)

	_, err = semaphore.New(store, "name", 0)
	require.Error(t, err)
}

func TestSemaphore_Name(t *testing.T) {
	store, _ := newTestStore(t)
	sem, err := semaphore.New(store, "named", 1)
	require.NoError(t, err)
	assert.Equal(t, "named", sem.Name())
}

func TestSemaphore_ConcurrentEntersNeverExceedCapacity(t *testing.T) {
	store, _ := newTestStore(t)
	const capacity = 3
	sem, err := semaphore.New(store, "s8", capacity)
	require.NoError(t, err)

	var inFlight int64
	var maxObserved int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acq, err := sem.Enter(context.Background())
			if err != nil {
				return
			}
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&maxObserved)
				if n <= old || atomic.CompareAndSwapInt64(&maxObserved, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			_ = acq.Exit(context.Background())
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&maxObserved), int64(capacity))
}
