package tokenbucket_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/snok/self-limiters/pkg/limiterobs"
	"github.com/snok/self-limiters/pkg/limiterstore"
	"github.com/snok/self-limiters/pkg/tokenbucket"
)

func newTestStore(t *testing.T) *limiterstore.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return limiterstore.New(rdb)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// S4: single-tenant. capacity=1, refill_frequency, refill_amount=1.
// Successive enters land on successive slots, each refillFrequency apart.
func TestBucket_SingleTenantSuccessiveSlots(t *testing.T) {
	store := newTestStore(t)
	const freq = 60 * time.Millisecond
	bucket, err := tokenbucket.New(store, "s4", 1, freq, 1)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()

	for i := 0; i < 3; i++ {
		acq, err := bucket.Enter(ctx)
		require.NoError(t, err)
		require.NoError(t, acq.Exit(ctx))

		elapsed := time.Since(start)
		expected := time.Duration(i+1) * freq
		// Allow generous slack: miniredis's Lua TIME plus scheduling jitter.
		assert.InDelta(t, expected.Milliseconds(), elapsed.Milliseconds(), float64(freq.Milliseconds()))
	}
}

// S5: batch fill. capacity=5, refill_amount=5. The first `capacity`
// concurrent enters share the first slot, one refillFrequency out; the
// rest wait a full refillFrequency longer.
func TestBucket_BatchFillSharesSlot(t *testing.T) {
	store := newTestStore(t)
	const freq = 80 * time.Millisecond
	bucket, err := tokenbucket.New(store, "s5", 5, freq, 5)
	require.NoError(t, err)

	const callers = 7
	durations := make([]time.Duration, callers)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acq, err := bucket.Enter(context.Background())
			if err != nil {
				return
			}
			durations[i] = time.Since(start)
			_ = acq.Exit(context.Background())
		}(i)
	}
	wg.Wait()

	// Callers are grouped by when they woke, not by goroutine index: the
	// script, not goroutine start order, decides who shares the first slot.
	sort.Slice(durations, func(a, b int) bool { return durations[a] < durations[b] })
	firstFive := durations[:5]
	lastTwo := durations[5:]

	// Midway between the first slot (freq) and the second (2*freq).
	split := freq + freq/2
	for _, d := range firstFive {
		assert.Less(t, d, split, "first five callers should share the first slot")
	}
	for _, d := range lastTwo {
		assert.GreaterOrEqual(t, d, split, "overflow callers should wait one refill period beyond the first slot")
	}
}

// S6: max-sleep rejection. A deep backlog pushes the computed slot well
// beyond max_sleep, so the caller is rejected without ever sleeping.
func TestBucket_MaxSleepRejection(t *testing.T) {
	store := newTestStore(t)
	const freq = 200 * time.Millisecond
	bucket, err := tokenbucket.New(store, "s6", 1, freq, 1, tokenbucket.WithMaxSleep(300*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()

	// Consume the only token in the first slot, one refill period (200ms)
	// out, which is within max_sleep.
	acq, err := bucket.Enter(ctx)
	require.NoError(t, err)
	require.NoError(t, acq.Exit(ctx))

	// This caller arrives at that slot; catch-up and rollover put its slot
	// two refill periods (400ms) out, which exceeds max_sleep.
	start := time.Now()
	_, err = bucket.Enter(ctx)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, limiterobs.ErrMaxSleepExceeded))
	assert.Less(t, elapsed, 50*time.Millisecond, "rejection must be immediate, not after sleeping")
}

// Invariant: slot monotonicity. Successive schedule calls for the same
// name never return a decreasing slot.
func TestBucket_SlotMonotonicity(t *testing.T) {
	store := newTestStore(t)
	bucket, err := tokenbucket.New(store, "mono", 3, 30*time.Millisecond, 3)
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs int

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := bucket.Enter(ctx)
			if err != nil {
				mu.Lock()
				errs++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, errs)
}

// Enter whose context is canceled while it sleeps for its slot returns
// promptly with the context's error rather than sleeping to the slot.
func TestBucket_ContextCancellation(t *testing.T) {
	store := newTestStore(t)
	bucket, err := tokenbucket.New(store, "cancel", 1, 5*time.Second, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	// First caller sleeps one refill period (5s) for its slot and consumes
	// the token; the second caller's slot then lies two refill periods
	// out, so it would otherwise sleep ~10s.
	acq, err := bucket.Enter(context.Background())
	require.NoError(t, err)
	require.NoError(t, acq.Exit(context.Background()))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = bucket.Enter(ctx)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, elapsed, time.Second)
}

func TestBucket_RejectsInvalidConstruction(t *testing.T) {
	store := newTestStore(t)

	_, err := tokenbucket.New(store, "", 1, time.Second, 1)
	require.Error(t, err)

	_, err = tokenbucket.New(store, "name", 0, time.Second, 1)
	require.Error(t, err)

	_, err = tokenbucket.New(store, "name", 1, 0, 1)
	require.Error(t, err)

	_, err = tokenbucket.New(store, "name", 1, time.Second, 0)
	require.Error(t, err)
}

func TestBucket_Name(t *testing.T) {
	store := newTestStore(t)
	bucket, err := tokenbucket.New(store, "named", 1, time.Second, 1)
	require.NoError(t, err)
	assert.Equal(t, "named", bucket.Name())
}

func TestBucket_Do(t *testing.T) {
	store := newTestStore(t)
	bucket, err := tokenbucket.New(store, "do", 1, 10*time.Millisecond, 1)
	require.NoError(t, err)

	ran := false
	err = bucket.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
