package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(opts Options) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(opts, zerolog.Nop(), nil)
	c.now = clock.Now
	return c, clock
}

func counting(calls *int32, value any) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestKey_OrderIndependentAndBucketed(t *testing.T) {
	now := time.Unix(1000, 0)
	ttl := 60 * time.Second
	a := Key("news", []string{"MSFT", "AAPL"}, ttl, now)
	b := Key("news", []string{"AAPL", "MSFT"}, ttl, now)
	assert.Equal(t, a, b)
	assert.Equal(t, "news_AAPL,MSFT_16", a)

	assert.Equal(t, a, Key("news", []string{"AAPL", "MSFT"}, ttl, time.Unix(1019, 0)))
	assert.NotEqual(t, a, Key("news", []string{"AAPL", "MSFT"}, ttl, time.Unix(1020, 0)))
}

func TestGetOrFetch_SingleFetchWithinTTL(t *testing.T) {
	c, clock := newTestCache(Options{TTL: time.Minute})
	var calls int32

	v, err := c.GetOrFetch(context.Background(), "price_EURUSD_1", time.Minute, counting(&calls, 1.08))
	require.NoError(t, err)
	assert.Equal(t, 1.08, v)

	clock.Advance(59 * time.Second)
	v, err = c.GetOrFetch(context.Background(), "price_EURUSD_1", time.Minute, counting(&calls, 2.0))
	require.NoError(t, err)
	assert.Equal(t, 1.08, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(time.Second)
	v, err = c.GetOrFetch(context.Background(), "price_EURUSD_1", time.Minute, counting(&calls, 2.0))
	require.NoError(t, err)
	assert.Equal(t, 2.0, v, "expired entries are not served")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_ConcurrentCallersShareOneFetch(t *testing.T) {
	c, _ := newTestCache(Options{TTL: time.Minute})
	var calls int32
	slow := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "payload", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "bars_AAPL_7", time.Minute, slow)
			assert.NoError(t, err)
			assert.Equal(t, "payload", v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_ErrorsAreNotCached(t *testing.T) {
	c, _ := newTestCache(Options{TTL: time.Minute})
	boom := model.NewSourceError(model.ErrRateLimited, "AAPL", "quota", nil)
	var calls int32

	_, err := c.GetOrFetch(context.Background(), "price_AAPL_1", time.Minute, func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrFetch(context.Background(), "price_AAPL_1", time.Minute, counting(&calls, 190.5))
	require.NoError(t, err)
	assert.Equal(t, 190.5, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_HardTimeoutIsTyped(t *testing.T) {
	c, _ := newTestCache(Options{TTL: time.Minute, FetchTimeout: 20 * time.Millisecond})
	_, err := c.GetOrFetch(context.Background(), "depth_EURUSD_1", time.Minute, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrTimeout, model.ErrorTypeOf(err))
	assert.Equal(t, 0, c.Len())
}

func TestThrottle_SequentialCallsAreSpaced(t *testing.T) {
	const interval = 30 * time.Millisecond
	c, _ := newTestCache(Options{TTL: time.Minute, MinInterval: interval, MaxWait: time.Second})
	var calls int32

	start := time.Now()
	const n = 4
	for i := 0; i < n; i++ {
		_, err := c.GetOrFetch(context.Background(), fmt.Sprintf("price_S%d_1", i), time.Minute, counting(&calls, i))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), (n-1)*interval)
	assert.Equal(t, int32(n), atomic.LoadInt32(&calls))
}

func TestThrottle_WaitIsCapped(t *testing.T) {
	th := NewThrottle(time.Hour, 10*time.Millisecond)
	_, err := th.Wait(context.Background())
	require.NoError(t, err)

	start := time.Now()
	waited, err := th.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, waited)
	assert.Less(t, time.Since(start), time.Second)
}

func TestThrottle_ContextCancelled(t *testing.T) {
	th := NewThrottle(time.Hour, 0)
	_, err := th.Wait(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = th.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEviction_OldestFirstDownToSlackTarget(t *testing.T) {
	c, clock := newTestCache(Options{TTL: time.Hour, MaxEntries: 4, Slack: 0.5})
	var calls int32
	for i := 0; i < 4; i++ {
		_, err := c.GetOrFetch(context.Background(), fmt.Sprintf("k%d", i), time.Hour, counting(&calls, i))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	require.Equal(t, 4, c.Len())

	_, err := c.GetOrFetch(context.Background(), "k4", time.Hour, counting(&calls, 4))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	_, ok := c.lookup("k0")
	assert.False(t, ok)
	_, ok = c.lookup("k1")
	assert.False(t, ok)
	for _, k := range []string{"k2", "k3", "k4"} {
		_, ok := c.lookup(k)
		assert.True(t, ok, k)
	}
}

func TestEviction_ExpiredBeforeOldest(t *testing.T) {
	c, clock := newTestCache(Options{TTL: time.Hour, MaxEntries: 4, Slack: 0.25})
	var calls int32
	ctx := context.Background()

	_, _ = c.GetOrFetch(ctx, "old-long", time.Hour, counting(&calls, 0))
	clock.Advance(time.Second)
	_, _ = c.GetOrFetch(ctx, "short-a", time.Second, counting(&calls, 1))
	_, _ = c.GetOrFetch(ctx, "short-b", time.Second, counting(&calls, 2))
	_, _ = c.GetOrFetch(ctx, "fresh", time.Hour, counting(&calls, 3))
	clock.Advance(2 * time.Second)

	_, err := c.GetOrFetch(ctx, "new", time.Hour, counting(&calls, 4))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	_, ok := c.lookup("old-long")
	assert.True(t, ok, "valid entries survive while expired ones free enough room")
}

func TestFetch_Typed(t *testing.T) {
	c, _ := newTestCache(Options{TTL: time.Minute})
	var calls int32
	get := func() (float64, error) {
		return Fetch(context.Background(), c, "price", []string{"EURUSD"}, func(context.Context) (float64, error) {
			atomic.AddInt32(&calls, 1)
			return 1.0842, nil
		})
	}
	p, err := get()
	require.NoError(t, err)
	assert.Equal(t, 1.0842, p)
	_, err = get()
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
