package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
)

// Options configures a Cache.
type Options struct {
	TTL          time.Duration // default entry lifetime and key bucket width
	MinInterval  time.Duration // spacing between external calls
	MaxWait      time.Duration // cap on a single rate-limit sleep
	FetchTimeout time.Duration // hard limit on one external call
	MaxEntries   int
	Slack        float64 // fraction of MaxEntries freed by one eviction pass
}

// DefaultOptions returns the free-plan settings.
func DefaultOptions() Options {
	return Options{
		TTL:          300 * time.Second,
		MinInterval:  12 * time.Second,
		MaxWait:      30 * time.Second,
		FetchTimeout: 20 * time.Second,
		MaxEntries:   1000,
		Slack:        0.2,
	}
}

type entry struct {
	value     any
	writtenAt time.Time
	ttl       time.Duration
}

func (e entry) valid(now time.Time) bool {
	return now.Sub(e.writtenAt) < e.ttl
}

// Cache memoizes data source results for a bounded time and spaces out the
// calls that miss. Errors are never stored.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// fetchMu serializes misses so an unexpired key is fetched at most once.
	fetchMu  sync.Mutex
	throttle *Throttle

	opts    Options
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Recorder
}

// New creates a cache. m may be nil.
func New(opts Options, log zerolog.Logger, m *metrics.Recorder) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultOptions().MaxEntries
	}
	if opts.Slack <= 0 || opts.Slack >= 1 {
		opts.Slack = DefaultOptions().Slack
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultOptions().TTL
	}
	return &Cache{
		entries:  make(map[string]entry),
		throttle: NewThrottle(opts.MinInterval, opts.MaxWait),
		opts:     opts,
		now:      time.Now,
		log:      log.With().Str("component", "cache").Logger(),
		metrics:  m,
	}
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key builds a cache key from an operation name, an order-independent
// symbol set and the time bucket floor(now/ttl).
func Key(op string, symbols []string, ttl time.Duration, now time.Time) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	var bucket int64
	if ttl > 0 {
		bucket = now.UnixNano() / int64(ttl)
	}
	return op + "_" + strings.Join(sorted, ",") + "_" + strconv.FormatInt(bucket, 10)
}

// GetOrFetch returns the unexpired value stored under key, or calls fetch
// after waiting for the rate limit and stores its result for ttl.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (any, error)) (any, error) {
	op := opOf(key)
	if v, ok := c.lookup(key); ok {
		c.metrics.RecordCacheHit(op)
		return v, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if v, ok := c.lookup(key); ok {
		c.metrics.RecordCacheHit(op)
		return v, nil
	}
	c.metrics.RecordCacheMiss(op)

	waited, err := c.throttle.Wait(ctx)
	if err != nil {
		return nil, model.NewSourceError(model.ErrTimeout, "", "rate limit wait interrupted", err)
	}
	c.metrics.RecordThrottleWait(waited)

	fetchCtx := ctx
	cancel := func() {}
	if c.opts.FetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
	}
	start := time.Now()
	v, err := fetch(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && model.ErrorTypeOf(err) != model.ErrTimeout {
			err = model.NewSourceError(model.ErrTimeout, "", fmt.Sprintf("%s exceeded %s", op, c.opts.FetchTimeout), err)
		}
		c.metrics.RecordFetch(op, time.Since(start), string(model.ErrorTypeOf(err)))
		c.log.Debug().Err(err).Str("key", key).Msg("fetch failed")
		return nil, err
	}
	c.metrics.RecordFetch(op, time.Since(start), "")

	c.store(key, v, ttl)
	return v, nil
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !e.valid(c.now()) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, v any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.opts.MaxEntries {
		evicted := c.evictLocked(now)
		c.metrics.RecordEvictions(evicted)
		c.log.Debug().Int("evicted", evicted).Int("remaining", len(c.entries)).Msg("cache size cap reached")
	}
	c.entries[key] = entry{value: v, writtenAt: now, ttl: ttl}
}

// evictLocked drops expired entries, then the oldest writes, until the map
// is at or below the slack target. Caller holds c.mu.
func (c *Cache) evictLocked(now time.Time) int {
	before := len(c.entries)
	target := int(float64(c.opts.MaxEntries) * (1 - c.opts.Slack))
	if target >= c.opts.MaxEntries {
		target = c.opts.MaxEntries - 1
	}
	if target < 0 {
		target = 0
	}

	for k, e := range c.entries {
		if !e.valid(now) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) > target {
		keys := make([]string, 0, len(c.entries))
		for k := range c.entries {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return c.entries[keys[i]].writtenAt.Before(c.entries[keys[j]].writtenAt)
		})
		for _, k := range keys[:len(keys)-target] {
			delete(c.entries, k)
		}
	}
	return before - len(c.entries)
}

// opOf returns the operation prefix of a key built by Key.
func opOf(key string) string {
	if i := strings.IndexByte(key, '_'); i > 0 {
		return key[:i]
	}
	return key
}

// Fetch is a typed wrapper around GetOrFetch that builds the key from op
// and symbols using the cache's default TTL.
func Fetch[T any](ctx context.Context, c *Cache, op string, symbols []string, fetch func(context.Context) (T, error)) (T, error) {
	ttl := c.TTL()
	key := Key(op, symbols, ttl, c.now())
	v, err := c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %s has type %T", key, v)
	}
	return typed, nil
}
