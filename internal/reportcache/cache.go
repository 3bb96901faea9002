// Package reportcache memoises aggregate report results for a short TTL.
// Correctness never depends on it: a disabled cache just recomputes.
package reportcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL       = 60 * time.Second
	DefaultRetention = 5 * time.Minute
)

// Key identifies one report result.
type Key struct {
	Report     string
	BusinessID int64
	Start      time.Time
	End        time.Time
	LocationID *int64
	// Filters carries any further discriminator, such as a costing method.
	Filters string
}

func (k Key) String() string {
	loc := "all"
	if k.LocationID != nil {
		loc = strconv.FormatInt(*k.LocationID, 10)
	}
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s", k.Report, k.BusinessID,
		k.Start.UTC().Format(time.RFC3339Nano), k.End.UTC().Format(time.RFC3339Nano), loc, k.Filters)
}

// Remote is an optional shared tier, such as Redis, holding encoded values.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures a Cache. Zero durations take the defaults.
type Options struct {
	TTL       time.Duration
	Retention time.Duration
	Disabled  bool
	Remote    Remote
	Metrics   *Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

type item[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a concurrency-safe TTL cache. Concurrent writers of one key simply
// overwrite each other.
type Cache[V any] struct {
	mu        sync.Mutex
	entries   map[string]item[V]
	ttl       time.Duration
	retention time.Duration
	disabled  bool
	remote    Remote
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// New constructs a Cache.
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		entries:   make(map[string]item[V]),
		ttl:       opts.TTL,
		retention: opts.Retention,
		disabled:  opts.Disabled,
		remote:    opts.Remote,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.retention < c.ttl {
		c.retention = DefaultRetention
		if c.retention < c.ttl {
			c.retention = c.ttl
		}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Get returns the value stored under key if it is at most TTL old.
func (c *Cache[V]) Get(ctx context.Context, key Key) (V, bool) {
	var zero V
	if c == nil || c.disabled {
		return zero, false
	}
	k := key.String()
	c.mu.Lock()
	it, ok := c.entries[k]
	c.mu.Unlock()
	if ok && c.now().Sub(it.storedAt) <= c.ttl {
		c.metrics.hit(key.Report, "memory")
		return it.value, true
	}
	if c.remote != nil {
		raw, found, err := c.remote.Get(ctx, k)
		if err != nil {
			c.logger.Warn("report cache remote get failed", slog.String("report", key.Report), slog.Any("error", err))
		}
		if found {
			var v V
			if err := json.Unmarshal(raw, &v); err == nil {
				c.store(k, v)
				c.metrics.hit(key.Report, "remote")
				return v, true
			}
		}
	}
	c.metrics.miss(key.Report)
	return zero, false
}

// Put stores value under key and sweeps entries older than the retention window.
func (c *Cache[V]) Put(ctx context.Context, key Key, value V) {
	if c == nil || c.disabled {
		return
	}
	k := key.String()
	c.store(k, value)
	c.Sweep()
	if c.remote != nil {
		raw, err := json.Marshal(value)
		if err == nil {
			err = c.remote.Set(ctx, k, raw, c.ttl)
		}
		if err != nil {
			c.logger.Warn("report cache remote set failed", slog.String("report", key.Report), slog.Any("error", err))
		}
	}
}

func (c *Cache[V]) store(k string, value V) {
	c.mu.Lock()
	c.entries[k] = item[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Sweep drops entries older than the retention window and returns how many went.
func (c *Cache[V]) Sweep() int {
	if c == nil {
		return 0
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, it := range c.entries {
		if now.Sub(it.storedAt) > c.retention {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports how many entries are held in memory, fresh or stale.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Do returns the cached value for key or builds, stores and returns it.
// Concurrent misses for one key share a single build. The shared build does
// not inherit the cancellation or deadline of whichever caller started it, so
// build must bound itself; each caller still stops waiting when its own ctx ends.
func (c *Cache[V]) Do(ctx context.Context, key Key, build func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	if c == nil || c.disabled {
		return build(ctx)
	}
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		start := time.Now()
		v, err := build(detached)
		if err != nil {
			return v, err
		}
		c.metrics.observeBuild(key.Report, time.Since(start))
		c.Put(detached, key, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}
