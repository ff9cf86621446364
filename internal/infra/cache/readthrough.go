// Package cache implements a read-through cache for slow upstream lookups.
//
// Each key maps to a call: the fetch result once it resolves, or the in-flight
// fetch while it runs. Concurrent Gets for the same key wait on the same call,
// so at most one upstream fetch per key is outstanding at any time.
//
//   - Miss: the call is stored before the fetch starts.
//   - Failure: the entry is removed and every waiter sees the error.
//   - Eviction: least-recently-used once Capacity is exceeded; Get and Put
//     both refresh recency.
//   - TTL: resolved entries older than TTL are treated as misses when read.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Observer receives cache events. Implementations must be cheap and non-blocking.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	CacheFetchError(name string)
	CacheEviction(name string)
}

// Config controls a ReadThrough cache.
type Config struct {
	Name     string           // label for metrics
	Capacity int              // maximum entries (default 100)
	TTL      time.Duration    // 0 disables expiry
	Now      func() time.Time // injectable clock for testing
	Observer Observer         // may be nil
}

// FetchFunc loads the value for a key from upstream.
type FetchFunc[K any, V any] func(ctx context.Context, key K) (V, error)

// call is one fetch, shared by every Get that arrives while it runs.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

type entry[V any] struct {
	key      string
	call     *call[V]
	storedAt time.Time
	resolved bool
}

// ReadThrough is a concurrency-safe LRU of in-flight or completed fetches.
type ReadThrough[K any, V any] struct {
	mu      sync.Mutex
	cfg     Config
	fetch   FetchFunc[K, V]
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

// New creates a read-through cache around fetch.
func New[K any, V any](cfg Config, fetch FetchFunc[K, V]) *ReadThrough[K, V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReadThrough[K, V]{
		cfg:     cfg,
		fetch:   fetch,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Get returns the cached value for key, fetching it at most once.
//
// If ctx ends before the fetch resolves, Get returns ctx.Err(); the fetch keeps
// running on a detached context and its result is cached for later callers.
func (c *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, error) {
	k, err := KeyOf(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	cl, hit := c.lookupLocked(k)
	if hit {
		c.observe(Observer.CacheHit)
	} else {
		c.observe(Observer.CacheMiss)
		cl = &call[V]{done: make(chan struct{})}
		c.insertLocked(k, cl)
		go c.run(context.WithoutCancel(ctx), k, key, cl)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Put stores a resolved value, replacing any existing entry.
func (c *ReadThrough[K, V]) Put(key K, val V) error {
	k, err := KeyOf(key)
	if err != nil {
		return err
	}
	cl := &call[V]{done: make(chan struct{}), val: val}
	close(cl.done)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(k, cl)
	c.entries[k].Value.(*entry[V]).resolved = true
	return nil
}

// Remove drops key from the cache. An in-flight fetch still completes for
// its current waiters but is not cached.
func (c *ReadThrough[K, V]) Remove(key K) {
	k, err := KeyOf(key)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		c.removeLocked(el)
	}
}

// Len returns the number of entries, including in-flight ones.
func (c *ReadThrough[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns cached keys from most to least recently used.
func (c *ReadThrough[K, V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// run performs the fetch and publishes its result.
func (c *ReadThrough[K, V]) run(ctx context.Context, k string, key K, cl *call[V]) {
	val, err := c.fetch(ctx, key)

	c.mu.Lock()
	el, stillCached := c.entries[k]
	if stillCached && el.Value.(*entry[V]).call != cl {
		stillCached = false
	}
	if err != nil {
		c.observe(Observer.CacheFetchError)
		if stillCached {
			c.removeLocked(el)
		}
	} else if stillCached {
		e := el.Value.(*entry[V])
		e.resolved = true
		e.storedAt = c.cfg.Now()
	}
	c.mu.Unlock()

	cl.val, cl.err = val, err
	close(cl.done)
}

// lookupLocked returns the live call for k and marks it most recently used.
// Expired resolved entries are removed and reported as a miss.
func (c *ReadThrough[K, V]) lookupLocked(k string) (*call[V], bool) {
	el, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry[V])
	if e.resolved && c.cfg.TTL > 0 && c.cfg.Now().Sub(e.storedAt) >= c.cfg.TTL {
		c.removeLocked(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.call, true
}

func (c *ReadThrough[K, V]) insertLocked(k string, cl *call[V]) {
	if el, ok := c.entries[k]; ok {
		e := el.Value.(*entry[V])
		e.call = cl
		e.resolved = false
		e.storedAt = c.cfg.Now()
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry[V]{key: k, call: cl, storedAt: c.cfg.Now()})
	c.entries[k] = el
	for c.order.Len() > c.cfg.Capacity {
		oldest := c.order.Back()
		c.removeLocked(oldest)
		c.observe(Observer.CacheEviction)
	}
}

func (c *ReadThrough[K, V]) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry[V]).key)
}

func (c *ReadThrough[K, V]) observe(event func(Observer, string)) {
	if c.cfg.Observer != nil {
		event(c.cfg.Observer, c.cfg.Name)
	}
}

// KeyOf serializes a key: primitives via fmt, everything else as canonical JSON.
func KeyOf(key any) (string, error) {
	switch v := key.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	switch reflect.ValueOf(key).Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprint(key), nil
	}
	b, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("cache key %T: %w", key, err)
	}
	return string(b), nil
}
