// Package cache implements the pool of derived but unused factor instances
// shared by the derivation flows of a wallet session.
//
// Instances are grouped by the abstract derivation request they answer.
// Loading from the cache consumes the returned instances, so the same
// instance is never handed out twice. The cache also tracks, per request,
// the next offset to derive from and guarantees at most one holder per
// request at a time via Acquire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
)

// ErrKeyContended is returned by Acquire when a request key could not be
// locked before the context expired.
var ErrKeyContended = errors.New("cache: request key contended")

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	pools   map[derivation.Request]*instance.Set
	cursors map[derivation.Request]uint32

	locksMu sync.Mutex
	locks   map[derivation.Request]*semaphore.Weighted
}

// New returns a cache whose pools are seeded with the given instances,
// grouped by the request each of them answers.
func New(seed ...instance.FactorInstance) *Cache {
	c := &Cache{
		pools:   make(map[derivation.Request]*instance.Set),
		cursors: make(map[derivation.Request]uint32),
		locks:   make(map[derivation.Request]*semaphore.Weighted),
	}
	c.insert(seed)
	return c
}

// Load consumes the whole pool of every request. Each request is evaluated
// independently and an empty or unknown pool is reported as a miss.
func (c *Cache) Load(requests ...derivation.Request) *LoadOutcome {
	quantities := make(map[derivation.Request]int, len(requests))
	for _, r := range requests {
		quantities[r] = -1
	}
	return c.take(dedup(requests), quantities)
}

// Take consumes, for every request, up to the given quantity of instances
// in derivation order. A request is satisfied once its full quantity was
// found.
func (c *Cache) Take(quantities map[derivation.Request]int) *LoadOutcome {
	requests := make([]derivation.Request, 0, len(quantities))
	for r := range quantities {
		requests = append(requests, r)
	}
	slices.SortFunc(requests, derivation.Request.Compare)
	return c.take(requests, quantities)
}

func (c *Cache) take(
	requests []derivation.Request,
	quantities map[derivation.Request]int,
) *LoadOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome := &LoadOutcome{
		requests: requests,
		wanted:   quantities,
		found:    make(map[derivation.Request][]instance.FactorInstance, len(requests)),
	}
	for _, r := range requests {
		pool, ok := c.pools[r]
		if !ok {
			continue
		}
		if got := pool.Take(quantities[r]); len(got) > 0 {
			outcome.found[r] = got
		}
		if pool.Len() == 0 {
			delete(c.pools, r)
		}
	}
	return outcome
}

// Peek returns the pool of a request without consuming it.
func (c *Cache) Peek(r derivation.Request) []instance.FactorInstance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pool, ok := c.pools[r]
	if !ok {
		return nil
	}
	return pool.All()
}

// Insert adds the instances to the pools of their requests, skipping the
// ones already pooled, and advances cursors past them. Pools stay sorted by
// index. It returns how many
// instances were added.
func (c *Cache) Insert(items ...instance.FactorInstance) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.insert(items)
}

func (c *Cache) insert(items []instance.FactorInstance) int {
	added := 0
	touched := make(map[derivation.Request]*instance.Set)
	for _, fi := range items {
		r := fi.Request()
		pool, ok := c.pools[r]
		if !ok {
			pool = instance.NewSet()
			c.pools[r] = pool
		}
		if pool.Add(fi) > 0 {
			added++
			touched[r] = pool
		}
		c.advance(r, fi.Path.Index)
	}
	// Pools are handed out from the lowest index, whatever the order
	// instances came back in.
	for _, pool := range touched {
		pool.SortFunc(instance.CompareIndex)
	}
	return added
}

// Advance moves the cursors of the paths' requests past the paths, without
// pooling anything. Used for instances derived and consumed right away.
func (c *Cache) Advance(paths ...derivation.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range paths {
		c.advance(p.InKeySpace(), p.Index)
	}
}

func (c *Cache) advance(r derivation.Request, index derivation.CAP26Index) {
	if next := index.Offset() + 1; next > c.cursors[r] {
		c.cursors[r] = next
	}
}

// NextOffset returns the offset fresh instances for r should be derived
// from: the cursor of r, but never below floor.
func (c *Cache) NextOffset(r derivation.Request, floor uint32) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return max(c.cursors[r], floor)
}

// Len returns the number of pooled instances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, pool := range c.pools {
		n += pool.Len()
	}
	return n
}

// Requests returns, in canonical order, the requests with a non empty pool.
func (c *Cache) Requests() []derivation.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]derivation.Request, 0, len(c.pools))
	for r, pool := range c.pools {
		if pool.Len() > 0 {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, derivation.Request.Compare)
	return out
}

// Acquire locks the given request keys, in canonical order, so that no other
// holder can derive for them until release is called. If ctx expires while
// waiting, the keys already locked are released and ErrKeyContended is
// returned.
func (c *Cache) Acquire(ctx context.Context, requests []derivation.Request) (func(), error) {
	keys := dedup(requests)
	slices.SortFunc(keys, derivation.Request.Compare)

	held := make([]*semaphore.Weighted, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
		held = nil
	}

	for _, r := range keys {
		lock := c.lockFor(r)
		if err := lock.Acquire(ctx, 1); err != nil {
			release()
			return nil, fmt.Errorf("%w: %s: %w", ErrKeyContended, r, err)
		}
		held = append(held, lock)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (c *Cache) lockFor(r derivation.Request) *semaphore.Weighted {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	lock, ok := c.locks[r]
	if !ok {
		lock = semaphore.NewWeighted(1)
		c.locks[r] = lock
	}
	return lock
}

func dedup(requests []derivation.Request) []derivation.Request {
	seen := make(map[derivation.Request]struct{}, len(requests))
	out := make([]derivation.Request, 0, len(requests))
	for _, r := range requests {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
