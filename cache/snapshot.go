package cache

import (
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
)

// Snapshot is a point in time copy of the cache content.
type Snapshot struct {
	Pools   map[derivation.Request][]instance.FactorInstance
	Cursors map[derivation.Request]uint32
}

// Snapshot copies the pools and cursors of the cache.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Pools:   make(map[derivation.Request][]instance.FactorInstance, len(c.pools)),
		Cursors: make(map[derivation.Request]uint32, len(c.cursors)),
	}
	for r, pool := range c.pools {
		if pool.Len() > 0 {
			s.Pools[r] = pool.All()
		}
	}
	for r, cursor := range c.cursors {
		s.Cursors[r] = cursor
	}
	return s
}

// Restore returns a cache holding the content of s.
func Restore(s Snapshot) *Cache {
	c := New()
	for _, items := range s.Pools {
		c.insert(items)
	}
	for r, cursor := range s.Cursors {
		if cursor > c.cursors[r] {
			c.cursors[r] = cursor
		}
	}
	return c
}
