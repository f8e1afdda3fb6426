package imagegen

import "sync"

// SeedCursor hands out caller-supplied seeds in order. It is safe for
// concurrent use but planning consumes it before any fan-out so that seed
// assignment follows shot order and job index.
type SeedCursor struct {
	mu    sync.Mutex
	seeds []int
	next  int
}

// NewSeedCursor returns a cursor over a copy of seeds.
func NewSeedCursor(seeds []int) *SeedCursor {
	return &SeedCursor{seeds: append([]int(nil), seeds...)}
}

// Next returns the next unused seed.
func (c *SeedCursor) Next() (int, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.seeds) {
		return 0, false
	}
	seed := c.seeds[c.next]
	c.next++
	return seed, true
}
