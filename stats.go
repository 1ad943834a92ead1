package bcache

import "github.com/RoaringBitmap/roaring/v2"

// Stats holds cache counters. HitRatio is a percentage (0-100).
type Stats struct {
	Hits     uint64 // lookups served by a cached buffer
	Misses   uint64 // lookups that reclaimed a buffer
	Fills    uint64 // device reads
	Writes   uint64 // device writes
	HitRatio float64
}

// GetStats returns a snapshot of the counters without taking any lock.
func (c *Cache) GetStats() Stats {
	hits := c.statHits.Load()
	misses := c.statMisses.Load()
	total := hits + misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(hits) / float64(total) * 100.0
	}
	return Stats{
		Hits:     hits,
		Misses:   misses,
		Fills:    c.statFills.Load(),
		Writes:   c.statWrites.Load(),
		HitRatio: ratio,
	}
}

// ResetStats zeroes the counters.
func (c *Cache) ResetStats() {
	c.statHits.Store(0)
	c.statMisses.Store(0)
	c.statFills.Store(0)
	c.statWrites.Store(0)
}

// Buffers returns the number of buffer records.
func (c *Cache) Buffers() int { return len(c.bufs) }

// Buckets returns the number of hash buckets.
func (c *Cache) Buckets() int { return len(c.buckets) }

// PrefetchWorkers returns the number of fills Prefetch keeps in flight.
func (c *Cache) PrefetchWorkers() int { return c.options.PrefetchWorkers }

// BlockSize returns the payload size of every buffer.
func (c *Cache) BlockSize() int { return c.options.BlockSize }

// Cached returns the block numbers of dev currently mapped to a buffer,
// whether or not their contents have been read yet. Buckets are visited one
// at a time, so the result is not an atomic snapshot.
func (c *Cache) Cached(dev uint32) *roaring.Bitmap {
	bm := roaring.New()
	for i := range c.buckets {
		h := &c.buckets[i]
		h.mu.Lock()
		for j := h.head; j != -1; j = c.bufs[j].down {
			if c.bufs[j].dev == dev {
				bm.Add(c.bufs[j].blockno)
			}
		}
		h.mu.Unlock()
	}
	return bm
}

// Referenced returns the number of buffers with a non-zero reference count.
func (c *Cache) Referenced() int {
	n := 0
	for i := range c.buckets {
		h := &c.buckets[i]
		h.mu.Lock()
		for j := h.head; j != -1; j = c.bufs[j].down {
			if c.bufs[j].refcnt > 0 {
				n++
			}
		}
		h.mu.Unlock()
	}
	return n
}
