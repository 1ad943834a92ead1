package bcache

// bget returns the buffer for (dev, blockno), sleep-locked by the caller.
// It either finds the cached buffer or reclaims an unreferenced one.
func (c *Cache) bget(dev, blockno uint32) *Buf {
	owner := c.caller()
	index := c.bucketFor(blockno)
	h := &c.buckets[index]

	// Fast path: only the target bucket lock.
	h.mu.Lock()
	if i := h.lookup(c.bufs, dev, blockno); i != -1 {
		b := c.hit(h, i)
		h.mu.Unlock()
		b.lock.acquire(owner)
		return b
	}
	h.mu.Unlock()

	// Slow path. Another goroutine may have cached the block since the
	// bucket lock was dropped, so the scan is repeated under both locks.
	c.mu.Lock()
	h.mu.Lock()
	if i := h.lookup(c.bufs, dev, blockno); i != -1 {
		b := c.hit(h, i)
		h.mu.Unlock()
		c.mu.Unlock()
		b.lock.acquire(owner)
		return b
	}

	cur := c.hand
	for range len(c.bufs) {
		cur = c.nextVictim(cur)
		b := &c.bufs[cur]

		// b.bucket only changes here, under c.mu.
		old := b.bucket
		nested := old != -1 && old != index
		if nested {
			c.buckets[old].mu.Lock()
		}
		if b.refcnt != 0 {
			if nested {
				c.buckets[old].mu.Unlock()
			}
			continue
		}

		oldDev, oldBlockno := b.dev, b.blockno
		if old != -1 {
			c.buckets[old].unlink(c.bufs, cur)
		}
		b.dev = dev
		b.blockno = blockno
		b.valid = false
		b.refcnt = 1
		b.bucket = index
		h.pushFront(c.bufs, cur)
		c.hand = cur

		if nested {
			c.buckets[old].mu.Unlock()
		}
		h.mu.Unlock()
		c.mu.Unlock()

		c.statMisses.Add(1)
		c.logReclaim(b, oldDev, oldBlockno, old != -1)
		b.lock.acquire(owner)
		return b
	}

	h.mu.Unlock()
	c.mu.Unlock()
	c.fatal("bget", ErrNoBuffers)
	return nil
}

// hit takes a reference on slot i and moves it to the head of h. The caller
// holds h.mu.
func (c *Cache) hit(h *bucket, i int) *Buf {
	b := &c.bufs[i]
	b.refcnt++
	h.promote(c.bufs, i)
	c.statHits.Add(1)
	return b
}

// caller identifies the calling goroutine when Options.CheckOwner is set.
func (c *Cache) caller() uint64 {
	if !c.options.CheckOwner {
		return 0
	}
	return goroutineID()
}
