package bcache

// Read returns the buffer for block blockno of device dev, held exclusively
// by the caller and filled from the device if it was not already valid.
//
// Read blocks while another goroutine holds the buffer. It panics with
// ErrNoBuffers when every buffer is referenced, and with the device error when
// the fill fails.
func (c *Cache) Read(dev, blockno uint32) *Buf {
	b := c.bget(dev, blockno)
	if b.valid {
		return b
	}
	if err := c.disk.ReadBlock(dev, blockno, b.data); err != nil {
		c.Release(b)
		c.fatal("bread", err)
	}
	b.valid = true
	c.statFills.Add(1)
	c.log.Debug("block filled", "dev", dev, "blockno", blockno, "slot", b.slot)
	return b
}

// Write synchronously writes b's payload to its device. The caller must hold
// b. With Options.CheckOwner set, the caller must also be the goroutine that
// read b.
func (c *Cache) Write(b *Buf) {
	if !b.lock.heldBy(c.caller()) {
		c.fatal("bwrite", ErrNotHeld)
	}
	if err := c.disk.WriteBlock(b.dev, b.blockno, b.data); err != nil {
		c.fatal("bwrite", err)
	}
	c.statWrites.Add(1)
}

// Release gives up the caller's hold on b. b must not be used afterwards.
// With Options.CheckOwner set, only the goroutine that read b may release it.
func (c *Cache) Release(b *Buf) {
	if !b.lock.heldBy(c.caller()) {
		c.fatal("brelse", ErrNotHeld)
	}
	b.lock.release()

	h := &c.buckets[b.bucket]
	h.mu.Lock()
	b.refcnt--
	h.mu.Unlock()
}

// Pin takes an extra reference on b so it cannot be reclaimed, without
// holding it. Typically called while b is held.
func (c *Cache) Pin(b *Buf) {
	h := &c.buckets[b.bucket]
	h.mu.Lock()
	b.refcnt++
	h.mu.Unlock()
}

// Unpin drops a reference taken by Pin.
func (c *Cache) Unpin(b *Buf) {
	h := &c.buckets[b.bucket]
	h.mu.Lock()
	if b.refcnt == 0 {
		h.mu.Unlock()
		c.fatal("bunpin", ErrRefcountUnderflow)
	}
	b.refcnt--
	h.mu.Unlock()
}
