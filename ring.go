package bcache

// The eviction ring threads Buf.next through every slot: 0 -> 1 -> ... ->
// n-1 -> 0. The links never change after linkRing; only the hand moves, and
// only under the allocation lock.

func linkRing(bufs []Buf) {
	for i := range bufs {
		bufs[i].next = (i + 1) % len(bufs)
	}
}

// nextVictim returns the ring position after prev.
func (c *Cache) nextVictim(prev int) int {
	return c.bufs[prev].next
}

// Hand returns the slot of the most recent reclamation victim. A new scan
// starts at the slot after it.
func (c *Cache) Hand() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hand
}
