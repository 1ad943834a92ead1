package bcache

import "sync"

// bucket is one slot of the hash directory. Its chain threads Buf.down
// through the arena, most recently used first. All methods require mu.
type bucket struct {
	mu   sync.Mutex
	head int // -1 when empty
}

// lookup returns the slot caching (dev, blockno), or -1.
func (h *bucket) lookup(bufs []Buf, dev, blockno uint32) int {
	for i := h.head; i != -1; i = bufs[i].down {
		if bufs[i].dev == dev && bufs[i].blockno == blockno {
			return i
		}
	}
	return -1
}

// unlink splices slot out of the chain by scanning for its slot id. It
// reports whether slot was found.
func (h *bucket) unlink(bufs []Buf, slot int) bool {
	prev := -1
	for i := h.head; i != -1; i = bufs[i].down {
		if bufs[i].slot != slot {
			prev = i
			continue
		}
		if prev == -1 {
			h.head = bufs[i].down
		} else {
			bufs[prev].down = bufs[i].down
		}
		bufs[i].down = -1
		return true
	}
	return false
}

func (h *bucket) pushFront(bufs []Buf, slot int) {
	bufs[slot].down = h.head
	h.head = slot
}

// promote moves slot to the head of the chain.
func (h *bucket) promote(bufs []Buf, slot int) {
	if h.head == slot {
		return
	}
	h.unlink(bufs, slot)
	h.pushFront(bufs, slot)
}

// slots returns the chain in order, head first.
func (h *bucket) slots(bufs []Buf) []int {
	var out []int
	for i := h.head; i != -1; i = bufs[i].down {
		out = append(out, i)
	}
	return out
}
