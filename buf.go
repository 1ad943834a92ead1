package bcache

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Buf is one cache slot. A Buf returned by Cache.Read is held exclusively by
// the caller until Cache.Release; Data and Valid must not be used outside
// that window.
type Buf struct {
	dev     uint32
	blockno uint32
	valid   bool // data reflects device contents
	data    []byte

	refcnt uint32 // holders + pins; guarded by the owning bucket lock
	bucket int    // owning bucket, -1 until first assignment
	slot   int    // stable arena index

	next int // eviction ring, fixed at construction
	down int // bucket chain, -1 terminates

	lock sleepLock
}

// Dev returns the device number the buffer currently caches.
func (b *Buf) Dev() uint32 { return b.dev }

// Blockno returns the block number the buffer currently caches.
func (b *Buf) Blockno() uint32 { return b.blockno }

// Data returns the block payload. The slice aliases the cache slot.
func (b *Buf) Data() []byte { return b.data }

// Valid reports whether Data holds the device contents.
func (b *Buf) Valid() bool { return b.valid }

// Slot returns the arena index of the buffer.
func (b *Buf) Slot() int { return b.slot }

// sleepLock is a FIFO ticket lock that parks waiters instead of spinning.
type sleepLock struct {
	mu      sync.Mutex
	cond    sync.Cond
	locked  bool
	owner   uint64 // holder's goroutine id, 0 when not tracked
	next    uint64 // next ticket to hand out
	serving uint64 // ticket allowed to own the lock
}

func (l *sleepLock) init() {
	l.cond.L = &l.mu
}

func (l *sleepLock) acquire(owner uint64) {
	l.mu.Lock()
	ticket := l.next
	l.next++
	for l.serving != ticket {
		l.cond.Wait()
	}
	l.locked = true
	l.owner = owner
	l.mu.Unlock()
}

func (l *sleepLock) release() {
	l.mu.Lock()
	l.locked = false
	l.owner = 0
	l.serving++
	l.cond.Broadcast()
	l.mu.Unlock()
}

// heldBy reports whether the lock is held by owner. With owner tracking off
// every caller passes 0, so any hold matches.
func (l *sleepLock) heldBy(owner uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked && l.owner == owner
}

// waiters returns the number of goroutines queued behind the current owner.
func (l *sleepLock) waiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := int(l.next - l.serving)
	if l.locked {
		n--
	}
	return n
}

// goroutineID parses the id of the calling goroutine from the header of its
// stack trace, "goroutine 18 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, _ := strconv.ParseUint(string(s), 10, 64)
	return id
}
