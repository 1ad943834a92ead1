package bcache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Cache is a fixed pool of block buffers shared by every goroutine of the
// process. Construct it once with New and pass it to every client.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex // allocation lock, taken before any bucket lock
	hand    int        // last reclamation victim; guarded by mu
	bufs    []Buf      // arena, never resized
	buckets []bucket
	disk    Disk
	hash    HashFunc
	log     *slog.Logger
	options Options

	statHits   atomic.Uint64 // lookups satisfied by a cached buffer
	statMisses atomic.Uint64 // lookups that reclaimed a buffer
	statFills  atomic.Uint64 // device reads
	statWrites atomic.Uint64 // device writes
}

// New creates a cache of opts.Buffers buffers backed by disk.
func New(disk Disk, opts Options) (*Cache, error) {
	if disk == nil {
		return nil, fmt.Errorf("%w: nil disk", ErrInvalidOptions)
	}
	if opts.Buffers <= 0 || opts.Buckets <= 0 || opts.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: buffers=%d buckets=%d block size=%d must be positive",
			ErrInvalidOptions, opts.Buffers, opts.Buckets, opts.BlockSize)
	}
	if opts.Hash == nil {
		opts.Hash = IdentityHash
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.PrefetchWorkers <= 0 {
		opts.PrefetchWorkers = 1
	}
	// Each in-flight fill holds a buffer.
	opts.PrefetchWorkers = min(opts.PrefetchWorkers, opts.Buffers)

	c := &Cache{
		bufs:    make([]Buf, opts.Buffers),
		buckets: make([]bucket, opts.Buckets),
		disk:    disk,
		hash:    opts.Hash,
		log:     opts.Logger,
		options: opts,
	}

	// One backing array keeps the payloads contiguous.
	data := make([]byte, opts.Buffers*opts.BlockSize)
	for i := range c.bufs {
		b := &c.bufs[i]
		b.slot = i
		b.bucket = -1
		b.down = -1
		b.data = data[i*opts.BlockSize : (i+1)*opts.BlockSize : (i+1)*opts.BlockSize]
		b.lock.init()
	}
	linkRing(c.bufs)

	for i := range c.buckets {
		c.buckets[i].head = -1
	}

	c.log.Debug("bcache initialised",
		"buffers", opts.Buffers,
		"buckets", opts.Buckets,
		"block_size", opts.BlockSize,
	)
	return c, nil
}

func (c *Cache) bucketFor(blockno uint32) int {
	return int(c.hash(blockno) % uint32(len(c.buckets)))
}
