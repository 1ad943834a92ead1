package bcache

import (
	"encoding/binary"
	"log/slog"

	"github.com/cespare/xxhash/v2"
)

// HashFunc maps a block number to a bucket hash. The cache reduces the result
// modulo the bucket count.
type HashFunc func(blockno uint32) uint32

// Options configures a Cache.
//
//   - Buffers:         number of buffer records, fixed for the cache lifetime
//   - Buckets:         number of hash buckets (need not equal Buffers)
//   - BlockSize:       payload size of every buffer in bytes
//   - Hash:            bucket hash (nil = IdentityHash)
//   - Logger:          structured logger (nil = NoopLogger)
//   - PrefetchWorkers: concurrent fills issued by Prefetch (<=0 = 1, capped at Buffers)
//   - CheckOwner:      record the goroutine holding each buffer and make Write
//     and Release from any other goroutine fatal. Costs a stack capture per
//     Read, Write and Release; meant for tests.
type Options struct {
	Buffers         int
	Buckets         int
	BlockSize       int
	Hash            HashFunc
	Logger          *slog.Logger
	PrefetchWorkers int
	CheckOwner      bool
}

// DefaultOptions returns the configuration used when nothing else is known
// about the workload.
func DefaultOptions() Options {
	return Options{
		Buffers:         30,
		Buckets:         13,
		BlockSize:       512,
		Hash:            IdentityHash,
		PrefetchWorkers: 4,
	}
}

// IdentityHash buckets blocks by block number modulo the bucket count.
func IdentityHash(blockno uint32) uint32 { return blockno }

// XXHash spreads sequential block numbers across buckets.
func XXHash(blockno uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], blockno)
	return uint32(xxhash.Sum64(buf[:]))
}
