package bench_test

import (
	"math/rand"
	"testing"

	bcache "github.com/luhtfiimanal/go-bcache"
)

// prepareStores fills an SQLite disk with total random blocks and returns a
// cache of the given size over it.
func prepareStores(b *testing.B, total uint32, buffers int) (*bcache.Cache, *sqliteDisk) {
	b.Helper()
	c, disk := newSQLiteCache(b, total, buffers)
	r := rand.New(rand.NewSource(7))
	for blk := uint32(0); blk < total; blk++ {
		if err := disk.WriteBlock(0, blk, randomBlock(r)); err != nil {
			b.Fatalf("populate: %v", err)
		}
	}
	return c, disk
}

// BenchmarkReadHot reads a working set that fits in the cache.
func BenchmarkReadHot(b *testing.B) {
	const hot = 16
	c, disk := prepareStores(b, 1024, 30)
	p := make([]byte, blockSize)

	b.Run("bcache", func(bb *testing.B) {
		for i := 0; i < bb.N; i++ {
			c.Release(c.Read(0, uint32(i%hot)))
		}
	})

	b.Run("sqlite", func(bb *testing.B) {
		for i := 0; i < bb.N; i++ {
			if err := disk.ReadBlock(0, uint32(i%hot), p); err != nil {
				bb.Fatalf("sqlite read: %v", err)
			}
		}
	})
}

// BenchmarkReadRandom reads uniformly over a set much larger than the cache,
// so most reads reclaim a buffer.
func BenchmarkReadRandom(b *testing.B) {
	const total = 4096
	c, disk := prepareStores(b, total, 30)
	p := make([]byte, blockSize)
	indexRand := rand.New(rand.NewSource(42))

	b.Run("bcache", func(bb *testing.B) {
		for i := 0; i < bb.N; i++ {
			c.Release(c.Read(0, uint32(indexRand.Intn(total))))
		}
	})

	b.Run("sqlite", func(bb *testing.B) {
		for i := 0; i < bb.N; i++ {
			if err := disk.ReadBlock(0, uint32(indexRand.Intn(total)), p); err != nil {
				bb.Fatalf("sqlite read: %v", err)
			}
		}
	})
}

// BenchmarkReadParallel exercises the bucket locks from many goroutines.
func BenchmarkReadParallel(b *testing.B) {
	const hot = 8
	c, _ := prepareStores(b, 256, 30)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			c.Release(c.Read(0, uint32(r.Intn(hot))))
		}
	})
}
