// Package bcache provides a fixed-size block buffer cache that sits between a
// filesystem layer and one or more block devices.
//
// The cache is both a cache and a per-block lock manager: every reader or
// writer of a device block goes through the single in-memory copy returned by
// Read, and holds it exclusively until Release.
//
// The library is organised into several files for clarity:
//
//	options.go  – configuration struct & defaults, bucket hash functions
//	cache.go    – constructor & core fields
//	buf.go      – buffer record & the sleep lock guarding its contents
//	bucket.go   – hash directory (per-bucket chains, MRU-first)
//	ring.go     – eviction ring & clock cursor
//	bget.go     – lookup-or-allocate engine
//	io.go       – read/write/release/pin operations
//	prefetch.go – bounded read-ahead
//	stats.go    – lightweight stats accessors & cached-block snapshots
//	errors.go   – sentinel errors & the fatal path
//	logger.go   – slog helpers
//	disk.go     – Disk interface & device mount table
//	memdev.go   – RAM-backed device
//	filedev.go  – file-backed device (optionally memory-mapped)
//	throttle.go – rate-limited Disk wrapper
//
// # Usage
//
//	devs := bcache.NewDevices(512)
//	devs.Mount(0, bcache.NewMemDevice(512*1024))
//	c, err := bcache.New(devs, bcache.DefaultOptions())
//	if err != nil {
//	    // invalid options
//	}
//	b := c.Read(0, 7)
//	b.Data()[0] = 'x'
//	c.Write(b)
//	c.Release(b)
//
// # Fatal conditions
//
// Misuse (writing or releasing a buffer that is not held, unpinning below
// zero) and capacity exhaustion (every buffer referenced) are programming or
// sizing defects. They panic with an error wrapping ErrNotHeld, ErrNoBuffers
// or ErrRefcountUnderflow and are not meant to be recovered.
package bcache
