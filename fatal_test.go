package bcache_test

import (
	"errors"
	"fmt"
	"testing"

	bcache "github.com/luhtfiimanal/go-bcache"
)

// Holding N distinct blocks in an N-buffer cache and asking for one more is
// a sizing defect, reported by panic.
func TestReadPanicsWhenEveryBufferIsReferenced(t *testing.T) {
	const n = 5
	devs := bcache.NewDevices(512)
	if err := devs.Mount(0, bcache.NewMemDevice(64*512)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	opts := bcache.DefaultOptions()
	opts.Buffers = n
	opts.Buckets = 2
	c, err := bcache.New(devs, opts)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	held := make([]*bcache.Buf, 0, n)
	for blk := uint32(0); blk < n; blk++ {
		held = append(held, c.Read(0, blk))
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("read of block %d with all buffers held did not panic", n)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, bcache.ErrNoBuffers) {
			t.Fatalf("unexpected panic value: %v", r)
		}
		for _, b := range held {
			c.Release(b)
		}
	}()
	c.Read(0, n)
}

func Example() {
	devs := bcache.NewDevices(512)
	devs.Mount(0, bcache.NewMemDevice(128*512))

	opts := bcache.DefaultOptions()
	opts.Buffers = 4
	opts.Buckets = 3
	c, err := bcache.New(devs, opts)
	if err != nil {
		panic(err)
	}

	b := c.Read(0, 7)
	copy(b.Data(), "hello")
	c.Write(b)
	c.Release(b)

	b = c.Read(0, 7)
	fmt.Println(string(b.Data()[:5]), b.Valid())
	c.Release(b)

	st := c.GetStats()
	fmt.Println(st.Hits, st.Misses, st.Fills, st.Writes)
	// Output:
	// hello true
	// 1 1 1 1
}
