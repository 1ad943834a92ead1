package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bcache "github.com/luhtfiimanal/go-bcache"
)

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer, *bcache.MemDevice) {
	t.Helper()

	mem := bcache.NewMemDevice(32 * 64)
	devs := bcache.NewDevices(64)
	require.NoError(t, devs.Mount(0, mem))

	opts := bcache.DefaultOptions()
	opts.Buffers = 4
	opts.Buckets = 3
	opts.BlockSize = 64
	c, err := bcache.New(devs, opts)
	require.NoError(t, err)

	var out bytes.Buffer
	return newREPL(c, nil, &out), &out, mem
}

func TestREPLReadPutWrite(t *testing.T) {
	r, out, mem := newTestREPL(t)

	for _, line := range []string{"read 0 3", "put 0 3 hello world", "write 0 3", "release 0 3"} {
		require.False(t, r.exec(line), line)
	}
	assert.NotContains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "copied 11 bytes")

	got := make([]byte, 11)
	_, err := mem.ReadAt(got, 3*64)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	assert.Equal(t, 0, r.cache.Referenced())
}

func TestREPLRefusesSecondHold(t *testing.T) {
	r, out, _ := newTestREPL(t)

	r.exec("read 0 1")
	out.Reset()
	r.exec("read 0 1")
	assert.Contains(t, out.String(), "already held")

	out.Reset()
	r.exec("show 0 2")
	assert.Contains(t, out.String(), "not held")
}

func TestREPLPinAndCached(t *testing.T) {
	r, out, _ := newTestREPL(t)

	r.exec("read 0 5")
	r.exec("pin 0 5")
	r.exec("release 0 5")
	assert.Equal(t, 1, r.cache.Referenced())

	out.Reset()
	r.exec("cached 0")
	assert.Equal(t, "1 block(s): [5]\n", out.String())

	r.exec("unpin 0 5")
	assert.Equal(t, 0, r.cache.Referenced())

	out.Reset()
	r.exec("unpin 0 5")
	assert.Contains(t, out.String(), "not pinned")
}

func TestREPLPrefetchAndStats(t *testing.T) {
	r, out, _ := newTestREPL(t)

	r.exec("prefetch 0 0 3")
	assert.Contains(t, out.String(), "prefetched 3 block(s)")

	out.Reset()
	r.exec("stats")
	assert.True(t, strings.HasPrefix(out.String(), "hits=0 misses=3"), out.String())
}

func TestREPLPrefetchNeedsFreeBuffers(t *testing.T) {
	r, out, _ := newTestREPL(t)
	require.Equal(t, 4, r.cache.PrefetchWorkers())

	r.exec("read 0 9")
	out.Reset()
	r.exec("prefetch 0 0 2")
	assert.Contains(t, out.String(), "needs 4 unreferenced buffers")
	assert.Equal(t, 1, r.cache.Referenced())

	r.exec("release 0 9")
	out.Reset()
	r.exec("prefetch 0 0 2")
	assert.Contains(t, out.String(), "prefetched 2 block(s)")
}

func TestREPLReleaseAll(t *testing.T) {
	r, _, _ := newTestREPL(t)

	r.exec("read 0 1")
	r.exec("read 0 2")
	r.exec("pin 0 2")
	require.Equal(t, 2, r.cache.Referenced())

	r.releaseAll()
	assert.Equal(t, 0, r.cache.Referenced())
	assert.Empty(t, r.held)
	assert.Empty(t, r.pinned)
}

func TestREPLCommandErrors(t *testing.T) {
	r, out, _ := newTestREPL(t)

	tests := []struct {
		line string
		want string
	}{
		{"bogus", "unknown command"},
		{"read 0", "usage: read"},
		{"read x 1", `invalid device "x"`},
		{"put 0 1", "not held"},
		{"cached", "usage: cached"},
		{"prefetch 0 0 4294967295", "exceeds the 4 cache buffers"},
		{"prefetch 0 4294967294 3", "run past the last block number"},
	}
	for _, tt := range tests {
		out.Reset()
		assert.False(t, r.exec(tt.line))
		assert.Contains(t, out.String(), tt.want, tt.line)
	}
	assert.True(t, r.exec("quit"))
}
