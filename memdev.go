package bcache

import (
	"fmt"
	"io"
	"sync"
)

// MemDevice is a fixed-size RAM disk.
type MemDevice struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemDevice returns a zero-filled RAM disk of size bytes.
func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{data: make([]byte, size)}
}

// NewMemDeviceFrom wraps data without copying it.
func NewMemDeviceFrom(data []byte) *MemDevice {
	return &MemDevice{data: data}
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if off < 0 || off >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, fmt.Errorf("offset %d+%d beyond %d bytes: %w", off, len(p), len(d.data), ErrOutOfRange)
	}
	return copy(d.data[off:], p), nil
}

// Size returns the capacity in bytes.
func (d *MemDevice) Size() int64 {
	return int64(len(d.data))
}
