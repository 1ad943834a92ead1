package bcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// FileOptions describes a file-backed device.
//
//   - BlockSize: bytes per block (0 = take from the geometry sidecar)
//   - Blocks:    number of blocks (0 = take from the geometry sidecar)
//   - UseMmap:   map the file and serve transfers by memory copy
type FileOptions struct {
	BlockSize int
	Blocks    int64
	UseMmap   bool
}

// FileDevice is a block device stored in a regular file. Its geometry is
// persisted next to it in "<path>.config".
type FileDevice struct {
	mu        sync.RWMutex
	file      *os.File
	mmap      []byte // nil when mmap is disabled
	path      string
	blockSize int
	blocks    int64
	closed    bool
}

// OpenFileDevice opens or creates the device file at path.
func OpenFileDevice(path string, opts FileOptions) (*FileDevice, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if err := verifyOrWriteGeometry(geometryPath(path), &opts); err != nil {
		return nil, err
	}
	if opts.BlockSize <= 0 || opts.Blocks <= 0 {
		return nil, fmt.Errorf("%w: block size %d and blocks %d must be positive",
			ErrInvalidOptions, opts.BlockSize, opts.Blocks)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}

	size := int64(opts.BlockSize) * opts.Blocks
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat device %s: %w", path, err)
	}
	if st.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("allocate device %s: %w", path, err)
		}
	}

	d := &FileDevice{
		file:      f,
		path:      path,
		blockSize: opts.BlockSize,
		blocks:    opts.Blocks,
	}

	if opts.UseMmap {
		mmap, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap device %s: %w", path, err)
		}
		d.mmap = mmap
	}
	return d, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.check(p, off); err != nil {
		return 0, err
	}
	if d.mmap != nil {
		return copy(p, d.mmap[off:off+int64(len(p))]), nil
	}
	return d.file.ReadAt(p, off)
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.check(p, off); err != nil {
		return 0, err
	}
	if d.mmap != nil {
		return copy(d.mmap[off:off+int64(len(p))], p), nil
	}
	return d.file.WriteAt(p, off)
}

func (d *FileDevice) check(p []byte, off int64) error {
	if d.closed {
		return os.ErrClosed
	}
	if off < 0 || off+int64(len(p)) > d.Size() {
		return fmt.Errorf("offset %d+%d beyond %d bytes: %w", off, len(p), d.Size(), ErrOutOfRange)
	}
	return nil
}

// Size returns the capacity in bytes.
func (d *FileDevice) Size() int64 { return int64(d.blockSize) * d.blocks }

// BlockSize returns the persisted block size.
func (d *FileDevice) BlockSize() int { return d.blockSize }

// Blocks returns the persisted block count.
func (d *FileDevice) Blocks() int64 { return d.blocks }

// Sync forces written blocks to stable storage.
func (d *FileDevice) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return os.ErrClosed
	}
	if d.mmap != nil {
		if err := unix.Msync(d.mmap, unix.MS_SYNC); err != nil {
			return fmt.Errorf("msync %s: %w", d.path, err)
		}
		return nil
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", d.path, err)
	}
	return nil
}

// Close unmaps and closes the file. The first error wins.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	if d.mmap != nil {
		if err := unix.Munmap(d.mmap); err != nil {
			firstErr = fmt.Errorf("munmap %s: %w", d.path, err)
		}
		d.mmap = nil
	}
	if err := d.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", d.path, err)
	}
	return firstErr
}
