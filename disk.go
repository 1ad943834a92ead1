package bcache

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Disk transfers whole blocks between a device and a buffer payload. Both
// calls are synchronous. len(p) is always the cache block size.
type Disk interface {
	ReadBlock(dev, blockno uint32, p []byte) error
	WriteBlock(dev, blockno uint32, p []byte) error
}

// Device is a random-access block device. *os.File, *MemDevice and
// *FileDevice satisfy it.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

// Devices is a mount table routing device numbers to Devices. It implements
// Disk with block n of a device at byte offset n*blockSize.
type Devices struct {
	mu        sync.RWMutex
	blockSize int
	devs      map[uint32]Device
}

// NewDevices returns an empty mount table for blocks of blockSize bytes.
func NewDevices(blockSize int) *Devices {
	return &Devices{
		blockSize: blockSize,
		devs:      make(map[uint32]Device),
	}
}

// Mount attaches d as device number dev.
func (m *Devices) Mount(dev uint32, d Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devs[dev]; ok {
		return fmt.Errorf("mount %d: %w", dev, ErrDeviceBusy)
	}
	m.devs[dev] = d
	return nil
}

// Unmount detaches device number dev and returns it. Buffers still caching
// blocks of dev are not invalidated.
func (m *Devices) Unmount(dev uint32) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devs[dev]
	if !ok {
		return nil, fmt.Errorf("unmount %d: %w", dev, ErrNoDevice)
	}
	delete(m.devs, dev)
	return d, nil
}

// Device returns the device mounted as dev.
func (m *Devices) Device(dev uint32) (Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devs[dev]
	return d, ok
}

func (m *Devices) ReadBlock(dev, blockno uint32, p []byte) error {
	d, off, err := m.locate(dev, blockno, p)
	if err != nil {
		return err
	}
	n, err := d.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read dev %d block %d: %w", dev, blockno, err)
}

func (m *Devices) WriteBlock(dev, blockno uint32, p []byte) error {
	d, off, err := m.locate(dev, blockno, p)
	if err != nil {
		return err
	}
	if _, err := d.WriteAt(p, off); err != nil {
		return fmt.Errorf("write dev %d block %d: %w", dev, blockno, err)
	}
	return nil
}

func (m *Devices) locate(dev, blockno uint32, p []byte) (Device, int64, error) {
	if len(p) != m.blockSize {
		return nil, 0, fmt.Errorf("payload size mismatch: got %d want %d", len(p), m.blockSize)
	}
	d, ok := m.Device(dev)
	if !ok {
		return nil, 0, fmt.Errorf("dev %d: %w", dev, ErrNoDevice)
	}
	return d, int64(blockno) * int64(m.blockSize), nil
}
