package bcache

import (
	"errors"
	"fmt"
)

// Fatal conditions. They are only ever delivered through a panic.
var (
	ErrNoBuffers         = errors.New("no buffers")
	ErrNotHeld           = errors.New("buffer not held")
	ErrRefcountUnderflow = errors.New("refcount underflow")
)

// Recoverable errors returned by constructors and devices.
var (
	ErrInvalidOptions   = errors.New("invalid options")
	ErrNoDevice         = errors.New("no such device")
	ErrDeviceBusy       = errors.New("device already mounted")
	ErrOutOfRange       = errors.New("block out of range")
	ErrGeometryMismatch = errors.New("device geometry mismatch")
)

// fatal logs and panics. Callers must have released every bucket and
// allocation lock they hold.
func (c *Cache) fatal(op string, err error) {
	err = fmt.Errorf("%s: %w", op, err)
	c.log.Error("bcache fatal", "op", op, "error", err)
	panic(err)
}
