package bcache

import (
	"io"
	"log/slog"
)

// NoopLogger returns a logger that discards all output.
func NoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable
	}))
}

func (c *Cache) logReclaim(b *Buf, oldDev, oldBlockno uint32, wasAssigned bool) {
	if !wasAssigned {
		c.log.Debug("buffer assigned",
			"slot", b.slot,
			"dev", b.dev,
			"blockno", b.blockno,
		)
		return
	}
	c.log.Debug("buffer reclaimed",
		"slot", b.slot,
		"old_dev", oldDev,
		"old_blockno", oldBlockno,
		"dev", b.dev,
		"blockno", b.blockno,
	)
}
