package bcache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Prefetch reads the given blocks of dev into the cache and releases them,
// so that later Reads are served without a device transfer. At most
// Options.PrefetchWorkers fills run at once.
//
// Every in-flight fill holds a buffer, so the caller must leave at least
// Options.PrefetchWorkers buffers unreferenced (New caps the worker count at
// Options.Buffers). Running out of buffers is fatal as in Read, and the panic
// is raised on a worker goroutine where it cannot be recovered.
//
// Prefetch stops issuing fills once ctx is done and returns ctx.Err().
func (c *Cache) Prefetch(ctx context.Context, dev uint32, blocknos ...uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.options.PrefetchWorkers)

	for _, blockno := range blocknos {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.Release(c.Read(dev, blockno))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
