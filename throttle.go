package bcache

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedDisk caps the number of block transfers per second issued to an
// underlying Disk. It is useful for modelling slow devices.
type RateLimitedDisk struct {
	inner   Disk
	limiter *rate.Limiter
}

// NewRateLimitedDisk allows iops transfers per second, with bursts of burst.
// iops <= 0 disables limiting.
func NewRateLimitedDisk(inner Disk, iops float64, burst int) *RateLimitedDisk {
	limit := rate.Inf
	if iops > 0 {
		limit = rate.Limit(iops)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedDisk{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (d *RateLimitedDisk) ReadBlock(dev, blockno uint32, p []byte) error {
	if err := d.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return d.inner.ReadBlock(dev, blockno, p)
}

func (d *RateLimitedDisk) WriteBlock(dev, blockno uint32, p []byte) error {
	if err := d.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return d.inner.WriteBlock(dev, blockno, p)
}
