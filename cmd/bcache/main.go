// bcache is an interactive shell over a block cache backed by device files.
//
// Usage:
//
//	bcache [flags] <device-file>...
//
// Each device file is mounted as device 0, 1, ... in the order given and is
// created if missing.
//
// Flags:
//
//	-c, --config         JSONC config file
//	-n, --buffers        Number of cache buffers
//	-b, --buckets        Number of hash buckets
//	-s, --block-size     Block size in bytes
//	    --hash           Bucket hash: identity or xxhash
//	    --iops           Device transfers per second (0 = unlimited)
//	    --mmap           Memory-map device files
//	    --device-blocks  Blocks per newly created device file
//	    --log-level      debug, info, warn or error
//
// Commands (in REPL):
//
//	read <dev> <blk>            Read a block and hold it
//	show <dev> <blk>            Hex dump a held block
//	put <dev> <blk> <text>      Copy text into a held block
//	write <dev> <blk>           Write a held block through to its device
//	release <dev> <blk>         Release a held block
//	pin <dev> <blk>             Pin a held block
//	unpin <dev> <blk>           Drop one pin
//	prefetch <dev> <blk> [n]    Read ahead n blocks (default 8, at most the buffer count)
//	cached <dev>                List cached block numbers
//	stats                       Show cache counters
//	help                        Show this help
//	exit / quit / q             Exit
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	bcache "github.com/luhtfiimanal/go-bcache"
)

func main() {
	err := run(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		return err
	}

	lvl, _ := logLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	devs, files, err := mountDevices(cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, f := range files {
			if err := f.Close(); err != nil {
				logger.Error("close device", "error", err)
			}
		}
	}()

	hash, _ := hashFunc(cfg.Hash)
	var disk bcache.Disk = devs
	if cfg.IOPS > 0 {
		disk = bcache.NewRateLimitedDisk(devs, cfg.IOPS, 1)
	}

	c, err := bcache.New(disk, bcache.Options{
		Buffers:         cfg.Buffers,
		Buckets:         cfg.Buckets,
		BlockSize:       cfg.BlockSize,
		Hash:            hash,
		Logger:          logger,
		PrefetchWorkers: bcache.DefaultOptions().PrefetchWorkers,
	})
	if err != nil {
		return err
	}

	r := newREPL(c, files, os.Stdout)
	return r.Run()
}

// mountDevices opens every configured device file and mounts it.
func mountDevices(cfg Config) (*bcache.Devices, []*bcache.FileDevice, error) {
	devs := bcache.NewDevices(cfg.BlockSize)
	files := make([]*bcache.FileDevice, 0, len(cfg.Devices))

	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	for i, path := range cfg.Devices {
		opts := bcache.FileOptions{BlockSize: cfg.BlockSize, UseMmap: cfg.Mmap}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			opts.Blocks = cfg.DeviceBlocks
		}
		f, err := bcache.OpenFileDevice(path, opts)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		if err := devs.Mount(uint32(i), f); err != nil {
			closeAll()
			return nil, nil, err
		}
	}
	return devs, files, nil
}
