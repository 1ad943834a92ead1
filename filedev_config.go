package bcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// persistedGeometry is the part of FileOptions that fixes the file layout.
type persistedGeometry struct {
	BlockSize int   `json:"block_size"`
	Blocks    int64 `json:"blocks"`
}

func geometryPath(base string) string { return base + ".config" }

// verifyOrWriteGeometry loads an existing geometry sidecar and fills opts
// from it, or writes one from opts when none exists. Explicit options that
// disagree with the persisted geometry are an error.
func verifyOrWriteGeometry(path string, opts *FileOptions) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if opts.BlockSize <= 0 || opts.Blocks <= 0 {
			return fmt.Errorf("%w: new device needs block size and blocks", ErrInvalidOptions)
		}
		out, err := json.MarshalIndent(persistedGeometry{
			BlockSize: opts.BlockSize,
			Blocks:    opts.Blocks,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode geometry: %w", err)
		}
		if err := atomic.WriteFile(path, bytes.NewReader(append(out, '\n'))); err != nil {
			return fmt.Errorf("write geometry %s: %w", path, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read geometry %s: %w", path, err)
	}

	// The sidecar may have been edited by hand; accept comments and
	// trailing commas.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("parse geometry %s: %w", path, err)
	}
	var have persistedGeometry
	if err := json.Unmarshal(standardized, &have); err != nil {
		return fmt.Errorf("decode geometry %s: %w", path, err)
	}

	if opts.BlockSize != 0 && opts.BlockSize != have.BlockSize {
		return fmt.Errorf("%w: block size %d, persisted %d", ErrGeometryMismatch, opts.BlockSize, have.BlockSize)
	}
	if opts.Blocks != 0 && opts.Blocks != have.Blocks {
		return fmt.Errorf("%w: blocks %d, persisted %d", ErrGeometryMismatch, opts.Blocks, have.Blocks)
	}
	opts.BlockSize = have.BlockSize
	opts.Blocks = have.Blocks
	return nil
}
