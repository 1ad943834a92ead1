package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	bcache "github.com/luhtfiimanal/go-bcache"
)

// Config holds all configuration options.
type Config struct {
	Buffers      int      `json:"buffers"`
	Buckets      int      `json:"buckets"`
	BlockSize    int      `json:"block_size"`
	Hash         string   `json:"hash"`
	IOPS         float64  `json:"iops"`
	Mmap         bool     `json:"mmap"`
	DeviceBlocks int64    `json:"device_blocks"`
	Devices      []string `json:"devices"`
	LogLevel     string   `json:"log_level"`
}

var (
	errConfigInvalid = errors.New("invalid config")
	errNoDevices     = errors.New("no device files given")
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	opts := bcache.DefaultOptions()
	return Config{
		Buffers:      opts.Buffers,
		Buckets:      opts.Buckets,
		BlockSize:    opts.BlockSize,
		Hash:         "identity",
		DeviceBlocks: 2048,
		LogLevel:     "warn",
	}
}

// LoadConfig resolves configuration with the following precedence (highest
// wins): defaults, the JSONC file named by --config, command-line flags.
// Positional arguments are device files, mounted as devices 0..n-1.
func LoadConfig(args []string, errOut io.Writer) (Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("bcache", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.StringP("config", "c", "", "JSONC config file")
	buffers := fs.IntP("buffers", "n", cfg.Buffers, "number of cache buffers")
	buckets := fs.IntP("buckets", "b", cfg.Buckets, "number of hash buckets")
	blockSize := fs.IntP("block-size", "s", cfg.BlockSize, "block size in bytes")
	hash := fs.String("hash", cfg.Hash, "bucket hash: identity or xxhash")
	iops := fs.Float64("iops", cfg.IOPS, "device transfers per second (0 = unlimited)")
	mmap := fs.Bool("mmap", cfg.Mmap, "memory-map device files")
	blocks := fs.Int64("device-blocks", cfg.DeviceBlocks, "blocks per newly created device file")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		fileCfg, err := loadConfigFile(*configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if fs.Changed("buffers") {
		cfg.Buffers = *buffers
	}
	if fs.Changed("buckets") {
		cfg.Buckets = *buckets
	}
	if fs.Changed("block-size") {
		cfg.BlockSize = *blockSize
	}
	if fs.Changed("hash") {
		cfg.Hash = *hash
	}
	if fs.Changed("iops") {
		cfg.IOPS = *iops
	}
	if fs.Changed("mmap") {
		cfg.Mmap = *mmap
	}
	if fs.Changed("device-blocks") {
		cfg.DeviceBlocks = *blocks
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.NArg() > 0 {
		cfg.Devices = fs.Args()
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", errConfigInvalid, err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	return cfg, nil
}

// mergeConfig overlays the non-zero fields of override onto base.
func mergeConfig(base, override Config) Config {
	if override.Buffers != 0 {
		base.Buffers = override.Buffers
	}
	if override.Buckets != 0 {
		base.Buckets = override.Buckets
	}
	if override.BlockSize != 0 {
		base.BlockSize = override.BlockSize
	}
	if override.Hash != "" {
		base.Hash = override.Hash
	}
	if override.IOPS != 0 {
		base.IOPS = override.IOPS
	}
	if override.Mmap {
		base.Mmap = true
	}
	if override.DeviceBlocks != 0 {
		base.DeviceBlocks = override.DeviceBlocks
	}
	if len(override.Devices) > 0 {
		base.Devices = override.Devices
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	return base
}

func validateConfig(cfg Config) error {
	if cfg.Buffers <= 0 || cfg.Buckets <= 0 || cfg.BlockSize <= 0 {
		return fmt.Errorf("%w: buffers, buckets and block_size must be positive", errConfigInvalid)
	}
	if _, err := hashFunc(cfg.Hash); err != nil {
		return err
	}
	if _, err := logLevel(cfg.LogLevel); err != nil {
		return err
	}
	if len(cfg.Devices) == 0 {
		return errNoDevices
	}
	return nil
}

func hashFunc(name string) (bcache.HashFunc, error) {
	switch strings.ToLower(name) {
	case "", "identity":
		return bcache.IdentityHash, nil
	case "xxhash":
		return bcache.XXHash, nil
	default:
		return nil, fmt.Errorf("%w: unknown hash %q", errConfigInvalid, name)
	}
}

func logLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", errConfigInvalid, err)
	}
	return lvl, nil
}
