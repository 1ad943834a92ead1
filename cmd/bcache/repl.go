package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"

	bcache "github.com/luhtfiimanal/go-bcache"
)

type blockKey struct {
	dev, blockno uint32
}

func (k blockKey) String() string { return fmt.Sprintf("%d:%d", k.dev, k.blockno) }

// REPL is the interactive command loop. Buffers it holds are released on
// exit.
type REPL struct {
	cache  *bcache.Cache
	files  []*bcache.FileDevice
	out    io.Writer
	held   map[blockKey]*bcache.Buf
	pinned map[blockKey][]*bcache.Buf
	liner  *liner.State
}

var commands = []string{
	"read", "show", "put", "write", "release", "pin", "unpin",
	"prefetch", "cached", "stats", "help", "exit", "quit",
}

func newREPL(c *bcache.Cache, files []*bcache.FileDevice, out io.Writer) *REPL {
	return &REPL{
		cache:  c,
		files:  files,
		out:    out,
		held:   make(map[blockKey]*bcache.Buf),
		pinned: make(map[blockKey][]*bcache.Buf),
	}
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bcache_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	})

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}
	defer r.saveHistory()
	defer r.releaseAll()

	c := r.cache
	fmt.Fprintf(r.out, "bcache - %d buffers x %s (%s), %d buckets, %d device(s)\n",
		c.Buffers(), humanize.IBytes(uint64(c.BlockSize())),
		humanize.IBytes(uint64(c.Buffers()*c.BlockSize())), c.Buckets(), len(r.files))
	fmt.Fprintln(r.out, "Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("bcache> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)
		if r.exec(line) {
			fmt.Fprintln(r.out, "Bye!")
			return nil
		}
	}
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// exec runs one command line and reports whether the REPL should exit.
func (r *REPL) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		r.printHelp()
	case "read":
		err = r.cmdRead(args)
	case "show":
		err = r.cmdShow(args)
	case "put":
		err = r.cmdPut(args)
	case "write":
		err = r.cmdWrite(args)
	case "release":
		err = r.cmdRelease(args)
	case "pin":
		err = r.cmdPin(args)
	case "unpin":
		err = r.cmdUnpin(args)
	case "prefetch":
		err = r.cmdPrefetch(args)
	case "cached":
		err = r.cmdCached(args)
	case "stats":
		r.cmdStats()
	default:
		err = fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `Commands:
  read <dev> <blk>            Read a block and hold it
  show <dev> <blk>            Hex dump a held block
  put <dev> <blk> <text>      Copy text into a held block
  write <dev> <blk>           Write a held block through to its device
  release <dev> <blk>         Release a held block
  pin <dev> <blk>             Pin a held block
  unpin <dev> <blk>           Drop one pin
  prefetch <dev> <blk> [n]    Read ahead n blocks (default 8, at most the buffer count)
  cached <dev>                List cached block numbers
  stats                       Show cache counters
  exit / quit / q             Exit
`)
}

func parseUint32(s, what string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return uint32(v), nil
}

func parseKey(args []string, usage string) (blockKey, error) {
	if len(args) < 2 {
		return blockKey{}, fmt.Errorf("usage: %s", usage)
	}
	dev, err := parseUint32(args[0], "device")
	if err != nil {
		return blockKey{}, err
	}
	blk, err := parseUint32(args[1], "block")
	if err != nil {
		return blockKey{}, err
	}
	return blockKey{dev, blk}, nil
}

func (r *REPL) heldBuf(args []string, usage string) (blockKey, *bcache.Buf, error) {
	k, err := parseKey(args, usage)
	if err != nil {
		return k, nil, err
	}
	b, ok := r.held[k]
	if !ok {
		return k, nil, fmt.Errorf("block %s is not held (use 'read' first)", k)
	}
	return k, b, nil
}

func (r *REPL) cmdRead(args []string) error {
	k, err := parseKey(args, "read <dev> <blk>")
	if err != nil {
		return err
	}
	// Reading a block this shell already holds would wait forever.
	if _, ok := r.held[k]; ok {
		return fmt.Errorf("block %s is already held", k)
	}
	b := r.cache.Read(k.dev, k.blockno)
	r.held[k] = b
	fmt.Fprintf(r.out, "held %s in slot %d\n", k, b.Slot())
	return nil
}

func (r *REPL) cmdShow(args []string) error {
	_, b, err := r.heldBuf(args, "show <dev> <blk>")
	if err != nil {
		return err
	}
	fmt.Fprint(r.out, hex.Dump(b.Data()))
	return nil
}

func (r *REPL) cmdPut(args []string) error {
	_, b, err := r.heldBuf(args, "put <dev> <blk> <text>")
	if err != nil {
		return err
	}
	if len(args) < 3 {
		return errors.New("usage: put <dev> <blk> <text>")
	}
	n := copy(b.Data(), strings.Join(args[2:], " "))
	fmt.Fprintf(r.out, "copied %d bytes\n", n)
	return nil
}

func (r *REPL) cmdWrite(args []string) error {
	k, b, err := r.heldBuf(args, "write <dev> <blk>")
	if err != nil {
		return err
	}
	r.cache.Write(b)
	fmt.Fprintf(r.out, "wrote %s\n", k)
	return nil
}

func (r *REPL) cmdRelease(args []string) error {
	k, b, err := r.heldBuf(args, "release <dev> <blk>")
	if err != nil {
		return err
	}
	r.cache.Release(b)
	delete(r.held, k)
	fmt.Fprintf(r.out, "released %s\n", k)
	return nil
}

func (r *REPL) cmdPin(args []string) error {
	k, b, err := r.heldBuf(args, "pin <dev> <blk>")
	if err != nil {
		return err
	}
	r.cache.Pin(b)
	r.pinned[k] = append(r.pinned[k], b)
	fmt.Fprintf(r.out, "pinned %s (%d pin(s))\n", k, len(r.pinned[k]))
	return nil
}

func (r *REPL) cmdUnpin(args []string) error {
	k, err := parseKey(args, "unpin <dev> <blk>")
	if err != nil {
		return err
	}
	pins := r.pinned[k]
	if len(pins) == 0 {
		return fmt.Errorf("block %s is not pinned", k)
	}
	r.cache.Unpin(pins[len(pins)-1])
	if len(pins) == 1 {
		delete(r.pinned, k)
	} else {
		r.pinned[k] = pins[:len(pins)-1]
	}
	fmt.Fprintf(r.out, "unpinned %s\n", k)
	return nil
}

func (r *REPL) cmdPrefetch(args []string) error {
	k, err := parseKey(args, "prefetch <dev> <blk> [n]")
	if err != nil {
		return err
	}
	n := uint32(min(8, r.cache.Buffers()))
	if len(args) > 2 {
		if n, err = parseUint32(args[2], "count"); err != nil {
			return err
		}
	}
	// Blocks past the cache size would only evict the earlier ones.
	if bufs := r.cache.Buffers(); uint64(n) > uint64(bufs) {
		return fmt.Errorf("count %d exceeds the %d cache buffers", n, bufs)
	}
	if uint64(k.blockno)+uint64(n) > math.MaxUint32+1 {
		return fmt.Errorf("blocks %d+%d run past the last block number", k.blockno, n)
	}
	if need := r.cache.PrefetchWorkers(); r.cache.Buffers()-r.cache.Referenced() < need {
		return fmt.Errorf("prefetch needs %d unreferenced buffers; release or unpin some first", need)
	}
	blocks := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		if _, ok := r.held[blockKey{k.dev, k.blockno + i}]; ok {
			continue
		}
		blocks = append(blocks, k.blockno+i)
	}
	if err := r.cache.Prefetch(context.Background(), k.dev, blocks...); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "prefetched %d block(s)\n", len(blocks))
	return nil
}

func (r *REPL) cmdCached(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: cached <dev>")
	}
	dev, err := parseUint32(args[0], "device")
	if err != nil {
		return err
	}
	bm := r.cache.Cached(dev)
	fmt.Fprintf(r.out, "%d block(s): %v\n", bm.GetCardinality(), bm.ToArray())
	return nil
}

func (r *REPL) cmdStats() {
	st := r.cache.GetStats()
	fmt.Fprintf(r.out, "hits=%s misses=%s hit_ratio=%.1f%% fills=%s writes=%s referenced=%d/%d\n",
		humanize.Comma(int64(st.Hits)), humanize.Comma(int64(st.Misses)), st.HitRatio,
		humanize.Comma(int64(st.Fills)), humanize.Comma(int64(st.Writes)),
		r.cache.Referenced(), r.cache.Buffers())
}

// releaseAll drops every pin and hold taken by this shell.
func (r *REPL) releaseAll() {
	for k, pins := range r.pinned {
		for _, b := range pins {
			r.cache.Unpin(b)
		}
		delete(r.pinned, k)
	}
	for k, b := range r.held {
		r.cache.Release(b)
		delete(r.held, k)
	}
}
