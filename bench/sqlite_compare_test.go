package bench_test

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	_ "modernc.org/sqlite"

	bcache "github.com/luhtfiimanal/go-bcache"
)

const blockSize = 512

// sqliteDisk stores blocks as rows of an SQLite table. Blocks never written
// read back as zeros.
type sqliteDisk struct {
	db     *sql.DB
	get    *sql.Stmt
	put    *sql.Stmt
	blocks uint32
}

func openSQLiteDisk(tb testing.TB, blocks uint32) *sqliteDisk {
	tb.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE blocks (dev INTEGER, blockno INTEGER, data BLOB, PRIMARY KEY (dev, blockno));`); err != nil {
		tb.Fatalf("create table: %v", err)
	}
	get, err := db.Prepare(`SELECT data FROM blocks WHERE dev=? AND blockno=?;`)
	if err != nil {
		tb.Fatalf("prepare select: %v", err)
	}
	put, err := db.Prepare(`INSERT OR REPLACE INTO blocks (dev, blockno, data) VALUES (?, ?, ?);`)
	if err != nil {
		tb.Fatalf("prepare insert: %v", err)
	}
	return &sqliteDisk{db: db, get: get, put: put, blocks: blocks}
}

func (d *sqliteDisk) ReadBlock(dev, blockno uint32, p []byte) error {
	if blockno >= d.blocks {
		return fmt.Errorf("block %d: %w", blockno, bcache.ErrOutOfRange)
	}
	var data []byte
	err := d.get.QueryRow(dev, blockno).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		clear(p)
		return nil
	}
	if err != nil {
		return err
	}
	clear(p[copy(p, data):])
	return nil
}

func (d *sqliteDisk) WriteBlock(dev, blockno uint32, p []byte) error {
	if blockno >= d.blocks {
		return fmt.Errorf("block %d: %w", blockno, bcache.ErrOutOfRange)
	}
	_, err := d.put.Exec(dev, blockno, p)
	return err
}

func randomBlock(r *rand.Rand) []byte {
	p := make([]byte, blockSize)
	r.Read(p)
	return p
}

func newSQLiteCache(tb testing.TB, blocks uint32, buffers int) (*bcache.Cache, *sqliteDisk) {
	tb.Helper()
	disk := openSQLiteDisk(tb, blocks)
	opts := bcache.DefaultOptions()
	opts.Buffers = buffers
	opts.Buckets = 13
	opts.BlockSize = blockSize
	c, err := bcache.New(disk, opts)
	if err != nil {
		tb.Fatalf("new cache: %v", err)
	}
	return c, disk
}

// TestCompareWithSQLite writes blocks through the cache and checks that the
// table and later cached reads agree with what was written.
func TestCompareWithSQLite(t *testing.T) {
	const total = 200
	c, disk := newSQLiteCache(t, total, 30)
	r := rand.New(rand.NewSource(1))

	want := make([][]byte, total)
	for blk := uint32(0); blk < total; blk++ {
		want[blk] = randomBlock(r)
		b := c.Read(0, blk)
		copy(b.Data(), want[blk])
		c.Write(b)
		c.Release(b)
	}

	for i := 0; i < 100; i++ {
		blk := uint32(r.Intn(total))

		var row []byte
		if err := disk.get.QueryRow(0, blk).Scan(&row); err != nil {
			t.Fatalf("sqlite read %d: %v", blk, err)
		}
		if !bytes.Equal(row, want[blk]) {
			t.Fatalf("table mismatch for block %d", blk)
		}

		b := c.Read(0, blk)
		if !bytes.Equal(b.Data(), want[blk]) {
			c.Release(b)
			t.Fatalf("cache mismatch for block %d", blk)
		}
		c.Release(b)
	}

	st := c.GetStats()
	if st.Writes != total {
		t.Fatalf("writes = %d, want %d", st.Writes, total)
	}
}

// BenchmarkWrite compares write-through cost against a direct insert.
func BenchmarkWrite(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	payload := randomBlock(r)

	b.Run("bcache", func(bb *testing.B) {
		c, _ := newSQLiteCache(bb, 1024, 30)
		bb.ResetTimer()
		for i := 0; i < bb.N; i++ {
			buf := c.Read(0, uint32(i%1024))
			copy(buf.Data(), payload)
			c.Write(buf)
			c.Release(buf)
		}
	})

	b.Run("sqlite", func(bb *testing.B) {
		disk := openSQLiteDisk(bb, 1024)
		bb.ResetTimer()
		for i := 0; i < bb.N; i++ {
			if err := disk.WriteBlock(0, uint32(i%1024), payload); err != nil {
				bb.Fatalf("insert: %v", err)
			}
		}
	})
}
