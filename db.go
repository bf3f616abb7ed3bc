// Package colasst implements an embedded ordered key/value store built
// around a write-optimized, cache-oblivious multi-level SST index
// (internal/sst): a Bε-tree/COLA-style layered array with fan-out B and
// ε≈½, fronted by an append-only, optionally compressed value log
// (internal/valuelog).
//
// A Database is a directory of shards (internal/shard). Writes land in
// the active shard; when that shard's SST reports itself willfull, the
// database rolls to a fresh one and keeps the exhausted shard around for
// reads. Scan fans out across every shard's InOne output and merges them
// into one sorted, deduplicated stream, newest shard winning ties. Open
// holds an exclusive lock on a LOCK file for the database's lifetime.
package colasst

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"github.com/colasst/colasst/internal/cache"
	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/shard"
	"github.com/colasst/colasst/internal/sst"
	"github.com/colasst/colasst/internal/stats"
	"github.com/colasst/colasst/internal/vfs"
)

// shardBackend is the subset of *shard.Shard the database façade drives.
// It exists so tests can substitute a shard that reports Willfull on
// demand, without driving a real SST through its full-scale capacity —
// exercising the roll-to-a-new-shard path without millions of inserts.
type shardBackend interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Get(key []byte) ([]byte, bool, error)
	Willfull() bool
	InOne() ([]sst.Item, error)
	ReadAt(offset uint64) ([]byte, error)
	Close() error
}

// Common errors returned by Database operations.
var (
	ErrDBClosed   = errors.New("colasst: database is closed")
	ErrDBNotFound = errors.New("colasst: database directory not found")
)

// currentFileName marks a directory as an initialized database and
// records the id of the newest (active) shard.
const currentFileName = "CURRENT"

// lockFileName is held exclusively for the lifetime of an open Database,
// so a second Open against the same directory from this process (or, on
// platforms where the lock is advisory across processes, another one)
// fails fast instead of corrupting shard state through concurrent access.
const lockFileName = "LOCK"

// Database is the main entry point: a directory of shards reached
// through Put, Get, Delete, and Scan.
type Database struct {
	mu sync.RWMutex

	dir        string
	fs         vfs.FS
	opts       *Options
	logger     Logger
	stats      *stats.Stats
	blockCache *cache.LRUCache // shared across every shard's SST; nil disables caching
	lock       io.Closer       // held for the database's lifetime
	shards     []shardBackend  // oldest first; shards[len-1] is active
	nextID     int
	closed     bool
}

// Open opens (or creates) a database at opts.Dir.
func Open(opts *Options) (*Database, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	fsys := opts.fs()
	logger := opts.logger()
	st := stats.New()

	exists := fsys.Exists(filepath.Join(opts.Dir, currentFileName))
	if !exists {
		if !opts.CreateIfMissing {
			return nil, ErrDBNotFound
		}
		if err := fsys.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("colasst: create %s: %w", opts.Dir, err)
		}
	}

	lock, err := fsys.Lock(filepath.Join(opts.Dir, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("colasst: lock %s: %w", opts.Dir, err)
	}

	var blockCache *cache.LRUCache
	if opts.BlockCacheBytes > 0 {
		blockCache = cache.NewLRUCache(opts.BlockCacheBytes)
	}

	db := &Database{
		dir:        opts.Dir,
		fs:         fsys,
		opts:       opts,
		logger:     logger,
		stats:      st,
		blockCache: blockCache,
		lock:       lock,
	}

	ids, err := db.discoverShardIDs()
	if err != nil {
		_ = lock.Close()
		return nil, err
	}
	if len(ids) == 0 {
		ids = []int{0}
	}
	for _, id := range ids {
		sh, err := shard.Open(fsys, opts.Dir, id, opts.Compression, st, logger, blockCache)
		if err != nil {
			db.closeShards()
			_ = lock.Close()
			return nil, fmt.Errorf("colasst: open shard %d: %w", id, err)
		}
		db.shards = append(db.shards, sh)
		if id >= db.nextID {
			db.nextID = id + 1
		}
	}

	if err := db.writeCurrent(); err != nil {
		db.closeShards()
		_ = lock.Close()
		return nil, err
	}

	logger.Infof(logging.NSDB+"opened database at %s with %d shard(s)", opts.Dir, len(db.shards))
	return db, nil
}

// discoverShardIDs lists "<id>.sst" files already present under dir.
func (db *Database) discoverShardIDs() ([]int, error) {
	names, err := db.fs.ListDir(db.dir)
	if err != nil {
		return nil, fmt.Errorf("colasst: list %s: %w", db.dir, err)
	}
	var ids []int
	for _, name := range names {
		var id int
		if n, err := fmt.Sscanf(name, "%d.sst", &id); err == nil && n == 1 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (db *Database) writeCurrent() error {
	f, err := db.fs.Create(filepath.Join(db.dir, currentFileName))
	if err != nil {
		return fmt.Errorf("colasst: write CURRENT: %w", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(fmt.Sprintf("%d\n", db.nextID-1))); err != nil {
		return fmt.Errorf("colasst: write CURRENT: %w", err)
	}
	return f.Sync()
}

func (db *Database) active() shardBackend {
	return db.shards[len(db.shards)-1]
}

// rollIfFull opens a fresh shard when the active one reports willfull,
// keeping the exhausted shard attached for reads. Must be called with
// db.mu held for writing.
func (db *Database) rollIfFull() error {
	if !db.active().Willfull() {
		return nil
	}
	id := db.nextID
	sh, err := shard.Open(db.fs, db.dir, id, db.opts.Compression, db.stats, db.logger, db.blockCache)
	if err != nil {
		return fmt.Errorf("colasst: roll to shard %d: %w", id, err)
	}
	db.shards = append(db.shards, sh)
	db.nextID++
	db.stats.Inc(stats.ShardRolls)
	db.logger.Infof(logging.NSDB+"rolled to shard %d", id)
	return db.writeCurrent()
}

// Put writes key/value, rolling to a fresh shard first if the active
// shard has reached capacity.
func (db *Database) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	if err := db.rollIfFull(); err != nil {
		return err
	}
	return db.active().Put(key, value)
}

// Delete writes a tombstone for key in the active shard.
func (db *Database) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	if err := db.rollIfFull(); err != nil {
		return err
	}
	return db.active().Delete(key)
}

// Get resolves key, checking shards from newest to oldest so the most
// recent write for a key always wins.
//
// A delete is only guaranteed to hide a key within the shard it was
// written to: the SST core's Get collapses "tombstoned" and "never
// inserted" into the same (ok=false) result (matching its documented
// not-found semantics), so a Database that has rolled shards cannot
// tell those two cases apart for an older shard once the active one
// reports absent. Scan does hide such a key: it merges every shard's
// InOne run with the newest shard winning, tombstones included.
func (db *Database) Get(key []byte) ([]byte, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, false, ErrDBClosed
	}
	for i := len(db.shards) - 1; i >= 0; i-- {
		v, ok, err := db.shards[i].Get(key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Statistics returns a point-in-time snapshot of every ticker counter
// aggregated across all shards.
func (db *Database) Statistics() map[string]uint64 {
	return db.stats.Snapshot()
}

// Close releases every shard's file descriptors.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	err := db.closeShards()
	if db.blockCache != nil {
		db.blockCache.Close()
	}
	if lockErr := db.lock.Close(); err == nil {
		err = lockErr
	}
	return err
}

func (db *Database) closeShards() error {
	var firstErr error
	for _, sh := range db.shards {
		if err := sh.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
