// Package shard implements the "enclosing index" the SST layer's spec
// repeatedly defers to: one SST plus its value log, translating the
// store's Put/Get/Delete vocabulary into SST Add/Get calls and value-log
// appends/reads, and owning the reads/writes/removes counters the SST
// itself deliberately does not keep.
package shard

import (
	"fmt"
	"sync/atomic"

	"github.com/colasst/colasst/internal/cache"
	"github.com/colasst/colasst/internal/compression"
	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/sst"
	"github.com/colasst/colasst/internal/stats"
	"github.com/colasst/colasst/internal/valuelog"
	"github.com/colasst/colasst/internal/vfs"
)

// Shard owns one SST file and one value log; it is the unit the database
// façade rolls over when Willfull fires.
type Shard struct {
	ID int

	sst *sst.SST
	vl  *valuelog.Log

	stats *stats.Stats
	log   logging.Logger

	closed atomic.Bool
}

// Open opens (or creates) a shard's SST and value log under dir, naming
// them "<id>.sst" and "<id>.vlog". blockCache may be nil to disable block
// caching; when non-nil it is typically shared across every shard in a
// database, with each shard's SST namespaced by its own id.
func Open(fsys vfs.FS, dir string, id int, codec compression.Type, st *stats.Stats, log logging.Logger, blockCache *cache.LRUCache) (*Shard, error) {
	log = logging.OrDefault(log)

	sstPath := fmt.Sprintf("%s/%d.sst", dir, id)
	vlogPath := fmt.Sprintf("%s/%d.vlog", dir, id)

	s, err := sst.Open(fsys, sstPath, st, log, blockCache, uint64(id))
	if err != nil {
		return nil, fmt.Errorf("shard %d: %w", id, err)
	}
	vl, err := valuelog.Open(fsys, vlogPath, codec)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("shard %d: open value log: %w", id, err)
	}

	return &Shard{ID: id, sst: s, vl: vl, stats: st, log: log}, nil
}

// Put writes a value and its index record. The value log is synced before
// the SST Add commits, so a recovered index entry never points at a value
// that didn't survive the crash.
func (sh *Shard) Put(key, value []byte) error {
	offset, onDiskSize, err := sh.vl.Append(value)
	if err != nil {
		return fmt.Errorf("shard %d: put %q: %w", sh.ID, key, err)
	}
	if err := sh.vl.Sync(); err != nil {
		return fmt.Errorf("shard %d: put %q: sync value log: %w", sh.ID, key, err)
	}
	sh.stats.Record(stats.ValueLogBytesWritten, uint64(onDiskSize))

	item, err := sst.NewItem(key, uint64(offset), uint32(len(value)), true)
	if err != nil {
		return fmt.Errorf("shard %d: put %q: %w", sh.ID, key, err)
	}
	if err := sh.sst.Add(item); err != nil {
		return fmt.Errorf("shard %d: put %q: %w", sh.ID, key, err)
	}
	sh.stats.Inc(stats.KeysWritten)

	if sh.sst.Willfull() {
		sh.log.Infof(logging.NSShard+"shard %d is willfull", sh.ID)
	}
	return nil
}

// Delete writes a tombstone; the value-log bytes of any superseded live
// record become unreachable and are accounted in the SST's wasted counter
// at the next merge.
func (sh *Shard) Delete(key []byte) error {
	item, err := sst.NewItem(key, 0, 0, false)
	if err != nil {
		return fmt.Errorf("shard %d: delete %q: %w", sh.ID, key, err)
	}
	if err := sh.sst.Add(item); err != nil {
		return fmt.Errorf("shard %d: delete %q: %w", sh.ID, key, err)
	}
	sh.stats.Inc(stats.KeysRemoved)
	return nil
}

// Get resolves key to its value, reading the SST index and then the value
// log. ok is false, with a nil error, on a logical miss (absent or
// tombstoned).
func (sh *Shard) Get(key []byte) (value []byte, ok bool, err error) {
	offset, vlen, found, err := sh.sst.Get(key)
	sh.stats.Inc(stats.KeysRead)
	if err != nil {
		return nil, false, fmt.Errorf("shard %d: get %q: %w", sh.ID, key, err)
	}
	if !found {
		return nil, false, nil
	}
	value, err = sh.vl.Read(int64(offset))
	if err != nil {
		return nil, false, fmt.Errorf("shard %d: get %q: read value: %w", sh.ID, key, err)
	}
	sh.stats.Record(stats.ValueLogBytesRead, uint64(vlen))
	return value, true, nil
}

// Willfull reports whether this shard's SST is near its global capacity
// and the database façade should roll to a new shard.
func (sh *Shard) Willfull() bool {
	return sh.sst.Willfull()
}

// InOne returns this shard's entire live key space as one sorted,
// deduplicated run, for compaction or fan-in scanning by the database
// façade.
func (sh *Shard) InOne() ([]sst.Item, error) {
	return sh.sst.InOne()
}

// ReadAt resolves a value-log offset directly, for callers (the database
// façade's Scan) that already hold an SST item from InOne and don't need
// a second index lookup through Get.
func (sh *Shard) ReadAt(offset uint64) ([]byte, error) {
	return sh.vl.Read(int64(offset))
}

// Close releases the shard's SST and value-log file descriptors.
func (sh *Shard) Close() error {
	if !sh.closed.CompareAndSwap(false, true) {
		return nil
	}
	sstErr := sh.sst.Close()
	vlErr := sh.vl.Close()
	if sstErr != nil {
		return sstErr
	}
	return vlErr
}
