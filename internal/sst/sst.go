package sst

import (
	"fmt"
	"sync"

	"github.com/colasst/colasst/internal/cache"
	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/stats"
	"github.com/colasst/colasst/internal/vfs"
)

// SST is one layered sorted index file: a header plus MaxLevel regions.
// All mutating operations and Get share a single mutex, since a merge
// reshapes on-disk regions that an in-flight positional read assumes are
// stable — see nessDB's engine/sst.c, which left reads unsynchronized; this
// implementation closes that gap per the design note in SPEC_FULL.md §9.
type SST struct {
	mu     sync.Mutex
	f      vfs.ReadWriteFile
	hdr    header
	blocks [MaxLevel]blockIndex
	stats  *stats.Stats
	log    logging.Logger

	// blockCache, when non-nil, holds raw level-block bytes keyed by
	// fileNum so repeat Get calls against hot blocks skip the ReadAt.
	// A merge rewrites the target level's region wholesale, so each merge
	// erases that level's cached blocks rather than trying to patch them.
	blockCache *cache.LRUCache
	fileNum    uint64

	willfull bool
	closed   bool
}

// Open opens path under fsys, creating an empty SST if it doesn't exist,
// or reading and validating its header and rebuilding block indexes
// otherwise. blockCache may be nil to disable block caching; fileNum
// namespaces this file's entries within a cache shared across shards.
func Open(fsys vfs.FS, path string, st *stats.Stats, log logging.Logger, blockCache *cache.LRUCache, fileNum uint64) (*SST, error) {
	log = logging.OrDefault(log)
	f, err := fsys.OpenReadWrite(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}

	s := &SST{f: f, stats: st, log: log, blockCache: blockCache, fileNum: fileNum}
	if size == 0 {
		s.hdr = newHeader()
		if err := s.commitHeader(); err != nil {
			_ = f.Close()
			return nil, err
		}
		return s, nil
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrIO, path, err)
	}
	hdr, err := decodeHeader(buf)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sst: open %s: %w", path, err)
	}
	s.hdr = hdr

	for lvl := 1; lvl < MaxLevel; lvl++ {
		items, err := readLevel(f, lvl, int(hdr.count[lvl]))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		s.blocks[lvl] = buildBlockIndex(items)
	}
	s.recomputeWillfull()
	return s, nil
}

// commitHeader rewrites the header in place and syncs it; per §4.1 this is
// the last step of every mutating operation, and once it lands the
// mutation is considered committed.
func (s *SST) commitHeader() error {
	buf := s.hdr.encode()
	if _, err := s.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: write header: %v", ErrIO, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync header: %v", ErrIO, err)
	}
	return nil
}

// Add appends item to L0, commits the header, and runs the merge cascade
// if L0 is now full.
func (s *SST) Add(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sst: use of closed SST")
	}

	if item.Live() {
		s.hdr.filter.Add(item.Key)
	}
	s.hdr.touchMaxKey(item.Key)

	pos := levelOffset(0) + int64(s.hdr.count[0])*ItemSize
	buf := make([]byte, ItemSize)
	item.encode(buf)
	if _, err := s.f.WriteAt(buf, pos); err != nil {
		return fmt.Errorf("%w: append to L0: %v", ErrIO, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync L0 append: %v", ErrIO, err)
	}

	s.hdr.count[0]++
	if err := s.commitHeader(); err != nil {
		return err
	}

	if int(s.hdr.count[0]) >= levelMax(0, l0FullGap) {
		s.hdr.full[0] = true
		if err := s.checkMerge(); err != nil {
			return err
		}
	}
	return nil
}

// Get looks up key: bloom filter, then L0 reverse scan, then per-level
// block search. A logical miss is reported by ok=false with a nil error;
// err is reserved for I/O and integrity failures.
func (s *SST) Get(key []byte) (offset uint64, vlen uint32, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hdr.filter.MayContain(key) {
		s.stats.Inc(stats.BloomNegatives)
		return 0, 0, false, nil
	}

	l0, err := readLevel(s.f, 0, int(s.hdr.count[0]))
	if err != nil {
		return 0, 0, false, err
	}
	for i := len(l0) - 1; i >= 0; i-- {
		if compareKeys(l0[i].Key, key) == 0 {
			if !l0[i].Live() {
				return 0, 0, false, nil
			}
			return l0[i].Offset, l0[i].VLen, true, nil
		}
	}

	for lvl := 1; lvl < MaxLevel; lvl++ {
		if s.hdr.count[lvl] == 0 {
			continue
		}
		blockOrd := s.blocks[lvl].search(key)
		if blockOrd < 0 {
			continue
		}
		blockOffset := levelOffset(lvl) + int64(blockOrd)*blockByteSize
		blockBuf, n, err := s.readBlock(blockOffset)
		if err != nil {
			return 0, 0, false, err
		}
		for off := 0; off+ItemSize <= n; off += ItemSize {
			it := decodeItem(blockBuf[off : off+ItemSize])
			if compareKeys(it.Key, key) == 0 {
				if !it.Live() {
					return 0, 0, false, nil
				}
				return it.Offset, it.VLen, true, nil
			}
		}
	}
	s.stats.Inc(stats.BloomFalsePositives)
	return 0, 0, false, nil
}

// Truncate zeros the header and the bloom bitset in memory and resets the
// willfull flag; the caller is responsible for persisting the result (via
// the next Add, or an explicit commit through a future operation).
func (s *SST) Truncate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hdr.reset()
	for lvl := range s.blocks {
		s.blocks[lvl] = blockIndex{}
		s.evictLevelBlocks(lvl)
	}
	s.willfull = false
}

// InOne merges every level into one sorted, deduplicated run, for
// shard-level compaction by the enclosing layer. The returned slice is
// owned by the caller.
func (s *SST) InOne() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged []Item
	for lvl := 0; lvl < MaxLevel; lvl++ {
		count := int(s.hdr.count[lvl])
		if count == 0 {
			continue
		}
		items, err := readLevel(s.f, lvl, count)
		if err != nil {
			return nil, err
		}
		if lvl == 0 {
			var l0Wasted uint64
			items, l0Wasted = insertionSortDedup(items)
			s.hdr.wasted += l0Wasted
		}
		if merged == nil {
			merged = items
			continue
		}
		var wasted uint64
		merged, wasted = mergeSortLevels(merged, items)
		s.hdr.wasted += wasted
	}
	s.stats.Inc(stats.SSTMergeOne)
	return merged, nil
}

// Willfull reports the advisory flag set when the SST is near its global
// capacity: the number of full levels has reached MaxLevel-1. It never
// refuses an insert on its own.
func (s *SST) Willfull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.willfull
}

// Close releases the underlying file descriptor. On-disk state is the
// header plus whatever region bytes have been written.
func (s *SST) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}

// LevelStat reports one level's occupancy, for inspection tools.
type LevelStat struct {
	Level    int
	Count    int
	Capacity int
	Full     bool
}

// Occupancy returns a per-level occupancy snapshot, for inspection tools
// (e.g. cmd/ssttool) rather than any operational code path.
func (s *SST) Occupancy() [MaxLevel]LevelStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [MaxLevel]LevelStat
	for lvl := 0; lvl < MaxLevel; lvl++ {
		gap := levelFullGap
		if lvl == 0 {
			gap = l0FullGap
		}
		out[lvl] = LevelStat{
			Level:    lvl,
			Count:    int(s.hdr.count[lvl]),
			Capacity: levelMax(lvl, gap) + gap,
			Full:     s.hdr.full[lvl],
		}
	}
	return out
}

// Wasted returns the cumulative byte count of superseded value-log
// records, for inspection tools.
func (s *SST) Wasted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hdr.wasted
}

// MaxKey returns the largest key ever inserted, for inspection tools.
func (s *SST) MaxKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.hdr.maxKey...)
}

// readBlock returns the bytes at blockOffset, serving from s.blockCache when
// present. When caching is on, the returned slice shares its backing array
// with the cached entry, so callers only read it. Must be called with s.mu
// held.
func (s *SST) readBlock(blockOffset int64) ([]byte, int, error) {
	if s.blockCache == nil {
		buf := make([]byte, blockByteSize)
		n, err := s.f.ReadAt(buf, blockOffset)
		if err != nil && n == 0 {
			return nil, 0, fmt.Errorf("%w: read block: %v", ErrIO, err)
		}
		return buf, n, nil
	}

	key := cache.CacheKey{FileNumber: s.fileNum, BlockOffset: uint64(blockOffset)}
	if h := s.blockCache.Lookup(key); h != nil {
		s.stats.Inc(stats.BlockCacheHits)
		buf := h.Value()
		s.blockCache.Release(h)
		return buf, len(buf), nil
	}
	s.stats.Inc(stats.BlockCacheMisses)

	buf := make([]byte, blockByteSize)
	n, err := s.f.ReadAt(buf, blockOffset)
	if err != nil && n == 0 {
		return nil, 0, fmt.Errorf("%w: read block: %v", ErrIO, err)
	}
	buf = buf[:n]
	h := s.blockCache.Insert(key, buf, uint64(len(buf)))
	s.blockCache.Release(h)
	return buf, n, nil
}

// evictLevelBlocks drops every cached block belonging to level, since a
// merge cascade rewrites that level's region wholesale; stale cached bytes
// would otherwise outlive the on-disk data they were read from. Must be
// called with s.mu held.
func (s *SST) evictLevelBlocks(level int) {
	if s.blockCache == nil {
		return
	}
	base := levelOffset(level)
	maxBlocks := levelMax(level, levelFullGap)/BlockGap + 1
	limit := base + int64(maxBlocks)*blockByteSize
	for off := base; off < limit; off += blockByteSize {
		s.blockCache.Erase(cache.CacheKey{FileNumber: s.fileNum, BlockOffset: uint64(off)})
	}
}

func (s *SST) recomputeWillfull() {
	full := 0
	for i := 0; i < MaxLevel; i++ {
		if s.hdr.full[i] {
			full++
		}
	}
	s.willfull = full >= MaxLevel-1
}
