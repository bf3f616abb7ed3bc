package colasst

// scan.go fans out each shard's InOne output and merges them into one
// sorted, deduplicated stream via a min-heap over the per-shard runs,
// grounded on this corpus's heap-based merging iterator used to fan in
// memtables and SST files during compaction and DB iteration.

import (
	"bytes"
	"container/heap"
	"fmt"

	"github.com/colasst/colasst/internal/sst"
)

// Entry is one resolved key/value pair returned by Scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// runCursor walks one shard's InOne() output, skipping anything outside
// [start, end). Tombstones stay in the run so that Scan can let them
// shadow older shards' copies of a key before dropping them.
type runCursor struct {
	shardIdx int // position in db.shards; higher index is newer
	items    []sst.Item
	pos      int
}

func newRunCursor(shardIdx int, items []sst.Item, start, end []byte) *runCursor {
	c := &runCursor{shardIdx: shardIdx, items: items}
	if len(start) > 0 {
		lo, hi := 0, len(items)
		for lo < hi {
			mid := (lo + hi) / 2
			if bytes.Compare(items[mid].Key, start) < 0 {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		c.pos = lo
	}
	c.skipOutOfRange(end)
	return c
}

func (c *runCursor) skipOutOfRange(end []byte) {
	if c.pos < len(c.items) && len(end) > 0 && bytes.Compare(c.items[c.pos].Key, end) >= 0 {
		c.pos = len(c.items)
	}
}

func (c *runCursor) valid() bool { return c.pos < len(c.items) }
func (c *runCursor) key() []byte { return c.items[c.pos].Key }
func (c *runCursor) item() sst.Item {
	return c.items[c.pos]
}
func (c *runCursor) advance(end []byte) {
	c.pos++
	c.skipOutOfRange(end)
}

// runHeap is a min-heap of cursor indices ordered by current key, with
// ties broken toward the newer shard so Scan's dedup step always keeps
// the freshest record for a key.
type runHeap struct {
	cursors []*runCursor
}

func (h *runHeap) Len() int { return len(h.cursors) }
func (h *runHeap) Less(i, j int) bool {
	c := bytes.Compare(h.cursors[i].key(), h.cursors[j].key())
	if c != 0 {
		return c < 0
	}
	return h.cursors[i].shardIdx > h.cursors[j].shardIdx
}
func (h *runHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }
func (h *runHeap) Push(x any)    { h.cursors = append(h.cursors, x.(*runCursor)) }
func (h *runHeap) Pop() any {
	old := h.cursors
	n := len(old)
	x := old[n-1]
	h.cursors = old[:n-1]
	return x
}

// Scan returns every live key in [start, end) across every shard, newest
// write winning ties, as one sorted stream. A nil start or end leaves
// that bound open.
func (db *Database) Scan(start, end []byte) ([]Entry, error) {
	db.mu.RLock()
	shards := make([]shardSnapshot, len(db.shards))
	for i, sh := range db.shards {
		items, err := sh.InOne()
		if err != nil {
			db.mu.RUnlock()
			return nil, fmt.Errorf("colasst: scan: shard %d: %w", i, err)
		}
		shards[i] = shardSnapshot{shard: sh, items: items}
	}
	db.mu.RUnlock()

	h := &runHeap{}
	for i, s := range shards {
		c := newRunCursor(i, s.items, start, end)
		if c.valid() {
			h.cursors = append(h.cursors, c)
		}
	}
	heap.Init(h)

	var out []Entry
	var lastKey []byte
	for h.Len() > 0 {
		c := h.cursors[0]
		key := c.key()
		isDup := lastKey != nil && bytes.Equal(key, lastKey)
		item := c.item()
		shardIdx := c.shardIdx

		c.advance(end)
		if c.valid() {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}

		if isDup {
			continue // an older shard's copy of a key the newest shard already emitted
		}
		lastKey = append([]byte(nil), key...)

		if !item.Live() {
			continue // tombstone: this key is absent, newer than any older shard's copy
		}
		value, err := shards[shardIdx].shard.ReadAt(item.Offset)
		if err != nil {
			return nil, fmt.Errorf("colasst: scan: resolve %q: %w", item.Key, err)
		}
		out = append(out, Entry{Key: append([]byte(nil), item.Key...), Value: value})
	}
	return out, nil
}

type shardSnapshot struct {
	shard shardBackend
	items []sst.Item
}
