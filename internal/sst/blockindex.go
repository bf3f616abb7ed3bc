package sst

import "sort"

// blockEntry is one sparse index point: the first key of a BlockGap-sized
// run, and that run's block ordinal within its level.
type blockEntry struct {
	firstKey []byte
	block    int
}

// blockIndex is the in-memory sparse index for one level > 0: one entry
// per BlockGap consecutive items. Rebuilt on open (by scanning the level
// from disk) and refreshed after every merge that writes the level.
type blockIndex struct {
	entries []blockEntry
}

// buildBlockIndex constructs the sparse index over a fully sorted run of
// items (as stored in a level > 0 region).
func buildBlockIndex(items []Item) blockIndex {
	var idx blockIndex
	for i := 0; i < len(items); i += BlockGap {
		idx.entries = append(idx.entries, blockEntry{firstKey: items[i].Key, block: i / BlockGap})
	}
	return idx
}

// search returns the ordinal of the block whose [firstKey, nextFirstKey)
// range could contain key, or -1 if key is smaller than every block's
// first key (and therefore cannot be in this level).
func (idx blockIndex) search(key []byte) int {
	if len(idx.entries) == 0 {
		return -1
	}
	// Find the last entry whose firstKey <= key.
	n := sort.Search(len(idx.entries), func(i int) bool {
		return compareKeys(idx.entries[i].firstKey, key) > 0
	})
	if n == 0 {
		return -1
	}
	return idx.entries[n-1].block
}
