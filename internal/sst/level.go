package sst

import (
	"fmt"
	"sort"

	"github.com/colasst/colasst/internal/vfs"
)

// readLevel loads the live prefix of level lvl (count items) from disk.
// Per the resolved open question, the read always anchors at the region's
// start: [0, count) is the live range, regardless of level.
func readLevel(f vfs.ReadWriteFile, lvl int, count int) ([]Item, error) {
	items := make([]Item, count)
	if count == 0 {
		return items, nil
	}
	buf := make([]byte, count*ItemSize)
	if _, err := f.ReadAt(buf, levelOffset(lvl)); err != nil {
		return nil, fmt.Errorf("%w: read level %d: %v", ErrIO, lvl, err)
	}
	for i := 0; i < count; i++ {
		items[i] = decodeItem(buf[i*ItemSize : (i+1)*ItemSize])
	}
	return items, nil
}

// writeLevel writes items as the full live content of level lvl.
func writeLevel(f vfs.ReadWriteFile, lvl int, items []Item) error {
	buf := make([]byte, len(items)*ItemSize)
	for i, it := range items {
		it.encode(buf[i*ItemSize : (i+1)*ItemSize])
	}
	if _, err := f.WriteAt(buf, levelOffset(lvl)); err != nil {
		return fmt.Errorf("%w: write level %d: %v", ErrIO, lvl, err)
	}
	return nil
}

// insertionSortDedup sorts items (as appended to L0, oldest first) and
// collapses equal keys, keeping the newest (highest original index). It
// returns the sorted/deduplicated run and the value-log bytes the
// collapsed duplicates rendered unreachable.
func insertionSortDedup(items []Item) ([]Item, uint64) {
	var wasted uint64
	sorted := make([]Item, 0, len(items))
	for _, v := range items {
		pos := sort.Search(len(sorted), func(i int) bool {
			return compareKeys(sorted[i].Key, v.Key) >= 0
		})
		if pos < len(sorted) && compareKeys(sorted[pos].Key, v.Key) == 0 {
			old := sorted[pos]
			if old.Live() && !v.Live() {
				wasted += uint64(old.VLen)
			}
			sorted[pos] = v
			continue
		}
		sorted = append(sorted, Item{})
		copy(sorted[pos+1:], sorted[pos:len(sorted)-1])
		sorted[pos] = v
	}
	return sorted, wasted
}

// mergeSortLevels two-cursor merges younger (level i, already sorted) into
// older (level i+1, already sorted and deduplicated), younger wins on
// equal keys. Returns the merged run and the additional wasted bytes.
func mergeSortLevels(younger, older []Item) ([]Item, uint64) {
	var wasted uint64
	merged := make([]Item, 0, len(younger)+len(older))
	m, n := 0, 0
	for m < len(younger) && n < len(older) {
		if n > 0 && compareKeys(older[n].Key, older[n-1].Key) == 0 {
			n++
			continue
		}
		cmp := compareKeys(younger[m].Key, older[n].Key)
		switch {
		case cmp == 0:
			if older[n].Live() && !younger[m].Live() {
				wasted += uint64(older[n].VLen)
			}
			merged = append(merged, younger[m])
			m++
			n++
		case cmp < 0:
			merged = append(merged, younger[m])
			m++
		default:
			merged = append(merged, older[n])
			n++
		}
	}
	for ; m < len(younger); m++ {
		merged = append(merged, younger[m])
	}
	for ; n < len(older); n++ {
		merged = append(merged, older[n])
	}
	return merged, wasted
}
