package sst

import (
	"fmt"

	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/stats"
)

// checkMerge runs the merge cascade scheduler. It scans levels top-down
// from MaxLevel-2 to 0; for each full level it either merges into the next
// level or, if there isn't room yet, marks the next level full as an
// optimistic hint for a later pass. Mirrors nessDB's _check_merge.
func (s *SST) checkMerge() error {
	for i := MaxLevel - 2; i >= 0; i-- {
		if !s.hdr.full[i] {
			continue
		}
		if s.hdr.full[i+1] {
			continue
		}
		c := int(s.hdr.count[i])
		nxtC := int(s.hdr.count[i+1])
		nxtMax := levelMax(i+1, levelFullGap)
		delta := nxtMax - (c + nxtC)
		if delta >= 0 {
			if err := s.mergeToNext(i); err != nil {
				return err
			}
		} else {
			s.hdr.full[i+1] = true
			s.log.Debugf(logging.NSCascade+"level %d declined merge into %d, marking %d full (delta=%d)", i, i+1, i+1, delta)
		}
	}
	s.recomputeWillfull()
	return nil
}

// mergeToNext merges level into level+1: two-cursor merge-sort, write the
// merged run, clear level's full flag, and commit the header. Mirrors
// nessDB's _merge_to_next.
func (s *SST) mergeToNext(level int) error {
	next := level + 1
	c1 := int(s.hdr.count[level])
	c2 := int(s.hdr.count[next])

	younger, err := readLevel(s.f, level, c1)
	if err != nil {
		return err
	}
	if level == 0 {
		var l0Wasted uint64
		younger, l0Wasted = insertionSortDedup(younger)
		s.hdr.wasted += l0Wasted
	}
	older, err := readLevel(s.f, next, c2)
	if err != nil {
		return err
	}

	merged, wasted := mergeSortLevels(younger, older)
	if len(merged) > levelMax(next, 0) {
		return fmt.Errorf("sst: merge produced %d items, exceeding level %d capacity %d: %w", len(merged), next, levelMax(next, 0), ErrIntegrity)
	}
	if err := writeLevel(s.f, next, merged); err != nil {
		return err
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync level %d: %v", ErrIO, next, err)
	}
	s.blocks[next] = buildBlockIndex(merged)
	s.evictLevelBlocks(next)

	s.hdr.count[level] = 0
	s.hdr.count[next] = uint32(len(merged))
	s.hdr.wasted += wasted
	s.hdr.full[level] = false
	s.hdr.full[next] = len(merged) >= levelMax(next, levelFullGap)

	if err := s.commitHeader(); err != nil {
		return err
	}

	s.stats.Inc(stats.LevelMerges)
	s.log.Infof(logging.NSMerge+"merged level %d (%d items) into level %d (%d -> %d items)", level, c1, next, c2, len(merged))
	return nil
}
