package sst

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/colasst/colasst/internal/cache"
	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/stats"
	"github.com/colasst/colasst/internal/vfs"
)

func openTestSST(t *testing.T, fs vfs.FS, path string) *SST {
	t.Helper()
	s, err := Open(fs, path, stats.New(), logging.Discard, nil, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func addItem(t *testing.T, s *SST, key string, offset uint64, vlen uint32, live bool) {
	t.Helper()
	it, err := NewItem([]byte(key), offset, vlen, live)
	if err != nil {
		t.Fatalf("NewItem(%q): %v", key, err)
	}
	if err := s.Add(it); err != nil {
		t.Fatalf("Add(%q): %v", key, err)
	}
}

// Scenario 1: basic put/get, present and absent keys.
func TestScenarioBasicPutGet(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "s1.sst")
	defer s.Close()

	addItem(t, s, "a", 10, 1, true)
	addItem(t, s, "b", 20, 1, true)
	addItem(t, s, "c", 30, 1, true)

	off, vlen, ok, err := s.Get([]byte("b"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || off != 20 {
		t.Fatalf("Get(b) = (%d, %d, %v), want (20, _, true)", off, vlen, ok)
	}

	_, _, ok, err = s.Get([]byte("d"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get(d) should be absent")
	}
}

// Scenario 2: tombstone supersedes a live record and increments wasted.
func TestScenarioTombstoneSupersedes(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "s2.sst")
	defer s.Close()

	addItem(t, s, "k", 100, 40, true)
	addItem(t, s, "k", 0, 0, false)

	_, _, ok, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get(k) should be absent after tombstone")
	}

	// InOne drives the L0 insertion-sort-dedup path, which is where the
	// superseded live record's vlen is folded into header.wasted.
	if _, err := s.InOne(); err != nil {
		t.Fatalf("InOne: %v", err)
	}
	if s.hdr.wasted != 40 {
		t.Fatalf("hdr.wasted = %d, want 40", s.hdr.wasted)
	}
}

// Scenario 3: filling L0 triggers a merge into L1.
func TestScenarioFillL0TriggersMergeToL1(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "s3.sst")
	defer s.Close()

	l0Cap := levelMax(0, l0FullGap)
	for i := 0; i < l0Cap-1; i++ {
		addItem(t, s, fmt.Sprintf("k%05d", i), uint64(i), 1, true)
	}
	if s.hdr.count[0] != uint32(l0Cap-1) {
		t.Fatalf("count[0] = %d, want %d before the triggering insert", s.hdr.count[0], l0Cap-1)
	}

	// This insert brings L0 to its full threshold and must cascade it into L1.
	addItem(t, s, fmt.Sprintf("k%05d", l0Cap-1), uint64(l0Cap-1), 1, true)

	if s.hdr.count[0] != 0 {
		t.Fatalf("count[0] = %d after cascade, want 0", s.hdr.count[0])
	}
	if int(s.hdr.count[1]) != l0Cap {
		t.Fatalf("count[1] = %d, want %d", s.hdr.count[1], l0Cap)
	}

	for i := 0; i < l0Cap; i++ {
		key := fmt.Sprintf("k%05d", i)
		off, _, ok, err := s.Get([]byte(key))
		if err != nil || !ok || off != uint64(i) {
			t.Fatalf("Get(%q) = (%d, %v, %v), want (%d, true, nil)", key, off, ok, err, i)
		}
	}
}

// Scenario 5 (round-trip): close then reopen returns identical answers.
func TestScenarioRoundTripAfterReopen(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "s5.sst")

	l0Cap := levelMax(0, l0FullGap)
	for i := 0; i < l0Cap+5; i++ {
		addItem(t, s, fmt.Sprintf("k%05d", i), uint64(i), uint32(i), true)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestSST(t, fs, "s5.sst")
	defer reopened.Close()

	for i := 0; i < l0Cap+5; i++ {
		key := fmt.Sprintf("k%05d", i)
		off, vlen, ok, err := reopened.Get([]byte(key))
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if !ok || off != uint64(i) || vlen != uint32(i) {
			t.Fatalf("Get(%q) = (%d, %d, %v), want (%d, %d, true)", key, off, vlen, ok, i, i)
		}
	}
}

// Scenario 6: InOne returns one sorted, deduplicated run of live keys.
func TestScenarioInOneDedupedSortedRun(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "s6.sst")
	defer s.Close()

	addItem(t, s, "a", 1, 1, true)
	addItem(t, s, "b", 2, 1, true)
	addItem(t, s, "a", 3, 1, true) // supersedes first "a"
	addItem(t, s, "c", 4, 1, true)
	addItem(t, s, "z", 5, 1, false) // tombstone, never live

	items, err := s.InOne()
	if err != nil {
		t.Fatalf("InOne: %v", err)
	}
	// a, b, c live + z tombstone survive as distinct keys (4 total).
	if len(items) != 4 {
		t.Fatalf("len = %d, want 4: %v", len(items), items)
	}
	for i := 1; i < len(items); i++ {
		if compareKeys(items[i-1].Key, items[i].Key) >= 0 {
			t.Fatalf("InOne result not strictly sorted: %v", items)
		}
	}
	for _, it := range items {
		if string(it.Key) == "a" && it.Offset != 3 {
			t.Fatalf("InOne kept stale \"a\": %+v", it)
		}
	}
}

func TestWillfullAndTruncate(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "s7.sst")
	defer s.Close()

	if s.Willfull() {
		t.Fatal("fresh SST should not be willfull")
	}

	s.Truncate()
	if s.hdr.count[0] != 0 || s.Willfull() {
		t.Fatal("Truncate did not reset state")
	}
	if s.hdr.filter.MayContain([]byte("anything-specific-enough-not-to-collide")) {
		t.Fatal("Truncate did not clear the bloom bitset")
	}
}

// Property: after any sequence of adds, every level > 0 is strictly
// sorted with unique keys on disk.
func TestPropertySortednessAcrossRandomInserts(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "prop.sst")
	defer s.Close()

	rng := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	n := 0
	for n < 300 {
		key := fmt.Sprintf("key-%06d", rng.Intn(1000))
		if seen[key] {
			continue
		}
		seen[key] = true
		addItem(t, s, key, uint64(n), 1, true)
		n++
	}

	for lvl := 1; lvl < MaxLevel; lvl++ {
		count := int(s.hdr.count[lvl])
		if count == 0 {
			continue
		}
		items, err := readLevel(s.f, lvl, count)
		if err != nil {
			t.Fatalf("readLevel(%d): %v", lvl, err)
		}
		for i := 1; i < len(items); i++ {
			if compareKeys(items[i-1].Key, items[i].Key) >= 0 {
				t.Fatalf("level %d not strictly sorted at %d: %q >= %q", lvl, i, items[i-1].Key, items[i].Key)
			}
		}
	}
}

// Property: bloom soundness — every live, not-yet-superseded key reports
// present in the bloom filter.
func TestPropertyBloomSoundness(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "bloom-prop.sst")
	defer s.Close()

	var keys []string
	for i := range 200 {
		key := fmt.Sprintf("bk-%05d", i)
		keys = append(keys, key)
		addItem(t, s, key, uint64(i), 1, true)
	}
	for _, k := range keys {
		if !s.hdr.filter.MayContain([]byte(k)) {
			t.Fatalf("bloom filter missing live key %q", k)
		}
	}
}

func TestOccupancyReflectsCounts(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "occ.sst")
	defer s.Close()

	addItem(t, s, "a", 1, 1, true)
	addItem(t, s, "b", 2, 1, true)

	occ := s.Occupancy()
	if occ[0].Count != 2 {
		t.Fatalf("occ[0].Count = %d, want 2", occ[0].Count)
	}
	if occ[0].Capacity <= 0 {
		t.Fatalf("occ[0].Capacity = %d, want > 0", occ[0].Capacity)
	}
	for lvl := 1; lvl < MaxLevel; lvl++ {
		if occ[lvl].Count != 0 {
			t.Fatalf("occ[%d].Count = %d, want 0", lvl, occ[lvl].Count)
		}
	}
}

func TestMaxKeyTracksLargestInsert(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "maxkey.sst")
	defer s.Close()

	addItem(t, s, "b", 1, 1, true)
	addItem(t, s, "z", 2, 1, true)
	addItem(t, s, "a", 3, 1, true)

	if got := string(s.MaxKey()); got != "z" {
		t.Fatalf("MaxKey() = %q, want %q", got, "z")
	}
}

func TestBlockCacheServesRepeatedLevelReads(t *testing.T) {
	fs := vfs.NewMemFS()
	st := stats.New()
	bc := cache.NewLRUCache(1 << 20)
	s, err := Open(fs, "cache.sst", st, logging.Discard, bc, 7)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	l0Cap := levelMax(0, l0FullGap)
	for i := 0; i <= l0Cap; i++ {
		addItem(t, s, fmt.Sprintf("k%05d", i), uint64(i), 1, true)
	}
	if int(s.hdr.count[1]) == 0 {
		t.Fatal("expected the overflow insert to cascade into level 1")
	}

	key := fmt.Sprintf("k%05d", l0Cap/2)
	if _, _, ok, err := s.Get([]byte(key)); err != nil || !ok {
		t.Fatalf("Get(%q) = (_, %v, %v), want (_, true, nil)", key, ok, err)
	}
	if _, _, ok, err := s.Get([]byte(key)); err != nil || !ok {
		t.Fatalf("second Get(%q) = (_, %v, %v), want (_, true, nil)", key, ok, err)
	}

	if got := st.Get(stats.BlockCacheHits); got == 0 {
		t.Fatal("expected at least one block cache hit on the repeated lookup")
	}
}

func TestBlockCacheEvictedAfterCascade(t *testing.T) {
	fs := vfs.NewMemFS()
	st := stats.New()
	bc := cache.NewLRUCache(1 << 20)
	s, err := Open(fs, "cascade-cache.sst", st, logging.Discard, bc, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	l0Cap := levelMax(0, l0FullGap)
	for i := 0; i <= l0Cap; i++ {
		addItem(t, s, fmt.Sprintf("k%05d", i), uint64(i), 1, true)
	}
	key := fmt.Sprintf("k%05d", 0)
	if _, _, ok, err := s.Get([]byte(key)); err != nil || !ok {
		t.Fatalf("Get(%q) = (_, %v, %v), want (_, true, nil)", key, ok, err)
	}

	// A second round that forces another cascade must not resurrect stale
	// cached bytes from level 1's earlier layout.
	for i := l0Cap + 1; i <= 2*l0Cap+1; i++ {
		addItem(t, s, fmt.Sprintf("k%05d", i), uint64(i), 1, true)
	}
	for i := 0; i <= 2*l0Cap+1; i++ {
		k := fmt.Sprintf("k%05d", i)
		off, _, ok, err := s.Get([]byte(k))
		if err != nil || !ok || off != uint64(i) {
			t.Fatalf("Get(%q) = (%d, %v, %v), want (%d, true, nil)", k, off, ok, err, i)
		}
	}
}

func TestWastedIsNonDecreasing(t *testing.T) {
	fs := vfs.NewMemFS()
	s := openTestSST(t, fs, "wasted.sst")
	defer s.Close()

	var prev uint64
	for i := range 50 {
		key := fmt.Sprintf("w%03d", i%10)
		live := i%2 == 0
		addItem(t, s, key, uint64(i), 5, live)
		if s.hdr.wasted < prev {
			t.Fatalf("wasted decreased: %d -> %d", prev, s.hdr.wasted)
		}
		prev = s.hdr.wasted
	}
}
