package sst

import (
	"fmt"
	"testing"

	"github.com/colasst/colasst/internal/vfs"
)

func mustItem(t *testing.T, key string, offset uint64, vlen uint32, live bool) Item {
	t.Helper()
	it, err := NewItem([]byte(key), offset, vlen, live)
	if err != nil {
		t.Fatalf("NewItem(%q): %v", key, err)
	}
	return it
}

func TestInsertionSortDedupOrdersAndKeepsNewest(t *testing.T) {
	items := []Item{
		mustItem(t, "c", 1, 10, true),
		mustItem(t, "a", 2, 10, true),
		mustItem(t, "b", 3, 10, true),
		mustItem(t, "a", 4, 20, true), // newer "a"
	}
	sorted, wasted := insertionSortDedup(items)
	if len(sorted) != 3 {
		t.Fatalf("len = %d, want 3", len(sorted))
	}
	for i := 1; i < len(sorted); i++ {
		if compareKeys(sorted[i-1].Key, sorted[i].Key) >= 0 {
			t.Fatalf("not strictly sorted at %d: %v", i, sorted)
		}
	}
	if string(sorted[0].Key) != "a" || sorted[0].Offset != 4 {
		t.Fatalf("newest \"a\" not preserved: %+v", sorted[0])
	}
	if wasted != 0 {
		t.Fatalf("wasted = %d, want 0 (no live->tombstone collapse)", wasted)
	}
}

func TestInsertionSortDedupAccountsWastedOnTombstone(t *testing.T) {
	items := []Item{
		mustItem(t, "k", 100, 50, true),
		mustItem(t, "k", 0, 0, false), // tombstone supersedes
	}
	sorted, wasted := insertionSortDedup(items)
	if len(sorted) != 1 {
		t.Fatalf("len = %d, want 1", len(sorted))
	}
	if sorted[0].Live() {
		t.Fatal("expected tombstone to win")
	}
	if wasted != 50 {
		t.Fatalf("wasted = %d, want 50", wasted)
	}
}

func TestMergeSortLevelsYoungerWins(t *testing.T) {
	younger := []Item{mustItem(t, "a", 1, 10, true), mustItem(t, "c", 2, 10, true)}
	older := []Item{mustItem(t, "a", 99, 99, true), mustItem(t, "b", 3, 10, true)}

	merged, wasted := mergeSortLevels(younger, older)
	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if compareKeys(merged[i-1].Key, merged[i].Key) >= 0 {
			t.Fatalf("not strictly sorted: %v", merged)
		}
	}
	if merged[0].Offset != 1 {
		t.Fatalf("younger \"a\" did not win: %+v", merged[0])
	}
	if wasted != 0 {
		t.Fatalf("wasted = %d, want 0", wasted)
	}
}

func TestMergeSortLevelsWastedOnOlderLiveNewerTombstone(t *testing.T) {
	younger := []Item{mustItem(t, "k", 0, 0, false)}
	older := []Item{mustItem(t, "k", 1, 77, true)}

	merged, wasted := mergeSortLevels(younger, older)
	if len(merged) != 1 || merged[0].Live() {
		t.Fatalf("expected single tombstone record, got %+v", merged)
	}
	if wasted != 77 {
		t.Fatalf("wasted = %d, want 77", wasted)
	}
}

func TestReadWriteLevelRoundTrip(t *testing.T) {
	fs := vfs.NewMemFS()
	f, err := fs.OpenReadWrite("level.sst")
	if err != nil {
		t.Fatalf("OpenReadWrite: %v", err)
	}
	defer f.Close()

	var items []Item
	for i := range 50 {
		items = append(items, mustItem(t, fmt.Sprintf("k%03d", i), uint64(i), uint32(i), true))
	}

	if err := writeLevel(f, 1, items); err != nil {
		t.Fatalf("writeLevel: %v", err)
	}
	got, err := readLevel(f, 1, len(items))
	if err != nil {
		t.Fatalf("readLevel: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("len = %d, want %d", len(got), len(items))
	}
	for i := range items {
		if string(got[i].Key) != string(items[i].Key) || got[i].Offset != items[i].Offset {
			t.Fatalf("item %d = %+v, want %+v", i, got[i], items[i])
		}
	}
}
