package stats

import "testing"

func TestRecordAndGet(t *testing.T) {
	s := New()
	s.Inc(LevelMerges)
	s.Inc(LevelMerges)
	s.Record(KeysWritten, 5)

	if got := s.Get(LevelMerges); got != 2 {
		t.Fatalf("LevelMerges = %d, want 2", got)
	}
	if got := s.Get(KeysWritten); got != 5 {
		t.Fatalf("KeysWritten = %d, want 5", got)
	}
	if got := s.Get(KeysRead); got != 0 {
		t.Fatalf("KeysRead = %d, want 0", got)
	}
}

func TestNilStatsIsSafe(t *testing.T) {
	var s *Stats
	s.Inc(LevelMerges)
	s.Record(KeysWritten, 10)
	if got := s.Get(LevelMerges); got != 0 {
		t.Fatalf("Get on nil = %d, want 0", got)
	}
	snap := s.Snapshot()
	if snap["LevelMerges"] != 0 {
		t.Fatalf("Snapshot on nil Stats not all zero: %v", snap)
	}
}

func TestSnapshotKeys(t *testing.T) {
	s := New()
	s.Inc(SSTMergeOne)
	snap := s.Snapshot()
	if len(snap) != int(numTickers) {
		t.Fatalf("Snapshot has %d entries, want %d", len(snap), numTickers)
	}
	if snap["SSTMergeOne"] != 1 {
		t.Fatalf("SSTMergeOne = %d, want 1", snap["SSTMergeOne"])
	}
}

func TestTickerString(t *testing.T) {
	if LevelMerges.String() != "LevelMerges" {
		t.Fatalf("String() = %q", LevelMerges.String())
	}
	if Ticker(999).String() != "Unknown" {
		t.Fatalf("unknown ticker String() = %q", Ticker(999).String())
	}
}
