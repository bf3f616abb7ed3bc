// Package stats implements the counters the SST layer and its enclosing
// shard/database façades increment. It follows the teacher's atomic-ticker
// pattern (a fixed array of atomic counters indexed by an enum) rather than
// a generic metrics registry: the counter set is closed and known at compile
// time, so there's no need for string-keyed lookups or registration.
package stats

import "sync/atomic"

// Ticker identifies one monotonically increasing counter.
type Ticker int

const (
	// LevelMerges counts every level-to-level merge performed by the
	// cascade scheduler, across all SSTs.
	LevelMerges Ticker = iota
	// SSTMergeOne counts every InOne call (a merge of all of an SST's
	// levels into one sorted run, made on request by scans and tools).
	SSTMergeOne
	// KeysWritten counts successful Put calls (live writes); tombstone
	// writes from Delete are counted by KeysRemoved instead.
	KeysWritten
	// KeysRead counts Get calls, hit or miss.
	KeysRead
	// KeysRemoved counts Delete calls (tombstone writes).
	KeysRemoved
	// BloomNegatives counts lookups the Bloom filter rejected before any
	// disk read was issued.
	BloomNegatives
	// BloomFalsePositives counts lookups the Bloom filter admitted that
	// turned out, after the on-disk search, not to be present.
	BloomFalsePositives
	// ValueLogBytesWritten counts bytes appended to the value log.
	ValueLogBytesWritten
	// ValueLogBytesRead counts bytes read back from the value log.
	ValueLogBytesRead
	// ShardRolls counts shard rollovers triggered by a willfull SST.
	ShardRolls
	// BlockCacheHits counts level-block reads served from the block cache.
	BlockCacheHits
	// BlockCacheMisses counts level-block reads that had to hit disk.
	BlockCacheMisses

	numTickers
)

func (t Ticker) String() string {
	switch t {
	case LevelMerges:
		return "LevelMerges"
	case SSTMergeOne:
		return "SSTMergeOne"
	case KeysWritten:
		return "KeysWritten"
	case KeysRead:
		return "KeysRead"
	case KeysRemoved:
		return "KeysRemoved"
	case BloomNegatives:
		return "BloomNegatives"
	case BloomFalsePositives:
		return "BloomFalsePositives"
	case ValueLogBytesWritten:
		return "ValueLogBytesWritten"
	case ValueLogBytesRead:
		return "ValueLogBytesRead"
	case ShardRolls:
		return "ShardRolls"
	case BlockCacheHits:
		return "BlockCacheHits"
	case BlockCacheMisses:
		return "BlockCacheMisses"
	default:
		return "Unknown"
	}
}

// Stats is a fixed set of atomic counters shared across an open database.
// A nil *Stats is valid and silently discards every Record call, so a
// caller that doesn't want statistics can pass nil instead of a stub.
type Stats struct {
	tickers [numTickers]uint64
}

// New returns a zeroed counter set.
func New() *Stats {
	return &Stats{}
}

// Record adds delta to the named counter.
func (s *Stats) Record(t Ticker, delta uint64) {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.tickers[t], delta)
}

// Inc is shorthand for Record(t, 1).
func (s *Stats) Inc(t Ticker) {
	s.Record(t, 1)
}

// Get returns the current value of a counter. A nil *Stats reads as all
// zeros.
func (s *Stats) Get(t Ticker) uint64 {
	if s == nil {
		return 0
	}
	return atomic.LoadUint64(&s.tickers[t])
}

// Snapshot returns a point-in-time copy of every counter, keyed by name.
func (s *Stats) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, numTickers)
	if s == nil {
		for t := Ticker(0); t < numTickers; t++ {
			out[t.String()] = 0
		}
		return out
	}
	for t := Ticker(0); t < numTickers; t++ {
		out[t.String()] = s.Get(t)
	}
	return out
}
