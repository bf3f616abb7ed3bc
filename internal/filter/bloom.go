// Package filter implements the Bloom filter persisted inside the SST
// header: one filter per SST, covering the keys of every level. Rather than hand-rolling the bit array and the double-hashing
// math, the filter is built on a maintained Bloom filter/bit-set library; the
// Kirsch-Mitzenmacher double-hashing construction the design calls for is
// supplied by that library's own mixing rather than bespoke bit-twiddling
// here. Only the fixed-size, header-embeddable (de)serialization is this
// package's own responsibility.
package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
)

// NumBits and NumHashes are fixed at compile time: every filter persisted to
// a header has the same bit-array size and hash count, so the on-disk layout
// never needs to record them per-instance. With NumHashes hash functions,
// NumBits gives about a 1% false-positive rate at roughly 6,800 keys; the
// rate rises as an SST holds more keys than that.
const (
	NumBits   = 1 << 16 // 65536 bits = 8 KiB, a multiple of 64 for word alignment
	NumHashes = 7
)

// ByteSize is the fixed on-disk footprint of one persisted filter.
const ByteSize = NumBits / 8

// Filter wraps a fixed-cardinality Bloom filter for one SST.
type Filter struct {
	bf *bloom.BloomFilter
}

// New returns an empty filter with the compile-time fixed parameters.
func New() *Filter {
	return &Filter{bf: bloom.New(NumBits, NumHashes)}
}

// Add records key's membership.
func (f *Filter) Add(key []byte) {
	f.bf.Add(key)
}

// MayContain reports whether key might be present. False positives are
// possible; false negatives are not.
func (f *Filter) MayContain(key []byte) bool {
	return f.bf.Test(key)
}

// Reset clears the filter in place, for reuse across a level rebuild.
func (f *Filter) Reset() {
	f.bf.ClearAll()
}

// Bytes serializes the filter's underlying bit array to its fixed-size
// on-disk representation: ByteSize bytes, independent of how many keys have
// been added. This is deliberately not the library's own MarshalBinary
// format, which prefixes a variable-length header unsuited to a fixed header
// field.
func (f *Filter) Bytes() []byte {
	words := f.bf.BitSet().Bytes()
	out := make([]byte, ByteSize)
	for i, w := range words {
		off := i * 8
		if off+8 > ByteSize {
			break
		}
		binary.LittleEndian.PutUint64(out[off:off+8], w)
	}
	return out
}

// FromBytes reconstructs a filter from a previously persisted fixed-size
// byte slice. buf must be exactly ByteSize bytes.
func FromBytes(buf []byte) (*Filter, error) {
	if len(buf) != ByteSize {
		return nil, fmt.Errorf("filter: expected %d bytes, got %d", ByteSize, len(buf))
	}
	words := make([]uint64, NumBits/64)
	for i := range words {
		off := i * 8
		words[i] = binary.LittleEndian.Uint64(buf[off : off+8])
	}
	return &Filter{bf: bloom.From(words, NumHashes)}, nil
}
