package sst

import (
	"encoding/binary"
	"fmt"

	"github.com/colasst/colasst/internal/filter"
)

// magic identifies a file as one of this package's SSTs and doubles as a
// format version: a reader that doesn't recognize it refuses to open the
// file rather than guess at a layout.
var magic = [8]byte{'C', 'O', 'L', 'A', 's', 's', 't', '1'}

const (
	magicSize = 8
	sizeField = 4
	countSize = 4 * MaxLevel
	fullSize  = MaxLevel
	wastedSize = 8

	// HeaderSize is the fixed byte width of the header region; level 0
	// begins immediately after it.
	HeaderSize = magicSize + sizeField + countSize + fullSize + wastedSize + MaxKeySize + filter.ByteSize

	countOff  = magicSize + sizeField
	fullOff   = countOff + countSize
	wastedOff = fullOff + fullSize
	maxKeyOff = wastedOff + wastedSize
	bitsetOff = maxKeyOff + MaxKeySize
)

// header is the single source of truth for level occupancy, rewritten in
// place on every state-changing operation. Everything else the SST keeps
// in memory (block indexes, the bloom bitset) is derived from disk and the
// header's own bitset field, and is rebuilt on open.
type header struct {
	count  [MaxLevel]uint32
	full   [MaxLevel]bool
	wasted uint64
	maxKey []byte
	filter *filter.Filter
}

func newHeader() header {
	return header{maxKey: make([]byte, 0, MaxKeySize), filter: filter.New()}
}

// reset clears h in place for reuse across a truncate, reusing the
// existing filter's bit array rather than allocating a fresh one.
func (h *header) reset() {
	h.count = [MaxLevel]uint32{}
	h.full = [MaxLevel]bool{}
	h.wasted = 0
	h.maxKey = h.maxKey[:0]
	h.filter.Reset()
}

// encode serializes the header to its fixed-size on-disk form.
func (h *header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[:magicSize], magic[:])
	binary.LittleEndian.PutUint32(buf[magicSize:countOff], HeaderSize)

	for i := 0; i < MaxLevel; i++ {
		binary.LittleEndian.PutUint32(buf[countOff+i*4:countOff+i*4+4], h.count[i])
		if h.full[i] {
			buf[fullOff+i] = 1
		}
	}
	binary.LittleEndian.PutUint64(buf[wastedOff:wastedOff+8], h.wasted)
	copy(buf[maxKeyOff:maxKeyOff+MaxKeySize], h.maxKey)
	copy(buf[bitsetOff:bitsetOff+filter.ByteSize], h.filter.Bytes())
	return buf
}

// decodeHeader parses a previously-encoded header, validating its magic
// and declared size against this build's compile-time layout.
func decodeHeader(buf []byte) (header, error) {
	if len(buf) < HeaderSize {
		return header{}, fmt.Errorf("sst: truncated header: %d bytes, want %d", len(buf), HeaderSize)
	}
	if string(buf[:magicSize]) != string(magic[:]) {
		return header{}, fmt.Errorf("sst: bad magic: %w", ErrIntegrity)
	}
	storedSize := binary.LittleEndian.Uint32(buf[magicSize:countOff])
	if storedSize != HeaderSize {
		return header{}, fmt.Errorf("sst: header size %d does not match compiled layout %d: %w", storedSize, HeaderSize, ErrIntegrity)
	}

	h := header{maxKey: make([]byte, MaxKeySize)}
	for i := 0; i < MaxLevel; i++ {
		h.count[i] = binary.LittleEndian.Uint32(buf[countOff+i*4 : countOff+i*4+4])
		h.full[i] = buf[fullOff+i] != 0
	}
	h.wasted = binary.LittleEndian.Uint64(buf[wastedOff : wastedOff+8])
	copy(h.maxKey, buf[maxKeyOff:maxKeyOff+MaxKeySize])
	h.maxKey = trimTrailingZeros(h.maxKey)

	f, err := filter.FromBytes(buf[bitsetOff : bitsetOff+filter.ByteSize])
	if err != nil {
		return header{}, fmt.Errorf("sst: decode bloom bitset: %w", err)
	}
	h.filter = f

	for i := 0; i < MaxLevel; i++ {
		if int(h.count[i]) > levelMax(i, 0) {
			return header{}, fmt.Errorf("sst: level %d count %d exceeds capacity %d: %w", i, h.count[i], levelMax(i, 0), ErrIntegrity)
		}
	}
	return h, nil
}

func trimTrailingZeros(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

// touchMaxKey advances maxKey if key is larger, per the monotonic max_key
// invariant.
func (h *header) touchMaxKey(key []byte) {
	if compareKeys(key, h.maxKey) > 0 {
		h.maxKey = append([]byte(nil), key...)
	}
}
