package sst

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Item is one fixed-size index record: a key, a reference into the
// external value log, and the live/tombstone bit. Key is stored without
// its on-disk NUL padding; comparisons are lexicographic on these bytes,
// which is equivalent to comparing the NUL-terminated on-disk form since
// keys never contain an embedded NUL.
type Item struct {
	Key    []byte
	Offset uint64
	VLen   uint32
	Opt    byte
}

// liveBit is bit 0 of Opt: 1 = live put, 0 = tombstone.
const liveBit = 1

// Live reports whether this record is a live put rather than a tombstone.
func (it Item) Live() bool {
	return it.Opt&liveBit != 0
}

// NewItem builds a live or tombstone item for key, validating its length.
func NewItem(key []byte, offset uint64, vlen uint32, live bool) (Item, error) {
	if len(key) == 0 {
		return Item{}, fmt.Errorf("sst: empty key")
	}
	if len(key) > MaxKeySize {
		return Item{}, fmt.Errorf("sst: key length %d exceeds MaxKeySize %d", len(key), MaxKeySize)
	}
	var opt byte
	if live {
		opt = liveBit
	}
	return Item{Key: key, Offset: offset, VLen: vlen, Opt: opt}, nil
}

// encode writes the item's fixed-width on-disk representation into buf,
// which must be at least ItemSize bytes.
func (it Item) encode(buf []byte) {
	clear(buf[:ItemSize])
	copy(buf[:MaxKeySize], it.Key)
	binary.LittleEndian.PutUint64(buf[MaxKeySize:MaxKeySize+8], it.Offset)
	binary.LittleEndian.PutUint32(buf[MaxKeySize+8:MaxKeySize+12], it.VLen)
	buf[MaxKeySize+12] = it.Opt
}

// decodeItem parses one ItemSize-byte record. The returned Key is a fresh
// copy and does not alias buf.
func decodeItem(buf []byte) Item {
	end := bytes.IndexByte(buf[:MaxKeySize], 0)
	if end < 0 {
		end = MaxKeySize
	}
	key := make([]byte, end)
	copy(key, buf[:end])
	return Item{
		Key:    key,
		Offset: binary.LittleEndian.Uint64(buf[MaxKeySize : MaxKeySize+8]),
		VLen:   binary.LittleEndian.Uint32(buf[MaxKeySize+8 : MaxKeySize+12]),
		Opt:    buf[MaxKeySize+12],
	}
}

// compareKeys orders two stored keys lexicographically.
func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}
