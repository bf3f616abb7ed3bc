// Package sst implements the on-disk layered sorted index: a fixed-size
// header followed by MaxLevel fixed-capacity regions, each LevelBase times
// the capacity of the one before it. It is grounded directly on nessDB's
// engine/sst.c — the same Bε-tree/COLA structure (ε≈½), translated from
// pwrite/pread-at-fixed-offsets C into Go's vfs.ReadWriteFile, with the
// bespoke bit-twiddling bloom filter replaced by this module's
// internal/filter package.
package sst

// Compile-time layout constants. A reader must refuse to open a file whose
// header doesn't match these, since the region offsets below are derived
// from them (see Header.validate).
const (
	// MaxKeySize bounds every stored key; longer keys are rejected by the
	// caller before they ever reach Add.
	MaxKeySize = 24

	// ItemSize is the fixed width of one on-disk index record: the
	// NUL-padded key, an 8-byte value-log offset, a 4-byte value length,
	// and a 1-byte opt flag.
	ItemSize = MaxKeySize + 8 + 4 + 1

	// LevelBase is the fan-out between adjacent levels (B in the design).
	LevelBase = 4

	// L0Size is the byte capacity of level 0.
	L0Size = 4096

	// MaxLevel is the number of level regions the file reserves, including
	// level 0.
	MaxLevel = 7

	// BlockGap is the number of items in one on-disk block for levels > 0;
	// also the stride of the sparse in-memory block index.
	BlockGap = 32

	// blockByteSize is the byte width of one on-disk block.
	blockByteSize = BlockGap * ItemSize

	// l0FullGap and levelFullGap are the "gap" parameters to levelMax: L0
	// is full when it has no room for one more append; a higher level is
	// full when it has no room for a full promotion from the level below.
	l0FullGap    = 1
	levelFullGap = 3
)

// levelMax returns the maximum item count level k can hold, minus gap. This
// mirrors nessDB's _level_max(level, gap).
func levelMax(level int, gap int) int {
	capBytes := L0Size
	for i := 0; i < level; i++ {
		capBytes *= LevelBase
	}
	return capBytes/ItemSize - gap
}

// levelOffset returns the absolute byte offset of level k's region,
// mirroring nessDB's _pos_calc.
func levelOffset(level int) int64 {
	off := int64(HeaderSize)
	size := int64(L0Size)
	for i := 0; i < level; i++ {
		off += size
		size *= LevelBase
	}
	return off
}
