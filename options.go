package colasst

// options.go implements database configuration options.

import (
	"fmt"

	"github.com/colasst/colasst/internal/compression"
	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/sst"
	"github.com/colasst/colasst/internal/vfs"
)

// Logger is an alias for the logging.Logger interface, letting callers
// supply their own implementation without importing internal packages.
type Logger = logging.Logger

// CompressionType is an alias for the value-log compression codec.
type CompressionType = compression.Type

// Compression type constants.
const (
	CompressionNone   = compression.None
	CompressionSnappy = compression.Snappy
	CompressionLZ4    = compression.LZ4
	CompressionZstd   = compression.Zstd
)

// Options configures a Database. Open does not merge a partially-built
// Options against DefaultOptions' values — it validates exactly what it
// is given, and a zero-valued layout field (MaxLevel, LevelBase, L0Size,
// BlockGap, MaxKeySize) fails validate rather than being defaulted in, since
// those mirror the SST core's compile-time layout and only one value for
// each is ever valid. FS and Logger are the exception: nil is a meaningful
// zero value for both and is resolved to vfs.Default() and a default
// stderr logger on Open. Call DefaultOptions and override only the fields
// that need to change; it is the only supported way to construct an
// Options.
type Options struct {
	// Dir is the directory holding shard files. Required.
	Dir string

	// FS is the filesystem layer shards are opened through. Nil uses
	// vfs.Default() (the host OS filesystem).
	FS vfs.FS

	// MaxLevel is the number of level regions held in one SST file,
	// including L0.
	MaxLevel int

	// LevelBase is the fan-out factor B between adjacent levels.
	LevelBase int

	// L0Size is the capacity, in bytes, of level 0 before it is
	// considered full.
	L0Size int

	// BlockGap is the stride, in items, of the in-memory sparse block
	// index built over each level.
	BlockGap int

	// MaxKeySize bounds the length of any inserted key, matching the
	// fixed-width on-disk item record.
	MaxKeySize int

	// Compression selects the codec applied to value-log records.
	Compression CompressionType

	// Logger receives structured log lines from every subsystem. Nil
	// uses a default stderr logger at Warn level.
	Logger Logger

	// CreateIfMissing creates Dir and an initial shard if neither exists.
	CreateIfMissing bool

	// BlockCacheBytes sizes the LRU cache shared by every shard's SST for
	// raw level-block bytes. Zero disables block caching entirely.
	BlockCacheBytes uint64
}

// DefaultOptions returns an Options populated with this store's reference
// constants.
func DefaultOptions() *Options {
	return &Options{
		Dir:             ".",
		FS:              nil, // resolved to vfs.Default() on Open
		MaxLevel:        sst.MaxLevel,
		LevelBase:       sst.LevelBase,
		L0Size:          sst.L0Size,
		BlockGap:        sst.BlockGap,
		MaxKeySize:      sst.MaxKeySize,
		Compression:     CompressionSnappy,
		Logger:          nil, // resolved to logging.NewDefaultLogger on Open
		CreateIfMissing: true,
		BlockCacheBytes: 8 << 20, // 8 MiB
	}
}

// validate checks an Options against the fixed, compile-time layout of
// the SST core. The core's constants (MaxLevel, LevelBase, L0Size,
// BlockGap, MaxKeySize, the Bloom filter's fixed bit width) are not
// actually configurable per-instance — the on-disk header and item
// layout are compile-time constants shared by every SST file — so
// validate rejects an Options that asks for anything else, rather than
// silently ignoring it.
func (o *Options) validate() error {
	if o.Dir == "" {
		return fmt.Errorf("colasst: Options.Dir must not be empty")
	}
	if o.MaxLevel != sst.MaxLevel {
		return fmt.Errorf("colasst: Options.MaxLevel must equal %d (compile-time layout constant)", sst.MaxLevel)
	}
	if o.LevelBase != sst.LevelBase {
		return fmt.Errorf("colasst: Options.LevelBase must equal %d (compile-time layout constant)", sst.LevelBase)
	}
	if o.L0Size != sst.L0Size {
		return fmt.Errorf("colasst: Options.L0Size must equal %d (compile-time layout constant)", sst.L0Size)
	}
	if o.BlockGap != sst.BlockGap {
		return fmt.Errorf("colasst: Options.BlockGap must equal %d (compile-time layout constant)", sst.BlockGap)
	}
	if o.MaxKeySize != sst.MaxKeySize {
		return fmt.Errorf("colasst: Options.MaxKeySize must equal %d (compile-time layout constant)", sst.MaxKeySize)
	}
	switch o.Compression {
	case CompressionNone, CompressionSnappy, CompressionLZ4, CompressionZstd:
	default:
		return fmt.Errorf("colasst: Options.Compression %d is not a recognized codec", o.Compression)
	}
	return nil
}

func (o *Options) fs() vfs.FS {
	if o.FS != nil {
		return o.FS
	}
	return vfs.Default()
}

func (o *Options) logger() Logger {
	return logging.OrDefault(o.Logger)
}
