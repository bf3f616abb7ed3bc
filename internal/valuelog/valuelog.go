// Package valuelog implements the append-only value log the SST's
// (offset, vlen) index records point into. The SST never stores a value
// byte itself — only a fixed-size reference — so the log is this store's
// only variable-length, variable-content storage, and the only place
// payload compression can apply.
//
// Record framing is grounded on this corpus's blob-file record format
// (length-prefixed key/value plus a trailing checksum), adapted to a
// single-value, self-describing record using the store's own CRC32C and
// pluggable codec instead of blob's key+value pair and IEEE CRC32.
package valuelog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/colasst/colasst/internal/checksum"
	"github.com/colasst/colasst/internal/compression"
	"github.com/colasst/colasst/internal/mempool"
	"github.com/colasst/colasst/internal/vfs"
)

// ErrChecksumMismatch indicates a record's payload failed its CRC32C check.
var ErrChecksumMismatch = errors.New("valuelog: checksum mismatch")

// recordHeaderSize is the fixed-size prefix before a record's payload:
//
//	compressed length (uint32) | uncompressed length (uint32) |
//	compression type (1 byte) | masked CRC32C of the compressed payload (uint32)
const recordHeaderSize = 4 + 4 + 1 + 4

// Log is an append-only file of compressed value records. All writes go
// through Append, which returns the offset a caller stores back into an
// SST item along with the record's on-disk length; all reads go through
// Read, which is given that same offset.
type Log struct {
	mu       sync.Mutex
	f        vfs.ReadWriteFile
	codec    compression.Type
	writeOff int64
	bufPool  *mempool.Pool
}

// Open opens or creates a value log at path under fs, appending after any
// existing content.
func Open(fsys vfs.FS, path string, codec compression.Type) (*Log, error) {
	f, err := fsys.OpenReadWrite(path)
	if err != nil {
		return nil, fmt.Errorf("valuelog: open %s: %w", path, err)
	}
	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("valuelog: stat %s: %w", path, err)
	}
	return &Log{f: f, codec: codec, writeOff: size, bufPool: mempool.NewPool()}, nil
}

// Append compresses value under the log's configured codec and writes it
// past the current end of the log. It returns the byte offset of the
// record (to store in an SST item) and the total on-disk size of the
// record, including its framing.
func (l *Log) Append(value []byte) (offset int64, onDiskSize uint32, err error) {
	codec := l.codec
	compressed, err := compression.Compress(codec, value)
	if err != nil && codec == compression.LZ4 {
		// LZ4 reports incompressible input as an error; store it raw.
		codec, compressed, err = compression.None, value, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("valuelog: compress: %w", err)
	}

	buf := make([]byte, recordHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(value)))
	buf[8] = byte(codec)
	binary.LittleEndian.PutUint32(buf[9:13], checksum.MaskedValue(compressed))
	copy(buf[recordHeaderSize:], compressed)

	l.mu.Lock()
	off := l.writeOff
	l.writeOff += int64(len(buf))
	l.mu.Unlock()

	if _, err := l.f.WriteAt(buf, off); err != nil {
		return 0, 0, fmt.Errorf("valuelog: write at %d: %w", off, err)
	}
	return off, uint32(len(buf)), nil
}

// Read decodes the value record beginning at offset.
func (l *Log) Read(offset int64) ([]byte, error) {
	head := l.bufPool.Get(recordHeaderSize)[:recordHeaderSize]
	defer l.bufPool.Put(head)
	if _, err := l.f.ReadAt(head, offset); err != nil {
		return nil, fmt.Errorf("valuelog: read header at %d: %w", offset, err)
	}
	compressedLen := binary.LittleEndian.Uint32(head[0:4])
	uncompressedLen := binary.LittleEndian.Uint32(head[4:8])
	codec := compression.Type(head[8])
	wantCRC := checksum.Unmask(binary.LittleEndian.Uint32(head[9:13]))

	payload := make([]byte, compressedLen)
	if _, err := l.f.ReadAt(payload, offset+recordHeaderSize); err != nil {
		return nil, fmt.Errorf("valuelog: read payload at %d: %w", offset, err)
	}
	if got := checksum.Value(payload); got != wantCRC {
		return nil, fmt.Errorf("%w: offset %d", ErrChecksumMismatch, offset)
	}

	value, err := compression.Decompress(codec, payload, int(uncompressedLen))
	if err != nil {
		return nil, fmt.Errorf("valuelog: decompress at %d: %w", offset, err)
	}
	return value, nil
}

// Sync flushes the log to stable storage. A caller must Sync the value log
// before the SST commits the index record that points into it, so a
// recovered index entry never outlives its value.
func (l *Log) Sync() error {
	return l.f.Sync()
}

// Size returns the current length of the log file.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeOff
}

// Close releases the log's file descriptor.
func (l *Log) Close() error {
	return l.f.Close()
}
