// Package compression implements the value-log's optional per-record
// compression. The SST itself never compresses an index record — items are
// fixed-size and participate in positional reads — but the external value
// log this module provides compresses the variable-length payload a record
// points at.
package compression

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a value-log record's compression codec.
type Type uint8

const (
	// None stores the value verbatim.
	None Type = 0
	// Snappy compresses with Google Snappy: cheap, low ratio.
	Snappy Type = 1
	// LZ4 compresses with LZ4 block format: balanced.
	LZ4 Type = 2
	// Zstd compresses with Zstandard: highest ratio, highest cost.
	Zstd Type = 3
)

func (t Type) String() string {
	switch t {
	case None:
		return "None"
	case Snappy:
		return "Snappy"
	case LZ4:
		return "LZ4"
	case Zstd:
		return "Zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Compress encodes data under the given codec.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("compression: unsupported type %s", t)
	}
}

// Decompress decodes data previously produced by Compress with the same
// codec. originalSize is the uncompressed length, required by LZ4's raw
// block format; pass 0 if unknown (LZ4 will fall back to growing buffers).
func Decompress(t Type, data []byte, originalSize int) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case Snappy:
		return snappy.Decode(nil, data)
	case LZ4:
		return decompressLZ4(data, originalSize)
	case Zstd:
		return decompressZstd(data)
	default:
		return nil, fmt.Errorf("compression: unsupported type %s", t)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var ht [1 << 16]int
	n, err := lz4.CompressBlock(data, dst, ht[:])
	if err != nil {
		return nil, fmt.Errorf("compression: lz4 compress: %w", err)
	}
	if n == 0 {
		// incompressible: caller stores it under None instead.
		return nil, fmt.Errorf("compression: lz4 produced no savings")
	}
	return dst[:n], nil
}

func decompressLZ4(data []byte, originalSize int) ([]byte, error) {
	if originalSize > 0 {
		dst := make([]byte, originalSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("compression: lz4 decompress: %w", err)
		}
		return dst[:n], nil
	}

	bufSize := max(len(data)*4, 256)
	for range 10 {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err == nil {
			return dst[:n], nil
		}
		bufSize *= 2
	}
	return nil, fmt.Errorf("compression: lz4 decompress: buffer too small after retries")
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("compression: zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compression: zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("compression: zstd decode: %w", err)
	}
	return out, nil
}
