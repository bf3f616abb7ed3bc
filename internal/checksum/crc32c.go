// Package checksum provides the CRC32C (Castagnoli) integrity check used
// to detect torn or corrupted value-log records. The SST header and level
// regions carry no checksum.
package checksum

import "hash/crc32"

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is added/subtracted during masking so that a CRC embedded inside
// the data it protects does not trivially reproduce another valid CRC.
const maskDelta = 0xa282ead8

// Value computes the CRC32C (Castagnoli) checksum of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// Mask returns a masked representation of crc, safe to store alongside the
// data it was computed over.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask reverses Mask.
func Unmask(maskedCRC uint32) uint32 {
	rot := maskedCRC - maskDelta
	return (rot >> 17) | (rot << 15)
}

// MaskedValue computes and masks the CRC32C of data in one call.
func MaskedValue(data []byte) uint32 {
	return Mask(Value(data))
}
