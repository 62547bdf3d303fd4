// Package binary provides the low-level encoding used to read and write HDF5
// structures: variable-width offsets and lengths, and metadata checksums.
package binary

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// Config describes how addresses and lengths are encoded in a file.
// It is fixed by the superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes
}

// DefaultConfig returns the little-endian, 8-byte offset/length configuration
// every file written by this module uses.
func DefaultConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// Validate checks that offset and length sizes are supported.
func (c Config) Validate() error {
	for _, s := range []int{c.OffsetSize, c.LengthSize} {
		if s != 2 && s != 4 && s != 8 {
			return ErrInvalidSize
		}
	}
	return nil
}

// undefined returns the all-ones sentinel for a field of the given width.
func undefined(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(uint(size)*8) - 1
}

func putUint(order binary.ByteOrder, buf []byte, v uint64, size int) {
	switch size {
	case 1:
		buf[0] = uint8(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	default:
		for i := 0; i < size; i++ {
			buf[i] = byte(v >> (8 * i))
		}
	}
}

func getUint(order binary.ByteOrder, buf []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	default:
		var v uint64
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(buf[i])
		}
		return v
	}
}
