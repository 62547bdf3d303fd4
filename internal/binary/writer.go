package binary

import (
	"encoding/binary"
	"io"
)

// Writer writes HDF5 binary fields at an explicit position of an io.WriterAt.
// Positions are independent per Writer, so several writers may share one file.
type Writer struct {
	w          io.WriterAt
	order      binary.ByteOrder
	offsetSize int
	lengthSize int
	pos        int64
	scratch    [8]byte
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{
		w:          w,
		order:      cfg.ByteOrder,
		offsetSize: cfg.OffsetSize,
		lengthSize: cfg.LengthSize,
	}
}

// At returns a writer sharing the destination, positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{
		w:          w.w,
		order:      w.order,
		offsetSize: w.offsetSize,
		lengthSize: w.lengthSize,
		pos:        offset,
	}
}

// Config returns the encoding configuration of this writer.
func (w *Writer) Config() Config {
	return Config{ByteOrder: w.order, OffsetSize: w.offsetSize, LengthSize: w.lengthSize}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes data at the current position and advances it.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteUintN(uint64(v), 1)
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteUintN(uint64(v), 2)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteUintN(uint64(v), 4)
}

// WriteUintN writes an unsigned integer n bytes wide (n <= 8).
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := w.scratch[:n]
	putUint(w.order, buf, v, n)
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address using the configured offset size.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.offsetSize)
}

// WriteLength writes a length using the configured length size.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.lengthSize)
}

// UndefinedOffset returns the all-ones "undefined address" for this writer.
func (w *Writer) UndefinedOffset() uint64 {
	return undefined(w.offsetSize)
}

// WriteUndefinedOffset writes the undefined address sentinel.
func (w *Writer) WriteUndefinedOffset() error {
	return w.WriteOffset(w.UndefinedOffset())
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// OffsetSize returns the configured offset size in bytes.
func (w *Writer) OffsetSize() int {
	return w.offsetSize
}

// LengthSize returns the configured length size in bytes.
func (w *Writer) LengthSize() int {
	return w.lengthSize
}

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.order
}

// Buffer is a growable in-memory io.WriterAt. Checksummed structures are
// assembled in a Buffer and copied to the file in one write.
type Buffer struct {
	buf []byte
}

// NewBuffer returns a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// WriteAt implements io.WriterAt, growing the buffer as required.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// Bytes returns the buffered bytes.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// NewBufferWriter returns a Writer that encodes into a fresh Buffer.
func NewBufferWriter(cfg Config, capacity int) (*Writer, *Buffer) {
	b := NewBuffer(capacity)
	return NewWriter(b, cfg), b
}
