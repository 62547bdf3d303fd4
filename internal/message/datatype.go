package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/idia-astro/hdf5convert/internal/binary"
)

// DatatypeClass represents the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassString     DatatypeClass = 3
)

// Datatype is the datatype message (0x0003). Only atomic little-endian
// integers, IEEE floats and fixed-length strings are written; other classes
// are kept as raw properties when read.
type Datatype struct {
	Class      DatatypeClass
	Version    uint8
	ClassBits  uint32
	Size       uint32
	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsFloat reports whether this is a floating-point type.
func (m *Datatype) IsFloat() bool { return m.Class == ClassFloatPoint }

// IsInteger reports whether this is a fixed-point type.
func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }

// IsString reports whether this is a fixed-length string type.
func (m *Datatype) IsString() bool { return m.Class == ClassString }

// Signed reports whether a fixed-point type is signed.
func (m *Datatype) Signed() bool { return m.Class == ClassFixedPoint && m.ClassBits&0x08 != 0 }

// BigEndian reports whether a numeric type is stored big-endian.
func (m *Datatype) BigEndian() bool {
	return (m.Class == ClassFixedPoint || m.Class == ClassFloatPoint) && m.ClassBits&0x01 != 0
}

func (m *Datatype) String() string {
	switch m.Class {
	case ClassFloatPoint:
		return fmt.Sprintf("float%d", m.Size*8)
	case ClassFixedPoint:
		if m.Signed() {
			return fmt.Sprintf("int%d", m.Size*8)
		}
		return fmt.Sprintf("uint%d", m.Size*8)
	case ClassString:
		return fmt.Sprintf("string[%d]", m.Size)
	default:
		return fmt.Sprintf("class%d[%d]", m.Class, m.Size)
	}
}

// NewFloat returns a little-endian IEEE 754 type of 4 or 8 bytes.
func NewFloat(size uint32) *Datatype {
	props := make([]byte, 12)
	switch size {
	case 4:
		binary.LittleEndian.PutUint16(props[2:], 32)
		props[4], props[5], props[6], props[7] = 23, 8, 0, 23
		binary.LittleEndian.PutUint32(props[8:], 127)
	case 8:
		binary.LittleEndian.PutUint16(props[2:], 64)
		props[4], props[5], props[6], props[7] = 52, 11, 0, 52
		binary.LittleEndian.PutUint32(props[8:], 1023)
	}
	// Mantissa normalization "implied" (bits 4-5 = 2), sign at bit size*8-1.
	bits := uint32(0x20) | (size*8-1)<<8
	return &Datatype{Class: ClassFloatPoint, Version: 1, ClassBits: bits, Size: size, Properties: props}
}

// NewInteger returns a little-endian fixed-point type.
func NewInteger(size uint32, signed bool) *Datatype {
	props := make([]byte, 4)
	binary.LittleEndian.PutUint16(props[2:], uint16(size*8))
	bits := uint32(0)
	if signed {
		bits |= 0x08
	}
	return &Datatype{Class: ClassFixedPoint, Version: 1, ClassBits: bits, Size: size, Properties: props}
}

// NewFixedString returns a null-padded ASCII string type of size bytes.
func NewFixedString(size uint32) *Datatype {
	return &Datatype{Class: ClassString, Version: 1, ClassBits: 0x01, Size: size}
}

// Serialize writes the class/version byte, 24 class bits, size and
// properties.
func (m *Datatype) Serialize(w *binpkg.Writer) error {
	version := m.Version
	if version == 0 {
		version = 1
	}
	w.WriteUint8(uint8(m.Class) | version<<4)
	w.WriteUint8(uint8(m.ClassBits))
	w.WriteUint8(uint8(m.ClassBits >> 8))
	w.WriteUint8(uint8(m.ClassBits >> 16))
	if err := w.WriteUint32(m.Size); err != nil {
		return err
	}
	return w.WriteBytes(m.Properties)
}

// SerializedSize returns the encoded size.
func (m *Datatype) SerializedSize(w *binpkg.Writer) int {
	return 8 + len(m.Properties)
}

// parseDatatype decodes a datatype and returns the bytes consumed.
func parseDatatype(data []byte) (*Datatype, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("datatype message too short")
	}
	dt := &Datatype{
		Class:     DatatypeClass(data[0] & 0x0F),
		Version:   data[0] >> 4,
		ClassBits: uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16,
		Size:      binary.LittleEndian.Uint32(data[4:8]),
	}
	n := len(data) - 8
	switch dt.Class {
	case ClassFixedPoint:
		n = 4
	case ClassFloatPoint:
		n = 12
	case ClassString:
		n = 0
	}
	if 8+n > len(data) {
		return nil, 0, fmt.Errorf("datatype properties truncated")
	}
	dt.Properties = append([]byte(nil), data[8:8+n]...)
	return dt, 8 + n, nil
}
