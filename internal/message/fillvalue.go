package message

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
)

// Space allocation times.
const (
	AllocTimeEarly uint8 = 1
	AllocTimeLate  uint8 = 2
)

// Fill value write times.
const (
	FillTimeAlloc uint8 = 0
	FillTimeNever uint8 = 1
	FillTimeIfSet uint8 = 2
)

// FillValue is the fill value message (0x0005), written as version 3.
type FillValue struct {
	AllocTime uint8
	FillTime  uint8
	// Value is nil when no fill value is defined.
	Value []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

// NewEarlyFillValue returns the message required for implicitly indexed
// chunked datasets: space allocated at creation, no user fill value.
func NewEarlyFillValue() *FillValue {
	return &FillValue{AllocTime: AllocTimeEarly, FillTime: FillTimeIfSet}
}

func (m *FillValue) flags() uint8 {
	f := m.AllocTime&0x03 | (m.FillTime&0x03)<<2
	if m.Value != nil {
		f |= 0x20
	}
	return f
}

// Serialize writes the version 3 message.
func (m *FillValue) Serialize(w *binary.Writer) error {
	w.WriteUint8(3)
	if err := w.WriteUint8(m.flags()); err != nil {
		return err
	}
	if m.Value == nil {
		return nil
	}
	w.WriteUint32(uint32(len(m.Value)))
	return w.WriteBytes(m.Value)
}

// SerializedSize returns the encoded size.
func (m *FillValue) SerializedSize(w *binary.Writer) int {
	if m.Value == nil {
		return 2
	}
	return 6 + len(m.Value)
}

func parseFillValue(r *binary.Reader) (*FillValue, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 3 {
		return &FillValue{}, nil
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("fill value message too short")
	}
	m := &FillValue{AllocTime: flags & 0x03, FillTime: (flags >> 2) & 0x03}
	if flags&0x20 != 0 {
		n, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if m.Value, err = r.ReadBytes(int(n)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
