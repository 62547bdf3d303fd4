package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/idia-astro/hdf5convert/internal/binary"
)

// Attribute is the attribute message (0x000C). It is written as version 3
// with an ASCII name.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// NewAttribute creates an attribute message.
func NewAttribute(name string, dt *Datatype, ds *Dataspace, data []byte) *Attribute {
	return &Attribute{Name: name, Datatype: dt, Dataspace: ds, Data: data}
}

// Serialize writes the version 3 message.
func (m *Attribute) Serialize(w *binpkg.Writer) error {
	w.WriteUint8(3)
	w.WriteUint8(0)
	w.WriteUint16(uint16(len(m.Name) + 1))
	w.WriteUint16(uint16(m.Datatype.SerializedSize(w)))
	w.WriteUint16(uint16(m.Dataspace.SerializedSize(w)))
	w.WriteUint8(0) // ASCII
	w.WriteBytes([]byte(m.Name))
	w.WriteUint8(0)
	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	return w.WriteBytes(m.Data)
}

// SerializedSize returns the encoded size.
func (m *Attribute) SerializedSize(w *binpkg.Writer) int {
	return 9 + len(m.Name) + 1 + m.Datatype.SerializedSize(w) + m.Dataspace.SerializedSize(w) + len(m.Data)
}

func parseAttribute(data []byte, r *binpkg.Reader) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short")
	}
	version := data[0]
	nameSize := int(binary.LittleEndian.Uint16(data[2:4]))
	dtSize := int(binary.LittleEndian.Uint16(data[4:6]))
	dsSize := int(binary.LittleEndian.Uint16(data[6:8]))

	// Version 1 pads each field to 8 bytes; version 3 adds a charset byte.
	pad := func(n int) int { return n }
	offset := 8
	switch version {
	case 1:
		pad = func(n int) int { return (n + 7) &^ 7 }
	case 2:
	case 3:
		offset = 9
	default:
		return nil, fmt.Errorf("unsupported attribute version: %d", version)
	}

	if offset+pad(nameSize) > len(data) {
		return nil, fmt.Errorf("attribute name truncated")
	}
	name := data[offset : offset+nameSize]
	for i, c := range name {
		if c == 0 {
			name = name[:i]
			break
		}
	}
	offset += pad(nameSize)

	if offset+pad(dtSize) > len(data) {
		return nil, fmt.Errorf("attribute %q datatype truncated", name)
	}
	dt, _, err := parseDatatype(data[offset : offset+dtSize])
	if err != nil {
		return nil, err
	}
	offset += pad(dtSize)

	if offset+dsSize > len(data) {
		return nil, fmt.Errorf("attribute %q dataspace truncated", name)
	}
	msg, err := Parse(TypeDataspace, data[offset:offset+dsSize], r)
	if err != nil {
		return nil, err
	}
	offset += pad(dsSize)
	if offset > len(data) {
		offset = len(data)
	}

	return &Attribute{
		Name:      string(name),
		Datatype:  dt,
		Dataspace: msg.(*Dataspace),
		Data:      append([]byte(nil), data[offset:]...),
	}, nil
}
