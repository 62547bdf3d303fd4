package message

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
)

// Link is a hard link message (0x0006) stored in a compact group.
type Link struct {
	Name          string
	ObjectAddress uint64
}

func (m *Link) Type() Type { return TypeLink }

// NewHardLink creates a hard link to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Name: name, ObjectAddress: addr}
}

func nameLenSize(n int) (size int, bits uint8) {
	switch {
	case n <= 0xFF:
		return 1, 0
	case n <= 0xFFFF:
		return 2, 1
	default:
		return 4, 2
	}
}

// Serialize writes a version 1 hard link.
func (m *Link) Serialize(w *binary.Writer) error {
	size, bits := nameLenSize(len(m.Name))
	w.WriteUint8(1)
	w.WriteUint8(bits)
	w.WriteUintN(uint64(len(m.Name)), size)
	w.WriteBytes([]byte(m.Name))
	return w.WriteOffset(m.ObjectAddress)
}

// SerializedSize returns the encoded size.
func (m *Link) SerializedSize(w *binary.Writer) int {
	size, _ := nameLenSize(len(m.Name))
	return 2 + size + len(m.Name) + w.OffsetSize()
}

func parseLink(r *binary.Reader) (*Link, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported link version %d", version)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	linkType := uint8(0)
	if flags&0x08 != 0 {
		if linkType, err = r.ReadUint8(); err != nil {
			return nil, err
		}
	}
	if flags&0x04 != 0 {
		r.Skip(8) // creation order
	}
	if flags&0x10 != 0 {
		r.Skip(1) // charset
	}
	nameLen, err := r.ReadUintN(1 << (flags & 0x03))
	if err != nil {
		return nil, err
	}
	name, err := r.ReadBytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	if linkType != 0 {
		return nil, fmt.Errorf("link %q: only hard links are supported", name)
	}
	addr, err := r.ReadOffset()
	if err != nil {
		return nil, err
	}
	return &Link{Name: string(name), ObjectAddress: addr}, nil
}

// LinkInfo is the link info message (0x0002) of a compact group: no dense
// storage and no creation order tracking.
type LinkInfo struct{}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Serialize writes version 0 with undefined heap and name index addresses.
func (m *LinkInfo) Serialize(w *binary.Writer) error {
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteUndefinedOffset()
	return w.WriteUndefinedOffset()
}

// SerializedSize returns the encoded size.
func (m *LinkInfo) SerializedSize(w *binary.Writer) int {
	return 2 + 2*w.OffsetSize()
}

// GroupInfo is the group info message (0x000A) with default phase change
// values.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

// Serialize writes version 0 with no optional fields.
func (m *GroupInfo) Serialize(w *binary.Writer) error {
	w.WriteUint8(0)
	return w.WriteUint8(0)
}

// SerializedSize returns the encoded size.
func (m *GroupInfo) SerializedSize(w *binary.Writer) int { return 2 }
