package message

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
)

// DataspaceType represents the type of dataspace.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the dataspace message (0x0001). It is always written as
// version 2.
type Dataspace struct {
	Version    uint8
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil means fixed size
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int { return len(m.Dimensions) }

// NumElements returns the number of elements in the dataspace.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	default:
		return 0
	}
}

// IsScalar reports whether this is a scalar dataspace.
func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }

// NewDataspace creates a simple dataspace with the given dimensions.
func NewDataspace(dims []uint64) *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceSimple, Dimensions: dims}
}

// NewScalarDataspace creates a scalar dataspace.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}

// Serialize writes version 2: version, rank, flags, type, then dimensions
// and optional maximum dimensions as lengths.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	flags := uint8(0)
	if len(m.MaxDims) > 0 {
		flags |= 0x01
	}
	w.WriteUint8(2)
	w.WriteUint8(uint8(len(m.Dimensions)))
	w.WriteUint8(flags)
	if err := w.WriteUint8(uint8(m.SpaceType)); err != nil {
		return err
	}
	for _, d := range m.Dimensions {
		if err := w.WriteLength(d); err != nil {
			return err
		}
	}
	for _, d := range m.MaxDims {
		if err := w.WriteLength(d); err != nil {
			return err
		}
	}
	return nil
}

// SerializedSize returns the encoded size.
func (m *Dataspace) SerializedSize(w *binary.Writer) int {
	return 4 + (len(m.Dimensions)+len(m.MaxDims))*w.LengthSize()
}

func parseDataspace(r *binary.Reader) (*Dataspace, error) {
	head, err := r.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("dataspace message too short")
	}
	ds := &Dataspace{Version: head[0]}
	rank := int(head[1])
	hasMax := head[2]&0x01 != 0

	switch ds.Version {
	case 1:
		ds.SpaceType = DataspaceSimple
		if rank == 0 {
			ds.SpaceType = DataspaceScalar
		}
		r.Skip(4)
	case 2:
		ds.SpaceType = DataspaceType(head[3])
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", ds.Version)
	}
	if ds.SpaceType != DataspaceSimple {
		return ds, nil
	}

	ds.Dimensions = make([]uint64, rank)
	for i := range ds.Dimensions {
		if ds.Dimensions[i], err = r.ReadLength(); err != nil {
			return nil, fmt.Errorf("dataspace message truncated reading dimensions")
		}
	}
	if hasMax {
		ds.MaxDims = make([]uint64, rank)
		for i := range ds.MaxDims {
			if ds.MaxDims[i], err = r.ReadLength(); err != nil {
				return nil, fmt.Errorf("dataspace message truncated reading max dimensions")
			}
		}
	}
	return ds, nil
}
