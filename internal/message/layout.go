package message

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
)

// LayoutClass represents the storage layout class.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
)

// ChunkIndexType identifies how chunk addresses are found (layout v4).
type ChunkIndexType uint8

const (
	ChunkIndexSingleChunk ChunkIndexType = 0
	// ChunkIndexImplicit stores chunk i at Address + i*chunkBytes, in
	// row-major order over the chunk grid. Requires early allocation.
	ChunkIndexImplicit ChunkIndexType = 1
)

// DataLayout is the data layout message (0x0008). Contiguous storage is
// written as version 3, chunked storage as version 4 with an implicit index.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Address of the contiguous block, or of the first chunk.
	Address uint64
	// Size of the contiguous block in bytes.
	Size uint64

	// ChunkDims holds the chunk shape followed by the element size.
	ChunkDims      []uint64
	ChunkIndexType ChunkIndexType
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// IsChunked reports whether data is stored in chunks.
func (m *DataLayout) IsChunked() bool { return m.Class == LayoutChunked }

// ChunkShape returns the chunk dimensions without the trailing element size.
func (m *DataLayout) ChunkShape() []uint64 {
	if len(m.ChunkDims) == 0 {
		return nil
	}
	return m.ChunkDims[:len(m.ChunkDims)-1]
}

// NewContiguousLayout creates a version 3 contiguous layout.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// NewChunkedLayout creates a version 4 chunked layout with an implicit
// index whose first chunk is at addr.
func NewChunkedLayout(chunk []uint64, elemSize uint64, addr uint64) *DataLayout {
	dims := append(append([]uint64(nil), chunk...), elemSize)
	return &DataLayout{
		Version:        4,
		Class:          LayoutChunked,
		Address:        addr,
		ChunkDims:      dims,
		ChunkIndexType: ChunkIndexImplicit,
	}
}

// dimSizeBytes returns the encoded width of each chunk dimension.
func (m *DataLayout) dimSizeBytes() int {
	maxDim := uint64(0)
	for _, d := range m.ChunkDims {
		if d > maxDim {
			maxDim = d
		}
	}
	switch {
	case maxDim <= 0xFF:
		return 1
	case maxDim <= 0xFFFF:
		return 2
	case maxDim <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

// Serialize writes the layout message.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	switch m.Class {
	case LayoutContiguous:
		w.WriteUint8(3)
		w.WriteUint8(uint8(LayoutContiguous))
		w.WriteOffset(m.Address)
		return w.WriteLength(m.Size)
	case LayoutChunked:
		w.WriteUint8(4)
		w.WriteUint8(uint8(LayoutChunked))
		w.WriteUint8(0) // flags
		w.WriteUint8(uint8(len(m.ChunkDims)))
		size := m.dimSizeBytes()
		w.WriteUint8(uint8(size))
		for _, d := range m.ChunkDims {
			w.WriteUintN(d, size)
		}
		w.WriteUint8(uint8(m.ChunkIndexType))
		return w.WriteOffset(m.Address)
	default:
		return fmt.Errorf("unsupported layout class %d", m.Class)
	}
}

// SerializedSize returns the encoded size.
func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	switch m.Class {
	case LayoutContiguous:
		return 2 + w.OffsetSize() + w.LengthSize()
	case LayoutChunked:
		return 5 + len(m.ChunkDims)*m.dimSizeBytes() + 1 + w.OffsetSize()
	default:
		return 0
	}
}

func parseDataLayout(r *binary.Reader) (*DataLayout, error) {
	head, err := r.ReadBytes(2)
	if err != nil {
		return nil, fmt.Errorf("layout message too short")
	}
	m := &DataLayout{Version: head[0], Class: LayoutClass(head[1])}
	if m.Version < 3 {
		return nil, fmt.Errorf("unsupported layout version %d", m.Version)
	}

	switch m.Class {
	case LayoutContiguous:
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, err
		}
		if m.Size, err = r.ReadLength(); err != nil {
			return nil, err
		}
	case LayoutChunked:
		if m.Version < 4 {
			return nil, fmt.Errorf("chunked layout version %d not supported", m.Version)
		}
		hdr, err := r.ReadBytes(3)
		if err != nil {
			return nil, err
		}
		ndims, size := int(hdr[1]), int(hdr[2])
		m.ChunkDims = make([]uint64, ndims)
		for i := range m.ChunkDims {
			if m.ChunkDims[i], err = r.ReadUintN(size); err != nil {
				return nil, err
			}
		}
		idx, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		m.ChunkIndexType = ChunkIndexType(idx)
		if m.ChunkIndexType != ChunkIndexImplicit {
			return nil, fmt.Errorf("chunk index type %d not supported", idx)
		}
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported layout class %d", m.Class)
	}
	return m, nil
}
