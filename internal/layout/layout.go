// Package layout maps hyperslab selections of a dataset onto the file.
//
// A selection (start, count) is decomposed into runs: maximal stretches of
// elements that are contiguous both in the file and in the row-major buffer
// holding the selection. Callers encode or decode each run independently, so
// partial writes into contiguous and chunked storage share one code path.
//
// Chunked datasets use the implicit chunk index: chunk i of the row-major
// chunk grid is stored at base + i*chunkBytes, edge chunks at full size.
package layout

import (
	"errors"
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/message"
)

var ErrSelection = errors.New("selection out of bounds")

// Run is a stretch of N elements that starts at byte address Addr in the
// file and at element Index of the selection buffer.
type Run struct {
	Addr  uint64
	Index int
	N     int
}

// Layout enumerates the file runs of a selection.
type Layout interface {
	Class() message.LayoutClass
	// Runs calls fn for each run of the selection, in file order within
	// each chunk.
	Runs(start, count []uint64, fn func(Run) error) error
	// StorageSize is the number of bytes reserved in the file.
	StorageSize() uint64
}

// New returns the layout of a dataset with the given shape and element size.
func New(msg *message.DataLayout, dims []uint64, elemSize uint64) (Layout, error) {
	switch msg.Class {
	case message.LayoutContiguous:
		return &Contiguous{addr: msg.Address, dims: dims, elemSize: elemSize}, nil
	case message.LayoutChunked:
		if msg.ChunkIndexType != message.ChunkIndexImplicit {
			return nil, fmt.Errorf("chunk index type %d not supported", msg.ChunkIndexType)
		}
		return NewChunked(msg.Address, dims, msg.ChunkShape(), elemSize)
	default:
		return nil, fmt.Errorf("layout class %d not supported", msg.Class)
	}
}

// checkSelection validates start/count against dims.
func checkSelection(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("%w: selection rank %d/%d, dataset rank %d", ErrSelection, len(start), len(count), len(dims))
	}
	for i := range dims {
		if start[i]+count[i] > dims[i] {
			return fmt.Errorf("%w: dimension %d: [%d, %d) exceeds %d", ErrSelection, i, start[i], start[i]+count[i], dims[i])
		}
	}
	return nil
}

// Elements returns the product of dims.
func Elements(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

func strides(dims []uint64) []uint64 {
	s := make([]uint64, len(dims))
	acc := uint64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= dims[i]
	}
	return s
}

// space is a row-major index space with an origin in dataset coordinates.
type space struct {
	dims    []uint64
	origin  []uint64
	strides []uint64
}

func newSpace(dims, origin []uint64) space {
	return space{dims: dims, origin: origin, strides: strides(dims)}
}

func (s space) index(coord []uint64) uint64 {
	var idx uint64
	for i, c := range coord {
		idx += (c - s.origin[i]) * s.strides[i]
	}
	return idx
}

// boxRuns walks the box [lo, lo+n) and calls fn with the index of each run
// in spaces a and b and its length. Trailing dimensions the box covers
// completely in both spaces are merged into one run.
func boxRuns(lo, n []uint64, a, b space, fn func(ai, bi, length uint64) error) error {
	rank := len(lo)
	for _, c := range n {
		if c == 0 {
			return nil
		}
	}
	if rank == 0 {
		return fn(0, 0, 1)
	}

	// k is the outermost dimension of a merged run.
	k := rank - 1
	for k > 0 && n[k] == a.dims[k] && n[k] == b.dims[k] {
		k--
	}
	length := uint64(1)
	for i := k; i < rank; i++ {
		length *= n[i]
	}

	coord := append([]uint64(nil), lo...)
	for {
		if err := fn(a.index(coord), b.index(coord), length); err != nil {
			return err
		}
		// Odometer over dimensions [0, k).
		i := k - 1
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < lo[i]+n[i] {
				break
			}
			coord[i] = lo[i]
		}
		if i < 0 {
			return nil
		}
	}
}

// Contiguous stores the dataset as a single row-major block.
type Contiguous struct {
	addr     uint64
	dims     []uint64
	elemSize uint64
}

// NewContiguous returns a contiguous layout at addr.
func NewContiguous(addr uint64, dims []uint64, elemSize uint64) *Contiguous {
	return &Contiguous{addr: addr, dims: dims, elemSize: elemSize}
}

func (c *Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

func (c *Contiguous) StorageSize() uint64 { return Elements(c.dims) * c.elemSize }

func (c *Contiguous) Runs(start, count []uint64, fn func(Run) error) error {
	if err := checkSelection(c.dims, start, count); err != nil {
		return err
	}
	file := newSpace(c.dims, make([]uint64, len(c.dims)))
	sel := newSpace(count, start)
	return boxRuns(start, count, file, sel, func(fi, si, n uint64) error {
		return fn(Run{Addr: c.addr + fi*c.elemSize, Index: int(si), N: int(n)})
	})
}

// Chunked stores the dataset as equally sized chunks with an implicit index.
type Chunked struct {
	addr       uint64
	dims       []uint64
	chunk      []uint64
	elemSize   uint64
	grid       []uint64
	chunkBytes uint64
}

// NewChunked returns a chunked layout whose first chunk is at addr.
func NewChunked(addr uint64, dims, chunk []uint64, elemSize uint64) (*Chunked, error) {
	if len(chunk) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(chunk), len(dims))
	}
	grid := make([]uint64, len(dims))
	for i := range dims {
		if chunk[i] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", i)
		}
		grid[i] = (dims[i] + chunk[i] - 1) / chunk[i]
	}
	return &Chunked{
		addr:       addr,
		dims:       dims,
		chunk:      chunk,
		elemSize:   elemSize,
		grid:       grid,
		chunkBytes: Elements(chunk) * elemSize,
	}, nil
}

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

// NumChunks returns the number of chunks in the grid.
func (c *Chunked) NumChunks() uint64 { return Elements(c.grid) }

// ChunkBytes returns the size of one chunk in bytes.
func (c *Chunked) ChunkBytes() uint64 { return c.chunkBytes }

func (c *Chunked) StorageSize() uint64 { return c.NumChunks() * c.chunkBytes }

func (c *Chunked) Runs(start, count []uint64, fn func(Run) error) error {
	if err := checkSelection(c.dims, start, count); err != nil {
		return err
	}
	rank := len(c.dims)
	if Elements(count) == 0 {
		return nil
	}

	first := make([]uint64, rank)
	last := make([]uint64, rank)
	for i := range c.dims {
		first[i] = start[i] / c.chunk[i]
		last[i] = (start[i] + count[i] - 1) / c.chunk[i]
	}

	sel := newSpace(count, start)
	gridStrides := strides(c.grid)
	cc := append([]uint64(nil), first...)
	origin := make([]uint64, rank)
	lo := make([]uint64, rank)
	n := make([]uint64, rank)
	for {
		var chunkIdx uint64
		for i := range cc {
			origin[i] = cc[i] * c.chunk[i]
			lo[i] = max(start[i], origin[i])
			hi := min(start[i]+count[i], origin[i]+c.chunk[i])
			n[i] = hi - lo[i]
			chunkIdx += cc[i] * gridStrides[i]
		}
		base := c.addr + chunkIdx*c.chunkBytes
		local := newSpace(c.chunk, origin)
		err := boxRuns(lo, n, local, sel, func(ci, si, length uint64) error {
			return fn(Run{Addr: base + ci*c.elemSize, Index: int(si), N: int(length)})
		})
		if err != nil {
			return err
		}

		i := rank - 1
		for ; i >= 0; i-- {
			cc[i]++
			if cc[i] <= last[i] {
				break
			}
			cc[i] = first[i]
		}
		if i < 0 {
			return nil
		}
	}
}
