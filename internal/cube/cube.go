// Package cube describes the shape of an image cube and derives the shapes
// of everything computed from it: statistics per granularity, mipmap
// levels, the swizzled copy, chunk shapes and dataset sub-regions.
//
// A cube is indexed [stokes][depth][height][width], width varying fastest.
// Output datasets keep the rank of the source image, so a 2D image gives
// [height, width] datasets and a 3D image [depth, height, width].
package cube

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrDims = errors.New("invalid cube dimensions")

const (
	// DefaultDataChunk is the spatial tile edge of DATA and mipmap chunks.
	DefaultDataChunk = 512

	swizzleChunkXY = 16
	swizzleChunkZ  = 256
)

// Dims is the shape of a cube and the rank of the image it came from.
type Dims struct {
	Stokes, Depth, Height, Width int

	// Rank is 2, 3 or 4.
	Rank int
}

// FromShape builds Dims from an image shape given slowest axis first.
// Degenerate axes beyond the fourth are dropped.
func FromShape(shape []uint64) (Dims, error) {
	for len(shape) > 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) < 2 || len(shape) > 4 {
		return Dims{}, fmt.Errorf("%w: %d axes, need 2 to 4 non-degenerate axes", ErrDims, len(shape))
	}
	for i, n := range shape {
		if n < 1 || n > math.MaxInt32 {
			return Dims{}, fmt.Errorf("%w: axis %d has size %d", ErrDims, len(shape)-i, n)
		}
	}

	d := Dims{Stokes: 1, Depth: 1, Rank: len(shape)}
	r := len(shape)
	d.Width, d.Height = int(shape[r-1]), int(shape[r-2])
	if r >= 3 {
		d.Depth = int(shape[r-3])
	}
	if r == 4 {
		d.Stokes = int(shape[0])
	}
	return d, d.Validate()
}

// New returns 4D Dims.
func New(stokes, depth, height, width int) (Dims, error) {
	d := Dims{Stokes: stokes, Depth: depth, Height: height, Width: width, Rank: 4}
	return d, d.Validate()
}

// Validate checks that every dimension is positive and that the cube's
// float32 byte size is addressable.
func (d Dims) Validate() error {
	if d.Rank < 2 || d.Rank > 4 {
		return fmt.Errorf("%w: rank %d", ErrDims, d.Rank)
	}
	if d.Stokes < 1 || d.Depth < 1 || d.Height < 1 || d.Width < 1 {
		return fmt.Errorf("%w: %s has a non-positive axis", ErrDims, d)
	}
	if (d.Rank < 4 && d.Stokes != 1) || (d.Rank < 3 && d.Depth != 1) {
		return fmt.Errorf("%w: %s does not fit rank %d", ErrDims, d, d.Rank)
	}
	n := uint64(1)
	for _, v := range []int{d.Stokes, d.Depth, d.Height, d.Width} {
		if n > math.MaxInt/4/uint64(v) {
			return fmt.Errorf("%w: %s overflows addressable memory", ErrDims, d)
		}
		n *= uint64(v)
	}
	return nil
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%dx%d (stokes x depth x height x width)", d.Stokes, d.Depth, d.Height, d.Width)
}

// Elements returns the number of samples in the cube.
func (d Dims) Elements() int { return d.Stokes * d.Depth * d.Height * d.Width }

// PlaneSize returns the number of samples in one XY plane.
func (d Dims) PlaneSize() int { return d.Height * d.Width }

// Planes returns the number of XY planes, stokes times depth.
func (d Dims) Planes() int { return d.Stokes * d.Depth }

// withRank trims a full [stokes, depth, y, x] vector to the image rank.
func (d Dims) withRank(v [4]uint64) []uint64 {
	return append([]uint64(nil), v[4-d.Rank:]...)
}

// DataShape returns the shape of the DATA dataset.
func (d Dims) DataShape() []uint64 {
	return d.withRank([4]uint64{uint64(d.Stokes), uint64(d.Depth), uint64(d.Height), uint64(d.Width)})
}

// DataChunks returns the chunk shape of the DATA dataset: one plane tile.
func (d Dims) DataChunks(tile int) []uint64 {
	return d.planeChunks(d.Height, d.Width, tile)
}

func (d Dims) planeChunks(h, w, tile int) []uint64 {
	if tile < 1 {
		tile = DefaultDataChunk
	}
	return d.withRank([4]uint64{1, 1, uint64(min(tile, h)), uint64(min(tile, w))})
}

// PlaneRegion returns the selection of plane (s, z) in a dataset of the
// image rank whose planes are h by w.
func (d Dims) PlaneRegion(s, z, h, w int) (start, count []uint64) {
	start = d.withRank([4]uint64{uint64(s), uint64(z), 0, 0})
	count = d.withRank([4]uint64{1, 1, uint64(h), uint64(w)})
	return start, count
}

// HasSwizzle reports whether a swizzled copy is produced: only for images
// with a depth axis longer than one.
func (d Dims) HasSwizzle() bool {
	return d.Rank >= 3 && d.Depth > 1
}

// SwizzledName returns the swizzled dataset name, named by its axes from
// slowest to fastest as seen from FITS order.
func (d Dims) SwizzledName() string {
	if d.Rank == 4 {
		return "ZYXW"
	}
	return "ZYX"
}

// SwizzledShape returns the shape of the swizzled dataset,
// [stokes][width][height][depth] trimmed to the image rank.
func (d Dims) SwizzledShape() []uint64 {
	return d.withRank([4]uint64{uint64(d.Stokes), uint64(d.Width), uint64(d.Height), uint64(d.Depth)})
}

// SwizzledChunks returns the chunk shape of the swizzled dataset.
func (d Dims) SwizzledChunks() []uint64 {
	return d.withRank([4]uint64{
		1,
		uint64(min(d.Width, swizzleChunkXY)),
		uint64(min(d.Height, swizzleChunkXY)),
		uint64(min(d.Depth, swizzleChunkZ)),
	})
}

// SwizzledRegion returns the selection of columns [w0, w0+nw) of stokes s in
// the swizzled dataset.
func (d Dims) SwizzledRegion(s, w0, nw int) (start, count []uint64) {
	start = d.withRank([4]uint64{uint64(s), uint64(w0), 0, 0})
	count = d.withRank([4]uint64{1, uint64(nw), uint64(d.Height), uint64(d.Depth)})
	return start, count
}

// DefaultBins returns the automatic histogram bin count for a plane,
// max(sqrt(width*height), 2).
func (d Dims) DefaultBins() int {
	return int(math.Max(math.Sqrt(float64(d.Width)*float64(d.Height)), 2))
}

// Level is one level of the mipmap pyramid. Level 0 is full resolution.
type Level struct {
	Index         int
	Height, Width int
}

// Factor returns the downsampling factor of the level, 2^Index.
func (l Level) Factor() int { return 1 << l.Index }

// Name returns the dataset name of the level, e.g. "DATA_XY_2".
func (l Level) Name() string { return "DATA_XY_" + strconv.Itoa(l.Factor()) }

// Size returns the number of samples in one plane of the level.
func (l Level) Size() int { return l.Height * l.Width }

// Next returns the level below l: each spatial axis halved, rounding up.
func (l Level) Next() Level {
	return Level{Index: l.Index + 1, Height: (l.Height + 1) / 2, Width: (l.Width + 1) / 2}
}

// MipmapLevels returns the pyramid from full resolution down to the first
// level whose height and width are both at most minSize.
func (d Dims) MipmapLevels(minSize int) []Level {
	minSize = max(minSize, 1)
	l := Level{Height: d.Height, Width: d.Width}
	levels := []Level{l}
	for l.Height > minSize || l.Width > minSize {
		l = l.Next()
		levels = append(levels, l)
	}
	return levels
}

// MipmapShape returns the dataset shape of level l.
func (d Dims) MipmapShape(l Level) []uint64 {
	return d.withRank([4]uint64{uint64(d.Stokes), uint64(d.Depth), uint64(l.Height), uint64(l.Width)})
}

// MipmapChunks returns the chunk shape of level l.
func (d Dims) MipmapChunks(l Level, tile int) []uint64 {
	return d.planeChunks(l.Height, l.Width, tile)
}
