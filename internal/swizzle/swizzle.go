// Package swizzle permutes an image cube from [depth][height][width] to
// [width][height][depth] order, so each spectral profile is contiguous.
//
// Rotate transposes a fully resident cube in square tiles. Scatter places
// one plane of a column block into a block buffer, for callers that read
// the source slab by slab instead of holding it in memory.
package swizzle

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	ErrShape = errors.New("swizzle shape mismatch")
	ErrAlloc = errors.New("cannot allocate swizzle buffer")
)

// DefaultTile is the tile edge used by Rotate when none is given. A 32x32
// float32 tile is 4KiB on each side of the transpose.
const DefaultTile = 32

// Shape is a three-dimensional shape, slowest axis first.
type Shape [3]int

func (s Shape) Elements() int { return s[0] * s[1] * s[2] }

// Swizzled returns the target shape for a [depth][height][width] source.
func (s Shape) Swizzled() Shape { return Shape{s[2], s[1], s[0]} }

// Buffer is a scoped swizzle buffer. Release must be called on every exit
// path, typically with defer right after Allocate.
type Buffer struct {
	data []float32
}

// Allocate returns a buffer of n samples. An allocation the runtime refuses
// is reported as ErrAlloc.
func Allocate(n int) (b *Buffer, err error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAlloc, n)
	}
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(runtime.Error); ok && strings.Contains(re.Error(), "makeslice") {
				b, err = nil, fmt.Errorf("%w: %d samples: %v", ErrAlloc, n, re)
				return
			}
			panic(r)
		}
	}()
	return &Buffer{data: make([]float32, n)}, nil
}

// Data returns the buffer contents; nil after Release.
func (b *Buffer) Data() []float32 {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the number of samples held.
func (b *Buffer) Len() int {
	return len(b.Data())
}

// Release drops the buffer. It is safe to call more than once and on nil.
func (b *Buffer) Release() {
	if b != nil {
		b.data = nil
	}
}

// Rotate writes source, of shape [depth][height][width], into target, of
// shape [width][height][depth], working in tile by tile blocks of the
// depth-width transpose.
func Rotate(target []float32, targetShape Shape, source []float32, sourceShape Shape, tile int) error {
	if err := Check(target, targetShape, source, sourceShape); err != nil {
		return err
	}
	RotateRows(target, source, sourceShape, tile, 0, sourceShape[1])
	return nil
}

// RotateRows is Rotate restricted to source rows [h0, h1). Disjoint row
// ranges write disjoint parts of target and may run concurrently. Shapes
// are not checked; see Check.
func RotateRows(target, source []float32, sourceShape Shape, tile, h0, h1 int) {
	D, H, W := sourceShape[0], sourceShape[1], sourceShape[2]
	if tile < 1 {
		tile = DefaultTile
	}
	for h := h0; h < h1; h++ {
		for d0 := 0; d0 < D; d0 += tile {
			d1 := min(d0+tile, D)
			for w0 := 0; w0 < W; w0 += tile {
				w1 := min(w0+tile, W)
				for d := d0; d < d1; d++ {
					row := source[(d*H+h)*W:]
					for w := w0; w < w1; w++ {
						target[(w*H+h)*D+d] = row[w]
					}
				}
			}
		}
	}
}

// Check verifies that target and source hold shapes suitable for Rotate.
func Check(target []float32, targetShape Shape, source []float32, sourceShape Shape) error {
	if targetShape != sourceShape.Swizzled() {
		return fmt.Errorf("%w: target %v is not the swizzle of source %v", ErrShape, targetShape, sourceShape)
	}
	if len(source) != sourceShape.Elements() || len(target) != targetShape.Elements() {
		return fmt.Errorf("%w: buffers hold %d/%d samples, shape %v needs %d",
			ErrShape, len(source), len(target), sourceShape, sourceShape.Elements())
	}
	return nil
}

// Scatter writes one plane of a column block into a block buffer. plane is
// [height][nw], columns w0..w0+nw of depth index d; block is [nw][height][depth].
func Scatter(block []float32, plane []float32, d, depth, height, nw int) error {
	if d < 0 || d >= depth {
		return fmt.Errorf("%w: depth index %d of %d", ErrShape, d, depth)
	}
	if len(plane) != height*nw || len(block) != nw*height*depth {
		return fmt.Errorf("%w: plane %d and block %d samples for %dx%d columns of depth %d",
			ErrShape, len(plane), len(block), height, nw, depth)
	}
	for h := 0; h < height; h++ {
		row := plane[h*nw : h*nw+nw]
		for w, v := range row {
			block[(w*height+h)*depth+d] = v
		}
	}
	return nil
}
