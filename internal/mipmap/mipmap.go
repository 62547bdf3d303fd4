// Package mipmap builds the resolution pyramid of an image plane. Each level
// halves the previous one, averaging 2x2 blocks and skipping NaNs.
package mipmap

import (
	"fmt"
	"math"

	"github.com/idia-astro/hdf5convert/internal/cube"
)

// BuildLevel averages the 2x2 blocks of the h by w plane src into dst,
// which must hold ceil(h/2)*ceil(w/2) samples. Blocks on an odd trailing
// row or column have fewer samples; an all-NaN block averages to NaN.
func BuildLevel(dst, src []float32, h, w int) {
	BuildRows(dst, src, h, w, 0, (h+1)/2)
}

// BuildRows computes output rows [r0, r1) of BuildLevel. Disjoint row
// ranges may be built concurrently.
func BuildRows(dst, src []float32, h, w, r0, r1 int) {
	ow := (w + 1) / 2
	if len(src) < h*w || len(dst) < (h+1)/2*ow {
		panic(fmt.Sprintf("mipmap: buffers %d/%d too small for %dx%d plane", len(src), len(dst), h, w))
	}
	for oy := r0; oy < r1; oy++ {
		y0 := 2 * oy
		y1 := min(y0+2, h)
		for ox := 0; ox < ow; ox++ {
			x0 := 2 * ox
			x1 := min(x0+2, w)
			var sum float64
			var n int
			for y := y0; y < y1; y++ {
				row := src[y*w : y*w+w]
				for x := x0; x < x1; x++ {
					if v := row[x]; v == v {
						sum += float64(v)
						n++
					}
				}
			}
			if n == 0 {
				dst[oy*ow+ox] = nan32
			} else {
				dst[oy*ow+ox] = float32(sum / float64(n))
			}
		}
	}
}

var nan32 = float32(math.NaN())

// Pyramid produces the levels of one plane at a time. It owns two buffers
// sized for the first derived level, so at most two derived levels are
// resident whatever the pyramid depth.
type Pyramid struct {
	levels []cube.Level
	a, b   []float32
}

// NewPyramid allocates buffers for the given levels, as returned by
// cube.Dims.MipmapLevels.
func NewPyramid(levels []cube.Level) *Pyramid {
	p := &Pyramid{levels: levels}
	if len(levels) > 1 {
		n := levels[1].Size()
		p.a = make([]float32, n)
		p.b = make([]float32, n)
	}
	return p
}

// Bytes returns the buffer size NewPyramid allocates for levels.
func Bytes(levels []cube.Level) uint64 {
	if len(levels) < 2 {
		return 0
	}
	return 2 * 4 * uint64(levels[1].Size())
}

// Levels returns the levels of the pyramid, including full resolution.
func (p *Pyramid) Levels() []cube.Level {
	return p.levels
}

// Build derives every level below full resolution from plane, calling fn
// with each as soon as it is built. The slice passed to fn is reused for a
// later level, so fn must consume it before returning.
func (p *Pyramid) Build(plane []float32, fn func(l cube.Level, data []float32) error) error {
	if len(p.levels) == 0 {
		return nil
	}
	if top := p.levels[0]; len(plane) != top.Size() {
		return fmt.Errorf("plane has %d samples, want %dx%d", len(plane), top.Height, top.Width)
	}
	src := plane
	dst := p.a
	for i := 1; i < len(p.levels); i++ {
		prev, l := p.levels[i-1], p.levels[i]
		out := dst[:l.Size()]
		BuildLevel(out, src, prev.Height, prev.Width)
		if err := fn(l, out); err != nil {
			return err
		}
		src = out
		if i%2 == 1 {
			dst = p.b
		} else {
			dst = p.a
		}
	}
	return nil
}

// Release drops the pyramid's buffers.
func (p *Pyramid) Release() {
	p.a, p.b = nil, nil
}
