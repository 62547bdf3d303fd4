package converter

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/swizzle"
)

// defaultSwizzleBlock is the swizzle block size used by the bounded
// strategy when no memory budget is set.
const defaultSwizzleBlock = 256 << 20

// boundedStrategy keeps one plane in memory. It reads the input twice
// plane by plane, for basic statistics and then for histograms and
// mipmaps, and then once more in column slabs to build the swizzled copy
// one block of columns at a time.
type boundedStrategy struct {
	plane   []float32
	columns []float32
	block   *swizzle.Buffer

	// blockWidth is the number of columns swizzled per block.
	blockWidth int
}

func (b *boundedStrategy) Name() string { return "bounded" }

// WorkingSet sizes the swizzle block to what the budget leaves after the
// committed buffers and one plane.
func (b *boundedStrategy) WorkingSet(c *Converter, committed uint64) (uint64, error) {
	d := c.dims
	fixed := uint64(d.PlaneSize()) * 4
	if !d.HasSwizzle() {
		b.blockWidth = 0
		return fixed, nil
	}

	// One column of the block buffer plus its slice of a plane read.
	perColumn := uint64(d.Height) * uint64(d.Depth+1) * 4
	avail := uint64(defaultSwizzleBlock)
	if budget := c.opts.memoryBudget; budget > 0 {
		if committed+fixed+perColumn > budget {
			return 0, newError(ErrOutOfMemory, "allocate",
				fmt.Errorf("budget %d bytes cannot hold one plane and one swizzled column (%d bytes needed)",
					budget, committed+fixed+perColumn))
		}
		avail = budget - committed - fixed
	}
	b.blockWidth = int(min(max(avail/perColumn, 1), uint64(d.Width)))
	return fixed + uint64(b.blockWidth)*perColumn, nil
}

func (b *boundedStrategy) Allocate(c *Converter) error {
	d := c.dims
	var err error
	if b.plane, err = allocFloat32("allocating plane", d.PlaneSize()); err != nil {
		return err
	}
	if b.blockWidth > 0 {
		if b.columns, err = allocFloat32("allocating column slab", d.Height*b.blockWidth); err != nil {
			return err
		}
		if b.block, err = swizzle.Allocate(b.blockWidth * d.Height * d.Depth); err != nil {
			return classify("allocating swizzle block", err)
		}
	}
	return nil
}

func (b *boundedStrategy) Release() {
	b.plane, b.columns = nil, nil
	b.block.Release()
	b.block = nil
}

func (b *boundedStrategy) Copy(c *Converter) error {
	d := c.dims

	// Pass 1: basic statistics and DATA.
	c.transition(Reading)
	err := c.forEachPlane(func(s, z int) error {
		if err := c.readPlane(b.plane, s, z); err != nil {
			return classify("reading plane", err)
		}
		if s == 0 && z == 0 {
			c.transition(Accumulating)
		}
		if err := c.accumulatePlane(s, z, b.plane); err != nil {
			return err
		}
		return c.writePlane(s, z, b.plane)
	})
	if err != nil {
		return err
	}
	c.tlog.Infof("Accumulated %d planes", d.Planes())

	// Pass 2: histograms, which need pass 1's ranges, and mipmaps.
	c.transition(PyramidBuilding)
	err = c.forEachPlane(func(s, z int) error {
		if err := c.readPlane(b.plane, s, z); err != nil {
			return classify("reading plane", err)
		}
		if err := c.histogramPlane(s, z, b.plane); err != nil {
			return err
		}
		if len(c.levels) > 1 {
			return c.mipmapPlane(s, z, b.plane)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.transition(Swizzling)
	if d.HasSwizzle() {
		if err := b.swizzle(c); err != nil {
			return err
		}
	}
	c.transition(Writing)
	return nil
}

// swizzle builds the swizzled dataset one column block at a time: for each
// block, every plane's columns are read and scattered into the block
// buffer, which is then written as a sub-region.
func (b *boundedStrategy) swizzle(c *Converter) error {
	d := c.dims
	path := c.swizzledPath()
	for s := 0; s < d.Stokes; s++ {
		for w0 := 0; w0 < d.Width; w0 += b.blockWidth {
			nw := min(b.blockWidth, d.Width-w0)
			cols := b.columns[:d.Height*nw]
			block := b.block.Data()[:nw*d.Height*d.Depth]
			for z := 0; z < d.Depth; z++ {
				err := c.read(cols,
					[4]uint64{uint64(s), uint64(z), 0, uint64(w0)},
					[4]uint64{1, 1, uint64(d.Height), uint64(nw)})
				if err != nil {
					return classify("reading column slab", err)
				}
				if err := swizzle.Scatter(block, cols, z, d.Depth, d.Height, nw); err != nil {
					return classify("swizzling", err)
				}
			}
			if s == 0 && w0 == 0 {
				c.measure()
			}
			start, count := d.SwizzledRegion(s, w0, nw)
			if err := c.sink.WriteSlab(path, block, start, count); err != nil {
				return classify("writing "+path, err)
			}
		}
	}
	c.tlog.Infof("Swizzled %d stokes in blocks of %d columns", d.Stokes, b.blockWidth)
	return nil
}
