package converter

import (
	"github.com/idia-astro/hdf5convert/internal/swizzle"
)

// fullStrategy holds the whole cube and its swizzled copy in memory and
// reads the input once.
type fullStrategy struct {
	cube     []float32
	swizzled *swizzle.Buffer
}

func (f *fullStrategy) Name() string { return "full" }

func (f *fullStrategy) WorkingSet(c *Converter, _ uint64) (uint64, error) {
	n := uint64(c.dims.Elements()) * 4
	if c.dims.HasSwizzle() {
		n *= 2
	}
	return n, nil
}

func (f *fullStrategy) Allocate(c *Converter) error {
	var err error
	if f.cube, err = allocFloat32("allocating cube", c.dims.Elements()); err != nil {
		return err
	}
	if c.dims.HasSwizzle() {
		if f.swizzled, err = swizzle.Allocate(c.dims.Elements()); err != nil {
			return classify("allocating swizzled cube", err)
		}
	}
	return nil
}

func (f *fullStrategy) Release() {
	f.cube = nil
	f.swizzled.Release()
	f.swizzled = nil
}

func (f *fullStrategy) plane(c *Converter, s, z int) []float32 {
	n := c.dims.PlaneSize()
	off := (s*c.dims.Depth + z) * n
	return f.cube[off : off+n]
}

func (f *fullStrategy) Copy(c *Converter) error {
	d := c.dims

	c.transition(Reading)
	var zero [4]uint64
	if err := c.read(f.cube, zero, [4]uint64{uint64(d.Stokes), uint64(d.Depth), uint64(d.Height), uint64(d.Width)}); err != nil {
		return classify("reading cube", err)
	}
	c.tlog.Infof("Read %d planes", d.Planes())

	c.transition(Accumulating)
	err := c.forEachPlane(func(s, z int) error {
		return c.accumulatePlane(s, z, f.plane(c, s, z))
	})
	if err != nil {
		return err
	}
	err = c.forEachPlane(func(s, z int) error {
		return c.histogramPlane(s, z, f.plane(c, s, z))
	})
	if err != nil {
		return err
	}

	c.transition(PyramidBuilding)
	if len(c.levels) > 1 {
		err = c.forEachPlane(func(s, z int) error {
			return c.mipmapPlane(s, z, f.plane(c, s, z))
		})
		if err != nil {
			return err
		}
	}

	c.transition(Swizzling)
	if d.HasSwizzle() {
		if err := f.rotate(c); err != nil {
			return err
		}
	}

	c.measure()

	c.transition(Writing)
	if err := c.sink.WriteSlab(DataPath, f.cube, make([]uint64, d.Rank), d.DataShape()); err != nil {
		return classify("writing "+DataPath, err)
	}
	if d.HasSwizzle() {
		path := c.swizzledPath()
		if err := c.sink.WriteSlab(path, f.swizzled.Data(), make([]uint64, d.Rank), d.SwizzledShape()); err != nil {
			return classify("writing "+path, err)
		}
		f.swizzled.Release()
	}
	return nil
}

// rotate swizzles each stokes cube, splitting rows among the workers.
func (f *fullStrategy) rotate(c *Converter) error {
	d := c.dims
	shape := swizzle.Shape{d.Depth, d.Height, d.Width}
	n := shape.Elements()
	target := f.swizzled.Data()
	for s := 0; s < d.Stokes; s++ {
		src := f.cube[s*n : (s+1)*n]
		dst := target[s*n : (s+1)*n]
		if err := swizzle.Check(dst, shape.Swizzled(), src, shape); err != nil {
			return classify("swizzling", err)
		}
		err := c.parallel("swizzling", numRowBlocks(d.Height), func(b int) error {
			y0, y1 := rowBlock(b, d.Height)
			swizzle.RotateRows(dst, src, shape, c.opts.swizzleTile, y0, y1)
			return nil
		})
		if err != nil {
			return err
		}
	}
	c.tlog.Infof("Swizzled %d stokes", d.Stokes)
	return nil
}
