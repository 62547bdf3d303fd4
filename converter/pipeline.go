package converter

import (
	"golang.org/x/sync/errgroup"

	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/stats"
)

// rowsPerBlock is the number of plane rows folded into one XY partial. It
// is fixed so the order of floating-point reductions, and therefore the
// output, does not depend on the worker count or the strategy.
const rowsPerBlock = 64

func numRowBlocks(height int) int {
	return (height + rowsPerBlock - 1) / rowsPerBlock
}

func rowBlock(b, height int) (y0, y1 int) {
	return b * rowsPerBlock, min((b+1)*rowsPerBlock, height)
}

// parallel runs fn(0) ... fn(n-1) on at most opts.workers goroutines.
// A panic in fn is returned as an error.
func (c *Converter) parallel(op string, n int, fn func(i int) error) error {
	var g errgroup.Group
	g.SetLimit(c.opts.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = recovered(op, r)
				}
			}()
			return fn(i)
		})
	}
	return g.Wait()
}

// accumulatePlane folds plane (s, z) into the basic statistics. Row blocks
// update disjoint Z cells directly; their XY partials are merged in block
// order, and the plane aggregate is folded into the XYZ cell of stokes s.
func (c *Converter) accumulatePlane(s, z int, plane []float32) error {
	d := c.dims
	w := d.Width
	zAcc := c.acc[cube.Z]
	zBase := s * d.PlaneSize()
	partials := c.partials

	err := c.parallel("accumulating", len(partials), func(b int) error {
		p := stats.NewPartial()
		y0, y1 := rowBlock(b, d.Height)
		for y := y0; y < y1; y++ {
			cell := zBase + y*w
			for x, v := range plane[y*w : (y+1)*w] {
				f := float64(v)
				p.Add(f)
				zAcc.Accumulate(f, cell+x)
			}
		}
		partials[b] = p
		return nil
	})
	if err != nil {
		return err
	}

	xy := stats.NewPartial()
	for _, p := range partials {
		xy.Merge(p)
	}
	c.acc[cube.XY].Combine(s*d.Depth+z, xy)
	c.acc[cube.XYZ].Combine(s, xy)
	return nil
}

// histogramPlane bins plane (s, z) into the histograms. It needs the basic
// statistics of every plane of stokes s, so it runs only after
// accumulatePlane has seen the whole cube.
func (c *Converter) histogramPlane(s, z int, plane []float32) error {
	d := c.dims
	w := d.Width
	xyAcc, zAcc, xyzAcc := c.acc[cube.XY], c.acc[cube.Z], c.acc[cube.XYZ]
	xyCell := s*d.Depth + z

	type binning struct {
		acc    *stats.Accumulator
		cell   int
		lo, hi float64
	}
	var planeBins []binning
	for _, b := range []struct {
		acc  *stats.Accumulator
		cell int
	}{{xyAcc, xyCell}, {xyzAcc, s}} {
		if !b.acc.HasHistogram() {
			continue
		}
		if lo, hi, ok := b.acc.Range(b.cell); ok {
			planeBins = append(planeBins, binning{b.acc, b.cell, lo, hi})
		}
	}
	if len(planeBins) == 0 && !zAcc.HasHistogram() {
		return nil
	}

	// Workers take contiguous row ranges and bin into private scratch
	// histograms; counts are integers, so the split does not affect output.
	n := min(c.opts.workers, d.Height)
	zBase := s * d.PlaneSize()
	err := c.parallel("binning", n, func(wk int) error {
		y0, y1 := wk*d.Height/n, (wk+1)*d.Height/n
		rows := plane[y0*w : y1*w]
		for _, b := range planeBins {
			stats.BinValues(b.acc.PartialHistogram(wk), rows, b.lo, b.hi)
		}
		if zAcc.HasHistogram() {
			cell := zBase + y0*w
			for i, v := range rows {
				zAcc.Bin(cell+i, float64(v))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, b := range planeBins {
		b.acc.ReducePartials(b.cell, n)
	}
	return nil
}

// writePlane writes plane (s, z) to DATA.
func (c *Converter) writePlane(s, z int, plane []float32) error {
	start, count := c.dims.PlaneRegion(s, z, c.dims.Height, c.dims.Width)
	if err := c.sink.WriteSlab(DataPath, plane, start, count); err != nil {
		return classify("writing "+DataPath, err)
	}
	return nil
}

// mipmapPlane builds and writes the pyramid of plane (s, z).
func (c *Converter) mipmapPlane(s, z int, plane []float32) error {
	return c.pyramid.Build(plane, func(l cube.Level, data []float32) error {
		start, count := c.dims.PlaneRegion(s, z, l.Height, l.Width)
		path := MipmapGroup + "/" + l.Name()
		if err := c.sink.WriteSlab(path, data, start, count); err != nil {
			return classify("writing "+path, err)
		}
		return nil
	})
}

// forEachPlane calls fn for every plane in stokes-major order.
func (c *Converter) forEachPlane(fn func(s, z int) error) error {
	for s := 0; s < c.dims.Stokes; s++ {
		for z := 0; z < c.dims.Depth; z++ {
			if err := fn(s, z); err != nil {
				return err
			}
		}
	}
	return nil
}
