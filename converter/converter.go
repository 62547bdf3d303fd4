// Package converter converts a FITS image cube into an HDF5 file holding the
// cube, a swizzled copy with the spectral axis contiguous, statistics per
// plane, per spectral profile and per cube, and a mipmap pyramid.
//
// A Converter runs one job through a fixed sequence of states. The work is
// done by a Strategy: the full strategy reads the whole cube into memory;
// the bounded strategy streams planes and swizzles in column blocks sized
// to a memory budget. Both produce identical output.
package converter

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DmitriyVTitov/size"

	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/fits"
	"github.com/idia-astro/hdf5convert/internal/logging"
	"github.com/idia-astro/hdf5convert/internal/mipmap"
	"github.com/idia-astro/hdf5convert/internal/stats"
)

// Output paths.
const (
	RootGroup     = "0"
	DataPath      = RootGroup + "/DATA"
	StatsGroup    = RootGroup + "/Statistics"
	SwizzledGroup = RootGroup + "/SwizzledData"
	MipmapGroup   = RootGroup + "/MipMaps/DATA"
)

// StatsPath returns the statistics group of g, e.g. "0/Statistics/XY".
func StatsPath(g cube.Granularity) string {
	return StatsGroup + "/" + g.String()
}

// Converter converts one cube. It is not safe for concurrent use and
// cannot be reused.
type Converter struct {
	inputPath, outputPath string
	opts                  options
	strategy              Strategy

	state   State
	history []State
	tlog    logging.TimeLog

	src      Source
	srcShape []uint64
	sink     Sink
	dims     cube.Dims

	// acc holds one accumulator per granularity.
	acc     [3]*stats.Accumulator
	levels  []cube.Level
	pyramid *mipmap.Pyramid

	// partials is scratch for the per-row-block XY partials of a plane.
	partials []stats.Partial

	// peak is the largest resident working set seen by measure.
	peak uint64
}

// SelectConverter returns a converter from inputPath to outputPath using the
// bounded strategy if bounded is set and the full strategy otherwise.
func SelectConverter(inputPath, outputPath string, bounded bool, opts ...Option) (*Converter, error) {
	if inputPath == "" || outputPath == "" {
		return nil, configError("select", "input and output paths are required")
	}
	if inputPath == outputPath {
		return nil, configError("select", "output %s would overwrite the input", outputPath)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	var s Strategy = &fullStrategy{}
	if bounded {
		s = &boundedStrategy{}
	}
	return &Converter{
		inputPath:  inputPath,
		outputPath: outputPath,
		opts:       o,
		strategy:   s,
		history:    []State{Created},
	}, nil
}

// State returns the current state.
func (c *Converter) State() State { return c.state }

// History returns every state entered so far, starting with Created.
func (c *Converter) History() []State {
	return append([]State(nil), c.history...)
}

// Dims returns the cube dimensions; valid once the input is open.
func (c *Converter) Dims() cube.Dims { return c.dims }

// Strategy returns the strategy in use.
func (c *Converter) Strategy() Strategy { return c.strategy }

// Convert runs the conversion. On failure every buffer is released and the
// output is left incomplete; replacing the destination atomically is up to
// the caller.
func (c *Converter) Convert() (err error) {
	if c.state != Created {
		return configError("convert", "converter already ran (state %s)", c.state)
	}
	c.tlog = logging.NewTimeLog()
	logging.Infof("Converting %s to %s with the %s strategy", c.inputPath, c.outputPath, c.strategy.Name())

	defer func() {
		if r := recover(); r != nil {
			err = recovered("convert", r)
		}
		if err != nil {
			c.fail(err)
		}
	}()

	if err := c.open(); err != nil {
		return err
	}
	if err := c.createOutputFile(); err != nil {
		return err
	}
	if err := c.allocate(); err != nil {
		return err
	}
	if err := c.strategy.Copy(c); err != nil {
		return err
	}
	if c.state != Writing {
		panic(newError(ErrInvariant, "convert", fmt.Errorf("strategy finished in state %s", c.state)))
	}
	if err := c.writeStats(); err != nil {
		return err
	}

	logging.Infof("Peak working set %s", logging.Bytes(c.peak))
	c.release()
	sink := c.sink
	c.sink = nil
	if err := sink.Close(); err != nil {
		return newError(ErrIO, "closing output", err)
	}
	c.closeSource()
	c.transition(Finalized)
	return nil
}

// fail releases everything and enters Failed.
func (c *Converter) fail(err error) {
	c.release()
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
	c.closeSource()
	c.state = Failed
	c.history = append(c.history, Failed)
	c.tlog.Errorf("conversion failed: %v", err)
}

func (c *Converter) closeSource() {
	if c.src != nil {
		if err := c.src.Close(); err != nil {
			logging.Warningf("closing %s: %v", c.inputPath, err)
		}
		c.src = nil
	}
}

// open opens the input and derives the cube dimensions.
func (c *Converter) open() error {
	src, err := c.opts.openSource(c.inputPath)
	if err != nil {
		return newError(ErrIO, "opening input", err)
	}
	c.src = src
	c.srcShape = src.Shape()
	d, err := cube.FromShape(c.srcShape)
	if err != nil {
		return newError(ErrConfig, "reading dimensions", err)
	}
	c.dims = d
	logging.Infof("Cube %s, %d-dimensional image", d, d.Rank)
	return nil
}

// createOutputFile creates the destination with every group and dataset and
// copies the header.
func (c *Converter) createOutputFile() error {
	sink, err := c.opts.createSink(c.outputPath)
	if err != nil {
		return newError(ErrIO, "creating output", err)
	}
	c.sink = sink
	d := c.dims

	c.levels = d.MipmapLevels(c.opts.minMipmapSize)
	groups := []string{RootGroup, StatsGroup}
	for _, g := range cube.Granularities {
		groups = append(groups, StatsPath(g))
	}
	if d.HasSwizzle() {
		groups = append(groups, SwizzledGroup)
	}
	if len(c.levels) > 1 {
		groups = append(groups, RootGroup+"/MipMaps", MipmapGroup)
	}
	for _, g := range groups {
		if err := sink.CreateGroup(g); err != nil {
			return newError(ErrIO, "creating group "+g, err)
		}
	}

	if err := sink.CreateDataset(DataPath, float32(0), d.DataShape(), d.DataChunks(c.opts.dataChunk)); err != nil {
		return newError(ErrIO, "creating "+DataPath, err)
	}
	if d.HasSwizzle() {
		if err := sink.CreateDataset(c.swizzledPath(), float32(0), d.SwizzledShape(), d.SwizzledChunks()); err != nil {
			return newError(ErrIO, "creating "+c.swizzledPath(), err)
		}
	}
	for _, l := range c.levels[1:] {
		path := MipmapGroup + "/" + l.Name()
		if err := sink.CreateDataset(path, float32(0), d.MipmapShape(l), d.MipmapChunks(l, c.opts.dataChunk)); err != nil {
			return newError(ErrIO, "creating "+path, err)
		}
	}
	for _, g := range cube.Granularities {
		sd := d.StatsDims(g, c.opts.binCount(g, d))
		if err := stats.Create(sink, StatsPath(g), sd); err != nil {
			return newError(ErrIO, "creating statistics", err)
		}
	}

	if err := c.copyMetadata(); err != nil {
		return err
	}
	c.transition(MetadataCopied)
	return nil
}

func (c *Converter) swizzledPath() string {
	return SwizzledGroup + "/" + c.dims.SwizzledName()
}

// copyMetadata writes the version attributes and one attribute per header
// keyword to the root group. COMMENT and HISTORY cards are collected into
// string arrays.
func (c *Converter) copyMetadata() error {
	attrs := map[string]any{}
	var order []string
	set := func(name string, v any) {
		if _, ok := attrs[name]; !ok {
			order = append(order, name)
		}
		attrs[name] = v
	}
	commentary := map[string][]string{}

	for _, card := range c.src.Cards() {
		switch {
		case card.Key == "" || card.Key == "END":
			continue
		case card.IsCommentary():
			if card.Key == "COMMENT" || card.Key == "HISTORY" {
				commentary[card.Key] = append(commentary[card.Key], card.Comment)
			}
			continue
		}
		set(card.Key, attrValue(card))
	}
	keys := make([]string, 0, len(commentary))
	for k := range commentary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set(k, commentary[k])
	}
	set("SCHEMA_VERSION", SchemaVersion)
	set("HDF5_CONVERTER", Name)
	set("HDF5_CONVERTER_VERSION", Version.String())

	for _, name := range order {
		err := c.sink.SetAttr(RootGroup, name, attrs[name])
		if err == nil {
			continue
		}
		if errors.Is(err, ErrAttribute) {
			logging.Warningf("Skipping header keyword %s: %v", name, err)
			continue
		}
		return newError(ErrIO, "copying header keyword "+name, err)
	}
	return nil
}

// attrValue maps a header value onto an attribute value.
func attrValue(card fits.Card) any {
	switch v := card.Value.(type) {
	case bool:
		if v {
			return uint8(1)
		}
		return uint8(0)
	default:
		return v
	}
}

// allocate reserves the statistics, the pyramid and the strategy's working
// set, checking the total against the memory budget.
func (c *Converter) allocate() error {
	d := c.dims
	workers := c.opts.workers
	var sds [3]cube.StatsDims
	need := mipmap.Bytes(c.levels)
	for _, g := range cube.Granularities {
		sds[g] = d.StatsDims(g, c.opts.binCount(g, d))
		need += stats.Bytes(sds[g], workers)
	}
	ws, err := c.strategy.WorkingSet(c, need)
	if err != nil {
		return err
	}
	need += ws
	logging.Infof("Estimated working set %s (%s strategy)", logging.Bytes(need), c.strategy.Name())
	if b := c.opts.memoryBudget; b > 0 && need > b {
		return newError(ErrOutOfMemory, "allocate",
			fmt.Errorf("%s strategy needs %s, budget is %s", c.strategy.Name(), logging.Bytes(need), logging.Bytes(b)))
	}

	for _, g := range cube.Granularities {
		c.acc[g] = stats.New(sds[g], workers)
	}
	c.pyramid = mipmap.NewPyramid(c.levels)
	c.partials = make([]stats.Partial, numRowBlocks(d.Height))
	if err := c.strategy.Allocate(c); err != nil {
		return err
	}

	logging.Infof("Allocated %s of buffers", logging.Bytes(c.measure()))
	c.transition(Allocated)
	return nil
}

// measure records the bytes currently held in buffers and returns them.
func (c *Converter) measure() uint64 {
	n := uint64(size.Of(c.acc) + size.Of(c.pyramid) + size.Of(c.partials) + size.Of(c.strategy))
	c.peak = max(c.peak, n)
	return n
}

// PeakWorkingSet returns the largest amount of buffer memory the conversion
// held at once.
func (c *Converter) PeakWorkingSet() uint64 { return c.peak }

// release drops every buffer. It is safe to call more than once.
func (c *Converter) release() {
	if c.strategy != nil {
		c.strategy.Release()
	}
	for i, a := range c.acc {
		if a != nil {
			a.Release()
			c.acc[i] = nil
		}
	}
	if c.pyramid != nil {
		c.pyramid.Release()
		c.pyramid = nil
	}
	c.partials = nil
}

// writeStats flushes the statistics of every granularity.
func (c *Converter) writeStats() error {
	for _, g := range cube.Granularities {
		if err := c.acc[g].Flush(c.sink, StatsPath(g), 0, c.dims.Stokes); err != nil {
			return classify("writing statistics", err)
		}
	}
	xyz := c.acc[cube.XYZ]
	for s := 0; s < c.dims.Stokes; s++ {
		p := xyz.Cell(s)
		logging.Infof("Stokes %d: min %g, max %g, sum %g, %d NaN", s, p.Min, p.Max, p.Sum, p.NaNCount)
	}
	c.tlog.Infof("Wrote statistics")
	return nil
}
