package converter

import (
	"math"
	"runtime"

	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/swizzle"
)

// Histogram bin settings.
const (
	// AutoBins picks the bin count from the plane size.
	AutoBins = 0
	// NoHistogram disables the histogram of a granularity.
	NoHistogram = -1
)

// Option configures a Converter.
type Option func(*options)

type options struct {
	memoryBudget  uint64
	workers       int
	minMipmapSize int
	bins          [3]int
	swizzleTile   int
	dataChunk     int

	openSource func(path string) (Source, error)
	createSink func(path string) (Sink, error)
}

func defaultOptions() options {
	return options{
		workers:       runtime.NumCPU(),
		minMipmapSize: 128,
		bins:          [3]int{cube.XY: AutoBins, cube.Z: NoHistogram, cube.XYZ: AutoBins},
		swizzleTile:   swizzle.DefaultTile,
		dataChunk:     cube.DefaultDataChunk,
		openSource:    OpenFITS,
		createSink:    CreateHDF5,
	}
}

// WithMemoryBudget limits the buffers a conversion may allocate, in bytes.
// Zero means unlimited.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) { o.memoryBudget = bytes }
}

// WithWorkers sets the number of concurrent workers; n < 1 uses one per CPU.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		o.workers = n
	}
}

// WithMinMipmapSize sets the plane size at which the pyramid stops.
func WithMinMipmapSize(n int) Option {
	return func(o *options) { o.minMipmapSize = n }
}

// WithHistogramBins sets the histogram bins of a granularity: a positive
// count, AutoBins or NoHistogram.
func WithHistogramBins(g cube.Granularity, bins int) Option {
	return func(o *options) { o.bins[g] = bins }
}

// WithSwizzleTile sets the tile edge of the in-memory swizzle.
func WithSwizzleTile(n int) Option {
	return func(o *options) { o.swizzleTile = n }
}

// WithDataChunk sets the spatial chunk edge of DATA and mipmap datasets.
func WithDataChunk(n int) Option {
	return func(o *options) { o.dataChunk = n }
}

// WithSource replaces the FITS reader.
func WithSource(open func(path string) (Source, error)) Option {
	return func(o *options) { o.openSource = open }
}

// WithSink replaces the HDF5 writer.
func WithSink(create func(path string) (Sink, error)) Option {
	return func(o *options) { o.createSink = create }
}

// validate checks option values that do not depend on the cube.
func (o *options) validate() error {
	if o.minMipmapSize < 1 {
		return configError("options", "minimum mipmap size %d must be positive", o.minMipmapSize)
	}
	if o.swizzleTile < 1 {
		return configError("options", "swizzle tile %d must be positive", o.swizzleTile)
	}
	if o.dataChunk < 1 {
		return configError("options", "data chunk %d must be positive", o.dataChunk)
	}
	for g, b := range o.bins {
		if b < NoHistogram {
			return configError("options", "%s histogram bins %d: use a positive count, %d (auto) or %d (disabled)",
				cube.Granularity(g), b, AutoBins, NoHistogram)
		}
	}
	return nil
}

// binCount resolves the histogram setting of g for dims.
func (o *options) binCount(g cube.Granularity, d cube.Dims) int {
	switch b := o.bins[g]; {
	case b == NoHistogram:
		return 0
	case b > 0:
		return b
	case g == cube.Z:
		return int(math.Max(math.Sqrt(float64(d.Depth)), 2))
	default:
		return d.DefaultBins()
	}
}
