package cube

// Granularity is the level at which statistics are aggregated.
type Granularity int

const (
	// XY aggregates each plane.
	XY Granularity = iota
	// Z aggregates each spectral profile.
	Z
	// XYZ aggregates each stokes cube.
	XYZ
)

// Granularities lists every granularity in output order.
var Granularities = []Granularity{XY, Z, XYZ}

func (g Granularity) String() string {
	switch g {
	case XY:
		return "XY"
	case Z:
		return "Z"
	case XYZ:
		return "XYZ"
	default:
		return "unknown"
	}
}

// StatsDims are the cell counts and dataset shapes of one granularity.
type StatsDims struct {
	Granularity Granularity

	// Cells is the number of cells per stokes.
	Cells  int
	Stokes int

	// Bins is the histogram bin count; 0 means no histogram.
	Bins int

	// Shape is the shape of the MIN, MAX, SUM, SUM_SQ and NAN_COUNT
	// datasets, HistShape that of HISTOGRAM.
	Shape     []uint64
	HistShape []uint64

	rank int
}

// StatsDims returns the statistics dimensions for g with the given number
// of histogram bins.
func (d Dims) StatsDims(g Granularity, bins int) StatsDims {
	sd := StatsDims{Granularity: g, Stokes: d.Stokes, Bins: max(bins, 0), rank: d.Rank}
	var perStokes []uint64
	switch g {
	case XY:
		sd.Cells = d.Depth
		if d.Rank >= 3 {
			perStokes = []uint64{uint64(d.Depth)}
		}
	case Z:
		sd.Cells = d.PlaneSize()
		perStokes = []uint64{uint64(d.Height), uint64(d.Width)}
	case XYZ:
		sd.Cells = 1
	}

	if d.Rank == 4 {
		sd.Shape = append([]uint64{uint64(d.Stokes)}, perStokes...)
	} else {
		sd.Shape = perStokes
	}
	if len(sd.Shape) == 0 {
		sd.Shape = []uint64{1}
	}

	if sd.Bins > 0 {
		if len(perStokes) == 0 && d.Rank < 4 {
			sd.HistShape = []uint64{uint64(sd.Bins)}
		} else {
			sd.HistShape = append(append([]uint64(nil), sd.Shape...), uint64(sd.Bins))
		}
	}
	return sd
}

// Size returns the number of cells over all stokes.
func (s StatsDims) Size() int { return s.Cells * s.Stokes }

// HistSize returns the number of histogram entries over all stokes.
func (s StatsDims) HistSize() int { return s.Size() * s.Bins }

// Region returns the selection of the stokes range [s0, s0+n) in the
// statistics datasets.
func (s StatsDims) Region(s0, n int) (start, count []uint64) {
	return region(s.Shape, s.rank, s0, n)
}

// HistRegion is Region for the HISTOGRAM dataset.
func (s StatsDims) HistRegion(s0, n int) (start, count []uint64) {
	return region(s.HistShape, s.rank, s0, n)
}

func region(shape []uint64, rank, s0, n int) (start, count []uint64) {
	start = make([]uint64, len(shape))
	count = append([]uint64(nil), shape...)
	if rank == 4 {
		start[0], count[0] = uint64(s0), uint64(n)
	}
	return start, count
}
