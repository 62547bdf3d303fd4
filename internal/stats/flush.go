package stats

import (
	"fmt"
	"math"

	"github.com/idia-astro/hdf5convert/internal/cube"
)

// Dataset names within a statistics group.
const (
	MinName       = "MIN"
	MaxName       = "MAX"
	SumName       = "SUM"
	SumSqName     = "SUM_SQ"
	NaNCountName  = "NAN_COUNT"
	HistogramName = "HISTOGRAM"
)

// Create creates the statistics datasets of the accumulator under group.
func (a *Accumulator) Create(sink Sink, group string) error {
	return Create(sink, group, a.Dims)
}

// Create creates the statistics datasets for sd under group.
func Create(sink Sink, group string, sd cube.StatsDims) error {
	for _, name := range []string{MinName, MaxName, SumName, SumSqName} {
		if err := sink.CreateDataset(group+"/"+name, float64(0), sd.Shape, nil); err != nil {
			return fmt.Errorf("creating %s/%s: %w", group, name, err)
		}
	}
	if err := sink.CreateDataset(group+"/"+NaNCountName, int64(0), sd.Shape, nil); err != nil {
		return fmt.Errorf("creating %s/%s: %w", group, NaNCountName, err)
	}
	if sd.Bins > 0 {
		if err := sink.CreateDataset(group+"/"+HistogramName, int64(0), sd.HistShape, nil); err != nil {
			return fmt.Errorf("creating %s/%s: %w", group, HistogramName, err)
		}
	}
	return nil
}

// Flush writes the statistics of stokes [s0, s0+n) to the datasets under
// group. Cells without a non-NaN sample are written with NaN minimum and
// maximum.
func (a *Accumulator) Flush(sink Sink, group string, s0, n int) error {
	sd := a.Dims
	lo, hi := s0*sd.Cells, (s0+n)*sd.Cells
	if s0 < 0 || n < 1 || hi > len(a.Min) {
		panic(fmt.Errorf("%w: flushing stokes [%d, %d) of %d", ErrCell, s0, s0+n, sd.Stokes))
	}

	minVals := append([]float64(nil), a.Min[lo:hi]...)
	maxVals := append([]float64(nil), a.Max[lo:hi]...)
	for i := range minVals {
		if minVals[i] > maxVals[i] {
			minVals[i], maxVals[i] = math.NaN(), math.NaN()
		}
	}

	start, count := sd.Region(s0, n)
	for _, ds := range []struct {
		name string
		data any
	}{
		{MinName, minVals},
		{MaxName, maxVals},
		{SumName, a.Sum[lo:hi]},
		{SumSqName, a.SumSq[lo:hi]},
		{NaNCountName, a.NaNCount[lo:hi]},
	} {
		if err := sink.WriteSlab(group+"/"+ds.name, ds.data, start, count); err != nil {
			return fmt.Errorf("writing %s/%s: %w", group, ds.name, err)
		}
	}

	if a.HasHistogram() {
		start, count := sd.HistRegion(s0, n)
		if err := sink.WriteSlab(group+"/"+HistogramName, a.Hist[lo*sd.Bins:hi*sd.Bins], start, count); err != nil {
			return fmt.Errorf("writing %s/%s: %w", group, HistogramName, err)
		}
	}
	return nil
}
