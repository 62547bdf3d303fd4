// Package stats accumulates per-cell statistics of an image cube: minimum,
// maximum, sum, sum of squares, NaN count and an optional histogram.
//
// NaN samples are counted and otherwise ignored. Sums are plain float64
// running sums. The histogram is a second pass: bin edges come from the
// cell's minimum and maximum, so all basic statistics must be accumulated
// before any value is binned.
package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/idia-astro/hdf5convert/internal/cube"
)

// ErrCell reports an out-of-range cell index. It is a programming error and
// is raised with panic from the accumulation methods.
var ErrCell = errors.New("cell index out of range")

// Sink receives the accumulated datasets.
type Sink interface {
	CreateDataset(path string, elem any, shape, chunks []uint64) error
	WriteSlab(path string, data any, start, count []uint64) error
}

// Partial is the aggregate of a run of samples. The zero value is not
// empty; use NewPartial.
type Partial struct {
	Min, Max   float64
	Sum, SumSq float64
	NaNCount   int64
}

func NewPartial() Partial {
	return Partial{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Add folds one sample into p.
func (p *Partial) Add(v float64) {
	if math.IsNaN(v) {
		p.NaNCount++
		return
	}
	if v < p.Min {
		p.Min = v
	}
	if v > p.Max {
		p.Max = v
	}
	p.Sum += v
	p.SumSq += v * v
}

// Merge folds q into p.
func (p *Partial) Merge(q Partial) {
	p.Min = math.Min(p.Min, q.Min)
	p.Max = math.Max(p.Max, q.Max)
	p.Sum += q.Sum
	p.SumSq += q.SumSq
	p.NaNCount += q.NaNCount
}

// Accumulator holds the statistics of every cell of one granularity, for
// all stokes. Cell c of stokes s has index s*Dims.Cells + c.
type Accumulator struct {
	Dims cube.StatsDims

	Min, Max   []float64
	Sum, SumSq []float64
	NaNCount   []int64

	// Hist holds Dims.Bins counts per cell; nil without a histogram.
	Hist []int64

	// partial holds one scratch histogram per worker.
	partial []int64
	workers int
}

// New allocates an accumulator for sd with scratch histograms for the given
// number of workers.
func New(sd cube.StatsDims, workers int) *Accumulator {
	n := sd.Size()
	workers = max(workers, 1)
	a := &Accumulator{
		Dims:     sd,
		Min:      make([]float64, n),
		Max:      make([]float64, n),
		Sum:      make([]float64, n),
		SumSq:    make([]float64, n),
		NaNCount: make([]int64, n),
		workers:  workers,
	}
	if sd.Bins > 0 {
		a.Hist = make([]int64, sd.HistSize())
		a.partial = make([]int64, workers*sd.Bins)
	}
	a.Reset()
	return a
}

// Bytes returns the size of the accumulator's buffers for the given
// dimensions and worker count.
func Bytes(sd cube.StatsDims, workers int) uint64 {
	n := uint64(sd.Size())
	return n*(4*8+8) + 8*uint64(sd.HistSize()+max(workers, 1)*sd.Bins)
}

// Reset restores every cell to its initial state.
func (a *Accumulator) Reset() {
	for i := range a.Min {
		a.Min[i] = math.Inf(1)
		a.Max[i] = math.Inf(-1)
		a.Sum[i] = 0
		a.SumSq[i] = 0
		a.NaNCount[i] = 0
	}
	clear(a.Hist)
	clear(a.partial)
}

// Release drops the buffers.
func (a *Accumulator) Release() {
	a.Min, a.Max, a.Sum, a.SumSq, a.NaNCount = nil, nil, nil, nil, nil
	a.Hist, a.partial = nil, nil
}

func (a *Accumulator) check(cell int) {
	if cell < 0 || cell >= len(a.Min) {
		panic(fmt.Errorf("%w: %s cell %d of %d", ErrCell, a.Dims.Granularity, cell, len(a.Min)))
	}
}

// Accumulate folds one sample into a cell.
func (a *Accumulator) Accumulate(v float64, cell int) {
	a.check(cell)
	if math.IsNaN(v) {
		a.NaNCount[cell]++
		return
	}
	if v < a.Min[cell] {
		a.Min[cell] = v
	}
	if v > a.Max[cell] {
		a.Max[cell] = v
	}
	a.Sum[cell] += v
	a.SumSq[cell] += v * v
}

// Combine folds a pre-reduced partial into a cell.
func (a *Accumulator) Combine(cell int, p Partial) {
	a.check(cell)
	a.Min[cell] = math.Min(a.Min[cell], p.Min)
	a.Max[cell] = math.Max(a.Max[cell], p.Max)
	a.Sum[cell] += p.Sum
	a.SumSq[cell] += p.SumSq
	a.NaNCount[cell] += p.NaNCount
}

// Cell returns the aggregate of a cell.
func (a *Accumulator) Cell(cell int) Partial {
	a.check(cell)
	return Partial{
		Min:      a.Min[cell],
		Max:      a.Max[cell],
		Sum:      a.Sum[cell],
		SumSq:    a.SumSq[cell],
		NaNCount: a.NaNCount[cell],
	}
}

// HasHistogram reports whether the accumulator bins values.
func (a *Accumulator) HasHistogram() bool {
	return a.Dims.Bins > 0
}

// Range returns the histogram range of a cell. ok is false if the cell
// holds no non-NaN sample, in which case nothing is binned.
func (a *Accumulator) Range(cell int) (lo, hi float64, ok bool) {
	a.check(cell)
	lo, hi = a.Min[cell], a.Max[cell]
	return lo, hi, lo <= hi
}

// BinIndex returns the histogram bin of v in [lo, hi] with n bins:
// clamp(floor((v-lo)/(hi-lo)*n), 0, n-1). A zero-width range maps every
// value to bin 0.
func BinIndex(v, lo, hi float64, n int) int {
	if hi == lo {
		return 0
	}
	f := math.Floor((v - lo) / (hi - lo) * float64(n))
	if !(f >= 0) {
		return 0
	}
	if f >= float64(n) {
		return n - 1
	}
	return int(f)
}

// BinValues adds every non-NaN value to the histogram counts.
func BinValues(counts []int64, values []float32, lo, hi float64) {
	n := len(counts)
	for _, v := range values {
		if v != v {
			continue
		}
		counts[BinIndex(float64(v), lo, hi, n)]++
	}
}

// Bin adds v to the histogram of a cell, using the cell's accumulated
// range. NaNs and cells without a range are not binned.
func (a *Accumulator) Bin(cell int, v float64) {
	if math.IsNaN(v) || !a.HasHistogram() {
		return
	}
	lo, hi, ok := a.Range(cell)
	if !ok {
		return
	}
	b := a.Dims.Bins
	a.Hist[cell*b+BinIndex(v, lo, hi, b)]++
}

// HistogramRow returns the histogram counts of a cell.
func (a *Accumulator) HistogramRow(cell int) []int64 {
	a.check(cell)
	b := a.Dims.Bins
	return a.Hist[cell*b : (cell+1)*b]
}

// PartialHistogram returns the zeroed scratch histogram of a worker.
func (a *Accumulator) PartialHistogram(worker int) []int64 {
	if worker < 0 || worker >= a.workers {
		panic(fmt.Errorf("%w: worker %d of %d", ErrCell, worker, a.workers))
	}
	b := a.Dims.Bins
	return a.partial[worker*b : (worker+1)*b]
}

// ReducePartials adds the first n scratch histograms to the histogram of a
// cell in worker order and zeroes them.
func (a *Accumulator) ReducePartials(cell, n int) {
	row := a.HistogramRow(cell)
	for w := 0; w < min(n, a.workers); w++ {
		p := a.PartialHistogram(w)
		for i, c := range p {
			row[i] += c
		}
		clear(p)
	}
}
