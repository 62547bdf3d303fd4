package converter

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/idia-astro/hdf5convert/internal/fits"
	"github.com/idia-astro/hdf5convert/internal/layout"
)

// memSource is an in-memory cube.
type memSource struct {
	shape  []uint64
	data   []float32
	cards  []fits.Card
	reads  int
	failAt int // fail the failAt-th read when > 0
	closed bool
}

func (m *memSource) Shape() []uint64    { return m.shape }
func (m *memSource) Cards() []fits.Card { return m.cards }
func (m *memSource) Close() error       { m.closed = true; return nil }

func (m *memSource) ReadSlab(dst []float32, start, count []uint64) error {
	m.reads++
	if m.failAt > 0 && m.reads >= m.failAt {
		return errors.New("disk on fire")
	}
	if uint64(len(dst)) != layout.Elements(count) {
		return fmt.Errorf("dst %d, count %v", len(dst), count)
	}
	return layout.NewContiguous(0, m.shape, 1).Runs(start, count, func(r layout.Run) error {
		copy(dst[r.Index:r.Index+r.N], m.data[r.Addr:])
		return nil
	})
}

// randomCube returns a cube with about 5% NaNs and a fully NaN first row.
func randomCube(seed int64, shape []uint64) *memSource {
	rng := rand.New(rand.NewSource(seed))
	n := layout.Elements(shape)
	data := make([]float32, n)
	w := shape[len(shape)-1]
	for i := range data {
		switch {
		case uint64(i) < w:
			data[i] = float32(math.NaN())
		case rng.Intn(20) == 0:
			data[i] = float32(math.NaN())
		default:
			data[i] = float32(rng.NormFloat64()*10 + 3)
		}
	}
	return &memSource{shape: shape, data: data}
}

type memDataset struct {
	shape, chunks []uint64
	data          any
}

// memSink is an in-memory container.
type memSink struct {
	groups   map[string]bool
	datasets map[string]*memDataset
	attrs    map[string]any
	reject   map[string]bool
	closed   bool
	failOn   string
}

func newMemSink() *memSink {
	return &memSink{
		groups:   map[string]bool{},
		datasets: map[string]*memDataset{},
		attrs:    map[string]any{},
		reject:   map[string]bool{},
	}
}

func (m *memSink) CreateGroup(path string) error {
	m.groups[path] = true
	return nil
}

func (m *memSink) CreateDataset(path string, elem any, shape, chunks []uint64) error {
	if _, ok := m.datasets[path]; ok {
		return fmt.Errorf("dataset %s exists", path)
	}
	n := layout.Elements(shape)
	var data any
	switch elem.(type) {
	case float32:
		data = make([]float32, n)
	case float64:
		data = make([]float64, n)
	case int64:
		data = make([]int64, n)
	default:
		return fmt.Errorf("unsupported element %T", elem)
	}
	m.datasets[path] = &memDataset{shape: shape, chunks: chunks, data: data}
	return nil
}

func (m *memSink) WriteSlab(path string, data any, start, count []uint64) error {
	if path == m.failOn {
		return errors.New("write refused")
	}
	ds, ok := m.datasets[path]
	if !ok {
		return fmt.Errorf("no dataset %s", path)
	}
	return layout.NewContiguous(0, ds.shape, 1).Runs(start, count, func(r layout.Run) error {
		switch dst := ds.data.(type) {
		case []float32:
			copy(dst[r.Addr:], data.([]float32)[r.Index:r.Index+r.N])
		case []float64:
			copy(dst[r.Addr:], data.([]float64)[r.Index:r.Index+r.N])
		case []int64:
			copy(dst[r.Addr:], data.([]int64)[r.Index:r.Index+r.N])
		}
		return nil
	})
}

func (m *memSink) SetAttr(path, name string, value any) error {
	if m.reject[name] {
		return fmt.Errorf("%w: %s too large", ErrAttribute, name)
	}
	m.attrs[path+"@"+name] = value
	return nil
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func (m *memSink) f32(path string) []float32 {
	if ds := m.datasets[path]; ds != nil {
		return ds.data.([]float32)
	}
	return nil
}

func (m *memSink) f64(path string) []float64 {
	if ds := m.datasets[path]; ds != nil {
		return ds.data.([]float64)
	}
	return nil
}

func (m *memSink) i64(path string) []int64 {
	if ds := m.datasets[path]; ds != nil {
		return ds.data.([]int64)
	}
	return nil
}

// run converts src into a new memSink.
func run(src *memSource, bounded bool, opts ...Option) (*Converter, *memSink, error) {
	sink := newMemSink()
	opts = append([]Option{
		WithSource(func(string) (Source, error) { return src, nil }),
		WithSink(func(string) (Sink, error) { return sink, nil }),
	}, opts...)
	c, err := SelectConverter("in.fits", "out.hdf5", bounded, opts...)
	if err != nil {
		return nil, nil, err
	}
	return c, sink, c.Convert()
}
