// Package verify checks a converted HDF5 file against its FITS input.
//
// The whole cube is loaded and every statistic is recomputed, so Run is
// meant for test-sized inputs.
package verify

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/blang/semver"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/idia-astro/hdf5convert/converter"
	"github.com/idia-astro/hdf5convert/hdf5"
	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/fits"
	"github.com/idia-astro/hdf5convert/internal/logging"
)

// Tolerance is the relative tolerance of floating-point statistics.
const Tolerance = 1e-5

// maxFailures bounds the mismatches reported per check.
const maxFailures = 10

// Report lists the checks run and the mismatches found.
type Report struct {
	Input, Output string
	Checked       []string
	Failures      []string
}

// OK reports whether every check passed.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

func (r *Report) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

func (r *Report) checked(name string) {
	r.Checked = append(r.Checked, name)
}

// Err returns nil if every check passed and an error listing the first
// failures otherwise.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, maxFailures)
	for i, f := range r.Failures {
		if i == maxFailures {
			errs = append(errs, fmt.Errorf("and %d more", len(r.Failures)-maxFailures))
			break
		}
		errs = append(errs, errors.New(f))
	}
	return fmt.Errorf("%s does not match %s: %w", r.Output, r.Input, errors.Join(errs...))
}

// Run compares hdf5Path with fitsPath. Mismatches are recorded in the
// report; the error is reserved for files that cannot be read.
func Run(fitsPath, hdf5Path string) (*Report, error) {
	tlog := logging.NewTimeLog()
	src, err := fits.Open(fitsPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	d, err := cube.FromShape(src.Shape())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fitsPath, err)
	}
	data := make([]float32, d.Elements())
	if err := src.ReadAll(data); err != nil {
		return nil, err
	}

	f, err := hdf5.Open(hdf5Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := &Report{Input: fitsPath, Output: hdf5Path}
	v := &verifier{r: r, f: f, d: d, data: data}
	steps := []func() error{v.checkSchema, v.checkData, v.checkSwizzled, v.checkMipmaps}
	for _, g := range cube.Granularities {
		g := g
		steps = append(steps, func() error { return v.checkStats(g) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	tlog.Infof("Verified %s against %s: %d checks, %d failures", hdf5Path, fitsPath, len(r.Checked), len(r.Failures))
	return r, nil
}

type verifier struct {
	r    *Report
	f    *hdf5.File
	d    cube.Dims
	data []float32
}

// dataset opens path, recording a failure if it is missing.
func (v *verifier) dataset(path string) (*hdf5.Dataset, error) {
	ds, err := v.f.OpenDataset(path)
	if errors.Is(err, hdf5.ErrNotFound) {
		v.r.failf("%s: missing", path)
		return nil, nil
	}
	return ds, err
}

func (v *verifier) checkSchema() error {
	v.r.checked("schema version")
	root, err := v.f.OpenGroup(converter.RootGroup)
	if err != nil {
		return err
	}
	a := root.Attr("SCHEMA_VERSION")
	if a == nil {
		v.r.failf("SCHEMA_VERSION: missing")
		return nil
	}
	val, err := a.Value()
	if err != nil {
		return fmt.Errorf("reading SCHEMA_VERSION: %w", err)
	}
	s, _ := val.(string)
	ver, err := semver.ParseTolerant(s)
	if err != nil {
		v.r.failf("SCHEMA_VERSION %q: %v", s, err)
		return nil
	}
	if !converter.SchemaRange(ver) {
		v.r.failf("SCHEMA_VERSION %s is not supported", ver)
	}
	return nil
}

func (v *verifier) checkData() error {
	v.r.checked(converter.DataPath)
	ds, err := v.dataset(converter.DataPath)
	if ds == nil {
		return err
	}
	if !reflect.DeepEqual(ds.Shape(), v.d.DataShape()) {
		v.r.failf("%s: shape %v, want %v", converter.DataPath, ds.Shape(), v.d.DataShape())
		return nil
	}
	got := make([]float32, v.d.Elements())
	if err := ds.Read(got); err != nil {
		return err
	}
	bad := 0
	for i, want := range v.data {
		if !same(got[i], want) {
			if bad++; bad <= maxFailures {
				v.r.failf("%s[%d] = %v, want %v", converter.DataPath, i, got[i], want)
			}
		}
	}
	return nil
}

func (v *verifier) checkSwizzled() error {
	d := v.d
	if !d.HasSwizzle() {
		return nil
	}
	path := converter.SwizzledGroup + "/" + d.SwizzledName()
	v.r.checked(path)
	ds, err := v.dataset(path)
	if ds == nil {
		return err
	}
	if !reflect.DeepEqual(ds.Shape(), d.SwizzledShape()) {
		v.r.failf("%s: shape %v, want %v", path, ds.Shape(), d.SwizzledShape())
		return nil
	}
	got := make([]float32, d.Elements())
	if err := ds.Read(got); err != nil {
		return err
	}
	bad := 0
	for s := 0; s < d.Stokes; s++ {
		for z := 0; z < d.Depth; z++ {
			for y := 0; y < d.Height; y++ {
				for x := 0; x < d.Width; x++ {
					want := v.data[((s*d.Depth+z)*d.Height+y)*d.Width+x]
					g := got[((s*d.Width+x)*d.Height+y)*d.Depth+z]
					if !same(g, want) {
						if bad++; bad <= maxFailures {
							v.r.failf("%s at stokes %d channel %d pixel (%d, %d) = %v, want %v", path, s, z, x, y, g, want)
						}
					}
				}
			}
		}
	}
	return nil
}

// checkMipmaps checks the shape of every pyramid level present.
func (v *verifier) checkMipmaps() error {
	mm, err := v.f.OpenGroup(converter.MipmapGroup)
	if errors.Is(err, hdf5.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	// The minimum size is not recorded, so the levels present are checked
	// against the full pyramid of the cube.
	want := map[string][]uint64{}
	for _, l := range v.d.MipmapLevels(1)[1:] {
		want[l.Name()] = v.d.MipmapShape(l)
	}
	for _, name := range mm.Members() {
		path := converter.MipmapGroup + "/" + name
		v.r.checked(path)
		shape, ok := want[name]
		if !ok {
			v.r.failf("%s: unexpected level", path)
			continue
		}
		ds, err := mm.OpenDataset(name)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(ds.Shape(), shape) {
			v.r.failf("%s: shape %v, want %v", path, ds.Shape(), shape)
		}
	}
	return nil
}

// checkStats recomputes the statistics of g with NaN-aware reductions.
func (v *verifier) checkStats(g cube.Granularity) error {
	group := converter.StatsPath(g)
	v.r.checked(group)
	sd := v.d.StatsDims(g, 0)
	n := sd.Size()

	got := map[string][]float64{}
	for _, name := range []string{"MIN", "MAX", "SUM", "SUM_SQ"} {
		ds, err := v.dataset(group + "/" + name)
		if ds == nil {
			return err
		}
		buf := make([]float64, n)
		if err := ds.Read(buf); err != nil {
			return err
		}
		got[name] = buf
	}
	nanDS, err := v.dataset(group + "/NAN_COUNT")
	if nanDS == nil {
		return err
	}
	nans := make([]int64, n)
	if err := nanDS.Read(nans); err != nil {
		return err
	}
	hist, bins, err := v.histogram(group, n)
	if err != nil {
		return err
	}

	bad := 0
	fail := func(format string, args ...any) {
		if bad++; bad <= maxFailures {
			v.r.failf(format, args...)
		}
	}
	values := make([]float64, 0, v.cellSize(g))
	for cell := 0; cell < n; cell++ {
		values = values[:0]
		var nanCount int64
		v.forEachInCell(g, cell, func(x float32) {
			if x != x {
				nanCount++
				return
			}
			values = append(values, float64(x))
		})
		if nans[cell] != nanCount {
			fail("%s/NAN_COUNT[%d] = %d, want %d", group, cell, nans[cell], nanCount)
		}
		want := map[string]float64{"MIN": math.NaN(), "MAX": math.NaN(), "SUM": 0, "SUM_SQ": 0}
		if len(values) > 0 {
			want["MIN"] = floats.Min(values)
			want["MAX"] = floats.Max(values)
			want["SUM"] = floats.Sum(values)
			want["SUM_SQ"] = floats.Dot(values, values)
		}
		for _, name := range []string{"MIN", "MAX", "SUM", "SUM_SQ"} {
			if !within(got[name][cell], want[name]) {
				fail("%s/%s[%d] = %v, want %v", group, name, cell, got[name][cell], want[name])
			}
		}
		if hist != nil {
			var total int64
			for _, c := range hist[cell*bins : (cell+1)*bins] {
				total += c
			}
			if total != int64(len(values)) {
				fail("%s/HISTOGRAM[%d] counts %d values, want %d", group, cell, total, len(values))
			}
		}
	}
	return nil
}

// histogram reads the HISTOGRAM of group if present.
func (v *verifier) histogram(group string, cells int) ([]int64, int, error) {
	ds, err := v.f.OpenDataset(group + "/HISTOGRAM")
	if errors.Is(err, hdf5.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	shape := ds.Shape()
	bins := int(shape[len(shape)-1])
	if int(ds.NumElements()) != cells*bins {
		v.r.failf("%s/HISTOGRAM: shape %v does not hold %d cells", group, shape, cells)
		return nil, 0, nil
	}
	hist := make([]int64, ds.NumElements())
	return hist, bins, ds.Read(hist)
}

func (v *verifier) cellSize(g cube.Granularity) int {
	switch g {
	case cube.XY:
		return v.d.PlaneSize()
	case cube.Z:
		return v.d.Depth
	default:
		return v.d.Depth * v.d.PlaneSize()
	}
}

// forEachInCell calls fn for every sample folded into cell of g.
func (v *verifier) forEachInCell(g cube.Granularity, cell int, fn func(float32)) {
	d := v.d
	plane := d.PlaneSize()
	switch g {
	case cube.XY:
		for _, x := range v.data[cell*plane : (cell+1)*plane] {
			fn(x)
		}
	case cube.Z:
		s, p := cell/plane, cell%plane
		for z := 0; z < d.Depth; z++ {
			fn(v.data[(s*d.Depth+z)*plane+p])
		}
	default:
		n := d.Depth * plane
		for _, x := range v.data[cell*n : (cell+1)*n] {
			fn(x)
		}
	}
}

func same(a, b float32) bool {
	return a == b || (a != a && b != b)
}

func within(got, want float64) bool {
	if math.IsNaN(want) {
		return math.IsNaN(got)
	}
	if want == 0 {
		return math.Abs(got) <= Tolerance
	}
	return scalar.EqualWithinRel(got, want, Tolerance)
}
