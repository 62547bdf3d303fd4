package verify

import (
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/idia-astro/hdf5convert/converter"
	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/fits"
)

func writeCube(t *testing.T, path string, shape []uint64, seed int64) []float64 {
	t.Helper()
	n := 1
	for _, s := range shape {
		n *= int(s)
	}
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	for i := range data {
		if rng.Intn(10) == 0 {
			data[i] = math.NaN()
		} else {
			data[i] = float64(float32(rng.Float64()*100 - 20))
		}
	}
	if err := fits.Write(path, &fits.Image{Shape: shape, BitPix: -32, Data: data}); err != nil {
		t.Fatal(err)
	}
	return data
}

func convert(t *testing.T, in, out string, bounded bool) {
	t.Helper()
	c, err := converter.SelectConverter(in, out, bounded,
		converter.WithMinMipmapSize(4),
		converter.WithHistogramBins(cube.Z, converter.AutoBins))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Convert(); err != nil {
		t.Fatal(err)
	}
}

func TestConvertedFilesVerify(t *testing.T) {
	dir := t.TempDir()
	for i, shape := range [][]uint64{{2, 3, 9, 11}, {4, 6, 5}, {7, 8}} {
		in := filepath.Join(dir, "in.fits")
		out := filepath.Join(dir, "out.hdf5")
		writeCube(t, in, shape, int64(i))
		convert(t, in, out, i%2 == 1)

		r, err := Run(in, out)
		if err != nil {
			t.Fatalf("shape %v: %v", shape, err)
		}
		if !r.OK() {
			t.Errorf("shape %v: %v", shape, r.Err())
		}
		if len(r.Checked) < 4 {
			t.Errorf("shape %v: only checked %v", shape, r.Checked)
		}
	}
}

func TestMismatchReported(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.fits")
	out := filepath.Join(dir, "out.hdf5")
	data := writeCube(t, in, []uint64{2, 6, 6}, 1)
	convert(t, in, out, false)

	// Verify against a different input of the same shape.
	data[8] = 5000
	other := filepath.Join(dir, "other.fits")
	if err := fits.Write(other, &fits.Image{Shape: []uint64{2, 6, 6}, BitPix: -32, Data: data}); err != nil {
		t.Fatal(err)
	}
	r, err := Run(other, out)
	if err != nil {
		t.Fatal(err)
	}
	if r.OK() {
		t.Fatal("changed sample not detected")
	}
	msg := r.Err().Error()
	for _, want := range []string{"0/DATA[8]", "0/SwizzledData/ZYX", "0/Statistics/XY/MAX"} {
		if !strings.Contains(msg, want) {
			t.Errorf("report %q does not mention %s", msg, want)
		}
	}
}

func TestMissingFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.fits")
	writeCube(t, in, []uint64{3, 3}, 2)
	if _, err := Run(in, filepath.Join(dir, "none.hdf5")); err == nil {
		t.Error("expected error for missing output")
	}
	if _, err := Run(filepath.Join(dir, "none.fits"), in); err == nil {
		t.Error("expected error for missing input")
	}
}
