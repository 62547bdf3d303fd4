package converter

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/idia-astro/hdf5convert/hdf5"
	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/fits"
)

// writeFITS writes src as a float FITS file with a few header cards.
func writeFITS(t *testing.T, path string, src *memSource) {
	t.Helper()
	data := make([]float64, len(src.data))
	for i, v := range src.data {
		data[i] = float64(v)
	}
	img := &fits.Image{
		Shape:  src.shape,
		BitPix: -32,
		Data:   data,
		Cards: []fits.Card{
			{Key: "BUNIT", Value: "JY/BEAM"},
			{Key: "CRVAL3", Value: 1.4204e9},
			{Key: "HISTORY", Comment: "written by a test"},
		},
	}
	if err := fits.Write(path, img); err != nil {
		t.Fatal(err)
	}
}

func TestConvertFITSToHDF5(t *testing.T) {
	dir := t.TempDir()
	src := randomCube(11, []uint64{1, 5, 40, 33})
	for _, name := range []string{"cube.fits", "cube.fits.gz"} {
		in := filepath.Join(dir, name)
		writeFITS(t, in, src)
		for _, bounded := range []bool{false, true} {
			out := filepath.Join(dir, "out.hdf5")
			c, err := SelectConverter(in, out, bounded, WithMinMipmapSize(16), WithDataChunk(16), WithMemoryBudget(1<<20))
			if err != nil {
				t.Fatal(err)
			}
			if err := c.Convert(); err != nil {
				t.Fatalf("%s bounded=%v: %v", name, bounded, err)
			}
			checkHDF5(t, out, src)
		}
	}
}

func checkHDF5(t *testing.T, path string, src *memSource) {
	t.Helper()
	f, err := hdf5.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ds, err := f.OpenDataset(DataPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ds.Shape(), src.shape) || !reflect.DeepEqual(ds.Chunks(), []uint64{1, 1, 16, 16}) {
		t.Errorf("DATA shape %v chunks %v", ds.Shape(), ds.Chunks())
	}
	got := make([]float32, len(src.data))
	if err := ds.Read(got); err != nil {
		t.Fatal(err)
	}
	if !sameBits32(got, src.data) {
		t.Error("DATA differs from the input")
	}

	swz, err := f.OpenDataset(SwizzledGroup + "/ZYXW")
	if err != nil {
		t.Fatal(err)
	}
	if want := []uint64{1, 33, 40, 5}; !reflect.DeepEqual(swz.Shape(), want) {
		t.Errorf("swizzled shape %v, want %v", swz.Shape(), want)
	}
	// Spectrum of pixel (y=7, x=30).
	spectrum := make([]float32, 5)
	if err := swz.ReadSlab(spectrum, []uint64{0, 30, 7, 0}, []uint64{1, 1, 1, 5}); err != nil {
		t.Fatal(err)
	}
	for z, v := range spectrum {
		if want := src.data[(z*40+7)*33+30]; !sameBits32([]float32{v}, []float32{want}) {
			t.Errorf("spectrum[%d] = %v, want %v", z, v, want)
		}
	}

	for _, g := range cube.Granularities {
		for _, name := range []string{"MIN", "MAX", "SUM", "SUM_SQ", "NAN_COUNT"} {
			if _, err := f.OpenDataset(StatsPath(g) + "/" + name); err != nil {
				t.Errorf("%s/%s: %v", StatsPath(g), name, err)
			}
		}
	}
	// 40x33 -> 20x17 -> 10x9.
	for _, name := range []string{"DATA_XY_2", "DATA_XY_4"} {
		if _, err := f.OpenDataset(MipmapGroup + "/" + name); err != nil {
			t.Errorf("mipmap %s: %v", name, err)
		}
	}

	root, err := f.OpenGroup(RootGroup)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]any{
		"SIMPLE":         uint8(1),
		"BUNIT":          "JY/BEAM",
		"CRVAL3":         1.4204e9,
		"NAXIS":          int64(4),
		"HISTORY":        []string{"written by a test"},
		"SCHEMA_VERSION": SchemaVersion,
		"HDF5_CONVERTER": Name,
	} {
		a := root.Attr(name)
		if a == nil {
			t.Errorf("no attribute %s", name)
			continue
		}
		v, err := a.Value()
		if err != nil || !reflect.DeepEqual(v, want) {
			t.Errorf("attribute %s = %#v (%v), want %#v", name, v, err, want)
		}
	}
}
