package fits

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeImage(t *testing.T, name string, img *Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := Write(path, img); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func ramp(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i)
	}
	return v
}

func TestParseCard(t *testing.T) {
	tests := []struct {
		image string
		want  Card
	}{
		{"BITPIX  =                  -32 / bits per pixel", Card{Key: "BITPIX", Value: int64(-32), Comment: "bits per pixel"}},
		{"SIMPLE  =                    T", Card{Key: "SIMPLE", Value: true}},
		{"CDELT3  =        1.0000000D+06", Card{Key: "CDELT3", Value: 1e6}},
		{"BUNIT   = 'JY/BEAM '           / brightness unit", Card{Key: "BUNIT", Value: "JY/BEAM", Comment: "brightness unit"}},
		{"OBJECT  = 'O''Brien'", Card{Key: "OBJECT", Value: "O'Brien"}},
		{"HISTORY imported from CASA", Card{Key: "HISTORY", Comment: "imported from CASA"}},
		{"COMMENT   FITS (Flexible Image Transport System)", Card{Key: "COMMENT", Comment: "  FITS (Flexible Image Transport System)"}},
	}
	for _, tt := range tests {
		image := tt.image + strings.Repeat(" ", cardSize-len(tt.image))
		got, err := parseCard(image)
		if err != nil {
			t.Errorf("parseCard(%q): %v", tt.image, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCard(%q) = %#v, want %#v", tt.image, got, tt.want)
		}
	}
	if _, err := parseCard("BUNIT   = 'JY/BEAM" + strings.Repeat(" ", 62)); err == nil {
		t.Error("expected error for unterminated string")
	}
}

func TestFormatCardRoundTrip(t *testing.T) {
	for _, c := range []Card{
		{Key: "CRVAL3", Value: 1.4204e9, Comment: "Hz"},
		{Key: "EQUINOX", Value: 2000.0},
		{Key: "NAXIS", Value: int64(3)},
		{Key: "TELESCOP", Value: "MeerKAT"},
		{Key: "EXTEND", Value: false},
		{Key: "HISTORY", Comment: "regridded"},
	} {
		s, err := formatCard(c)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != cardSize {
			t.Fatalf("card %q is %d characters", s, len(s))
		}
		got, err := parseCard(s)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, c) {
			t.Errorf("round trip %#v -> %q -> %#v", c, s, got)
		}
	}
	if _, err := formatCard(Card{Key: "TOOLONGKEY", Value: int64(1)}); err == nil {
		t.Error("expected error for long keyword")
	}
}

func TestContinuedString(t *testing.T) {
	cards := joinContinued([]Card{
		{Key: "LONGSTR", Value: "first part &"},
		{Key: "CONTINUE", Comment: "  'second part'"},
		{Key: "NAXIS", Value: int64(2)},
	})
	if len(cards) != 2 || cards[0].Value != "first part second part" {
		t.Errorf("cards = %#v", cards)
	}
}

func TestReadFloatCube(t *testing.T) {
	shape := []uint64{2, 3, 4, 5} // stokes, depth, height, width
	data := ramp(120)
	data[7] = math.NaN()
	path := writeImage(t, "cube.fits", &Image{
		Shape:  shape,
		BitPix: -32,
		Data:   data,
		Cards: []Card{
			{Key: "BUNIT", Value: "Jy/beam"},
			{Key: "HISTORY", Comment: "synthetic"},
		},
	})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if !reflect.DeepEqual(f.Shape(), shape) || f.BitPix() != -32 {
		t.Fatalf("shape %v bitpix %d", f.Shape(), f.BitPix())
	}
	if c, ok := f.Header().Get("BUNIT"); !ok || c.Value != "Jy/beam" {
		t.Errorf("BUNIT = %#v", c)
	}
	if n, _ := f.Header().Int("NAXIS1"); n != 5 {
		t.Errorf("NAXIS1 = %d", n)
	}

	all := make([]float32, 120)
	if err := f.ReadAll(all); err != nil {
		t.Fatal(err)
	}
	for i, v := range all {
		if i == 7 {
			if !math.IsNaN(float64(v)) {
				t.Errorf("sample 7 = %v, want NaN", v)
			}
			continue
		}
		if v != float32(i) {
			t.Fatalf("sample %d = %v", i, v)
		}
	}

	// One spectral profile at (h=2, w=3) of stokes 1.
	prof := make([]float32, 3)
	if err := f.ReadSlab(prof, []uint64{1, 0, 2, 3}, []uint64{1, 3, 1, 1}); err != nil {
		t.Fatal(err)
	}
	for d, v := range prof {
		if want := float32(60 + d*20 + 2*5 + 3); v != want {
			t.Errorf("profile[%d] = %v, want %v", d, v, want)
		}
	}
	if err := f.ReadSlab(prof, []uint64{1, 1, 2, 3}, []uint64{1, 3, 1, 1}); err == nil {
		t.Error("expected out-of-bounds error")
	}
}

func TestIntegerScaling(t *testing.T) {
	for _, bitpix := range []int{8, 16, 32, 64} {
		data := []float64{1.5, 2.0, math.NaN(), 4.5, 5.0, 6.5}
		path := writeImage(t, "int.fits", &Image{
			Shape:  []uint64{2, 3},
			BitPix: bitpix,
			Data:   data,
			Cards: []Card{
				{Key: "BSCALE", Value: 0.5},
				{Key: "BZERO", Value: 1.0},
				{Key: "BLANK", Value: int64(0)},
			},
		})
		f, err := Open(path)
		if err != nil {
			t.Fatalf("BITPIX %d: Open: %v", bitpix, err)
		}
		got := make([]float32, 6)
		if err := f.ReadAll(got); err != nil {
			t.Fatalf("BITPIX %d: %v", bitpix, err)
		}
		f.Close()
		for i, want := range data {
			if math.IsNaN(want) != math.IsNaN(float64(got[i])) || (!math.IsNaN(want) && got[i] != float32(want)) {
				t.Errorf("BITPIX %d: sample %d = %v, want %v", bitpix, i, got[i], want)
			}
		}
	}
}

func TestDoubleImage(t *testing.T) {
	path := writeImage(t, "double.fits", &Image{Shape: []uint64{4}, BitPix: -64, Data: []float64{0.25, -1, 1e30, math.Inf(1)}})
	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got := make([]float32, 4)
	if err := f.ReadAll(got); err != nil {
		t.Fatal(err)
	}
	if got[0] != 0.25 || got[1] != -1 || got[2] != float32(1e30) || !math.IsInf(float64(got[3]), 1) {
		t.Errorf("got %v", got)
	}
}

func TestGzipInput(t *testing.T) {
	path := writeImage(t, "cube.fits.gz", &Image{Shape: []uint64{3, 4}, BitPix: -32, Data: ramp(12)})
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tmp := f.tmpPath
	if tmp == "" {
		t.Fatal("gzip input was not decompressed")
	}
	row := make([]float32, 4)
	if err := f.ReadSlab(row, []uint64{2, 0}, []uint64{1, 4}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(row, []float32{8, 9, 10, 11}) {
		t.Errorf("row = %v", row)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tmp); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file %s not removed", tmp)
	}
}

func TestNotFITS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	os.WriteFile(path, []byte(strings.Repeat("x", 3000)), 0o644)
	if _, err := Open(path); !errors.Is(err, ErrNotFITS) {
		t.Errorf("expected ErrNotFITS, got %v", err)
	}

	short := filepath.Join(t.TempDir(), "short.fits")
	os.WriteFile(short, []byte("SIMPLE  ="), 0o644)
	if _, err := Open(short); !errors.Is(err, ErrNotFITS) {
		t.Errorf("expected ErrNotFITS for short file, got %v", err)
	}
}

func TestTruncatedData(t *testing.T) {
	path := writeImage(t, "trunc.fits", &Image{Shape: []uint64{40, 40}, BitPix: -64, Data: ramp(1600)})
	st, _ := os.Stat(path)
	os.Truncate(path, st.Size()-blockSize*2)
	if _, err := Open(path); !errors.Is(err, ErrNotFITS) {
		t.Errorf("expected truncation error, got %v", err)
	}
}
