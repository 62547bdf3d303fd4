package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/idia-astro/hdf5convert/converter"
	"github.com/idia-astro/hdf5convert/hdf5"
	"github.com/idia-astro/hdf5convert/internal/fits"
)

func TestOutputPath(t *testing.T) {
	for in, want := range map[string]string{
		"cube.fits":        "cube.hdf5",
		"dir/cube.FITS.gz": "dir/cube.hdf5",
		"cube.fts":         "cube.hdf5",
		"cube":             "cube.hdf5",
	} {
		if got := outputPath(in); got != want {
			t.Errorf("outputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConvertReplacesOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cube.fits")
	img := &fits.Image{Shape: []uint64{3, 4, 5}, BitPix: -32, Data: make([]float64, 60)}
	for i := range img.Data {
		img.Data[i] = float64(i)
	}
	if err := fits.Write(in, img); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "cube.hdf5")
	if err := os.WriteFile(out, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := convert(in, out, true, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
	f, err := hdf5.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.OpenDataset(converter.DataPath); err != nil {
		t.Error(err)
	}
}

func TestFailedConvertKeepsOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cube.hdf5")
	if err := os.WriteFile(out, []byte("previous"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := convert(filepath.Join(dir, "missing.fits"), out, false, nil); err == nil {
		t.Fatal("expected an error for a missing input")
	}
	if b, _ := os.ReadFile(out); string(b) != "previous" {
		t.Errorf("output replaced by %q", b)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestConvertRefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cube.fits")
	img := &fits.Image{Shape: []uint64{2, 3}, BitPix: -32, Data: []float64{1, 2, 3, 4, 5, 6}}
	if err := fits.Write(in, img); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.fits")
	if err := os.Link(in, link); err != nil {
		t.Fatal(err)
	}
	for _, out := range []string{in, filepath.Join(dir, ".", "cube.fits"), link} {
		err := convert(in, out, false, nil)
		if !errors.Is(err, converter.ErrConfig) {
			t.Errorf("convert(%s, %s): expected ErrConfig, got %v", in, out, err)
		}
	}
	f, err := fits.Open(in)
	if err != nil {
		t.Fatalf("input damaged: %v", err)
	}
	f.Close()
	if _, err := os.Stat(in + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file created: %v", err)
	}
}
