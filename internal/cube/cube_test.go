package cube

import (
	"errors"
	"reflect"
	"testing"
)

func TestFromShape(t *testing.T) {
	tests := []struct {
		shape []uint64
		want  Dims
	}{
		{[]uint64{5, 7}, Dims{Stokes: 1, Depth: 1, Height: 5, Width: 7, Rank: 2}},
		{[]uint64{3, 5, 7}, Dims{Stokes: 1, Depth: 3, Height: 5, Width: 7, Rank: 3}},
		{[]uint64{2, 3, 5, 7}, Dims{Stokes: 2, Depth: 3, Height: 5, Width: 7, Rank: 4}},
		{[]uint64{1, 1, 2, 3, 5, 7}, Dims{Stokes: 2, Depth: 3, Height: 5, Width: 7, Rank: 4}},
	}
	for _, tt := range tests {
		got, err := FromShape(tt.shape)
		if err != nil {
			t.Errorf("FromShape(%v): %v", tt.shape, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FromShape(%v) = %+v, want %+v", tt.shape, got, tt.want)
		}
	}

	for _, bad := range [][]uint64{{7}, {2, 2, 2, 2, 2}, {0, 4}, {4, 0, 4}} {
		if _, err := FromShape(bad); !errors.Is(err, ErrDims) {
			t.Errorf("FromShape(%v): expected ErrDims, got %v", bad, err)
		}
	}
}

func TestValidate(t *testing.T) {
	if _, err := New(1, 1, 1, 1); err != nil {
		t.Errorf("1x1x1x1: %v", err)
	}
	if _, err := New(1, 0, 1, 1); !errors.Is(err, ErrDims) {
		t.Errorf("expected ErrDims for zero depth, got %v", err)
	}
	if _, err := New(1<<20, 1<<20, 1<<20, 1<<20); !errors.Is(err, ErrDims) {
		t.Errorf("expected overflow error, got %v", err)
	}
	if err := (Dims{Stokes: 2, Depth: 1, Height: 1, Width: 1, Rank: 3}).Validate(); !errors.Is(err, ErrDims) {
		t.Errorf("expected rank error, got %v", err)
	}
}

func TestShapes(t *testing.T) {
	d, _ := FromShape([]uint64{2, 300, 1000, 600})
	if got := d.DataShape(); !reflect.DeepEqual(got, []uint64{2, 300, 1000, 600}) {
		t.Errorf("DataShape = %v", got)
	}
	if got := d.DataChunks(0); !reflect.DeepEqual(got, []uint64{1, 1, 512, 512}) {
		t.Errorf("DataChunks = %v", got)
	}
	if got := d.SwizzledShape(); !reflect.DeepEqual(got, []uint64{2, 600, 1000, 300}) {
		t.Errorf("SwizzledShape = %v", got)
	}
	if got := d.SwizzledChunks(); !reflect.DeepEqual(got, []uint64{1, 16, 16, 256}) {
		t.Errorf("SwizzledChunks = %v", got)
	}
	if d.SwizzledName() != "ZYXW" || !d.HasSwizzle() {
		t.Errorf("swizzle name %s", d.SwizzledName())
	}
	start, count := d.SwizzledRegion(1, 32, 16)
	if !reflect.DeepEqual(start, []uint64{1, 32, 0, 0}) || !reflect.DeepEqual(count, []uint64{1, 16, 1000, 300}) {
		t.Errorf("SwizzledRegion = %v %v", start, count)
	}

	d3, _ := FromShape([]uint64{4, 10, 20})
	if got := d3.DataChunks(8); !reflect.DeepEqual(got, []uint64{1, 8, 8}) {
		t.Errorf("3D DataChunks = %v", got)
	}
	if d3.SwizzledName() != "ZYX" || !reflect.DeepEqual(d3.SwizzledShape(), []uint64{20, 10, 4}) {
		t.Errorf("3D swizzle %s %v", d3.SwizzledName(), d3.SwizzledShape())
	}
	start, count = d3.PlaneRegion(0, 3, 10, 20)
	if !reflect.DeepEqual(start, []uint64{3, 0, 0}) || !reflect.DeepEqual(count, []uint64{1, 10, 20}) {
		t.Errorf("PlaneRegion = %v %v", start, count)
	}

	d2, _ := FromShape([]uint64{10, 20})
	if d2.HasSwizzle() {
		t.Error("2D image has no swizzled copy")
	}
	flat, _ := FromShape([]uint64{1, 10, 20})
	if flat.HasSwizzle() {
		t.Error("single-channel cube has no swizzled copy")
	}
}

func TestStatsDims(t *testing.T) {
	d4, _ := New(2, 3, 4, 5)
	d3 := Dims{Stokes: 1, Depth: 3, Height: 4, Width: 5, Rank: 3}
	d2 := Dims{Stokes: 1, Depth: 1, Height: 4, Width: 5, Rank: 2}

	tests := []struct {
		d         Dims
		g         Granularity
		bins      int
		cells     int
		shape     []uint64
		histShape []uint64
	}{
		{d4, XY, 4, 3, []uint64{2, 3}, []uint64{2, 3, 4}},
		{d4, Z, 0, 20, []uint64{2, 4, 5}, nil},
		{d4, XYZ, 4, 1, []uint64{2}, []uint64{2, 4}},
		{d3, XY, 4, 3, []uint64{3}, []uint64{3, 4}},
		{d3, Z, 4, 20, []uint64{4, 5}, []uint64{4, 5, 4}},
		{d3, XYZ, 4, 1, []uint64{1}, []uint64{4}},
		{d2, XY, 4, 1, []uint64{1}, []uint64{4}},
		{d2, Z, -1, 20, []uint64{4, 5}, nil},
	}
	for _, tt := range tests {
		sd := tt.d.StatsDims(tt.g, tt.bins)
		if sd.Cells != tt.cells || !reflect.DeepEqual(sd.Shape, tt.shape) || !reflect.DeepEqual(sd.HistShape, tt.histShape) {
			t.Errorf("rank %d %s: cells %d shape %v hist %v, want %d %v %v",
				tt.d.Rank, tt.g, sd.Cells, sd.Shape, sd.HistShape, tt.cells, tt.shape, tt.histShape)
		}
	}

	sd := d4.StatsDims(Z, 0)
	start, count := sd.Region(1, 1)
	if !reflect.DeepEqual(start, []uint64{1, 0, 0}) || !reflect.DeepEqual(count, []uint64{1, 4, 5}) {
		t.Errorf("Region = %v %v", start, count)
	}
	if sd.Size() != 40 {
		t.Errorf("Size = %d", sd.Size())
	}
	sd3 := d3.StatsDims(XYZ, 8)
	start, count = sd3.HistRegion(0, 1)
	if !reflect.DeepEqual(start, []uint64{0}) || !reflect.DeepEqual(count, []uint64{8}) {
		t.Errorf("3D HistRegion = %v %v", start, count)
	}
}

func TestDefaultBins(t *testing.T) {
	d, _ := New(1, 1, 100, 400)
	if got := d.DefaultBins(); got != 200 {
		t.Errorf("DefaultBins = %d", got)
	}
	one, _ := New(1, 1, 1, 1)
	if got := one.DefaultBins(); got != 2 {
		t.Errorf("DefaultBins for 1x1 = %d", got)
	}
}

func TestMipmapLevels(t *testing.T) {
	d, _ := New(1, 1, 1000, 600)
	levels := d.MipmapLevels(128)
	want := []Level{
		{0, 1000, 600},
		{1, 500, 300},
		{2, 250, 150},
		{3, 125, 75},
	}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v", levels)
	}
	if levels[3].Name() != "DATA_XY_8" || levels[3].Factor() != 8 {
		t.Errorf("name %s", levels[3].Name())
	}

	one, _ := New(1, 1, 1, 1)
	if got := one.MipmapLevels(128); len(got) != 1 {
		t.Errorf("1x1 has %d levels", len(got))
	}
	odd, _ := New(1, 1, 5, 3)
	if got := odd.MipmapLevels(1); !reflect.DeepEqual(got, []Level{{0, 5, 3}, {1, 3, 2}, {2, 2, 1}, {3, 1, 1}}) {
		t.Errorf("odd levels = %v", got)
	}
	if got := d.MipmapShape(want[1]); !reflect.DeepEqual(got, []uint64{1, 1, 500, 300}) {
		t.Errorf("MipmapShape = %v", got)
	}
	if got := d.MipmapChunks(want[3], 0); !reflect.DeepEqual(got, []uint64{1, 1, 125, 75}) {
		t.Errorf("MipmapChunks = %v", got)
	}
}
