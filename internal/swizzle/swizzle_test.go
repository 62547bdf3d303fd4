package swizzle

import (
	"errors"
	"testing"
)

func linear(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i)
	}
	return v
}

func checkSwizzled(t *testing.T, target []float32, D, H, W int) {
	t.Helper()
	for d := 0; d < D; d++ {
		for h := 0; h < H; h++ {
			for w := 0; w < W; w++ {
				src := (d*H+h)*W + w
				if got := target[(w*H+h)*D+d]; got != float32(src) {
					t.Fatalf("(d=%d,h=%d,w=%d): got %v, want %d", d, h, w, got, src)
				}
			}
		}
	}
}

func TestRotateEveryIndex(t *testing.T) {
	for _, tc := range []struct {
		shape Shape
		tile  int
	}{
		{Shape{5, 3, 7}, 2},
		{Shape{40, 9, 70}, 32},
		{Shape{1, 4, 4}, 0},
		{Shape{3, 1, 1}, 1},
	} {
		src := linear(tc.shape.Elements())
		dst := make([]float32, len(src))
		if err := Rotate(dst, tc.shape.Swizzled(), src, tc.shape, tc.tile); err != nil {
			t.Fatalf("%v: %v", tc.shape, err)
		}
		checkSwizzled(t, dst, tc.shape[0], tc.shape[1], tc.shape[2])
	}
}

func TestRotateRowsPartition(t *testing.T) {
	shape := Shape{6, 5, 4}
	src := linear(shape.Elements())
	dst := make([]float32, len(src))
	RotateRows(dst, src, shape, 4, 3, 5)
	RotateRows(dst, src, shape, 4, 0, 3)
	checkSwizzled(t, dst, 6, 5, 4)
}

func TestRotateShapeMismatch(t *testing.T) {
	src := linear(24)
	if err := Rotate(make([]float32, 24), Shape{2, 3, 4}, src, Shape{2, 3, 4}, 0); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for unswizzled target, got %v", err)
	}
	if err := Rotate(make([]float32, 23), Shape{4, 3, 2}, src, Shape{2, 3, 4}, 0); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for short target, got %v", err)
	}
}

func TestScatterBuildsBlocks(t *testing.T) {
	D, H, W := 4, 3, 5
	src := linear(D * H * W)
	full := make([]float32, D*H*W)
	// Two column blocks: [0, 3) and [3, 5).
	for _, blk := range [][2]int{{0, 3}, {3, 2}} {
		w0, nw := blk[0], blk[1]
		block := make([]float32, nw*H*D)
		for d := 0; d < D; d++ {
			plane := make([]float32, H*nw)
			for h := 0; h < H; h++ {
				copy(plane[h*nw:], src[(d*H+h)*W+w0:(d*H+h)*W+w0+nw])
			}
			if err := Scatter(block, plane, d, D, H, nw); err != nil {
				t.Fatal(err)
			}
		}
		copy(full[w0*H*D:], block)
	}
	checkSwizzled(t, full, D, H, W)

	if err := Scatter(make([]float32, 6), make([]float32, 3), 2, 2, 3, 1); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for depth index, got %v", err)
	}
}

func TestBufferLifecycle(t *testing.T) {
	b, err := Allocate(10)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 10 {
		t.Errorf("Len = %d", b.Len())
	}
	b.Release()
	b.Release()
	if b.Data() != nil {
		t.Error("data not released")
	}
	var nilBuf *Buffer
	nilBuf.Release()

	if _, err := Allocate(-1); !errors.Is(err, ErrAlloc) {
		t.Errorf("expected ErrAlloc, got %v", err)
	}
}

func TestDegenerateDepth(t *testing.T) {
	// Depth 1: the swizzle is the plane with its axes swapped.
	shape := Shape{1, 2, 3}
	dst := make([]float32, 6)
	if err := Rotate(dst, shape.Swizzled(), linear(6), shape, 0); err != nil {
		t.Fatal(err)
	}
	want := []float32{0, 3, 1, 4, 2, 5}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
}
