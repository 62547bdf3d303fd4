package dtype

import (
	"math"
	"reflect"
	"testing"
)

func TestForSupportedTypes(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{[]float32{1}, "float32"},
		{[]float64{1}, "float64"},
		{[]int64{1}, "int64"},
		{[]uint8{1}, "uint8"},
		{"abc", "string[3]"},
		{[]string{"a", "bcde"}, "string[4]"},
	}
	for _, tt := range tests {
		dt, err := For(tt.v)
		if err != nil {
			t.Fatalf("For(%T): %v", tt.v, err)
		}
		if dt.String() != tt.want {
			t.Errorf("For(%T) = %s, want %s", tt.v, dt, tt.want)
		}
	}
	if _, err := For([]int32{1}); err == nil {
		t.Error("expected error for []int32")
	}
}

func TestEncodeDecodeRange(t *testing.T) {
	src := []float32{1.5, float32(math.NaN()), -3, 4}
	dt, _ := For(src)
	buf := make([]byte, 2*4)
	if err := EncodeRange(buf, src, 1, 2); err != nil {
		t.Fatal(err)
	}
	dst := make([]float32, 4)
	if err := DecodeRange(dst, 2, 2, buf, dt); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(float64(dst[2])) || dst[3] != -3 || dst[0] != 0 {
		t.Errorf("decoded %v", dst)
	}

	if err := DecodeRange(make([]float64, 2), 0, 2, buf, dt); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestValueRoundTrip(t *testing.T) {
	values := []any{
		"hdf5convert",
		[]string{"first comment", "second"},
		float64(2.5),
		int64(-7),
		uint8(1),
		[]float64{1, 2, 3},
	}
	for _, v := range values {
		data, dt, dims, err := EncodeValue(v)
		if err != nil {
			t.Fatalf("EncodeValue(%v): %v", v, err)
		}
		got, err := DecodeValue(data, dt, dims)
		if err != nil {
			t.Fatalf("DecodeValue(%v): %v", v, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Errorf("round trip %#v -> %#v", v, got)
		}
	}
}
