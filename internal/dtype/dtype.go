// Package dtype maps Go slices onto HDF5 datatypes and converts between Go
// values and their little-endian on-disk encoding.
//
// Supported element types are float32, float64, int64 and uint8 for
// datasets and attributes, plus string and []string for attributes.
// Ranges of a flat slice can be encoded independently so a hyperslab write
// never needs a byte copy of the whole selection.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/idia-astro/hdf5convert/internal/message"
)

// For returns the datatype describing the elements of v.
func For(v any) (*message.Datatype, error) {
	switch x := v.(type) {
	case []float32, float32:
		return message.NewFloat(4), nil
	case []float64, float64:
		return message.NewFloat(8), nil
	case []int64, int64:
		return message.NewInteger(8, true), nil
	case []uint8, uint8:
		return message.NewInteger(1, false), nil
	case string:
		return message.NewFixedString(uint32(max(len(x), 1))), nil
	case []string:
		return message.NewFixedString(uint32(maxLen(x))), nil
	default:
		return nil, fmt.Errorf("unsupported Go type %T", v)
	}
}

func maxLen(s []string) int {
	n := 1
	for _, v := range s {
		n = max(n, len(v))
	}
	return n
}

// Len returns the number of elements in v.
func Len(v any) (int, error) {
	switch x := v.(type) {
	case []float32:
		return len(x), nil
	case []float64:
		return len(x), nil
	case []int64:
		return len(x), nil
	case []uint8:
		return len(x), nil
	case []string:
		return len(x), nil
	case float32, float64, int64, uint8, string:
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported Go type %T", v)
	}
}

// Matches reports whether v's element type is stored as dt.
func Matches(dt *message.Datatype, v any) bool {
	want, err := For(v)
	if err != nil {
		return false
	}
	if dt.Class != want.Class || dt.BigEndian() {
		return false
	}
	if dt.IsString() {
		return true
	}
	return dt.Size == want.Size && dt.Signed() == want.Signed()
}

// EncodeRange encodes n elements of src starting at element start into dst,
// which must hold at least n*elemSize bytes.
func EncodeRange(dst []byte, src any, start, n int) error {
	le := binary.LittleEndian
	switch x := src.(type) {
	case []float32:
		for i, v := range x[start : start+n] {
			le.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range x[start : start+n] {
			le.PutUint64(dst[8*i:], math.Float64bits(v))
		}
	case []int64:
		for i, v := range x[start : start+n] {
			le.PutUint64(dst[8*i:], uint64(v))
		}
	case []uint8:
		copy(dst, x[start:start+n])
	default:
		return fmt.Errorf("cannot encode %T", src)
	}
	return nil
}

// DecodeRange decodes n elements of type dt from src into dst starting at
// element start.
func DecodeRange(dst any, start, n int, src []byte, dt *message.Datatype) error {
	if !Matches(dt, dst) {
		return fmt.Errorf("cannot decode %s into %T", dt, dst)
	}
	le := binary.LittleEndian
	switch x := dst.(type) {
	case []float32:
		for i := range x[start : start+n] {
			x[start+i] = math.Float32frombits(le.Uint32(src[4*i:]))
		}
	case []float64:
		for i := range x[start : start+n] {
			x[start+i] = math.Float64frombits(le.Uint64(src[8*i:]))
		}
	case []int64:
		for i := range x[start : start+n] {
			x[start+i] = int64(le.Uint64(src[8*i:]))
		}
	case []uint8:
		copy(x[start:start+n], src)
	default:
		return fmt.Errorf("cannot decode into %T", dst)
	}
	return nil
}

// EncodeValue encodes an attribute value (scalar or slice) with its
// datatype and dimensions. Scalars have nil dims.
func EncodeValue(v any) (data []byte, dt *message.Datatype, dims []uint64, err error) {
	if dt, err = For(v); err != nil {
		return nil, nil, nil, err
	}
	switch x := v.(type) {
	case string:
		data = make([]byte, dt.Size)
		copy(data, x)
		return data, dt, nil, nil
	case []string:
		data = make([]byte, int(dt.Size)*len(x))
		for i, s := range x {
			copy(data[i*int(dt.Size):], s)
		}
		return data, dt, []uint64{uint64(len(x))}, nil
	case float32:
		v = []float32{x}
	case float64:
		v = []float64{x}
	case int64:
		v = []int64{x}
	case uint8:
		v = []uint8{x}
	default:
		n, _ := Len(v)
		dims = []uint64{uint64(n)}
	}
	n, _ := Len(v)
	data = make([]byte, n*int(dt.Size))
	if err := EncodeRange(data, v, 0, n); err != nil {
		return nil, nil, nil, err
	}
	return data, dt, dims, nil
}

// DecodeValue decodes an attribute value. Scalars (nil dims) decode to a
// Go scalar; one-dimensional values decode to a slice.
func DecodeValue(data []byte, dt *message.Datatype, dims []uint64) (any, error) {
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	if len(data) < n*int(dt.Size) {
		return nil, fmt.Errorf("attribute data truncated: %d bytes for %d x %s", len(data), n, dt)
	}
	if dt.IsString() {
		out := make([]string, n)
		for i := range out {
			out[i] = trimString(data[i*int(dt.Size) : (i+1)*int(dt.Size)])
		}
		if dims == nil {
			return out[0], nil
		}
		return out, nil
	}

	var dst any
	switch {
	case dt.IsFloat() && dt.Size == 4:
		dst = make([]float32, n)
	case dt.IsFloat() && dt.Size == 8:
		dst = make([]float64, n)
	case dt.IsInteger() && dt.Size == 8 && dt.Signed():
		dst = make([]int64, n)
	case dt.IsInteger() && dt.Size == 1 && !dt.Signed():
		dst = make([]uint8, n)
	default:
		return nil, fmt.Errorf("unsupported attribute type %s", dt)
	}
	if err := DecodeRange(dst, 0, n, data, dt); err != nil {
		return nil, err
	}
	if dims != nil {
		return dst, nil
	}
	switch x := dst.(type) {
	case []float32:
		return x[0], nil
	case []float64:
		return x[0], nil
	case []int64:
		return x[0], nil
	default:
		return dst.([]uint8)[0], nil
	}
}

// trimString drops null and space padding.
func trimString(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	for i := 0; i < end; i++ {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b[:end])
}
