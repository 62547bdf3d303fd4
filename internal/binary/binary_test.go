package binary

import (
	"bytes"
	"testing"
)

func TestLookup3KnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0xdeadbeef},
		{"Four score and seven years ago", 0x17770551},
	}
	for _, tt := range tests {
		if got := Lookup3Checksum([]byte(tt.in)); got != tt.want {
			t.Errorf("Lookup3Checksum(%q) = %#08x, want %#08x", tt.in, got, tt.want)
		}
	}
}

func TestLookup3LengthSensitivity(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i * 7)
	}
	seen := make(map[uint32]int)
	for n := 1; n <= len(data); n++ {
		sum := Lookup3Checksum(data[:n])
		if prev, ok := seen[sum]; ok {
			t.Errorf("length %d collides with length %d", n, prev)
		}
		seen[sum] = n
		if !VerifyLookup3(data[:n], sum) {
			t.Errorf("VerifyLookup3 failed for length %d", n)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.OffsetSize = 3
	if err := cfg.Validate(); err != ErrInvalidSize {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	w, buf := NewBufferWriter(cfg, 0)
	if err := w.WriteUint8(0xAB); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint16(0x1234); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint32(0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteOffset(0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUndefinedOffset(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteZeros(3); err != nil {
		t.Fatal(err)
	}
	if w.Pos() != 1+2+4+8+8+3 {
		t.Fatalf("Pos = %d", w.Pos())
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), cfg)
	if v, _ := r.ReadUint8(); v != 0xAB {
		t.Errorf("uint8 = %#x", v)
	}
	if v, _ := r.ReadUint16(); v != 0x1234 {
		t.Errorf("uint16 = %#x", v)
	}
	if v, _ := r.ReadUint32(); v != 0xDEADBEEF {
		t.Errorf("uint32 = %#x", v)
	}
	if v, _ := r.ReadOffset(); v != 0x0102030405060708 {
		t.Errorf("offset = %#x", v)
	}
	v, err := r.ReadOffset()
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsUndefinedOffset(v) {
		t.Errorf("expected undefined offset, got %#x", v)
	}
}

func TestWriterAtIndependentPositions(t *testing.T) {
	w, buf := NewBufferWriter(DefaultConfig(), 16)
	a := w.At(4)
	b := w.At(0)
	if err := a.WriteUint16(0xBEEF); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteUint8(1); err != nil {
		t.Fatal(err)
	}
	if a.Pos() != 6 || b.Pos() != 1 || w.Pos() != 0 {
		t.Fatalf("positions a=%d b=%d w=%d", a.Pos(), b.Pos(), w.Pos())
	}
	want := []byte{1, 0, 0, 0, 0xEF, 0xBE}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("buffer = %v, want %v", buf.Bytes(), want)
	}
}

func TestSmallOffsetSizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OffsetSize = 4
	cfg.LengthSize = 2
	w, buf := NewBufferWriter(cfg, 0)
	if w.UndefinedOffset() != 0xFFFFFFFF {
		t.Errorf("UndefinedOffset = %#x", w.UndefinedOffset())
	}
	w.WriteOffset(0x11223344)
	w.WriteLength(0x5566)
	if buf.Len() != 6 {
		t.Fatalf("Len = %d, want 6", buf.Len())
	}
	r := NewReader(bytes.NewReader(buf.Bytes()), cfg)
	if v, _ := r.ReadOffset(); v != 0x11223344 {
		t.Errorf("offset = %#x", v)
	}
	if v, _ := r.ReadLength(); v != 0x5566 {
		t.Errorf("length = %#x", v)
	}
}
