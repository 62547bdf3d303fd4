package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/idia-astro/hdf5convert/internal/binary"
	"github.com/idia-astro/hdf5convert/internal/message"
)

func writeAt(t *testing.T, addr int64, msgs []message.Serializable, minChunk int) []byte {
	t.Helper()
	w, buf := binary.NewBufferWriter(binary.DefaultConfig(), 0)
	n, err := WriteHeader(w.At(addr), msgs, minChunk)
	if err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	size, err := HeaderSize(w, msgs, minChunk)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != size {
		t.Fatalf("wrote %d bytes, HeaderSize = %d", n, size)
	}
	return buf.Bytes()
}

func TestGroupHeaderRoundTrip(t *testing.T) {
	links := []*message.Link{
		message.NewHardLink("DATA", 0x400),
		message.NewHardLink("Statistics", 0x800),
	}
	attrs := []*message.Attribute{
		message.NewAttribute("SCHEMA_VERSION", message.NewFixedString(3), message.NewScalarDataspace(), []byte("0.3")),
	}
	data := writeAt(t, 64, NewGroupHeader(links, attrs), MinGroupChunkSize)

	r := binary.NewReader(bytes.NewReader(data), binary.DefaultConfig())
	hdr, err := Read(r, 64)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !hdr.IsGroup() {
		t.Error("group header not recognized as group")
	}
	got := hdr.Links()
	if len(got) != 2 || got[0].Name != "DATA" || got[1].ObjectAddress != 0x800 {
		t.Errorf("links = %+v", got)
	}
	if a := hdr.Attributes(); len(a) != 1 || string(a[0].Data) != "0.3" {
		t.Errorf("attributes = %+v", a)
	}
}

func TestEmptyGroupIsPadded(t *testing.T) {
	data := writeAt(t, 0, NewGroupHeader(nil, nil), MinGroupChunkSize)
	// prefix(6) + 1-byte chunk size + chunk + checksum
	if len(data) != 6+1+MinGroupChunkSize+4 {
		t.Errorf("empty group header is %d bytes", len(data))
	}
	r := binary.NewReader(bytes.NewReader(data), binary.DefaultConfig())
	if _, err := Read(r, 0); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestDatasetHeaderRoundTrip(t *testing.T) {
	msgs := NewDatasetHeader(
		message.NewDataspace([]uint64{4, 8}),
		message.NewFloat(4),
		message.NewEarlyFillValue(),
		message.NewChunkedLayout([]uint64{4, 8}, 4, 1024),
		nil,
	)
	data := writeAt(t, 0, msgs, 0)
	r := binary.NewReader(bytes.NewReader(data), binary.DefaultConfig())
	hdr, err := Read(r, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hdr.IsGroup() {
		t.Error("dataset header recognized as group")
	}
	if ds := hdr.Dataspace(); ds == nil || ds.NumElements() != 32 {
		t.Errorf("dataspace = %+v", ds)
	}
	if dt := hdr.Datatype(); dt == nil || dt.String() != "float32" {
		t.Errorf("datatype = %v", dt)
	}
	if l := hdr.DataLayout(); l == nil || !l.IsChunked() || l.Address != 1024 {
		t.Errorf("layout = %+v", l)
	}
}

func TestChecksumMismatch(t *testing.T) {
	data := writeAt(t, 0, NewGroupHeader(nil, nil), MinGroupChunkSize)
	data[10] ^= 0x01
	r := binary.NewReader(bytes.NewReader(data), binary.DefaultConfig())
	if _, err := Read(r, 0); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestMessageTooLarge(t *testing.T) {
	big := strings.Repeat("x", 70000)
	attr := message.NewAttribute("HISTORY", message.NewFixedString(uint32(len(big))), message.NewScalarDataspace(), []byte(big))
	w, _ := binary.NewBufferWriter(binary.DefaultConfig(), 0)
	if err := CheckMessage(w, attr); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if _, err := WriteHeader(w, NewGroupHeader(nil, []*message.Attribute{attr}), 0); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("WriteHeader: expected ErrMessageTooLarge, got %v", err)
	}
}
