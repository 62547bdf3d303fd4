package object

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
	"github.com/idia-astro/hdf5convert/internal/message"
)

// MinGroupChunkSize is the minimum chunk size used for group headers, as
// h5py does.
const MinGroupChunkSize = 120

// maxMessageSize is the largest body a version 2 message size field holds.
const maxMessageSize = 0xFFFF

// nilHeaderSize is the size of a message header without creation order.
const nilHeaderSize = 4

// layout computes message and padding sizes for a header.
func layout(w *binary.Writer, messages []message.Serializable, minChunk int) (msgs, pad int, err error) {
	for _, m := range messages {
		size := m.SerializedSize(w)
		if size > maxMessageSize {
			return 0, 0, fmt.Errorf("%w: message type 0x%04x is %d bytes", ErrMessageTooLarge, uint16(m.Type()), size)
		}
		msgs += nilHeaderSize + size
	}
	if msgs < minChunk {
		pad = minChunk - msgs
		// A gap must hold at least a NIL message header.
		if pad < nilHeaderSize {
			pad = nilHeaderSize
		}
	}
	return msgs, pad, nil
}

func chunkSizeFieldBytes(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	default:
		return 4
	}
}

// CheckMessage reports ErrMessageTooLarge if m cannot be stored.
func CheckMessage(w *binary.Writer, m message.Serializable) error {
	_, _, err := layout(w, []message.Serializable{m}, 0)
	return err
}

// HeaderSize returns the encoded size of a header, including the checksum.
func HeaderSize(w *binary.Writer, messages []message.Serializable, minChunk int) (int, error) {
	msgs, pad, err := layout(w, messages, minChunk)
	if err != nil {
		return 0, err
	}
	chunk := msgs + pad
	return 6 + chunkSizeFieldBytes(chunk) + chunk + 4, nil
}

// WriteHeader writes a version 2 object header at the writer position and
// returns the number of bytes written.
func WriteHeader(w *binary.Writer, messages []message.Serializable, minChunk int) (int64, error) {
	msgs, pad, err := layout(w, messages, minChunk)
	if err != nil {
		return 0, err
	}
	chunk := msgs + pad
	fieldBytes := chunkSizeFieldBytes(chunk)

	bw, buf := binary.NewBufferWriter(w.Config(), 6+fieldBytes+chunk+4)
	bw.WriteBytes(SignatureV2)
	bw.WriteUint8(2)
	bw.WriteUint8(uint8(fieldBytes >> 1)) // 1, 2, 4 bytes -> 0, 1, 2
	bw.WriteUintN(uint64(chunk), fieldBytes)

	for _, m := range messages {
		bw.WriteUint8(uint8(m.Type()))
		bw.WriteUint16(uint16(m.SerializedSize(bw)))
		bw.WriteUint8(0)
		if err := m.Serialize(bw); err != nil {
			return 0, fmt.Errorf("serializing message type 0x%04x: %w", uint16(m.Type()), err)
		}
	}
	if pad > 0 {
		bw.WriteUint8(uint8(message.TypeNIL))
		bw.WriteUint16(uint16(pad - nilHeaderSize))
		bw.WriteUint8(0)
		bw.WriteZeros(pad - nilHeaderSize)
	}
	if err := bw.WriteUint32(binary.Lookup3Checksum(buf.Bytes())); err != nil {
		return 0, err
	}

	if err := w.WriteBytes(buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// NewGroupHeader returns the messages of a compact group holding links and
// attributes.
func NewGroupHeader(links []*message.Link, attrs []*message.Attribute) []message.Serializable {
	msgs := make([]message.Serializable, 0, 2+len(links)+len(attrs))
	msgs = append(msgs, &message.LinkInfo{}, &message.GroupInfo{})
	for _, l := range links {
		msgs = append(msgs, l)
	}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}

// NewDatasetHeader returns the messages of a dataset header.
func NewDatasetHeader(ds *message.Dataspace, dt *message.Datatype, fill *message.FillValue, layout *message.DataLayout, attrs []*message.Attribute) []message.Serializable {
	msgs := []message.Serializable{ds, dt, fill, layout}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}
