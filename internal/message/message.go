// Package message encodes and decodes the object header messages used by
// converted files: dataspace, datatype, fill value, data layout, the link
// messages of compact groups, and attributes.
//
// Every message type implements [Serializable]; [Parse] turns raw header
// message bytes back into the typed value, returning [Unknown] for types
// this package does not model.
package message

import (
	"bytes"
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
)

// Type represents an HDF5 header message type.
type Type uint16

const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeDataLayout               Type = 0x0008
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectHeaderContinuation Type = 0x0010
	TypeAttributeInfo            Type = 0x0015
)

// UndefinedAddress is the all-ones address for 8-byte offsets.
const UndefinedAddress = ^uint64(0)

// Message is the interface implemented by all header messages.
type Message interface {
	Type() Type
}

// Serializable is a message that can be encoded into an object header.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
	SerializedSize(w *binary.Writer) int
}

// Parse decodes a header message body.
func Parse(typ Type, data []byte, r *binary.Reader) (Message, error) {
	mr := binary.NewReader(bytes.NewReader(data), r.Config())
	var (
		m   Message
		err error
	)
	switch typ {
	case TypeDataspace:
		m, err = parseDataspace(mr)
	case TypeDatatype:
		m, _, err = parseDatatype(data)
	case TypeDataLayout:
		m, err = parseDataLayout(mr)
	case TypeFillValue:
		m, err = parseFillValue(mr)
	case TypeAttribute:
		m, err = parseAttribute(data, r)
	case TypeLink:
		m, err = parseLink(mr)
	case TypeObjectHeaderContinuation:
		m, err = parseContinuation(mr)
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing message type 0x%04x: %w", uint16(typ), err)
	}
	return m, nil
}

// Unknown holds a message type this package does not decode.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points to a further object header chunk.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func parseContinuation(r *binary.Reader) (*Continuation, error) {
	off, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("continuation message too short")
	}
	length, err := r.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("continuation message too short")
	}
	return &Continuation{Offset: off, Length: length}, nil
}
