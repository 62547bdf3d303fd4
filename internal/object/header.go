// Package object reads and writes version 2 ("OHDR") object headers.
//
// Every group and dataset is described by an object header holding a
// sequence of messages (dataspace, datatype, layout, links, attributes).
// Headers are written in a single chunk protected by a lookup3 checksum:
//
//	0    4  signature "OHDR"
//	4    1  version (2)
//	5    1  flags (bits 0-1: width of the chunk size field)
//	6    n  chunk size (messages and padding, excluding the checksum)
//	6+n  ..  messages: type(1) size(2) flags(1) data(size)
//	..   4  checksum
package object

import (
	"errors"
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/binary"
	"github.com/idia-astro/hdf5convert/internal/message"
)

// SignatureV2 starts every version 2 object header.
var SignatureV2 = []byte{'O', 'H', 'D', 'R'}

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
	ErrMessageTooLarge    = errors.New("header message exceeds 65535 bytes")
)

// Header is a parsed object header.
type Header struct {
	Address  uint64
	Flags    uint8
	Messages []message.Message
}

// Read parses the object header at address.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))
	prefix, err := hr.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	if string(prefix[:4]) != string(SignatureV2) {
		return nil, fmt.Errorf("%w: no OHDR signature at address %d", ErrInvalidHeader, address)
	}
	if prefix[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, prefix[4])
	}
	hdr := &Header{Address: address, Flags: prefix[5]}

	if hdr.Flags&0x20 != 0 {
		hr.Skip(16) // access, modification, change, birth times
	}
	if hdr.Flags&0x10 != 0 {
		hr.Skip(4) // attribute phase change values
	}
	chunkSize, err := hr.ReadUintN(1 << (hdr.Flags & 0x03))
	if err != nil {
		return nil, err
	}
	chunkStart := hr.Pos()
	chunkEnd := chunkStart + int64(chunkSize)

	raw := make([]byte, chunkEnd-int64(address)+4)
	if err := r.ReadAt(raw, int64(address)); err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	n := len(raw) - 4
	stored := uint32(raw[n]) | uint32(raw[n+1])<<8 | uint32(raw[n+2])<<16 | uint32(raw[n+3])<<24
	if binary.Lookup3Checksum(raw[:n]) != stored {
		return nil, fmt.Errorf("%w at address %d", ErrChecksumMismatch, address)
	}

	creationOrder := hdr.Flags&0x04 != 0
	for hr.Pos()+4 <= chunkEnd {
		typ, err := hr.ReadUint8()
		if err != nil {
			return nil, err
		}
		size, err := hr.ReadUint16()
		if err != nil {
			return nil, err
		}
		hr.Skip(1) // message flags
		if creationOrder {
			hr.Skip(2)
		}
		data, err := hr.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		if message.Type(typ) == message.TypeNIL {
			continue
		}
		msg, err := message.Parse(message.Type(typ), data, r)
		if err != nil {
			return nil, fmt.Errorf("object header at %d: %w", address, err)
		}
		hdr.Messages = append(hdr.Messages, msg)
	}
	return hdr, nil
}

// GetMessage returns the first message of the given type, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns all messages of the given type.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var result []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			result = append(result, msg)
		}
	}
	return result
}

// IsGroup reports whether the header describes a group.
func (h *Header) IsGroup() bool {
	return h.GetMessage(message.TypeLinkInfo) != nil
}

// Dataspace returns the dataspace message, or nil.
func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.GetMessage(message.TypeDataspace).(*message.Dataspace)
	return m
}

// Datatype returns the datatype message, or nil.
func (h *Header) Datatype() *message.Datatype {
	m, _ := h.GetMessage(message.TypeDatatype).(*message.Datatype)
	return m
}

// DataLayout returns the data layout message, or nil.
func (h *Header) DataLayout() *message.DataLayout {
	m, _ := h.GetMessage(message.TypeDataLayout).(*message.DataLayout)
	return m
}

// Links returns the hard links of a compact group in header order.
func (h *Header) Links() []*message.Link {
	var links []*message.Link
	for _, m := range h.GetMessages(message.TypeLink) {
		links = append(links, m.(*message.Link))
	}
	return links
}

// Attributes returns the attribute messages in header order.
func (h *Header) Attributes() []*message.Attribute {
	var attrs []*message.Attribute
	for _, m := range h.GetMessages(message.TypeAttribute) {
		attrs = append(attrs, m.(*message.Attribute))
	}
	return attrs
}
