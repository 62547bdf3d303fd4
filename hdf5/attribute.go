package hdf5

import (
	"github.com/idia-astro/hdf5convert/internal/dtype"
	"github.com/idia-astro/hdf5convert/internal/message"
)

// Attribute is a named value attached to a group or dataset.
type Attribute struct {
	msg *message.Attribute
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.msg.Name
}

// Shape returns the dimensions of the value; nil for scalars.
func (a *Attribute) Shape() []uint64 {
	if a.msg.Dataspace.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

// Type returns a short description of the element type, e.g. "float64".
func (a *Attribute) Type() string {
	return a.msg.Datatype.String()
}

// Value decodes the attribute. Scalars decode to string, float32, float64,
// int64 or uint8; one-dimensional values to the matching slice.
func (a *Attribute) Value() (any, error) {
	return dtype.DecodeValue(a.msg.Data, a.msg.Datatype, a.Shape())
}

func attrNames(attrs []*message.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names
}

func findAttr(attrs []*message.Attribute, name string) *Attribute {
	for _, a := range attrs {
		if a.Name == name {
			return &Attribute{msg: a}
		}
	}
	return nil
}
