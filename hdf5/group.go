package hdf5

import (
	"fmt"
	"strings"

	"github.com/idia-astro/hdf5convert/internal/dtype"
	"github.com/idia-astro/hdf5convert/internal/message"
	"github.com/idia-astro/hdf5convert/internal/object"
)

// Group is an HDF5 group.
type Group struct {
	file    *File
	path    string
	entries []*entry
	attrs   []*message.Attribute
}

// entry is a named member of a group. While writing, exactly one of group
// and dataset is set; groups get their address when the file is closed.
type entry struct {
	name    string
	addr    uint64
	group   *Group
	dataset *Dataset
}

func newWriteGroup(f *File, path string) *Group {
	return &Group{file: f, path: path}
}

func newReadGroup(f *File, path string, header *object.Header) *Group {
	g := &Group{file: f, path: path, attrs: header.Attributes()}
	for _, l := range header.Links() {
		g.entries = append(g.entries, &entry{name: l.Name, addr: l.ObjectAddress})
	}
	return g
}

// Name returns the last component of the group path.
func (g *Group) Name() string {
	parts := SplitPath(g.path)
	if len(parts) == 0 {
		return "/"
	}
	return parts[len(parts)-1]
}

// Path returns the absolute path of the group.
func (g *Group) Path() string {
	return g.path
}

// Members returns the names of the group's members in creation order.
func (g *Group) Members() []string {
	g.file.mu.Lock()
	defer g.file.mu.Unlock()
	names := make([]string, len(g.entries))
	for i, e := range g.entries {
		names[i] = e.name
	}
	return names
}

func (g *Group) find(name string) *entry {
	for _, e := range g.entries {
		if e.name == name {
			return e
		}
	}
	return nil
}

// open resolves a relative path to a *Group or *Dataset.
func (g *Group) open(relativePath string) (any, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	g.file.mu.Lock()
	defer g.file.mu.Unlock()

	cur := g
	for i, name := range parts {
		e := cur.find(name)
		if e == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(cur.path, name))
		}
		obj, err := cur.resolve(e)
		if err != nil {
			return nil, err
		}
		if i == len(parts)-1 {
			return obj, nil
		}
		next, ok := obj.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, joinPath(cur.path, name))
		}
		cur = next
	}
	return nil, ErrNotFound
}

// resolve returns the object an entry refers to, reading its header if the
// file was opened for reading.
func (g *Group) resolve(e *entry) (any, error) {
	if e.group != nil {
		return e.group, nil
	}
	if e.dataset != nil {
		return e.dataset, nil
	}
	path := joinPath(g.path, e.name)
	header, err := object.Read(g.file.reader, e.addr)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if header.IsGroup() {
		return newReadGroup(g.file, path, header), nil
	}
	return newReadDataset(g.file, path, header)
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	child, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, relativePath)
	}
	return child, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, relativePath)
	}
	return ds, nil
}

// CreateGroup creates a subgroup. Intermediate groups in a relative path
// must already exist.
func (g *Group) CreateGroup(relativePath string) (*Group, error) {
	parent, name, err := g.parentOf(relativePath)
	if err != nil {
		return nil, err
	}

	g.file.mu.Lock()
	defer g.file.mu.Unlock()
	if parent.find(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, joinPath(parent.path, name))
	}
	child := newWriteGroup(g.file, joinPath(parent.path, name))
	parent.entries = append(parent.entries, &entry{name: name, group: child})
	return child, nil
}

// parentOf resolves the parent group of a relative path in a writable file.
func (g *Group) parentOf(relativePath string) (*Group, string, error) {
	if g.file.closed {
		return nil, "", ErrClosed
	}
	if !g.file.writable {
		return nil, "", ErrReadOnly
	}
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: empty name", ErrInvalidPath)
	}
	name := parts[len(parts)-1]
	if err := validName(name); err != nil {
		return nil, "", err
	}
	parent := g
	if len(parts) > 1 {
		p, err := g.OpenGroup(strings.Join(parts[:len(parts)-1], "/"))
		if err != nil {
			return nil, "", err
		}
		parent = p
	}
	return parent, name, nil
}

// SetAttr sets an attribute on the group, replacing any attribute of the
// same name. Supported values are string, []string, float32, float64,
// int64, uint8 and slices of the numeric types.
func (g *Group) SetAttr(name string, value any) error {
	if g.file.closed {
		return ErrClosed
	}
	if !g.file.writable {
		return ErrReadOnly
	}
	attr, err := newAttributeMessage(g.file, name, value)
	if err != nil {
		return err
	}

	g.file.mu.Lock()
	defer g.file.mu.Unlock()
	for i, a := range g.attrs {
		if a.Name == name {
			g.attrs[i] = attr
			return nil
		}
	}
	g.attrs = append(g.attrs, attr)
	return nil
}

// newAttributeMessage encodes an attribute and checks that it fits in an
// object header.
func newAttributeMessage(f *File, name string, value any) (*message.Attribute, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty attribute name", ErrInvalidPath)
	}
	data, dt, dims, err := dtype.EncodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w: %v", name, ErrUnsupported, err)
	}
	ds := message.NewScalarDataspace()
	if dims != nil {
		ds = message.NewDataspace(dims)
	}
	attr := message.NewAttribute(name, dt, ds, data)
	if err := object.CheckMessage(f.writer, attr); err != nil {
		return nil, fmt.Errorf("attribute %s: %w", name, err)
	}
	return attr, nil
}

// Attrs returns the attribute names in header order.
func (g *Group) Attrs() []string {
	return attrNames(g.attrs)
}

// Attr returns an attribute by name, or nil.
func (g *Group) Attr(name string) *Attribute {
	return findAttr(g.attrs, name)
}
