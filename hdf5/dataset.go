package hdf5

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/dtype"
	"github.com/idia-astro/hdf5convert/internal/layout"
	"github.com/idia-astro/hdf5convert/internal/message"
	"github.com/idia-astro/hdf5convert/internal/object"
)

// Dataset is an HDF5 dataset.
type Dataset struct {
	file   *File
	path   string
	dims   []uint64
	dtype  *message.Datatype
	layout layout.Layout
	chunks []uint64
	attrs  []*message.Attribute
}

func newReadDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds, dt, lm := header.Dataspace(), header.Datatype(), header.DataLayout()
	if ds == nil || dt == nil || lm == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, path)
	}
	l, err := layout.New(lm, ds.Dimensions, uint64(dt.Size))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w: %v", path, ErrUnsupported, err)
	}
	return &Dataset{
		file:   f,
		path:   path,
		dims:   ds.Dimensions,
		dtype:  dt,
		layout: l,
		chunks: lm.ChunkShape(),
		attrs:  header.Attributes(),
	}, nil
}

// Name returns the last component of the dataset path.
func (d *Dataset) Name() string {
	parts := SplitPath(d.path)
	return parts[len(parts)-1]
}

// Path returns the absolute path of the dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Shape returns the dataset dimensions.
func (d *Dataset) Shape() []uint64 {
	return append([]uint64(nil), d.dims...)
}

// Chunks returns the chunk shape, or nil for contiguous storage.
func (d *Dataset) Chunks() []uint64 {
	return d.chunks
}

// NumElements returns the number of elements.
func (d *Dataset) NumElements() uint64 {
	return layout.Elements(d.dims)
}

// Type returns a short description of the element type, e.g. "float32".
func (d *Dataset) Type() string {
	return d.dtype.String()
}

// Attrs returns the attribute names in header order.
func (d *Dataset) Attrs() []string {
	return attrNames(d.attrs)
}

// Attr returns an attribute by name, or nil.
func (d *Dataset) Attr(name string) *Attribute {
	return findAttr(d.attrs, name)
}

// checkBuffer validates a selection buffer against the datatype and count.
func (d *Dataset) checkBuffer(buf any, count []uint64) error {
	if !dtype.Matches(d.dtype, buf) {
		return fmt.Errorf("%w: %T for %s dataset %s", ErrTypeMismatch, buf, d.dtype, d.path)
	}
	n, err := dtype.Len(buf)
	if err != nil {
		return err
	}
	if uint64(n) != layout.Elements(count) {
		return fmt.Errorf("%w: buffer holds %d elements, selection %v has %d", ErrShape, n, count, layout.Elements(count))
	}
	return nil
}

// ReadSlab reads the hyperslab (start, count) into dst, a slice of the
// dataset's element type holding exactly the selected elements in
// row-major order.
func (d *Dataset) ReadSlab(dst any, start, count []uint64) error {
	if d.file.closed {
		return ErrClosed
	}
	if err := d.checkBuffer(dst, count); err != nil {
		return err
	}
	es := int(d.dtype.Size)
	var scratch []byte
	return d.layout.Runs(start, count, func(r layout.Run) error {
		scratch = grow(scratch, r.N*es)
		if err := d.file.reader.ReadAt(scratch, int64(r.Addr)); err != nil {
			return fmt.Errorf("reading %s: %w", d.path, err)
		}
		return dtype.DecodeRange(dst, r.Index, r.N, scratch, d.dtype)
	})
}

// Read reads the whole dataset into dst.
func (d *Dataset) Read(dst any) error {
	return d.ReadSlab(dst, make([]uint64, len(d.dims)), d.dims)
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
