package hdf5

import (
	"fmt"

	"github.com/idia-astro/hdf5convert/internal/alloc"
	"github.com/idia-astro/hdf5convert/internal/dtype"
	"github.com/idia-astro/hdf5convert/internal/layout"
	"github.com/idia-astro/hdf5convert/internal/message"
	"github.com/idia-astro/hdf5convert/internal/object"
)

// CreateDataset creates a dataset of the given shape whose element type is
// that of elem (float32, float64, int64 or uint8, or a slice of one).
// Storage for every element is reserved immediately; unwritten elements
// read as zero.
func (g *Group) CreateDataset(name string, elem any, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	o := &datasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	parent, base, err := g.parentOf(name)
	if err != nil {
		return nil, err
	}
	f := g.file
	path := joinPath(parent.path, base)

	dt, err := dtype.For(elem)
	if err != nil || dt.IsString() {
		return nil, fmt.Errorf("dataset %s: %w: element type %T", path, ErrUnsupported, elem)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("dataset %s: %w: scalar datasets are not supported", path, ErrUnsupported)
	}
	for i, d := range dims {
		if d == 0 {
			return nil, fmt.Errorf("dataset %s: %w: dimension %d is zero", path, ErrShape, i)
		}
	}
	dims = append([]uint64(nil), dims...)
	elemSize := uint64(dt.Size)

	var attrs []*message.Attribute
	for _, a := range o.attributes {
		msg, err := newAttributeMessage(f, a.name, a.value)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		attrs = append(attrs, msg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if parent.find(base) != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}

	var (
		lm     *message.DataLayout
		l      layout.Layout
		chunks []uint64
	)
	if o.chunks != nil {
		if len(o.chunks) != len(dims) {
			return nil, fmt.Errorf("dataset %s: %w: chunk rank %d, dataset rank %d", path, ErrShape, len(o.chunks), len(dims))
		}
		chunks = make([]uint64, len(dims))
		for i := range dims {
			chunks[i] = min(max(o.chunks[i], 1), dims[i])
		}
		c, err := layout.NewChunked(0, dims, chunks, elemSize)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		addr := f.allocator.AllocAligned(alloc.RawData, c.StorageSize(), f.opts.alignment)
		lm = message.NewChunkedLayout(chunks, elemSize, addr)
	} else {
		size := layout.Elements(dims) * elemSize
		addr := f.allocator.AllocAligned(alloc.RawData, size, f.opts.alignment)
		lm = message.NewContiguousLayout(addr, size)
	}
	if l, err = layout.New(lm, dims, elemSize); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	msgs := object.NewDatasetHeader(message.NewDataspace(dims), dt, message.NewEarlyFillValue(), lm, attrs)
	addr, err := f.writeHeader(msgs, 0)
	if err != nil {
		return nil, fmt.Errorf("writing dataset header %s: %w", path, err)
	}

	ds := &Dataset{
		file:   f,
		path:   path,
		dims:   dims,
		dtype:  dt,
		layout: l,
		chunks: chunks,
		attrs:  attrs,
	}
	parent.entries = append(parent.entries, &entry{name: base, addr: addr, dataset: ds})
	return ds, nil
}

// WriteSlab writes src, holding the hyperslab (start, count) in row-major
// order, into the dataset.
func (d *Dataset) WriteSlab(src any, start, count []uint64) error {
	if d.file.closed {
		return ErrClosed
	}
	if !d.file.writable {
		return ErrReadOnly
	}
	if err := d.checkBuffer(src, count); err != nil {
		return err
	}
	es := int(d.dtype.Size)
	var scratch []byte
	return d.layout.Runs(start, count, func(r layout.Run) error {
		scratch = grow(scratch, r.N*es)
		if err := dtype.EncodeRange(scratch, src, r.Index, r.N); err != nil {
			return err
		}
		if _, err := d.file.file.WriteAt(scratch, int64(r.Addr)); err != nil {
			return fmt.Errorf("writing %s: %w", d.path, err)
		}
		return nil
	})
}

// Write writes the whole dataset from src.
func (d *Dataset) Write(src any) error {
	return d.WriteSlab(src, make([]uint64, len(d.dims)), d.dims)
}

// WriteDataset creates a dataset and writes data into it.
func (g *Group) WriteDataset(name string, data any, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	ds, err := g.CreateDataset(name, data, dims, opts...)
	if err != nil {
		return nil, err
	}
	if err := ds.Write(data); err != nil {
		return nil, err
	}
	return ds, nil
}
