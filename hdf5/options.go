package hdf5

// FileOption configures file creation.
type FileOption func(*fileOptions)

type fileOptions struct {
	alignment uint64
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{alignment: 8}
}

// WithAlignment aligns dataset storage to the given byte boundary.
func WithAlignment(n uint64) FileOption {
	return func(o *fileOptions) {
		if n > 0 {
			o.alignment = n
		}
	}
}

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

type datasetOptions struct {
	chunks     []uint64
	attributes []attrDef
}

// WithChunks stores the dataset in chunks of the given shape. Chunk
// dimensions larger than the dataset are clipped.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithAttribute attaches an attribute to the dataset header.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
