// Package hdf5 writes and reads the subset of HDF5 used for converted image
// cubes: compact groups with attributes, and contiguous or chunked datasets
// of float32, float64, int64 and uint8 that can be written in hyperslabs.
//
// Files are created with Create. Groups and dataset headers are kept in an
// in-memory tree; dataset storage is reserved on creation, so hyperslabs can
// be written in any order. Close writes the group headers bottom-up and the
// superblock last, so a file is only valid once Close returns nil.
package hdf5

import (
	"errors"

	"github.com/idia-astro/hdf5convert/internal/object"
)

var (
	ErrNotHDF5      = errors.New("not an HDF5 file")
	ErrNotFound     = errors.New("object not found")
	ErrNotDataset   = errors.New("object is not a dataset")
	ErrNotGroup     = errors.New("object is not a group")
	ErrExists       = errors.New("object already exists")
	ErrUnsupported  = errors.New("unsupported feature")
	ErrInvalidPath  = errors.New("invalid path")
	ErrClosed       = errors.New("file is closed")
	ErrReadOnly     = errors.New("file is read-only")
	ErrTypeMismatch = errors.New("datatype mismatch")
	ErrShape        = errors.New("shape mismatch")

	// ErrTooLarge reports an attribute that does not fit in an object
	// header message.
	ErrTooLarge = object.ErrMessageTooLarge
)
