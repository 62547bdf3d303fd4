package converter

import (
	"errors"
	"fmt"

	"github.com/idia-astro/hdf5convert/hdf5"
)

// Sink is a hierarchical chunked dataset container. Paths are relative to
// the root and use "/" separators.
type Sink interface {
	CreateGroup(path string) error
	// CreateDataset creates a dataset of elem's type; chunks nil means
	// contiguous storage.
	CreateDataset(path string, elem any, shape, chunks []uint64) error
	// WriteSlab writes data into the box (start, count) of a dataset.
	WriteSlab(path string, data any, start, count []uint64) error
	SetAttr(path, name string, value any) error
	Close() error
}

// hdf5Sink writes an HDF5 file.
type hdf5Sink struct {
	file     *hdf5.File
	datasets map[string]*hdf5.Dataset
}

// CreateHDF5 creates an HDF5 file as a Sink.
func CreateHDF5(path string) (Sink, error) {
	f, err := hdf5.Create(path)
	if err != nil {
		return nil, err
	}
	return &hdf5Sink{file: f, datasets: make(map[string]*hdf5.Dataset)}, nil
}

func (s *hdf5Sink) CreateGroup(path string) error {
	_, err := s.file.Root().CreateGroup(path)
	return err
}

func (s *hdf5Sink) CreateDataset(path string, elem any, shape, chunks []uint64) error {
	var opts []hdf5.DatasetOption
	if chunks != nil {
		opts = append(opts, hdf5.WithChunks(chunks...))
	}
	ds, err := s.file.Root().CreateDataset(path, elem, shape, opts...)
	if err != nil {
		return err
	}
	s.datasets[path] = ds
	return nil
}

func (s *hdf5Sink) WriteSlab(path string, data any, start, count []uint64) error {
	ds, ok := s.datasets[path]
	if !ok {
		return fmt.Errorf("%w: dataset %s", hdf5.ErrNotFound, path)
	}
	return ds.WriteSlab(data, start, count)
}

func (s *hdf5Sink) SetAttr(path, name string, value any) error {
	g, err := s.file.OpenGroup(path)
	if err != nil {
		return err
	}
	err = g.SetAttr(name, value)
	if errors.Is(err, hdf5.ErrTooLarge) || errors.Is(err, hdf5.ErrUnsupported) || errors.Is(err, hdf5.ErrInvalidPath) {
		return fmt.Errorf("%w: %v", ErrAttribute, err)
	}
	return err
}

func (s *hdf5Sink) Close() error {
	return s.file.Close()
}
