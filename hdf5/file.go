package hdf5

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/idia-astro/hdf5convert/internal/alloc"
	"github.com/idia-astro/hdf5convert/internal/binary"
	"github.com/idia-astro/hdf5convert/internal/object"
	"github.com/idia-astro/hdf5convert/internal/superblock"
)

// File is an open HDF5 file.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	writable  bool
	writer    *binary.Writer
	allocator *alloc.Allocator
	opts      *fileOptions

	// mu guards the group tree while writing.
	mu sync.Mutex
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(f)
	if err != nil {
		f.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	hdf := &File{
		path:       path,
		file:       f,
		reader:     binary.NewReader(f, sb.Config()),
		superblock: sb,
	}
	root, err := hdf.openGroupAt(sb.RootGroupAddress, "/")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	hdf.root = root
	return hdf, nil
}

// Close finalizes a file being written and releases the handle. Closing
// twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.writable {
		if err := f.closeWritable(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// Usage returns the bytes allocated so far for metadata and raw data.
// It is zero for files opened for reading.
func (f *File) Usage() (metadata, raw uint64) {
	if f.allocator == nil {
		return 0, 0
	}
	return f.allocator.Usage(alloc.Metadata), f.allocator.Usage(alloc.RawData)
}

// openGroupAt reads the header at address as a group.
func (f *File) openGroupAt(address uint64, path string) (*Group, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	if !header.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, path)
	}
	return newReadGroup(f, path, header), nil
}
