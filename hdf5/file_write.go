package hdf5

import (
	"fmt"
	"os"

	"github.com/idia-astro/hdf5convert/internal/alloc"
	"github.com/idia-astro/hdf5convert/internal/binary"
	"github.com/idia-astro/hdf5convert/internal/message"
	"github.com/idia-astro/hdf5convert/internal/object"
	"github.com/idia-astro/hdf5convert/internal/superblock"
)

// Create creates a new HDF5 file, truncating any existing file at path.
func Create(path string, opts ...FileOption) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	sb := superblock.NewSuperblock()
	cfg := binary.DefaultConfig()
	hdf := &File{
		path:       path,
		file:       f,
		reader:     binary.NewReader(f, cfg),
		superblock: sb,
		writable:   true,
		writer:     binary.NewWriter(f, cfg),
		allocator:  alloc.New(uint64(sb.Size())),
		opts:       o,
	}
	hdf.root = newWriteGroup(hdf, "/")
	return hdf, nil
}

// closeWritable writes every group header bottom-up, then the superblock,
// and sizes the file to its end-of-file address.
func (f *File) closeWritable() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rootAddr, err := f.writeGroup(f.root)
	if err != nil {
		return err
	}

	eof := f.allocator.EOFAddr()
	sb := f.superblock
	sb.EOFAddress = eof
	sb.RootGroupAddress = rootAddr
	if _, err := sb.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	if err := f.file.Truncate(int64(eof)); err != nil {
		return fmt.Errorf("sizing file: %w", err)
	}
	if err := f.allocator.Validate(); err != nil {
		return fmt.Errorf("file space: %w", err)
	}
	return f.file.Sync()
}

// writeGroup writes the subtree rooted at g and returns g's header address.
func (f *File) writeGroup(g *Group) (uint64, error) {
	links := make([]*message.Link, 0, len(g.entries))
	for _, e := range g.entries {
		if e.group != nil {
			addr, err := f.writeGroup(e.group)
			if err != nil {
				return 0, err
			}
			e.addr = addr
		}
		links = append(links, message.NewHardLink(e.name, e.addr))
	}

	msgs := object.NewGroupHeader(links, g.attrs)
	addr, err := f.writeHeader(msgs, object.MinGroupChunkSize)
	if err != nil {
		return 0, fmt.Errorf("writing group %s: %w", g.path, err)
	}
	return addr, nil
}

// writeHeader allocates space for an object header and writes it.
func (f *File) writeHeader(msgs []message.Serializable, minChunk int) (uint64, error) {
	size, err := object.HeaderSize(f.writer, msgs, minChunk)
	if err != nil {
		return 0, err
	}
	addr := f.allocator.AllocAligned(alloc.Metadata, uint64(size), 8)
	if _, err := object.WriteHeader(f.writer.At(int64(addr)), msgs, minChunk); err != nil {
		return 0, err
	}
	return addr, nil
}
