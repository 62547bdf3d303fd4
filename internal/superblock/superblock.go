// Package superblock reads and writes the version 2/3 HDF5 superblock, the
// fixed-size record at the start of a file that locates the root group.
//
// Layout (O = size of offsets):
//
//	0      8  signature
//	8      1  version (2 or 3)
//	9      1  size of offsets
//	10     1  size of lengths
//	11     1  file consistency flags
//	12     O  base address
//	12+O   O  superblock extension address
//	12+2O  O  end-of-file address
//	12+3O  O  root group object header address
//	12+4O  4  lookup3 checksum
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/idia-astro/hdf5convert/internal/binary"
)

// Signature is the 8-byte HDF5 format signature.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// Locations searched for the signature, in order.
var superblockOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds the file-level addressing metadata.
type Superblock struct {
	Version              uint8
	OffsetSize           uint8
	LengthSize           uint8
	FileConsistencyFlags uint8

	BaseAddress                uint64
	SuperblockExtensionAddress uint64
	EOFAddress                 uint64
	RootGroupAddress           uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// NewSuperblock creates a version 3 superblock with 8-byte offsets and
// lengths and no extension.
func NewSuperblock() *Superblock {
	return &Superblock{
		Version:                    3,
		OffsetSize:                 8,
		LengthSize:                 8,
		SuperblockExtensionAddress: ^uint64(0),
	}
}

// Read locates and parses the superblock of r.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, 9)
	for _, offset := range superblockOffsets {
		if _, err := r.ReadAt(sig, offset); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				continue
			}
			return nil, err
		}
		if !bytes.Equal(sig[:8], Signature) {
			continue
		}
		if v := sig[8]; v != 2 && v != 3 {
			return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, v)
		}
		sb, err := readV2V3(r, offset)
		if err != nil {
			return nil, err
		}
		sb.FileOffset = offset
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func readV2V3(r io.ReaderAt, offset int64) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, offset); err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:              head[8],
		OffsetSize:           head[9],
		LengthSize:           head[10],
		FileConsistencyFlags: head[11],
	}
	cfg := sb.Config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}

	size := sb.Size()
	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, offset); err != nil {
		return nil, err
	}
	stored := binary.LittleEndian.Uint32(raw[size-4:])
	if binpkg.Lookup3Checksum(raw[:size-4]) != stored {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}

	br := binpkg.NewReader(bytes.NewReader(raw), cfg).At(12)
	fields := []*uint64{&sb.BaseAddress, &sb.SuperblockExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress}
	for _, f := range fields {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		*f = v
	}
	return sb, nil
}

// Config returns the encoding configuration the superblock declares.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// Size returns the encoded size of the superblock including its checksum.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}
