package superblock

import (
	binpkg "github.com/idia-astro/hdf5convert/internal/binary"
)

// Write encodes the superblock at the writer's position and returns the
// number of bytes written.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	bw, buf := binpkg.NewBufferWriter(w.Config(), sb.Size())

	version := sb.Version
	if version < 2 {
		version = 3
	}
	bw.WriteBytes(Signature)
	bw.WriteUint8(version)
	bw.WriteUint8(uint8(w.OffsetSize()))
	bw.WriteUint8(uint8(w.LengthSize()))
	bw.WriteUint8(sb.FileConsistencyFlags)
	bw.WriteOffset(sb.BaseAddress)
	bw.WriteOffset(sb.SuperblockExtensionAddress)
	bw.WriteOffset(sb.EOFAddress)
	bw.WriteOffset(sb.RootGroupAddress)
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes())); err != nil {
		return 0, err
	}

	if err := w.WriteBytes(buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}
