// Package alloc manages file space while an HDF5 file is written.
//
// Every object header, attribute heap and dataset storage block is placed at
// the current end of file, which then advances. Allocations are tagged with a
// [Kind] so the writer can report how much of the file is metadata and how
// much is raw dataset storage:
//
//	a := alloc.New(48)                         // after a 48-byte superblock
//	hdr := a.AllocAligned(alloc.Metadata, 256, 8)
//	data := a.Alloc(alloc.RawData, 1<<20)
//	log.Printf("raw data: %d bytes", a.Usage(alloc.RawData))
package alloc
