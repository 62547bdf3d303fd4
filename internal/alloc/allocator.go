package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Kind classifies an allocation.
type Kind uint8

const (
	// Metadata covers object headers and other structural records.
	Metadata Kind = iota
	// RawData covers contiguous dataset storage and chunks.
	RawData
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Metadata:
		return "metadata"
	case RawData:
		return "raw data"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Allocator hands out append-only file regions. It is safe for concurrent use.
type Allocator struct {
	mu sync.Mutex

	// eofAddr is the next allocation point.
	eofAddr uint64

	// baseAddr is the first allocatable address (after the superblock).
	baseAddr uint64

	allocations []Allocation
	usage       [numKinds]uint64
	padding     uint64
}

// Allocation is a single region handed out by the allocator.
type Allocation struct {
	Addr uint64
	Size uint64
	Kind Kind
}

// New creates an Allocator starting at baseAddr.
func New(baseAddr uint64) *Allocator {
	return &Allocator{
		eofAddr:  baseAddr,
		baseAddr: baseAddr,
	}
}

// Alloc reserves size bytes at the end of file and returns their address.
// A zero-size request returns the current end of file without reserving.
func (a *Allocator) Alloc(kind Kind, size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocLocked(kind, size)
}

// AllocAligned is Alloc with the start address rounded up to alignment.
func (a *Allocator) AllocAligned(kind Kind, size, alignment uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if alignment > 1 {
		if rem := a.eofAddr % alignment; rem != 0 {
			pad := alignment - rem
			a.eofAddr += pad
			a.padding += pad
		}
	}
	return a.allocLocked(kind, size)
}

func (a *Allocator) allocLocked(kind Kind, size uint64) uint64 {
	if size == 0 {
		return a.eofAddr
	}
	addr := a.eofAddr
	a.eofAddr += size
	a.allocations = append(a.allocations, Allocation{Addr: addr, Size: size, Kind: kind})
	if kind < numKinds {
		a.usage[kind] += size
	}
	return addr
}

// EOFAddr returns the current end-of-file address.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eofAddr
}

// Usage returns the total bytes allocated for kind.
func (a *Allocator) Usage(kind Kind) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if kind >= numKinds {
		return 0
	}
	return a.usage[kind]
}

// Padding returns the bytes skipped to satisfy alignment.
func (a *Allocator) Padding() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.padding
}

// Allocations returns a copy of all allocations in address order.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]Allocation, len(a.allocations))
	copy(result, a.allocations)
	return result
}

// Validate checks that no two allocations overlap and all lie within
// [base, eof).
func (a *Allocator) Validate() error {
	allocs := a.Allocations()
	base, eof := a.baseAddr, a.EOFAddr()

	sort.Slice(allocs, func(i, j int) bool { return allocs[i].Addr < allocs[j].Addr })
	for i, r := range allocs {
		if r.Addr < base {
			return fmt.Errorf("allocation at 0x%x is before base address 0x%x", r.Addr, base)
		}
		if r.Addr+r.Size > eof {
			return fmt.Errorf("allocation at 0x%x size %d extends past EOF 0x%x", r.Addr, r.Size, eof)
		}
		if i > 0 {
			prev := allocs[i-1]
			if prev.Addr+prev.Size > r.Addr {
				return fmt.Errorf("overlapping allocations: [0x%x, size %d] and [0x%x, size %d]",
					prev.Addr, prev.Size, r.Addr, r.Size)
			}
		}
	}
	return nil
}
