package alloc

import (
	"sync"
	"testing"
)

func TestAllocatorBasic(t *testing.T) {
	a := New(1024)

	addr1 := a.Alloc(Metadata, 100)
	if addr1 != 1024 {
		t.Errorf("first allocation: got 0x%x, want 0x%x", addr1, 1024)
	}
	addr2 := a.Alloc(RawData, 200)
	if addr2 != 1124 {
		t.Errorf("second allocation: got 0x%x, want 0x%x", addr2, 1124)
	}
	if a.EOFAddr() != 1324 {
		t.Errorf("EOF: got 0x%x, want 0x%x", a.EOFAddr(), 1324)
	}
	if a.Usage(Metadata) != 100 || a.Usage(RawData) != 200 {
		t.Errorf("usage: metadata %d raw %d", a.Usage(Metadata), a.Usage(RawData))
	}
}

func TestAllocatorZeroSize(t *testing.T) {
	a := New(100)
	if addr := a.Alloc(RawData, 0); addr != 100 {
		t.Errorf("zero allocation: got 0x%x, want 0x%x", addr, 100)
	}
	if a.EOFAddr() != 100 {
		t.Errorf("EOF after zero alloc: got 0x%x, want 0x%x", a.EOFAddr(), 100)
	}
	if len(a.Allocations()) != 0 {
		t.Errorf("zero allocation was recorded")
	}
}

func TestAllocatorAligned(t *testing.T) {
	a := New(100)
	a.Alloc(Metadata, 13)

	addr := a.AllocAligned(Metadata, 50, 8)
	if addr%8 != 0 {
		t.Errorf("aligned allocation not aligned: 0x%x", addr)
	}
	if addr != 120 {
		t.Errorf("aligned allocation: got %d, want 120", addr)
	}
	if a.Padding() != 7 {
		t.Errorf("padding: got %d, want 7", a.Padding())
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAllocatorConcurrent(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Alloc(RawData, 16)
			}
		}()
	}
	wg.Wait()

	if a.EOFAddr() != 8*100*16 {
		t.Errorf("EOF: got %d, want %d", a.EOFAddr(), 8*100*16)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestKindString(t *testing.T) {
	if Metadata.String() != "metadata" || RawData.String() != "raw data" {
		t.Errorf("unexpected kind names %q %q", Metadata, RawData)
	}
}
