package alloc

import (
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
)

// TestHeapRandomizedSoak exercises the heap with a deterministic, seekable
// PRNG: allocate until about three quarters of the region's bytes have been
// requested (or an allocation fails), verify every allocation's
// contents against the same re-seeked sequence, then free everything and
// check the heap fully coalesced back to one block.
func TestHeapRandomizedSoak(t *testing.T) {
	const capacity = 1 << 16
	const maxAlloc = 512

	region := make([]byte, capacity)
	h := NewHeap(region)

	rng, err := mathutil.NewFC32(1, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	rng.Seed(42)
	pos := rng.Pos()

	type alloc struct {
		p    []byte
		size int
	}
	var allocs []alloc

	budget := capacity * 3 / 4
	for budget > 0 {
		size := rng.Next()%maxAlloc + 1
		ptr := h.Allocate(uintptr(size), 8)
		if ptr == nil {
			break
		}
		b := unsafe.Slice((*byte)(ptr), size)
		for i := range b {
			b[i] = byte(rng.Next())
		}
		allocs = append(allocs, alloc{p: b, size: size})
		budget -= size
	}

	if len(allocs) == 0 {
		t.Fatal("soak test made no progress")
	}

	// Re-derive the exact same byte sequence and confirm every allocation
	// still holds what it was written with, before freeing any of them.
	rng.Seek(pos)
	for _, a := range allocs {
		_ = rng.Next() % maxAlloc // consume the size draw, matching the write loop
		for i := range a.p {
			want := byte(rng.Next())
			if a.p[i] != want {
				t.Fatalf("corrupted heap at offset %d: got %#x want %#x", i, a.p[i], want)
			}
		}
	}

	used := h.UsedMemory()
	if used == 0 || used > h.TotalMemory() {
		t.Fatalf("implausible usedMemory %d (capacity %d)", used, h.TotalMemory())
	}

	// Free every allocation, in reverse allocation order, and confirm the heap
	// coalesces all the way back down to a single block.
	for i := len(allocs) - 1; i >= 0; i-- {
		h.Deallocate(unsafe.Pointer(&allocs[i].p[0]))
	}

	if h.UsedMemory() != 0 {
		t.Fatalf("usedMemory = %d after freeing everything, want 0", h.UsedMemory())
	}
	if h.freeHead != h.base {
		t.Fatalf("freeHead = %#x, want base %#x after full coalesce", h.freeHead, h.base)
	}
	fb := h.freeHeaderAt(h.freeHead)
	if fb.size != h.capacity {
		t.Fatalf("coalesced free block size = %d, want capacity %d", fb.size, h.capacity)
	}
}
