package alloc

import (
	"fmt"
	"os"
	"unsafe"
)

// freeBlockHeader is the in-band header of a free block: its size and its
// links into the address-sorted, doubly-linked free list. 0 is the
// sentinel for "no link" in both next and prev.
type freeBlockHeader struct {
	size uintptr
	next uintptr
	prev uintptr
}

// allocHeader is the in-band header immediately preceding an allocated
// block's user-visible payload. size is the block's full reclamation size
// (header + padding + payload + any absorbed remainder); padding is the
// byte distance from the block's physical start to this header.
type allocHeader struct {
	size    uintptr
	padding uintptr
}

// HeapHeaderSize and HeapMinBlockSize are the two constants the allocation
// and split/coalesce logic is built around: a block can never be split
// into a free remainder smaller than HeapMinBlockSize, since the
// free-block header itself needs that much room.
var (
	HeapHeaderSize   = unsafe.Sizeof(allocHeader{})
	HeapMinBlockSize = unsafe.Sizeof(freeBlockHeader{})
)

// Heap is a variable-size, boundary-tagged free-list allocator: best-fit
// search over an address-sorted doubly-linked free list, splitting the
// chosen block on allocate and eagerly coalescing physically-adjacent
// neighbors on free. It is the most involved of the three engines; its
// Allocate and free-list insertion walk the free list, while the stack and
// pool allocators give up this one's reuse flexibility for O(1) operations.
type Heap struct {
	region     []byte // retained so the backing array outlives every pointer derived from it
	base       uintptr
	capacity   uintptr
	usedMemory uintptr
	freeHead   uintptr // 0 is the sentinel: empty free list.
}

var _ Allocator = (*Heap)(nil)

// NewHeap creates a Heap over region. The free list starts as a single
// block spanning the entire region.
func NewHeap(region []byte) *Heap {
	if len(region) == 0 {
		violate("Heap", "NewHeap", "region must be non-empty")
	}
	h := &Heap{
		region:   region,
		base:     uintptr(unsafe.Pointer(&region[0])),
		capacity: uintptr(len(region)),
	}
	h.initFreeList()
	return h
}

func (h *Heap) initFreeList() {
	fb := h.freeHeaderAt(h.base)
	fb.size = h.capacity
	fb.next = 0
	fb.prev = 0
	h.freeHead = h.base
	h.usedMemory = 0
}

func (h *Heap) freeHeaderAt(addr uintptr) *freeBlockHeader {
	return (*freeBlockHeader)(unsafe.Pointer(addr))
}

func (h *Heap) allocHeaderAt(addr uintptr) *allocHeader {
	return (*allocHeader)(unsafe.Pointer(addr))
}

// Allocate runs the best-fit allocation protocol: screen candidates with a
// conservative upper-bound size, pick the smallest free block that could
// fit, detach it, compute the aligned payload address inside it, and
// either split off a remainder free block or absorb the whole block if the
// remainder would be smaller than HeapMinBlockSize.
func (h *Heap) Allocate(size, alignment uintptr) unsafe.Pointer {
	checkAllocArgs("Heap", size, alignment)

	t0 := size + HeapHeaderSize
	ta := alignUp(t0, alignment)
	if ta > h.capacity-h.usedMemory {
		if trace {
			fmt.Fprintf(os.Stderr, "Heap.Allocate(%#x, %#x) nil (out of space)\n", size, alignment)
		}
		return nil
	}

	block := h.findBestFit(ta)
	if block == 0 {
		if trace {
			fmt.Fprintf(os.Stderr, "Heap.Allocate(%#x, %#x) nil (no fit)\n", size, alignment)
		}
		return nil
	}

	blockSize := h.freeHeaderAt(block).size
	h.removeFree(block)

	dataStart := block + HeapHeaderSize
	aligned := alignUp(dataStart, alignment)
	padding := aligned - dataStart
	required := HeapHeaderSize + padding + size

	var reclaimSize uintptr
	if blockSize >= required+HeapMinBlockSize {
		remainderAddr := block + required
		remainder := h.freeHeaderAt(remainderAddr)
		remainder.size = blockSize - required
		remainder.next = 0
		remainder.prev = 0
		h.insertFree(remainderAddr)
		reclaimSize = required
	} else {
		reclaimSize = blockSize
	}

	hdr := h.allocHeaderAt(aligned - HeapHeaderSize)
	hdr.size = reclaimSize
	hdr.padding = padding

	h.usedMemory += reclaimSize
	if trace {
		fmt.Fprintf(os.Stderr, "Heap.Allocate(%#x, %#x) %#x\n", size, alignment, aligned)
	}
	return unsafe.Pointer(aligned)
}

// findBestFit walks the free list for the smallest block whose size is at
// least minSize, breaking ties by list order (which is address order).
func (h *Heap) findBestFit(minSize uintptr) uintptr {
	var best uintptr
	var bestSize uintptr
	for cur := h.freeHead; cur != 0; {
		fb := h.freeHeaderAt(cur)
		if fb.size >= minSize && (best == 0 || fb.size < bestSize) {
			best = cur
			bestSize = fb.size
		}
		cur = fb.next
	}
	return best
}

// removeFree unlinks a block from the free list, rewiring its neighbors.
func (h *Heap) removeFree(addr uintptr) {
	fb := h.freeHeaderAt(addr)
	if fb.prev != 0 {
		h.freeHeaderAt(fb.prev).next = fb.next
	} else {
		h.freeHead = fb.next
	}
	if fb.next != 0 {
		h.freeHeaderAt(fb.next).prev = fb.prev
	}
}

// insertFree splices a block into the address-sorted free list.
func (h *Heap) insertFree(addr uintptr) {
	fb := h.freeHeaderAt(addr)
	if h.freeHead == 0 {
		fb.next = 0
		fb.prev = 0
		h.freeHead = addr
		return
	}

	if addr < h.freeHead {
		fb.next = h.freeHead
		fb.prev = 0
		h.freeHeaderAt(h.freeHead).prev = addr
		h.freeHead = addr
		return
	}

	cur := h.freeHead
	for {
		curFb := h.freeHeaderAt(cur)
		if curFb.next == 0 || curFb.next > addr {
			break
		}
		cur = curFb.next
	}

	curFb := h.freeHeaderAt(cur)
	fb.next = curFb.next
	fb.prev = cur
	if curFb.next != 0 {
		h.freeHeaderAt(curFb.next).prev = addr
	}
	curFb.next = addr
}

// Deallocate reads the allocation header at p to recover the block's
// reclamation size and padding, rewrites it in place as a free-block
// header, re-inserts it into the address-sorted free list, and coalesces
// with any physically adjacent neighbors: successor first, then
// predecessor, taking both opportunities if adjacency holds for each.
func (h *Heap) Deallocate(p unsafe.Pointer) {
	if p == nil {
		return
	}

	addr := uintptr(p)
	hdr := h.allocHeaderAt(addr - HeapHeaderSize)
	size := hdr.size
	padding := hdr.padding

	blockStart := addr - HeapHeaderSize - padding
	fb := h.freeHeaderAt(blockStart)
	fb.size = size
	fb.next = 0
	fb.prev = 0

	h.usedMemory -= size
	h.insertFree(blockStart)
	h.coalesce(blockStart)
	if trace {
		fmt.Fprintf(os.Stderr, "Heap.Deallocate(%#x)\n", addr)
	}
}

// coalesce absorbs a just-freed block's physically adjacent free
// neighbors. Successor first, then predecessor; both are taken if both
// hold. The predecessor check depends only on the block's start address,
// which absorbing the successor does not move, so this single pass
// suffices.
func (h *Heap) coalesce(addr uintptr) {
	fb := h.freeHeaderAt(addr)
	blockEnd := addr + fb.size

	if fb.next != 0 && fb.next == blockEnd {
		next := h.freeHeaderAt(fb.next)
		fb.size += next.size
		h.removeFree(fb.next)
	}

	if fb.prev != 0 {
		prev := h.freeHeaderAt(fb.prev)
		if fb.prev+prev.size == addr {
			prev.size += fb.size
			h.removeFree(addr)
		}
	}
}

// UsedMemory returns the sum of reclamation sizes across allocated blocks.
func (h *Heap) UsedMemory() uintptr { return h.usedMemory }

// TotalMemory returns the region's fixed capacity.
func (h *Heap) TotalMemory() uintptr { return h.capacity }

// Stats bundles the heap's usage counters.
func (h *Heap) Stats() Stats { return Stats{Used: h.usedMemory, Total: h.capacity} }
