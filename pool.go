package alloc

import (
	"fmt"
	"os"
	"unsafe"
)

// Pool is a fixed-size block allocator over a single backing region. Free
// cells are threaded into an intrusive singly-linked list: the first
// machine word of a free cell stores the address of the next free cell (or
// 0 as the sentinel). Allocate/Deallocate are both O(1).
//
// The requested size and alignment passed to Allocate are advisory — the
// pool always hands back a block of its configured BlockSize, and
// alignment is satisfied implicitly by the region's base alignment and
// fixed stride. They are still validated (size must not exceed BlockSize,
// alignment must not exceed BlockSize) to catch callers that mistake the
// pool for a general-purpose allocator.
type Pool struct {
	region     []byte // retained so the backing array outlives every pointer derived from it
	base       uintptr
	blockSize  uintptr
	blockCount uintptr
	freeHead   uintptr // 0 is the sentinel: no free cell.
	used       uintptr
}

var _ Allocator = (*Pool)(nil)

// NewPool creates a Pool over region, partitioned into blockCount cells of
// blockSize bytes each. blockSize is coerced up to at least the size of a
// machine word so the intrusive free-list link fits inside every cell.
func NewPool(region []byte, blockSize, blockCount int) *Pool {
	if blockCount <= 0 {
		violate("Pool", "NewPool", "blockCount must be > 0")
	}
	if blockSize < 0 {
		violate("Pool", "NewPool", "blockSize must be >= 0")
	}

	ptrSize := unsafe.Sizeof(uintptr(0))
	bs := uintptr(blockSize)
	if bs < ptrSize {
		bs = ptrSize
	}

	need := bs * uintptr(blockCount)
	if uintptr(len(region)) < need {
		violate("Pool", "NewPool", "region too small for blockSize*blockCount")
	}

	p := &Pool{
		region:     region,
		base:       uintptr(unsafe.Pointer(&region[0])),
		blockSize:  bs,
		blockCount: uintptr(blockCount),
	}
	p.initFreeList()
	return p
}

// initFreeList threads every cell into the free chain, ascending by
// address, with the last cell's next set to the sentinel.
func (p *Pool) initFreeList() {
	for i := uintptr(0); i < p.blockCount; i++ {
		cell := p.base + i*p.blockSize
		var next uintptr
		if i != p.blockCount-1 {
			next = p.base + (i+1)*p.blockSize
		}
		*(*uintptr)(unsafe.Pointer(cell)) = next
	}
	p.freeHead = p.base
}

// Allocate detaches the head of the free chain and returns it. size and
// alignment are advisory (see type doc); size must not exceed BlockSize
// and alignment must not exceed BlockSize, or the call is a precondition
// violation. Exhaustion (freeHead at the sentinel) returns nil.
func (p *Pool) Allocate(size, alignment uintptr) unsafe.Pointer {
	if size > p.blockSize {
		violate("Pool", "Allocate", "size exceeds configured block size")
	}
	if alignment > p.blockSize {
		violate("Pool", "Allocate", "alignment exceeds configured block size")
	}

	if p.freeHead == 0 {
		if trace {
			fmt.Fprintf(os.Stderr, "Pool.Allocate(%#x, %#x) nil (exhausted)\n", size, alignment)
		}
		return nil
	}

	block := p.freeHead
	p.freeHead = *(*uintptr)(unsafe.Pointer(block))
	p.used++
	if trace {
		fmt.Fprintf(os.Stderr, "Pool.Allocate(%#x, %#x) %#x\n", size, alignment, block)
	}
	return unsafe.Pointer(block)
}

// Deallocate prepends ptr back onto the free chain. ptr must lie within
// the region at a multiple of BlockSize from the base; violating that is a
// precondition violation. Deallocate(nil) is a no-op.
func (p *Pool) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	addr := uintptr(ptr)
	end := p.base + p.blockCount*p.blockSize
	if addr < p.base || addr >= end || (addr-p.base)%p.blockSize != 0 {
		violate("Pool", "Deallocate", "pointer is foreign or misaligned to this pool")
	}

	*(*uintptr)(unsafe.Pointer(addr)) = p.freeHead
	p.freeHead = addr
	p.used--
	if trace {
		fmt.Fprintf(os.Stderr, "Pool.Deallocate(%#x)\n", addr)
	}
}

// UsedMemory returns the number of allocated cells times BlockSize.
func (p *Pool) UsedMemory() uintptr { return p.used * p.blockSize }

// TotalMemory returns blockCount*BlockSize.
func (p *Pool) TotalMemory() uintptr { return p.blockCount * p.blockSize }

// UsedBlocks returns the number of currently allocated cells.
func (p *Pool) UsedBlocks() uintptr { return p.used }

// FreeBlocks returns the number of currently free cells.
func (p *Pool) FreeBlocks() uintptr { return p.blockCount - p.used }

// BlockSize returns the pool's configured (possibly coerced) cell size.
func (p *Pool) BlockSize() uintptr { return p.blockSize }

// Stats bundles the pool's usage counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		UsedBlocks: p.used,
		FreeBlocks: p.blockCount - p.used,
		BlockSize:  p.blockSize,
		BlockCount: p.blockCount,
	}
}

// PoolStats bundles the pool-specific counters AllocatorTests.cpp asserts
// together in the original implementation.
type PoolStats struct {
	UsedBlocks uintptr
	FreeBlocks uintptr
	BlockSize  uintptr
	BlockCount uintptr
}
