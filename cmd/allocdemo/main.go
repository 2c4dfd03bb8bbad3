// Command allocdemo exercises all three allocator engines against freshly
// acquired regions, as a runnable smoke test beyond `go test`.
package main

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/lordware/galloc"
)

func main() {
	if err := runStack(); err != nil {
		log.Fatal(err)
	}
	if err := runPool(); err != nil {
		log.Fatal(err)
	}
	if err := runHeap(); err != nil {
		log.Fatal(err)
	}
}

func runStack() error {
	region, err := alloc.NewRegion(64 * 1024)
	if err != nil {
		return fmt.Errorf("stack: acquire region: %w", err)
	}
	defer region.Release()

	s := alloc.NewStack(region.Bytes())
	frame := s.Marker()
	for i := 0; i < 4; i++ {
		if s.Allocate(256, 16) == nil {
			return fmt.Errorf("stack: unexpected allocation failure")
		}
	}
	fmt.Printf("stack: used %d of %d bytes after one frame\n", s.UsedMemory(), s.TotalMemory())
	s.FreeToMarker(frame)
	fmt.Printf("stack: used %d after rewinding the frame\n", s.UsedMemory())
	return nil
}

func runPool() error {
	const blockSize, blockCount = 64, 32
	region, err := alloc.NewRegion(blockSize * blockCount)
	if err != nil {
		return fmt.Errorf("pool: acquire region: %w", err)
	}
	defer region.Release()

	p := alloc.NewPool(region.Bytes(), blockSize, blockCount)
	handles := make([]unsafe.Pointer, 0, blockCount)
	for {
		h := p.Allocate(0, 0)
		if h == nil {
			break
		}
		handles = append(handles, h)
	}
	fmt.Printf("pool: allocated %d blocks of %d\n", p.UsedBlocks(), p.BlockSize())

	for _, h := range handles {
		p.Deallocate(h)
	}
	fmt.Printf("pool: %d blocks free after releasing all\n", p.FreeBlocks())
	return nil
}

func runHeap() error {
	region, err := alloc.NewRegion(1 << 20)
	if err != nil {
		return fmt.Errorf("heap: acquire region: %w", err)
	}
	defer region.Release()

	h := alloc.NewHeap(region.Bytes())
	sizes := []uintptr{128, 4096, 64, 1024}
	ptrs := make([]unsafe.Pointer, 0, len(sizes))
	for _, sz := range sizes {
		p := h.Allocate(sz, 8)
		if p == nil {
			return fmt.Errorf("heap: unexpected allocation failure for size %d", sz)
		}
		ptrs = append(ptrs, p)
	}
	fmt.Printf("heap: used %d of %d bytes across %d allocations\n", h.UsedMemory(), h.TotalMemory(), len(ptrs))

	for _, p := range ptrs {
		h.Deallocate(p)
	}
	fmt.Printf("heap: used %d bytes after freeing everything\n", h.UsedMemory())
	return nil
}
