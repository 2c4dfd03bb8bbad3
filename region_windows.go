//go:build windows

package alloc

import (
	"fmt"
	"reflect"
	"sync"
	"syscall"
	"unsafe"
)

// mappingHandles recovers the file-mapping handle behind a view address,
// since releaseRegion only gets the byte slice back, not the handle that
// created it.
var (
	mappingHandlesMu sync.Mutex
	mappingHandles   = map[uintptr]syscall.Handle{}
)

// acquireRegion reserves an anonymous region backed by the system paging
// file: a CreateFileMapping with no backing file handle, then a
// MapViewOfFile to get it into the process's address space.
func acquireRegion(size int) ([]byte, bool, error) {
	sizeHigh := uint32(uint64(size) >> 32)
	sizeLow := uint32(uint64(size) & 0xffffffff)

	mapping, err := syscall.CreateFileMapping(syscall.InvalidHandle, nil, syscall.PAGE_READWRITE, sizeHigh, sizeLow, nil)
	if err != nil {
		return nil, false, fmt.Errorf("alloc: CreateFileMapping: %w", err)
	}

	addr, err := syscall.MapViewOfFile(mapping, syscall.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		syscall.CloseHandle(mapping)
		return nil, false, fmt.Errorf("alloc: MapViewOfFile: %w", err)
	}

	mappingHandlesMu.Lock()
	mappingHandles[addr] = mapping
	mappingHandlesMu.Unlock()

	var buf []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&buf))
	hdr.Data = addr
	hdr.Len = size
	hdr.Cap = size
	return buf, true, nil
}

// releaseRegion tears down a view acquired by acquireRegion: unmap it,
// then close the mapping handle it belonged to.
func releaseRegion(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))

	if err := syscall.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("alloc: UnmapViewOfFile: %w", err)
	}

	mappingHandlesMu.Lock()
	mapping, ok := mappingHandles[addr]
	delete(mappingHandles, addr)
	mappingHandlesMu.Unlock()
	if !ok {
		return fmt.Errorf("alloc: no mapping handle recorded for region at %#x", addr)
	}
	return syscall.CloseHandle(mapping)
}
