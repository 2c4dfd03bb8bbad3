package alloc

import "unsafe"

// uintptrOnly exists so maps/slices of raw addresses in tests don't need to
// carry an unsafe.Pointer (which go vet flags outside of direct conversion
// idioms) between the point an address is observed and the point it's
// converted back for a Deallocate call.
type uintptrOnly uintptr

func uintptrOf(p unsafe.Pointer) uintptr { return uintptr(p) }

func ptrFrom(addr uintptr) unsafe.Pointer { return unsafe.Pointer(addr) } //nolint:govet

func ptrFromSlice(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
