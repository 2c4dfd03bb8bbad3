// Package alloc implements a family of custom memory allocators that carve
// a single, externally supplied contiguous byte region into aligned
// sub-regions under three allocation disciplines: a monotonic stack, a
// fixed-size block pool, and a boundary-tagged best-fit free-list heap.
//
// All three share the Allocator capability (Allocate, Deallocate,
// UsedMemory, TotalMemory) but keep no state or code in common beyond that
// contract: each engine owns exactly one backing region for its entire
// lifetime, and a pointer obtained from one engine must never be passed to
// another.
package alloc

// trace gates verbose allocator tracing to stderr. Flip to true and
// recompile to watch individual Allocate/Deallocate calls; left false in
// committed code.
const trace = false
