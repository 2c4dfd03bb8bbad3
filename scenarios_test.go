package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Each test below exercises one named usage scenario end to end, so a
// failure points straight back at the behavior it covers.

func TestScenarioS1StackSequential(t *testing.T) {
	s := NewStack(make([]byte, 1024))
	p1 := s.Allocate(64, 8)
	p2 := s.Allocate(32, 8)

	require.Greater(t, uintptr(p2), uintptr(p1))
	require.EqualValues(t, 96, s.UsedMemory())
}

func TestScenarioS2StackMarkerRewind(t *testing.T) {
	s := NewStack(make([]byte, 1024))
	m := s.Marker()
	s.Allocate(64, 8)
	s.Allocate(32, 8)
	require.EqualValues(t, 96, s.UsedMemory())

	s.FreeToMarker(m)
	require.EqualValues(t, 0, s.UsedMemory())
}

func TestScenarioS3PoolReuse(t *testing.T) {
	p := NewPool(make([]byte, 64*16), 64, 16)
	p1 := p.Allocate(0, 0)
	p.Deallocate(p1)
	p2 := p.Allocate(0, 0)

	require.Equal(t, p1, p2)
	require.EqualValues(t, 1, p.UsedBlocks())
}

func TestScenarioS4PoolExhaustion(t *testing.T) {
	p := NewPool(make([]byte, 64*16), 64, 16)

	seen := map[uintptr]bool{}
	for i := 0; i < 16; i++ {
		ptr := p.Allocate(0, 0)
		require.NotNil(t, ptr)
		addr := uintptrOf(ptr)
		require.False(t, seen[addr])
		seen[addr] = true
	}

	require.Nil(t, p.Allocate(0, 0))
	require.EqualValues(t, 16, p.UsedBlocks())
	require.EqualValues(t, 0, p.FreeBlocks())
}

func TestScenarioS5HeapCoalesce(t *testing.T) {
	h := NewHeap(make([]byte, 4096))
	a := h.Allocate(64, 8)
	b := h.Allocate(64, 8)
	c := h.Allocate(64, 8)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	h.Deallocate(a)
	h.Deallocate(c)
	h.Deallocate(b)

	require.NotNil(t, h.Allocate(192, 8))
}

func TestScenarioS6HeapOversize(t *testing.T) {
	h := NewHeap(make([]byte, 4096))
	require.Nil(t, h.Allocate(8192, 8))
	require.EqualValues(t, 0, h.UsedMemory())
}
