package galloc

import (
	"testing"

	"github.com/KronsyC/chopin/kernel/mem/heap"
	"github.com/stretchr/testify/require"
)

func TestInstallEarlyThenAllocateAndRelease(t *testing.T) {
	h := heap.NewFromSlice(0x8000_0000, make([]byte, 4096))
	InstallEarly(h)

	addr, ok := Allocate(16, 8)
	require.True(t, ok)
	require.Zero(t, addr%8)

	Release(addr, 16)

	again, ok := Allocate(16, 8)
	require.True(t, ok)
	require.Equal(t, addr, again)
}

func TestAllocateBeforeInstallPanics(t *testing.T) {
	current = uninitialized
	earlyHeap = nil

	var gotPanic bool
	orig := panicFn
	panicFn = func(e interface{}) { gotPanic = true }
	defer func() { panicFn = orig }()

	_, ok := Allocate(16, 8)
	require.True(t, gotPanic)
	require.False(t, ok)
}
