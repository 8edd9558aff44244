package vmm

import (
	"testing"

	"github.com/KronsyC/chopin/kernel/mem/pmm"
	"github.com/stretchr/testify/require"
)

const segBase = 0x8020_0000

func newTestFrames(t *testing.T, size int) *pmm.FrameTable {
	t.Helper()
	seg, err := pmm.NewFrameSegmentFromSlice(segBase, make([]byte, size))
	require.NoError(t, err)
	var table pmm.FrameTable
	table.AddSegment(seg)
	return &table
}

func newBootstrappedEngine(t *testing.T) (*Engine, *pmm.FrameTable) {
	t.Helper()
	frames := newTestFrames(t, 4*1024*1024)
	e := NewEngine(frames)

	rootAlloc, ok := frames.AllocFront(1, pmm.PageTable, 0)
	require.True(t, ok)
	rootAlloc.Zero()

	require.NoError(t, e.Bootstrap(rootAlloc.PhysAddr))
	return e, frames
}

func TestSv39ComposeRoundTrip(t *testing.T) {
	require.Equal(t, uintptr(0xFFFF_FFC6_0000_0000), composeVirtualAddress(280, 0, 0, 0))
	require.Equal(t, uintptr(0), composeVirtualAddress(0, 0, 0, 0))

	l1, l2, l3, off := decompose(composeVirtualAddress(280, 5, 17, 0x123))
	require.Equal(t, 280, l1)
	require.Equal(t, 5, l2)
	require.Equal(t, 17, l3)
	require.EqualValues(t, 0x123, off)
}

func TestBootstrapSanity(t *testing.T) {
	e, _ := newBootstrappedEngine(t)

	root280 := e.root.Entry(selfRefL1Index)
	require.Equal(t, Intermediary, root280.State())
	require.NotZero(t, root280.PPN())

	selfRef, err := e.viewTable(root280.PhysAddr())
	require.NoError(t, err)

	inner := selfRef.Entry(0)
	require.Equal(t, Intermediary, inner.State())

	innerTable, err := e.viewTable(inner.PhysAddr())
	require.NoError(t, err)

	leaf := innerTable.Entry(0)
	require.Equal(t, Leaf, leaf.State())
	require.Equal(t, e.root.PhysAddr(), leaf.PhysAddr())
}

func TestVirtualMapLinearInstallsLeaves(t *testing.T) {
	e, frames := newBootstrappedEngine(t)

	physAlloc, ok := frames.AllocFront(10, pmm.Kernel, 0)
	require.True(t, ok)

	virt := uintptr(0x0000_0000_4000_0000)
	require.NoError(t, e.VirtualMapLinear(physAlloc.PhysAddr, 10, virt))

	for i := uintptr(0); i < 10; i++ {
		got, err := e.Translate(virt + i*4096)
		require.NoError(t, err)
		require.Equal(t, physAlloc.PhysAddr+i*4096, got)
	}
}

func TestVirtualMapLinearRejectsOccupiedTargetWithoutMutation(t *testing.T) {
	e, frames := newBootstrappedEngine(t)

	l1, l2, l3 := 1, 0, 5
	t1, _, err := e.AllocateIntermediary(e.root, l1)
	require.NoError(t, err)
	t2, _, err := e.AllocateIntermediary(t1, l2)
	require.NoError(t, err)
	t2.SetEntry(l3, makePTE(0x9000_0000, FlagValid|FlagRead))

	physAlloc, ok := frames.AllocFront(10, pmm.Kernel, 0)
	require.True(t, ok)

	virt := composeVirtualAddress(l1, l2, 0, 0)
	err = e.VirtualMapLinear(physAlloc.PhysAddr, 10, virt)
	require.ErrorIs(t, err, ErrNotFree)

	require.Equal(t, PTE(makePTE(0x9000_0000, FlagValid|FlagRead)), t2.Entry(l3))
	for idx := 0; idx < entryCount; idx++ {
		if idx == l3 {
			continue
		}
		require.Equal(t, Unused, t2.Entry(idx).State())
	}
}

func TestCreateAllocationPagesFindsFreeRunInExistingLeaf(t *testing.T) {
	e, _ := newBootstrappedEngine(t)

	l1, l2 := 2, 3
	t1, _, err := e.AllocateIntermediary(e.root, l1)
	require.NoError(t, err)
	_, _, err = e.AllocateIntermediary(t1, l2)
	require.NoError(t, err)

	virt, err := e.CreateAllocationPages(4, FlagValid|FlagRead|FlagWrite)
	require.NoError(t, err)
	require.Equal(t, composeVirtualAddress(l1, l2, 0, 0), virt)

	for i := uintptr(0); i < 4; i++ {
		_, err := e.Translate(virt + i*4096)
		require.NoError(t, err)
	}
}

func TestCreateAllocationPagesFailsWithoutExistingLeaf(t *testing.T) {
	e, _ := newBootstrappedEngine(t)

	_, err := e.CreateAllocationPages(4, FlagValid|FlagRead)
	require.ErrorIs(t, err, ErrNoFreeRun)
}

func TestUnmapClearsLeafEntry(t *testing.T) {
	e, frames := newBootstrappedEngine(t)

	physAlloc, ok := frames.AllocFront(1, pmm.Kernel, 0)
	require.True(t, ok)
	virt := uintptr(0x0000_0000_4000_0000)
	require.NoError(t, e.VirtualMapLinear(physAlloc.PhysAddr, 1, virt))

	require.NoError(t, e.Unmap(virt))
	_, err := e.Translate(virt)
	require.Error(t, err)
}
