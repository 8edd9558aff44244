package pmm

import "github.com/KronsyC/chopin/kernel/mem"

// FrameTable is an ordered sequence of frame segments, searched in
// insertion order for both allocation and release. No coalescing is
// needed: allocation is strictly page-granular.
type FrameTable struct {
	segments []*FrameSegment
}

// AddSegment appends a constructed segment to the table.
func (t *FrameTable) AddSegment(s *FrameSegment) {
	t.segments = append(t.segments, s)
}

// Segments returns the table's segments in insertion order.
func (t *FrameTable) Segments() []*FrameSegment { return t.segments }

// Base returns the first page address of the table's first segment, the
// reference point the page-table engine uses to compute a frame's index
// relative to the frame table's root.
func (t *FrameTable) Base() uintptr {
	if len(t.segments) == 0 {
		return 0
	}
	return t.segments[0].FirstPageAddr()
}

// PageIndex returns physAddr's page index relative to Base().
func (t *FrameTable) PageIndex(physAddr uintptr) uint64 {
	return uint64(physAddr-t.Base()) >> mem.PageShift
}

// AllocFront walks segments in order and returns the lowest-indexed free
// run of count pages in the first segment able to host it.
func (t *FrameTable) AllocFront(count uint32, state State, pid uint16) (MemoryAllocation, bool) {
	for _, s := range t.segments {
		if a, ok := s.allocFront(count, state, pid); ok {
			return a, true
		}
	}
	return MemoryAllocation{}, false
}

// AllocBack walks segments in order and returns the highest-indexed free
// run of count pages in the first segment able to host it.
func (t *FrameTable) AllocBack(count uint32, state State, pid uint16) (MemoryAllocation, bool) {
	for _, s := range t.segments {
		if a, ok := s.allocBack(count, state, pid); ok {
			return a, true
		}
	}
	return MemoryAllocation{}, false
}

// PageBytes returns a view over count pages starting at physAddr, searching
// segments in order. Used by the page-table engine to view a page-table
// frame's bytes directly, without a separate unsafe cast: the frame's
// backing memory already lives inside this table's segments.
func (t *FrameTable) PageBytes(physAddr uintptr, count uint32) ([]byte, bool) {
	for _, s := range t.segments {
		if b, ok := s.PageBytes(physAddr, count); ok {
			return b, true
		}
	}
	return nil, false
}

// Release resets every metadata entry covered by a to Free/pid 0. It does
// not zero the allocation's pages.
func (t *FrameTable) Release(a MemoryAllocation) {
	for _, s := range t.segments {
		if s.Contains(a.PhysAddr) {
			s.release(a)
			return
		}
	}
}
