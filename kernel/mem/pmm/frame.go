// Package pmm tracks physical page frames in fixed-size segments, each
// carved out of one memory-map region: a metadata array at the low end of
// the region, and the page-granular allocation arena that follows it.
package pmm

import (
	"errors"
	"reflect"
	"unsafe"

	"github.com/KronsyC/chopin/kernel/mem"
)

// ErrRegionTooSmall is returned by NewFrameSegmentFromSlice and
// NewFrameSegmentFromRange when a region cannot
// host even a single usable page once its own metadata is accounted for.
var ErrRegionTooSmall = errors.New("pmm: region too small to host any page")

// ErrOutOfMemory is the error callers (the page-table engine, bring-up)
// report when AllocFront/AllocBack find no free run of the requested length
// in any segment; AllocFront/AllocBack themselves signal that with false.
var ErrOutOfMemory = errors.New("pmm: no free frame run of the requested length")

// State is a frame's allocation state, packed into the low 4 bits of its
// FrameMetadata word.
type State uint8

const (
	Free State = iota
	Used
	Kernel
	User
	PageTable
	Reserved
)

// FrameMetadata is the 32-bit packed per-frame record: state in bits 0-3,
// reserved flags in bits 4-7, owning pid in bits 8-23, bits 24-31 unused.
type FrameMetadata uint32

func packMetadata(state State, reservedFlags uint8, pid uint16) FrameMetadata {
	return FrameMetadata(uint32(state&0xF) | uint32(reservedFlags)<<4 | uint32(pid)<<8)
}

func (m FrameMetadata) State() State          { return State(m & 0xF) }
func (m FrameMetadata) ReservedFlags() uint8  { return uint8((m >> 4) & 0xF) }
func (m FrameMetadata) Pid() uint16           { return uint16((m >> 8) & 0xFFFF) }
func (m FrameMetadata) IsFree() bool          { return m.State() == Free }

const frameMetaPerPage = 4096 + 4 // page plus its metadata word

func ceilToPage(n uint64) uint64 {
	return (n + uint64(mem.PageSize) - 1) &^ (uint64(mem.PageSize) - 1)
}

// FrameSegment is one contiguous memory region split into a zero-initialized
// metadata array followed by a page-granular arena. region holds the whole
// backing byte range, metadata and pages alike, so tests can construct a
// segment over a plain slice while real bring-up constructs one over an
// unsafe view of physical memory (see NewFrameSegmentFromRange).
type FrameSegment struct {
	regionStart uintptr
	region      []byte
	metaBytes   uint64
	usablePages uint32
}

// sizeSegment derives the metadata/arena split for a region of s bytes,
// per the mps=4100 frame-plus-metadata-word formula.
func sizeSegment(s uint64) (metaBytes, usablePages uint64, err error) {
	maxPages := s / frameMetaPerPage
	if maxPages == 0 {
		return 0, 0, ErrRegionTooSmall
	}
	metaBytes = ceilToPage(maxPages * 4)
	if metaBytes >= s {
		return 0, 0, ErrRegionTooSmall
	}
	usablePages = (s - metaBytes) / uint64(mem.PageSize)
	if usablePages == 0 {
		return 0, 0, ErrRegionTooSmall
	}
	return metaBytes, usablePages, nil
}

// NewFrameSegmentFromSlice builds a segment over an already-owned byte
// slice, as if it began at physical address regionStart. Used by tests and
// by any caller that already holds the backing memory as a Go slice. The
// metadata array is zeroed in place rather than assumed zero, since a
// caller-supplied slice carries no such guarantee.
func NewFrameSegmentFromSlice(regionStart uintptr, region []byte) (*FrameSegment, error) {
	metaBytes, usablePages, err := sizeSegment(uint64(len(region)))
	if err != nil {
		return nil, err
	}
	for i := range region[:metaBytes] {
		region[i] = 0
	}
	return &FrameSegment{
		regionStart: regionStart,
		region:      region,
		metaBytes:   metaBytes,
		usablePages: uint32(usablePages),
	}, nil
}

// NewFrameSegmentFromRange builds a segment directly over a physical
// address range, without requiring the caller to materialize a Go slice
// first. Grounded on the same reflect.SliceHeader-over-a-raw-address
// pattern the teacher's bitmap allocator uses to view its own pools. The
// metadata array is cleared with mem.Memset before the segment is ever
// read, since freshly-discovered physical RAM carries no zero guarantee.
func NewFrameSegmentFromRange(start, end uintptr) (*FrameSegment, error) {
	size := uint64(end - start)
	metaBytes, usablePages, err := sizeSegment(size)
	if err != nil {
		return nil, err
	}
	mem.Memset(start, 0, mem.Size(metaBytes))

	var region []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&region))
	hdr.Data = start
	hdr.Len = int(size)
	hdr.Cap = int(size)
	return &FrameSegment{
		regionStart: start,
		region:      region,
		metaBytes:   metaBytes,
		usablePages: uint32(usablePages),
	}, nil
}

// PageCount returns the number of usable pages in the segment.
func (s *FrameSegment) PageCount() uint32 { return s.usablePages }

// FirstPageAddr returns the physical address of page index 0.
func (s *FrameSegment) FirstPageAddr() uintptr { return s.regionStart + uintptr(s.metaBytes) }

// Contains reports whether phys_addr falls within this segment's page arena.
func (s *FrameSegment) Contains(physAddr uintptr) bool {
	first := s.FirstPageAddr()
	last := first + uintptr(s.usablePages)*uintptr(mem.PageSize)
	return physAddr >= first && physAddr < last
}

func (s *FrameSegment) metaAt(idx uint32) FrameMetadata {
	off := idx * 4
	return FrameMetadata(uint32(s.region[off]) | uint32(s.region[off+1])<<8 |
		uint32(s.region[off+2])<<16 | uint32(s.region[off+3])<<24)
}

func (s *FrameSegment) setMetaAt(idx uint32, m FrameMetadata) {
	off := idx * 4
	s.region[off] = byte(m)
	s.region[off+1] = byte(m >> 8)
	s.region[off+2] = byte(m >> 16)
	s.region[off+3] = byte(m >> 24)
}

func (s *FrameSegment) pageBytes(idx, count uint32) []byte {
	base := uint64(s.metaBytes) + uint64(idx)*uint64(mem.PageSize)
	span := uint64(count) * uint64(mem.PageSize)
	return s.region[base : base+span]
}

// PageBytes returns a view over count pages starting at physAddr, if
// physAddr falls within this segment's arena.
func (s *FrameSegment) PageBytes(physAddr uintptr, count uint32) ([]byte, bool) {
	if !s.Contains(physAddr) {
		return nil, false
	}
	idx := uint32((physAddr - s.FirstPageAddr()) / uintptr(mem.PageSize))
	return s.pageBytes(idx, count), true
}

func (s *FrameSegment) runIsFree(idx, count uint32) bool {
	for i := idx; i < idx+count; i++ {
		if !s.metaAt(i).IsFree() {
			return false
		}
	}
	return true
}

func (s *FrameSegment) claim(idx, count uint32, state State, pid uint16) MemoryAllocation {
	packed := packMetadata(state, 0, pid)
	for i := idx; i < idx+count; i++ {
		s.setMetaAt(i, packed)
	}
	return MemoryAllocation{
		PhysAddr:  s.FirstPageAddr() + uintptr(idx)*uintptr(mem.PageSize),
		PageCount: count,
		Pid:       pid,
		State:     state,
		pages:     s.pageBytes(idx, count),
	}
}

// allocFront returns the lowest-indexed free run of length count, if any.
func (s *FrameSegment) allocFront(count uint32, state State, pid uint16) (MemoryAllocation, bool) {
	if count == 0 || count > s.usablePages {
		return MemoryAllocation{}, false
	}
	for idx := uint32(0); idx+count <= s.usablePages; idx++ {
		if s.runIsFree(idx, count) {
			return s.claim(idx, count, state, pid), true
		}
	}
	return MemoryAllocation{}, false
}

// allocBack returns the highest-indexed free run of length count, if any.
func (s *FrameSegment) allocBack(count uint32, state State, pid uint16) (MemoryAllocation, bool) {
	if count == 0 || count > s.usablePages {
		return MemoryAllocation{}, false
	}
	for idx := s.usablePages - count; ; idx-- {
		if s.runIsFree(idx, count) {
			return s.claim(idx, count, state, pid), true
		}
		if idx == 0 {
			break
		}
	}
	return MemoryAllocation{}, false
}

func (s *FrameSegment) release(a MemoryAllocation) {
	first := s.FirstPageAddr()
	idx := uint32((a.PhysAddr - first) / uintptr(mem.PageSize))
	for i := idx; i < idx+a.PageCount; i++ {
		s.setMetaAt(i, 0)
	}
}

// MemoryAllocation is the result of a successful frame-table allocation:
// a page-aligned physical address, the page count it spans, and the
// state/pid every one of its metadata entries carries.
type MemoryAllocation struct {
	PhysAddr  uintptr
	PageCount uint32
	Pid       uint16
	State     State

	pages []byte
}

// Zero writes zero to every byte in the allocation's page range. Used
// before first use of any page-table frame.
func (a MemoryAllocation) Zero() {
	for i := range a.pages {
		a.pages[i] = 0
	}
}

// AsSlice exposes the allocation's backing bytes directly.
func (a MemoryAllocation) AsSlice() []byte { return a.pages }

// IterPages invokes fn with the physical address of each page in the
// allocation, in ascending order.
func (a MemoryAllocation) IterPages(fn func(pageAddr uintptr)) {
	for i := uint32(0); i < a.PageCount; i++ {
		fn(a.PhysAddr + uintptr(i)*uintptr(mem.PageSize))
	}
}
