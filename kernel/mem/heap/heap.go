// Package heap implements the kernel's bump-scan early heap allocator: the
// first general-purpose allocator available to the kernel, serving requests
// before any frame table or virtual memory exists. It treats an exclusive,
// pre-zeroed byte range as its entire backing store and uses zero bytes as
// the sole free-signal, scanning from the start of the range on every
// request rather than maintaining a free list.
package heap

import (
	"encoding/binary"
	"reflect"
	"unsafe"
)

// headerSize is the width, in bytes, of the in-band length field that
// precedes every live allocation.
const headerSize = 4

// BumpScanHeap serves allocation and release requests from a single
// contiguous byte range. Memory is never returned to a backing allocator;
// Release zeros the in-band header and the payload so the span can be reused.
type BumpScanHeap struct {
	base uintptr
	mem  []byte
}

// NewFromSlice wraps an already-allocated, pre-zeroed slice. base is the
// address reported for offset 0 within mem; hosted tests that have no real
// physical addressing may pass 0.
func NewFromSlice(base uintptr, mem []byte) *BumpScanHeap {
	return &BumpScanHeap{base: base, mem: mem}
}

// NewFromRange constructs a heap directly over the physical byte range
// [start, end), without copying, by building a slice header manually over
// the raw address range. The caller is
// responsible for the range being pre-zeroed, exclusively owned, and never
// moved or collected by the Go runtime.
func NewFromRange(start, end uintptr) *BumpScanHeap {
	size := int(end - start)

	var mem []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&mem))
	hdr.Data = start
	hdr.Len = size
	hdr.Cap = size

	return &BumpScanHeap{base: start, mem: mem}
}

// Size returns the total number of bytes in the backing range.
func (h *BumpScanHeap) Size() int {
	return len(h.mem)
}

// align rounds n up to the next multiple of a (a must be a power of two).
func align(n int, a uint32) int {
	if a <= 1 {
		return n
	}
	mask := int(a) - 1
	return (n + mask) &^ mask
}

// headerFor returns the smallest header position >= cursor such that the
// header is 4-byte aligned and payload (header+4) satisfies the requested
// alignment. Bytes skipped between cursor and the returned header position
// are never written to: they remain zero, ordinary free space a later,
// differently-aligned request may still claim. This is what lets a plain
// "zero means free, nonzero means an existing header" scan stay correct
// without a second stored field recording how much slack preceded a given
// allocation.
func headerFor(cursor int, align32 uint32) (headerPos, payloadPos int) {
	if align32 < headerSize {
		align32 = headerSize
	}
	payloadPos = align(cursor+headerSize, align32)
	headerPos = payloadPos - headerSize
	return headerPos, payloadPos
}

// zeroRun returns the number of consecutive zero bytes starting at pos.
func (h *BumpScanHeap) zeroRun(pos int) int {
	n := 0
	for pos+n < len(h.mem) && h.mem[pos+n] == 0 {
		n++
	}
	return n
}

// Alloc serves a request for size bytes aligned to align (align must be a
// power of two; 0 is treated as 1). It returns the address of the payload
// and true on success, or false if no sufficiently large zero run remains.
//
// cursor advances one byte at a time rather than jumping straight to the
// aligned candidate headerFor computes: an existing header can sit anywhere
// between cursor and that candidate (it was placed for some other
// alignment), and only a byte-granular walk is guaranteed to notice it
// before mistaking its still-zero, not-yet-written payload for free space.
func (h *BumpScanHeap) Alloc(size uint32, align32 uint32) (uintptr, bool) {
	if align32 == 0 {
		align32 = 1
	}

	cursor := 0
	for {
		if cursor >= len(h.mem) {
			return 0, false
		}

		if h.mem[cursor] != 0 {
			length := binary.LittleEndian.Uint32(h.mem[cursor : cursor+headerSize])
			cursor = cursor + headerSize + int(length)
			continue
		}

		headerPos, payloadPos := headerFor(cursor, align32)
		if payloadPos+int(size) > len(h.mem) {
			return 0, false
		}

		need := (headerPos - cursor) + headerSize + int(size)
		if h.zeroRun(cursor) >= need {
			binary.LittleEndian.PutUint32(h.mem[headerPos:headerPos+headerSize], size)
			return h.base + uintptr(payloadPos), true
		}

		cursor++
	}
}

// Release zeros the header and payload of the allocation at payloadAddr.
// size should be the same value passed to the Alloc call that produced
// payloadAddr, but Release reads the length actually stored in the header
// and zeros through whichever of the two extends further, so a caller that
// under-reports size can never leave stale nonzero bytes behind for the
// next Alloc scan to mistake for a live header.
func (h *BumpScanHeap) Release(payloadAddr uintptr, size uint32) {
	payloadPos := int(payloadAddr - h.base)
	headerPos := payloadPos - headerSize

	storedSize := binary.LittleEndian.Uint32(h.mem[headerPos : headerPos+headerSize])
	clearLen := size
	if storedSize > clearLen {
		clearLen = storedSize
	}

	for i := headerPos; i < payloadPos+int(clearLen); i++ {
		h.mem[i] = 0
	}
}
