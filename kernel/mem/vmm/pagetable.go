package vmm

import "encoding/binary"

const entrySize = 8
const entryCount = 512

// PageTable is an ownership-free mutable view over an external, page-aligned
// 4096-byte region holding 512 Sv39 entries. It never allocates or frees
// the memory it views; the constructor only asserts the view's shape.
type PageTable struct {
	physAddr uintptr
	mem      []byte
}

// NewPageTableView wraps mem (exactly 4096 bytes) as a page table rooted at
// the page-aligned physical address physAddr.
func NewPageTableView(physAddr uintptr, mem []byte) (*PageTable, error) {
	if physAddr%4096 != 0 {
		return nil, ErrMisaligned
	}
	if len(mem) != entryCount*entrySize {
		return nil, ErrFrameNotMapped
	}
	return &PageTable{physAddr: physAddr, mem: mem}, nil
}

// PhysAddr returns the table's own physical address.
func (t *PageTable) PhysAddr() uintptr { return t.physAddr }

// Entry returns the raw entry at idx.
func (t *PageTable) Entry(idx int) PTE {
	off := idx * entrySize
	return PTE(binary.LittleEndian.Uint64(t.mem[off : off+entrySize]))
}

// SetEntry installs e at idx.
func (t *PageTable) SetEntry(idx int, e PTE) {
	off := idx * entrySize
	binary.LittleEndian.PutUint64(t.mem[off:off+entrySize], uint64(e))
}
