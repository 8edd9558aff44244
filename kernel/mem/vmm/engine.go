package vmm

import "github.com/KronsyC/chopin/kernel/mem/pmm"

// selfRefL1Index is root index 280, reserved so the resulting virtual base
// (PT_VIRT_START) is canonical-high and stable across builds.
const selfRefL1Index = 280

// PTVirtStart is the self-referencing window's virtual base: Sv39 canonical
// address with l1=280, l2=0, l3=0, offset=0.
const PTVirtStart = uintptr(0xFFFF_FFC6_0000_0000)

// Engine manipulates a Sv39 page-table tree backed by frames drawn from a
// pmm.FrameTable. It holds no locks: per the concurrency model, a hart must
// already have exclusive control of memory management before calling any
// method here.
type Engine struct {
	frames *pmm.FrameTable
	root   *PageTable
}

// NewEngine constructs an Engine over frames, without yet bootstrapping any
// root table.
func NewEngine(frames *pmm.FrameTable) *Engine {
	return &Engine{frames: frames}
}

// Root returns the bootstrapped root table, or nil before Bootstrap runs.
func (e *Engine) Root() *PageTable { return e.root }

func (e *Engine) viewTable(physAddr uintptr) (*PageTable, error) {
	b, ok := e.frames.PageBytes(physAddr, 1)
	if !ok {
		return nil, ErrFrameNotMapped
	}
	return NewPageTableView(physAddr, b)
}

// NextLevel returns the table an entry names (or can be made to name): a
// valid intermediary resolves directly; an unused entry causes this call to
// attempt allocating a fresh PageTable-state frame and return a blank view
// over it without committing the entry (the caller decides whether and how
// to commit, e.g. via AllocateIntermediary); a leaf, or an intermediary
// with a zero PPN, is not traversable.
func (e *Engine) NextLevel(t *PageTable, idx int) (*PageTable, error) {
	entry := t.Entry(idx)
	switch entry.State() {
	case Leaf:
		return nil, ErrNotTraversable
	case Intermediary:
		if entry.PPN() == 0 {
			return nil, ErrNotTraversable
		}
		return e.viewTable(entry.PhysAddr())
	default:
		a, ok := e.frames.AllocFront(1, pmm.PageTable, 0)
		if !ok {
			return nil, pmm.ErrOutOfMemory
		}
		a.Zero()
		return e.viewTable(a.PhysAddr)
	}
}

// peekChild descends to idx's child only if it is already an intermediary,
// without allocating anything. Used by walks (CreateAllocationPages,
// MetaAllocatePageTable, Translate, Unmap) that must never create
// structure just to look.
func (e *Engine) peekChild(t *PageTable, idx int) (*PageTable, bool, error) {
	entry := t.Entry(idx)
	if entry.State() != Intermediary {
		return nil, false, nil
	}
	child, err := e.viewTable(entry.PhysAddr())
	return child, true, err
}

// AllocateIntermediary commits an intermediary at t[idx]: if unused, it
// allocates one PageTable-state frame, writes its PPN with V=1, and
// reports a fresh allocation; if already an intermediary, it returns the
// existing child with allocated=false; a leaf is a failure.
func (e *Engine) AllocateIntermediary(t *PageTable, idx int) (child *PageTable, allocated bool, err error) {
	entry := t.Entry(idx)
	switch entry.State() {
	case Leaf:
		return nil, false, ErrEntryOccupied
	case Intermediary:
		child, err = e.viewTable(entry.PhysAddr())
		return child, false, err
	default:
		a, ok := e.frames.AllocFront(1, pmm.PageTable, 0)
		if !ok {
			return nil, false, pmm.ErrOutOfMemory
		}
		a.Zero()
		t.SetEntry(idx, makePTE(a.PhysAddr, FlagValid))
		child, err = e.viewTable(a.PhysAddr)
		return child, true, err
	}
}

// Bootstrap runs the self-referencing bootstrap exactly once on the root
// table at rootAddr, before any other mapping operation: it reserves root
// index 280 with an intermediary, allocates a further intermediary within
// it at index 0, then installs V|R|W leaf mappings at consecutive indices
// in that innermost table for every page-table-state frame that exists so
// far (the root, the 280 intermediary, and the index-0 intermediary).
func (e *Engine) Bootstrap(rootAddr uintptr) error {
	root, err := e.viewTable(rootAddr)
	if err != nil {
		return err
	}
	e.root = root

	selfRef, _, err := e.AllocateIntermediary(root, selfRefL1Index)
	if err != nil {
		return err
	}
	inner, _, err := e.AllocateIntermediary(selfRef, 0)
	if err != nil {
		return err
	}

	for i, phys := range []uintptr{rootAddr, selfRef.PhysAddr(), inner.PhysAddr()} {
		inner.SetEntry(i, makePTE(phys, FlagValid|FlagRead|FlagWrite))
	}
	return nil
}

// MetaAllocatePageTable obtains a fresh PageTable-state frame and installs
// a leaf mapping for it in the self-ref window so it is reachable by
// virtual address as soon as this call returns, per the "meta-allocate"
// procedure required once the kernel is already running paged.
func (e *Engine) MetaAllocatePageTable() (view *PageTable, physAddr uintptr, err error) {
	a, ok := e.frames.AllocFront(1, pmm.PageTable, 0)
	if !ok {
		return nil, 0, pmm.ErrOutOfMemory
	}
	a.Zero()

	pagesOffset := e.frames.PageIndex(a.PhysAddr)
	l1idx := int((pagesOffset >> 9) & 0x1FF)
	l2idx := int(pagesOffset & 0x1FF)

	selfRef, ok2, err := e.peekChild(e.root, selfRefL1Index)
	if err != nil {
		return nil, 0, err
	}
	if !ok2 {
		return nil, 0, ErrNotTraversable
	}

	entry := selfRef.Entry(l1idx)
	var inner *PageTable
	switch entry.State() {
	case Unused:
		innerAlloc, ok := e.frames.AllocFront(1, pmm.PageTable, 0)
		if !ok {
			return nil, 0, pmm.ErrOutOfMemory
		}
		innerAlloc.Zero()
		selfRef.SetEntry(l1idx, makePTE(innerAlloc.PhysAddr, FlagValid))
		inner, err = e.viewTable(innerAlloc.PhysAddr)
		if err != nil {
			return nil, 0, err
		}
		inner.SetEntry(0, makePTE(a.PhysAddr, FlagValid|FlagRead|FlagWrite))
		inner.SetEntry(1, makePTE(innerAlloc.PhysAddr, FlagValid|FlagRead|FlagWrite))
	case Intermediary:
		inner, err = e.viewTable(entry.PhysAddr())
		if err != nil {
			return nil, 0, err
		}
		if inner.Entry(l2idx).State() != Unused {
			return nil, 0, ErrEntryOccupied
		}
		inner.SetEntry(l2idx, makePTE(a.PhysAddr, FlagValid|FlagRead|FlagWrite))
	default:
		return nil, 0, ErrEntryOccupied
	}

	view, err = e.viewTable(a.PhysAddr)
	return view, a.PhysAddr, err
}

// descendOrCreate resolves t[idx]'s child, creating it via meta-allocate
// (so any newly created intermediary stays reachable through the self-ref
// window) when the entry is unused.
func (e *Engine) descendOrCreate(t *PageTable, idx int) (*PageTable, error) {
	entry := t.Entry(idx)
	switch entry.State() {
	case Leaf:
		return nil, ErrNotTraversable
	case Intermediary:
		return e.viewTable(entry.PhysAddr())
	default:
		view, phys, err := e.MetaAllocatePageTable()
		if err != nil {
			return nil, err
		}
		t.SetEntry(idx, makePTE(phys, FlagValid))
		return view, nil
	}
}

func decompose(va uintptr) (l1, l2, l3 int, off uintptr) {
	v := uint64(va)
	off = uintptr(v & 0xFFF)
	l3 = int((v >> 12) & 0x1FF)
	l2 = int((v >> 21) & 0x1FF)
	l1 = int((v >> 30) & 0x1FF)
	return l1, l2, l3, off
}

// composeVirtualAddress reconstructs a canonical Sv39 virtual address from
// its three 9-bit indices and a 12-bit offset.
func composeVirtualAddress(l1, l2, l3 int, off uintptr) uintptr {
	v := uint64(l1)<<30 | uint64(l2)<<21 | uint64(l3)<<12 | uint64(off)
	if v&(1<<38) != 0 {
		v |= 0xFFFF_FF80_0000_0000 // set bits 39-63
	}
	return uintptr(v)
}

func (e *Engine) precheckTarget(l1, l2, l3 int) error {
	c1 := e.root.Entry(l1)
	if c1.State() == Leaf {
		return ErrNotFree
	}
	if c1.State() == Unused {
		return nil
	}
	child1, err := e.viewTable(c1.PhysAddr())
	if err != nil {
		return err
	}

	c2 := child1.Entry(l2)
	if c2.State() == Leaf {
		return ErrNotFree
	}
	if c2.State() == Unused {
		return nil
	}
	child2, err := e.viewTable(c2.PhysAddr())
	if err != nil {
		return err
	}

	if child2.Entry(l3).State() != Unused {
		return ErrNotFree
	}
	return nil
}

// VirtualMapLinear creates count leaf mappings such that virtStart+i*4096
// maps to physStart+i*4096, for i in [0,count). Every target is checked
// before any mutation; if any is occupied the call fails with ErrNotFree
// and leaves all existing entries unchanged.
func (e *Engine) VirtualMapLinear(physStart uintptr, count uint32, virtStart uintptr) error {
	for i := uint32(0); i < count; i++ {
		l1, l2, l3, _ := decompose(virtStart + uintptr(i)*4096)
		if err := e.precheckTarget(l1, l2, l3); err != nil {
			return err
		}
	}

	for i := uint32(0); i < count; i++ {
		virt := virtStart + uintptr(i)*4096
		phys := physStart + uintptr(i)*4096
		l1, l2, l3, _ := decompose(virt)

		t1, err := e.descendOrCreate(e.root, l1)
		if err != nil {
			return err
		}
		t2, err := e.descendOrCreate(t1, l2)
		if err != nil {
			return err
		}
		t2.SetEntry(l3, makePTE(phys, FlagValid|FlagRead|FlagWrite|FlagExec))
	}
	return nil
}

func findFreeRun(t *PageTable, count uint32) (int, bool) {
	run := 0
	for idx := 0; idx < entryCount; idx++ {
		if t.Entry(idx).State() == Unused {
			run++
			if uint32(run) == count {
				return idx - run + 1, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// CreateAllocationPages installs count newly backed virtual pages,
// returning the virtual base address. Constrained to count <= 512 (one
// leaf table). It only walks leaf tables reachable through already-existing
// intermediary chains — it never creates structure merely to search it, and
// it skips the self-ref window at root index 280, whose slots belong to
// page-table frames —
// and treats a free leaf slot as any entry in Unused state (the convention
// the spec for this engine explicitly adopts despite the overlap with the
// "no such entry yet" reading of the same state: leaf tables never hold
// genuine intermediary links, so the ambiguity cannot arise in practice).
func (e *Engine) CreateAllocationPages(count uint32, flags Flags) (uintptr, error) {
	if count == 0 || count > entryCount {
		return 0, ErrInvalidCount
	}

	for l1 := 0; l1 < entryCount; l1++ {
		if l1 == selfRefL1Index {
			continue
		}
		t1, ok, err := e.peekChild(e.root, l1)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for l2 := 0; l2 < entryCount; l2++ {
			t2, ok, err := e.peekChild(t1, l2)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}

			l3, ok := findFreeRun(t2, count)
			if !ok {
				continue
			}

			a, ok := e.frames.AllocBack(count, pmm.Kernel, 0)
			if !ok {
				return 0, pmm.ErrOutOfMemory
			}
			for i := uint32(0); i < count; i++ {
				t2.SetEntry(l3+int(i), makePTE(a.PhysAddr+uintptr(i)*4096, flags))
			}
			return composeVirtualAddress(l1, l2, l3, 0), nil
		}
	}
	return 0, ErrNoFreeRun
}
