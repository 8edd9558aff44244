// Package vmm implements the Sv39 page-table engine: a 3-level virtual
// memory manager that manipulates its own tables through a self-referencing
// mapping and supports both linear (physical-to-virtual offset) mappings
// and fresh allocations backed by frames drawn from kernel/mem/pmm.
package vmm

import "errors"

// ErrNotFree is returned by VirtualMapLinear when any target virtual page
// in the requested range is already occupied. No state is mutated.
var ErrNotFree = errors.New("vmm: target virtual page is not free")

// ErrNotTraversable is returned when a walk meets a leaf entry where an
// intermediary was required, or an intermediary whose PPN is zero.
var ErrNotTraversable = errors.New("vmm: entry is not traversable")

// ErrEntryOccupied is returned by AllocateIntermediary/meta-allocate when
// the target entry already names something other than a matching
// intermediary.
var ErrEntryOccupied = errors.New("vmm: entry already occupied")

// ErrInvalidCount is returned by CreateAllocationPages for count outside
// (0, 512].
var ErrInvalidCount = errors.New("vmm: allocation page count must be in (0, 512]")

// ErrNoFreeRun is returned by CreateAllocationPages when no existing leaf
// table has a long enough run of free slots.
var ErrNoFreeRun = errors.New("vmm: no leaf table has a long enough free run")

// ErrFrameNotMapped is returned when a physical address handed back by pmm
// cannot be viewed as page-table memory (it belongs to no known segment).
var ErrFrameNotMapped = errors.New("vmm: physical address is not backed by any frame segment")

// ErrMisaligned is returned by NewPageTableView for a non-page-aligned
// physical address.
var ErrMisaligned = errors.New("vmm: page-table physical address must be page-aligned")

// Flags packs the bit layout of a Sv39 page-table entry's low byte plus the
// accessed/dirty bits.
type Flags uint64

const (
	FlagValid  Flags = 1 << 0
	FlagRead   Flags = 1 << 1
	FlagWrite  Flags = 1 << 2
	FlagExec   Flags = 1 << 3
	FlagUser   Flags = 1 << 4
	FlagGlobal Flags = 1 << 5
	FlagAccess Flags = 1 << 6
	FlagDirty  Flags = 1 << 7
)

// EntryState classifies a PTE: Unused (all zero), Intermediary (V=1,
// R=W=X=0), or Leaf (V=1, any of R/W/X set).
type EntryState uint8

const (
	Unused EntryState = iota
	Intermediary
	Leaf
)

// PTE is a 64-bit RISC-V Sv39 page-table entry.
type PTE uint64

const ppnMask = (1 << 44) - 1

// makePTE encodes physAddr's page number with flags into a raw entry.
func makePTE(physAddr uintptr, flags Flags) PTE {
	return PTE((uint64(physAddr)>>12)<<10 | uint64(flags))
}

// Valid reports the entry's V bit.
func (e PTE) Valid() bool { return e&PTE(FlagValid) != 0 }

// EntryFlags returns the entry's low-byte permission/accounting flags.
func (e PTE) EntryFlags() Flags { return Flags(e & 0xFF) }

// PPN returns the entry's physical page number.
func (e PTE) PPN() uint64 { return (uint64(e) >> 10) & ppnMask }

// PhysAddr returns the physical address named by the entry's PPN.
func (e PTE) PhysAddr() uintptr { return uintptr(e.PPN() << 12) }

// State classifies the entry per the page-table state machine.
func (e PTE) State() EntryState {
	if !e.Valid() {
		return Unused
	}
	if e.EntryFlags()&(FlagRead|FlagWrite|FlagExec) == 0 {
		return Intermediary
	}
	return Leaf
}
