// Package bringup sequences the one-time, single-hart bring-up path: build
// the device map, carve out the kernel image and early heap, install the
// early allocator, build the frame table from what's left, and bootstrap
// the self-referencing page-table engine.
package bringup

import (
	"strings"

	"github.com/KronsyC/chopin/kernel"
	"github.com/KronsyC/chopin/kernel/devicetree"
	"github.com/KronsyC/chopin/kernel/hal/firmware"
	"github.com/KronsyC/chopin/kernel/kfmt/early"
	"github.com/KronsyC/chopin/kernel/mem"
	"github.com/KronsyC/chopin/kernel/mem/galloc"
	"github.com/KronsyC/chopin/kernel/mem/heap"
	"github.com/KronsyC/chopin/kernel/mem/pmm"
	"github.com/KronsyC/chopin/kernel/mem/vmm"
)

// earlyHeapSize is the fixed size of the bump-scan heap carved out right
// after the kernel image, per the external interface layout.
const earlyHeapSize = 64_000

// earlyHeapGap is the padding between kernel_end and the heap's first byte.
const earlyHeapGap = 32

// segmentRangeFactory and heapRangeFactory are mocked by tests so Stage0
// can run over plain Go-owned byte slices instead of real physical memory.
var (
	segmentRangeFactory = pmm.NewFrameSegmentFromRange
	heapRangeFactory    = heap.NewFromRange
)

// Result is everything Stage0 publishes: the frame table and page-table
// engine every later subsystem borrows mutably, per the single-hart
// concurrency model's shared-resource rule.
type Result struct {
	Frames *pmm.FrameTable
	Engine *vmm.Engine
	Map    *devicetree.MemoryMap
}

// Stage0 realizes CHOPIN_kern_stage0: build the device map, reserve the
// kernel image and early heap, install the early allocator, build the
// frame table from whatever memory remains, and bootstrap the page-table
// engine. kernelStart/kernelEnd are the linker-provided _start/kernel_end
// symbols; info, if non-nil, is queried for SBI spec/vendor/arch logging.
func Stage0(hartID uint32, reader devicetree.Reader, kernelStart, kernelEnd uintptr, info firmware.Info) (*Result, error) {
	early.Printf("CHOPIN Bootloader :: Stage0 (hart %d)\n", hartID)

	memMap, err := devicetree.BuildFromReader(reader)
	if err != nil {
		kernel.Panic(err)
		return nil, err
	}

	memMap.Cut(devicetree.Region{Start: kernelStart, Size: uint64(kernelEnd - kernelStart)})

	heapStart := kernelEnd + earlyHeapGap
	heapEnd := heapStart + earlyHeapSize
	memMap.Cut(devicetree.Region{Start: heapStart, Size: uint64(heapEnd - heapStart)})

	early.Printf("early heap: [%x, %x)\n", heapStart, heapEnd)
	galloc.InstallEarly(heapRangeFactory(heapStart, heapEnd))

	var frames pmm.FrameTable
	for _, region := range memMap.Regions() {
		pageMask := uintptr(mem.PageSize) - 1
		start := (region.Start + pageMask) &^ pageMask
		end := region.End() &^ pageMask
		if end <= start {
			early.Printf("skipping region [%x, %x): no whole page\n", region.Start, region.End())
			continue
		}
		seg, err := segmentRangeFactory(start, end)
		if err != nil {
			early.Printf("skipping region [%x, %x): %s\n", region.Start, region.End(), err.Error())
			continue
		}
		frames.AddSegment(seg)
	}

	rootAlloc, ok := frames.AllocFront(1, pmm.PageTable, 0)
	if !ok {
		kernel.Panic(pmm.ErrOutOfMemory)
		return nil, pmm.ErrOutOfMemory
	}
	rootAlloc.Zero()

	engine := vmm.NewEngine(&frames)
	if err := engine.Bootstrap(rootAlloc.PhysAddr); err != nil {
		kernel.Panic(err)
		return nil, err
	}

	if info != nil {
		major, minor := info.SpecVersion()
		early.Printf("OPENSBI: %d.%d\n", major, minor)
		early.Printf("arch: %x; vendor: %x\n", info.MachineArchID(), info.MachineVendorID())
	}

	logHarts(reader)

	return &Result{Frames: &frames, Engine: engine, Map: memMap}, nil
}

// logHarts walks /cpus, logging each hart's device_type/status/mmu-type —
// the device-tree detail the distilled spec drops but the original stage0
// reports, kept here as diagnostic output only (no hart is parked or
// started by this module).
func logHarts(reader devicetree.Reader) {
	cpuNodes, ok := reader.Subnodes("/cpus")
	if !ok {
		return
	}
	for _, name := range cpuNodes {
		path := "/cpus/" + name
		status := "?"
		if s, ok := reader.Property(path, "status"); ok {
			status = strings.TrimRight(string(s), "\x00")
		}
		mmu := "?"
		if m, ok := reader.Property(path, "mmu-type"); ok {
			mmu = strings.TrimRight(string(m), "\x00")
		}
		early.Printf("hart node %s: status=%s mmu=%s\n", name, status, mmu)
	}
}
