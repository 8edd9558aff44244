// Package galloc holds the kernel's single global allocator handle: a
// tagged variant that starts Uninitialized and is installed exactly once
// during bring-up with an early heap, mirroring the allocator/variant split
// the original allocator design uses to keep "allocate before install" a
// detectable programmer error rather than a silent wild write.
package galloc

import (
	"errors"
	"sync"

	"github.com/KronsyC/chopin/kernel"
	"github.com/KronsyC/chopin/kernel/mem/heap"
)

// variant tags which concrete allocator backs Allocate/Release, if any.
type variant uint8

const (
	uninitialized variant = iota
	early
)

var (
	mu        sync.Mutex
	current   variant
	earlyHeap *heap.BumpScanHeap
	errUninit = errors.New("galloc: allocation attempted before an allocator was installed")

	// panicFn is mocked by tests so the uninitialized-allocator path can be
	// exercised without actually halting the hart.
	panicFn = kernel.Panic
)

// InstallEarly publishes h as the process-wide early allocator. Bring-up
// calls this exactly once; a second call replaces the previous early heap
// outright.
func InstallEarly(h *heap.BumpScanHeap) {
	mu.Lock()
	defer mu.Unlock()
	earlyHeap = h
	current = early
}

// Allocate serves size bytes aligned to align32 from the installed
// allocator. Calling this before InstallEarly is a fatal contract
// violation, matching the original design's "uninitialized variant always
// panics" behavior.
func Allocate(size uint32, align32 uint32) (uintptr, bool) {
	mu.Lock()
	defer mu.Unlock()

	switch current {
	case early:
		return earlyHeap.Alloc(size, align32)
	default:
		panicFn(errUninit)
		return 0, false
	}
}

// Release returns a previously allocated span to the installed allocator.
// Calling this before InstallEarly is equally fatal.
func Release(payloadAddr uintptr, size uint32) {
	mu.Lock()
	defer mu.Unlock()

	switch current {
	case early:
		earlyHeap.Release(payloadAddr, size)
	default:
		panicFn(errUninit)
	}
}
