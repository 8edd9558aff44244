// Package cpu declares the small set of hart primitives that only assembly
// can provide: halting the hart, flushing address-translation caches and
// enabling/disabling interrupts. The function bodies live in boot assembly
// (out of scope for this module per spec.md §1); Go code elsewhere in the
// kernel only ever calls through these declarations, which keeps the
// assembly surface minimal and lets tests substitute mock implementations
// by overriding the function-variable seams in the packages that use them.
package cpu

// Halt parks the hart in an infinite wfi loop. Does not return.
func Halt()

// EnableInterrupts sets the sstatus.SIE bit.
func EnableInterrupts()

// DisableInterrupts clears the sstatus.SIE bit.
func DisableInterrupts()

// SfenceVMA flushes all address-translation caches for virtAddr, or the
// entire TLB when virtAddr is zero.
func SfenceVMA(virtAddr uintptr)

// ReadSATP returns the current value of the supervisor address translation
// and protection register.
func ReadSATP() uint64

// WriteSATP installs a new root page table and mode into satp, then issues
// the fence required before the MMU is guaranteed to observe it.
func WriteSATP(value uint64)
