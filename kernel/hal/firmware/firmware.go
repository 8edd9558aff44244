// Package firmware declares the minimal set of firmware capabilities
// spec.md §6 lists as "given": a byte console write primitive and
// informational spec-version/vendor/arch ID queries. Everything below this
// package boundary (the actual SBI ecall trampoline) is out of scope for
// this module; production code is expected to supply an SBIFirmware built
// over boot-assembly-provided ecall stubs, while hosted tests use Fake.
package firmware

// Console is the byte-oriented console write capability exposed by the
// firmware (OpenSBI's legacy "console_putchar" extension on RISC-V).
type Console interface {
	PutChar(b byte)
}

// Info reports platform identification properties consumed for
// diagnostics only — never for control flow.
type Info interface {
	// SpecVersion returns the SBI specification version implemented by
	// the running firmware.
	SpecVersion() (major, minor uint32)

	// MachineVendorID returns the JEDEC vendor ID of the host hart.
	MachineVendorID() uint64

	// MachineArchID returns the microarchitecture ID of the host hart.
	MachineArchID() uint64
}
