// Command chopin is the kernel's entrypoint trampoline: boot assembly sets
// up a minimal stack and calls into this package's main, which wires the
// SBI console, parses the firmware-supplied device tree and hands off to
// bring-up.
package main

import (
	"encoding/binary"
	"reflect"
	"unsafe"

	"github.com/KronsyC/chopin/kernel"
	"github.com/KronsyC/chopin/kernel/bringup"
	"github.com/KronsyC/chopin/kernel/devicetree"
	"github.com/KronsyC/chopin/kernel/hal"
	"github.com/KronsyC/chopin/kernel/hal/firmware"
)

// hartIDArg and deviceTreeArg are populated by boot assembly before it
// calls main. Passing them through package-level variables, rather than
// function arguments the assembly trampoline would have to marshal,
// mirrors the teacher's dummy-global trick for keeping this package
// reachable from the linker's perspective.
var (
	hartIDArg     uintptr
	deviceTreeArg uintptr
)

// kernelStartAddr and kernelEndAddr resolve to the linker-provided _start
// and CHOPIN_kernel_memory_end symbols. Their bodies live in boot assembly,
// out of scope for this module.
func kernelStartAddr() uintptr
func kernelEndAddr() uintptr

// fdtBlobAt constructs a []byte view over a flattened-devicetree blob
// whose address the firmware passed in a1, reading the header's totalsize
// field first to learn how much of memory to view.
func fdtBlobAt(ptr uintptr) []byte {
	var probe []byte
	probeHdr := (*reflect.SliceHeader)(unsafe.Pointer(&probe))
	probeHdr.Data = ptr
	probeHdr.Len = 8
	probeHdr.Cap = 8
	totalSize := binary.BigEndian.Uint32(probe[4:8])

	var blob []byte
	blobHdr := (*reflect.SliceHeader)(unsafe.Pointer(&blob))
	blobHdr.Data = ptr
	blobHdr.Len = int(totalSize)
	blobHdr.Cap = int(totalSize)
	return blob
}

// main is not expected to return; every path that could return instead
// routes through kernel.Panic, which halts the hart.
func main() {
	sbi := firmware.SBIFirmware{}
	hal.InitConsole(sbi)

	reader, err := devicetree.ParseFDT(fdtBlobAt(deviceTreeArg))
	if err != nil {
		kernel.Panic(err)
		return
	}

	if _, err := bringup.Stage0(uint32(hartIDArg), reader, kernelStartAddr(), kernelEndAddr(), sbi); err != nil {
		kernel.Panic(err)
	}
}
