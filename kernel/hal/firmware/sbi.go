package firmware

// sbiCall issues an SBI ecall with the given extension/function IDs and up
// to three arguments, returning the (error, value) pair the SBI calling
// convention places in a0/a1. The ecall trampoline itself lives in boot
// assembly (out of scope for this module); this declaration is the seam
// every SBI-backed capability in this package calls through.
func sbiCall(extensionID, functionID uint64, arg0, arg1, arg2 uint64) (int64, uint64)

const (
	sbiExtLegacyConsolePutChar = 0x01
	sbiExtBase                 = 0x10

	sbiBaseFnSpecVersion   = 0x0
	sbiBaseFnMachineVendor = 0x4
	sbiBaseFnMachineArch   = 0x5
)

// SBIFirmware implements Console and Info over the RISC-V Supervisor Binary
// Interface, the "given" firmware contract named in spec.md §6.
type SBIFirmware struct{}

var _ Console = SBIFirmware{}
var _ Info = SBIFirmware{}

// PutChar writes a single byte to the firmware console via the legacy
// console_putchar extension.
func (SBIFirmware) PutChar(b byte) {
	sbiCall(sbiExtLegacyConsolePutChar, 0, uint64(b), 0, 0)
}

// SpecVersion queries the base extension for the implemented SBI spec
// version. The low 24 bits of the returned value are the minor version and
// the next 7 bits are the major version, per the SBI base specification.
func (SBIFirmware) SpecVersion() (major, minor uint32) {
	_, v := sbiCall(sbiExtBase, sbiBaseFnSpecVersion, 0, 0, 0)
	return uint32((v >> 24) & 0x7f), uint32(v & 0xffffff)
}

// MachineVendorID returns mvendorid via the base extension.
func (SBIFirmware) MachineVendorID() uint64 {
	_, v := sbiCall(sbiExtBase, sbiBaseFnMachineVendor, 0, 0, 0)
	return v
}

// MachineArchID returns marchid via the base extension.
func (SBIFirmware) MachineArchID() uint64 {
	_, v := sbiCall(sbiExtBase, sbiBaseFnMachineArch, 0, 0, 0)
	return v
}
