package firmware

// Fake is a hosted stand-in for SBIFirmware used by tests that need a
// Console/Info pair without a real hart underneath them. It records every
// byte written so assertions can inspect console output deterministically.
type Fake struct {
	Written []byte

	Major, Minor     uint32
	VendorID, ArchID uint64
}

var _ Console = (*Fake)(nil)
var _ Info = (*Fake)(nil)

// PutChar appends b to Written.
func (f *Fake) PutChar(b byte) {
	f.Written = append(f.Written, b)
}

// SpecVersion returns the configured Major/Minor fields.
func (f *Fake) SpecVersion() (major, minor uint32) {
	return f.Major, f.Minor
}

// MachineVendorID returns the configured VendorID field.
func (f *Fake) MachineVendorID() uint64 {
	return f.VendorID
}

// MachineArchID returns the configured ArchID field.
func (f *Fake) MachineArchID() uint64 {
	return f.ArchID
}
