package firmware_test

import (
	"testing"

	"github.com/KronsyC/chopin/kernel/hal/firmware"
	"github.com/stretchr/testify/assert"
)

func TestFakeConsoleRecordsBytes(t *testing.T) {
	f := &firmware.Fake{}

	f.PutChar('h')
	f.PutChar('i')

	assert.Equal(t, []byte("hi"), f.Written)
}

func TestFakeInfoReturnsConfiguredValues(t *testing.T) {
	f := &firmware.Fake{Major: 2, Minor: 0, VendorID: 0x1234, ArchID: 0x5678}

	major, minor := f.SpecVersion()
	assert.Equal(t, uint32(2), major)
	assert.Equal(t, uint32(0), minor)
	assert.Equal(t, uint64(0x1234), f.MachineVendorID())
	assert.Equal(t, uint64(0x5678), f.MachineArchID())
}
