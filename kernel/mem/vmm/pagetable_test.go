package vmm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPageTableViewRejectsMisalignedAddress(t *testing.T) {
	_, err := NewPageTableView(0x1001, make([]byte, entryCount*entrySize))
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestNewPageTableViewRejectsWrongLength(t *testing.T) {
	_, err := NewPageTableView(0x1000, make([]byte, 10))
	require.Error(t, err)
}

func TestSetEntryThenEntryRoundTrips(t *testing.T) {
	pt, err := NewPageTableView(0x8000_0000, make([]byte, entryCount*entrySize))
	require.NoError(t, err)

	e := makePTE(0x8010_0000, FlagValid|FlagRead|FlagWrite)
	pt.SetEntry(5, e)
	require.Equal(t, e, pt.Entry(5))
	require.Equal(t, Unused, pt.Entry(6).State())
}
