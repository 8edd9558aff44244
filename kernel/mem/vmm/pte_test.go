package vmm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPTEStateClassification(t *testing.T) {
	require.Equal(t, Unused, PTE(0).State())

	intermediary := makePTE(0x8010_0000, FlagValid)
	require.Equal(t, Intermediary, intermediary.State())

	leaf := makePTE(0x8010_0000, FlagValid|FlagRead|FlagWrite)
	require.Equal(t, Leaf, leaf.State())
}

func TestPTEEncodesPhysAddrAndFlags(t *testing.T) {
	e := makePTE(0x8020_3000, FlagValid|FlagRead|FlagExec)
	require.EqualValues(t, 0x8020_3000, e.PhysAddr())
	require.Equal(t, FlagValid|FlagRead|FlagExec, e.EntryFlags())
}
