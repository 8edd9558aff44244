package hal

import (
	"testing"

	"github.com/KronsyC/chopin/kernel/hal/firmware"
	"github.com/stretchr/testify/require"
)

func TestInitConsoleRoutesThroughFirmwareConsole(t *testing.T) {
	defer AttachTo(discardTerminal{})

	console := &firmware.Fake{}
	InitConsole(console)

	n, err := ActiveTerminal.Write([]byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte("hi"), console.Written)
}

func TestDiscardTerminalSwallowsOutput(t *testing.T) {
	var term Terminal = discardTerminal{}
	require.NoError(t, term.WriteByte('x'))
	n, err := term.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
