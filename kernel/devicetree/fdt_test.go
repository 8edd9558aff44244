package devicetree

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// fdtBuilder assembles a minimal well-formed FDT blob for testing ParseFDT
// without depending on a real firmware-supplied binary.
type fdtBuilder struct {
	strings []byte
	strOff  map[string]uint32
	structs []byte
}

func newFDTBuilder() *fdtBuilder {
	return &fdtBuilder{strOff: make(map[string]uint32)}
}

func (b *fdtBuilder) be32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.structs = append(b.structs, tmp[:]...)
}

func (b *fdtBuilder) beginNode(name string) {
	b.be32(fdtBeginNode)
	b.structs = append(b.structs, []byte(name)...)
	b.structs = append(b.structs, 0)
	for len(b.structs)%4 != 0 {
		b.structs = append(b.structs, 0)
	}
}

func (b *fdtBuilder) endNode() {
	b.be32(fdtEndNode)
}

func (b *fdtBuilder) nameOffset(name string) uint32 {
	if off, ok := b.strOff[name]; ok {
		return off
	}
	off := uint32(len(b.strings))
	b.strings = append(b.strings, []byte(name)...)
	b.strings = append(b.strings, 0)
	b.strOff[name] = off
	return off
}

func (b *fdtBuilder) prop(name string, value []byte) {
	b.be32(fdtProp)
	b.be32(uint32(len(value)))
	b.be32(b.nameOffset(name))
	b.structs = append(b.structs, value...)
	for len(b.structs)%4 != 0 {
		b.structs = append(b.structs, 0)
	}
}

func (b *fdtBuilder) build() []byte {
	b.be32(fdtEnd)

	const headerSizeBytes = 40
	offStruct := uint32(headerSizeBytes)
	offStrings := offStruct + uint32(len(b.structs))

	blob := make([]byte, headerSizeBytes)
	binary.BigEndian.PutUint32(blob[0:4], fdtMagic)
	binary.BigEndian.PutUint32(blob[4:8], offStrings+uint32(len(b.strings)))
	binary.BigEndian.PutUint32(blob[8:12], offStruct)
	binary.BigEndian.PutUint32(blob[12:16], offStrings)

	blob = append(blob, b.structs...)
	blob = append(blob, b.strings...)
	return blob
}

func TestParseFDTWalksNestedNodesAndProperties(t *testing.T) {
	b := newFDTBuilder()
	b.beginNode("")
	b.prop("#address-cells", be32b(2))
	b.prop("#size-cells", be32b(2))
	b.beginNode("memory@80000000")
	b.prop("reg", reg64(0x8000_0000, 0x800_0000))
	b.endNode()
	b.endNode()

	d, err := ParseFDT(b.build())
	require.NoError(t, err)

	v, ok := d.Property("/", "#address-cells")
	require.True(t, ok)
	require.Equal(t, uint32(2), be32(v))

	v, ok = d.Property("/memory@80000000", "reg")
	require.True(t, ok)
	require.Equal(t, []Region{{Start: 0x8000_0000, Size: 0x800_0000}}, parseRegTuples(v))

	children, ok := d.Subnodes("/")
	require.True(t, ok)
	require.Equal(t, []string{"memory@80000000"}, children)
}

func TestParseFDTRejectsBadMagic(t *testing.T) {
	blob := make([]byte, 40)
	_, err := ParseFDT(blob)
	require.Error(t, err)
}

func TestParseFDTRejectsTruncatedHeader(t *testing.T) {
	_, err := ParseFDT(make([]byte, 4))
	require.Error(t, err)
}

func TestParseFDTFeedsBuildFromReader(t *testing.T) {
	b := newFDTBuilder()
	b.beginNode("")
	b.prop("#address-cells", be32b(2))
	b.prop("#size-cells", be32b(2))
	b.beginNode("memory@0")
	b.prop("reg", reg64(0, 0x1000_0000))
	b.endNode()
	b.endNode()

	d, err := ParseFDT(b.build())
	require.NoError(t, err)

	m, err := BuildFromReader(d)
	require.NoError(t, err)
	require.Equal(t, []Region{{Start: 0, Size: 0x1000_0000}}, m.Regions())
}
