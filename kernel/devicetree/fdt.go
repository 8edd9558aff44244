package devicetree

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	fdtMagic = 0xd00dfeed

	fdtBeginNode = 1
	fdtEndNode   = 2
	fdtProp      = 3
	fdtNop       = 4
	fdtEnd       = 9
)

// Dtb is a Reader backed by a parsed flattened devicetree (FDT) blob. It
// supplements the core's out-of-scope "device-tree parsing library"
// collaborator with a minimal from-scratch walker, since the core still
// needs something to hand bring-up when it is not running under the hosted
// Fake harness.
type Dtb struct {
	properties map[string]map[string][]byte
	subnodes   map[string][]string
}

var _ Reader = (*Dtb)(nil)

// Property implements Reader.
func (d *Dtb) Property(nodePath, propertyName string) ([]byte, bool) {
	props, ok := d.properties[nodePath]
	if !ok {
		return nil, false
	}
	v, ok := props[propertyName]
	return v, ok
}

// Subnodes implements Reader.
func (d *Dtb) Subnodes(nodePath string) ([]string, bool) {
	names, ok := d.subnodes[nodePath]
	return names, ok
}

// ParseFDT walks a flattened-devicetree structure block (big-endian token
// stream: FDT_BEGIN_NODE/FDT_PROP/FDT_END_NODE/FDT_END tags) and returns a
// Reader over it. Grounded on the tag walk shape of a from-scratch FDT
// reader in the broader retrieved example set; this walker only builds the
// node/property index bring-up needs and does not support memory
// reservation blocks or phandle cross-references.
func ParseFDT(blob []byte) (*Dtb, error) {
	if len(blob) < 40 {
		return nil, fmt.Errorf("devicetree: blob too small for an FDT header")
	}
	if magic := binary.BigEndian.Uint32(blob[0:4]); magic != fdtMagic {
		return nil, fmt.Errorf("devicetree: bad FDT magic %#x", magic)
	}

	offStruct := binary.BigEndian.Uint32(blob[8:12])
	offStrings := binary.BigEndian.Uint32(blob[12:16])

	d := &Dtb{
		properties: make(map[string]map[string][]byte),
		subnodes:   make(map[string][]string),
	}

	p := int(offStruct)
	var pathStack []string

	readCString := func(off int) string {
		end := off
		for end < len(blob) && blob[end] != 0 {
			end++
		}
		return string(blob[off:end])
	}

	for p+4 <= len(blob) {
		tag := binary.BigEndian.Uint32(blob[p : p+4])
		p += 4

		switch tag {
		case fdtBeginNode:
			name := readCString(p)
			p += len(name) + 1
			p = align4(p)

			nodeName := name
			if idx := strings.IndexByte(name, '@'); idx >= 0 || name != "" {
				nodeName = name
			}

			var path string
			if len(pathStack) == 0 {
				path = "/"
			} else {
				path = strings.TrimSuffix(pathStack[len(pathStack)-1], "/") + "/" + nodeName
			}
			if nodeName != "" {
				parent := "/"
				if len(pathStack) > 0 {
					parent = pathStack[len(pathStack)-1]
				}
				d.subnodes[parent] = append(d.subnodes[parent], nodeName)
			}
			pathStack = append(pathStack, path)
			if _, ok := d.properties[path]; !ok {
				d.properties[path] = make(map[string][]byte)
			}

		case fdtEndNode:
			if len(pathStack) == 0 {
				return nil, fmt.Errorf("devicetree: unbalanced FDT_END_NODE")
			}
			pathStack = pathStack[:len(pathStack)-1]

		case fdtProp:
			if p+8 > len(blob) {
				return nil, fmt.Errorf("devicetree: truncated FDT_PROP header")
			}
			length := binary.BigEndian.Uint32(blob[p : p+4])
			nameOff := binary.BigEndian.Uint32(blob[p+4 : p+8])
			p += 8

			if p+int(length) > len(blob) {
				return nil, fmt.Errorf("devicetree: truncated FDT_PROP value")
			}
			value := blob[p : p+int(length)]
			p += int(length)
			p = align4(p)

			propName := readCString(int(offStrings) + int(nameOff))
			if len(pathStack) == 0 {
				return nil, fmt.Errorf("devicetree: FDT_PROP outside any node")
			}
			curPath := pathStack[len(pathStack)-1]
			d.properties[curPath][propName] = value

		case fdtNop:
			// no payload

		case fdtEnd:
			return d, nil

		default:
			return nil, fmt.Errorf("devicetree: unknown FDT tag %#x", tag)
		}
	}

	return d, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}
