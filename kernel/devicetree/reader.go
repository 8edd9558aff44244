package devicetree

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Reader is the narrow, read-only contract the core consumes a device
// description through: node properties and child node names, nothing else.
// A real implementation wraps a flattened devicetree blob (ParseFDT); tests
// use Fake.
type Reader interface {
	// Property returns the raw bytes of nodePath's propertyName property.
	Property(nodePath, propertyName string) ([]byte, bool)

	// Subnodes returns the immediate child node names of nodePath, in
	// document order.
	Subnodes(nodePath string) ([]string, bool)
}

func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// BuildFromReader runs the bring-up sequence described for the device-map
// builder: insert every memory@* node under /, then cut every child of
// /reserved-memory. Both / and /reserved-memory must declare
// #address-cells == #size-cells == 2 (64-bit); any other configuration is
// unsupported and reported as an error for the caller to treat as fatal.
func BuildFromReader(r Reader) (*MemoryMap, error) {
	addrCells, sizeCells, err := addressSizeCells(r, "/")
	if err != nil {
		return nil, err
	}
	if addrCells != 2 || sizeCells != 2 {
		return nil, fmt.Errorf("devicetree: / must declare 64-bit #address-cells/#size-cells, got %d/%d", addrCells, sizeCells)
	}

	m := &MemoryMap{}

	children, _ := r.Subnodes("/")
	for _, name := range children {
		if !strings.HasPrefix(name, "memory@") {
			continue
		}
		reg, ok := r.Property("/"+name, "reg")
		if !ok {
			continue
		}
		for _, region := range parseRegTuples(reg) {
			m.Add(region)
		}
	}

	if _, ok := r.Property("/reserved-memory", "#address-cells"); ok {
		rsvAddrCells, rsvSizeCells, err := addressSizeCells(r, "/reserved-memory")
		if err != nil {
			return nil, err
		}
		if rsvAddrCells != sizeCells || rsvSizeCells != sizeCells {
			return nil, fmt.Errorf("devicetree: /reserved-memory cell widths must match /, got %d/%d", rsvAddrCells, rsvSizeCells)
		}

		reserved, _ := r.Subnodes("/reserved-memory")
		for _, name := range reserved {
			path := "/reserved-memory/" + name
			reg, ok := r.Property(path, "reg")
			if !ok {
				continue
			}
			for _, region := range parseRegTuples(reg) {
				m.Cut(region)
			}
		}
	}

	return m, nil
}

func addressSizeCells(r Reader, path string) (addressCells, sizeCells uint32, err error) {
	a, ok := r.Property(path, "#address-cells")
	if !ok || len(a) != 4 {
		return 0, 0, fmt.Errorf("devicetree: %s missing #address-cells", path)
	}
	s, ok := r.Property(path, "#size-cells")
	if !ok || len(s) != 4 {
		return 0, 0, fmt.Errorf("devicetree: %s missing #size-cells", path)
	}
	return be32(a), be32(s), nil
}

// parseRegTuples decodes a reg property as a sequence of (addr64, size64)
// big-endian tuples, per the /memory@* and /reserved-memory/* conventions.
func parseRegTuples(reg []byte) []Region {
	var regions []Region
	for i := 0; i+16 <= len(reg); i += 16 {
		addr := be64(reg[i : i+8])
		size := be64(reg[i+8 : i+16])
		regions = append(regions, Region{Start: uintptr(addr), Size: size})
	}
	return regions
}
