package devicetree

// Fake is a hosted, in-memory Reader used by tests in place of a real
// flattened-devicetree blob.
type Fake struct {
	properties map[string]map[string][]byte
	subnodes   map[string][]string
}

// NewFake returns an empty Fake ready for SetProperty/SetSubnodes calls.
func NewFake() *Fake {
	return &Fake{
		properties: make(map[string]map[string][]byte),
		subnodes:   make(map[string][]string),
	}
}

// SetProperty installs nodePath's propertyName property.
func (f *Fake) SetProperty(nodePath, propertyName string, value []byte) {
	props, ok := f.properties[nodePath]
	if !ok {
		props = make(map[string][]byte)
		f.properties[nodePath] = props
	}
	props[propertyName] = value
}

// SetSubnodes installs the immediate child node names of nodePath.
func (f *Fake) SetSubnodes(nodePath string, names []string) {
	f.subnodes[nodePath] = names
}

// Property implements Reader.
func (f *Fake) Property(nodePath, propertyName string) ([]byte, bool) {
	props, ok := f.properties[nodePath]
	if !ok {
		return nil, false
	}
	v, ok := props[propertyName]
	return v, ok
}

// Subnodes implements Reader.
func (f *Fake) Subnodes(nodePath string) ([]string, bool) {
	names, ok := f.subnodes[nodePath]
	return names, ok
}

var _ Reader = (*Fake)(nil)
