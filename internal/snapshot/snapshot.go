package snapshot

import "sort"

// Snapshot is the observed state of one category at one poll instant,
// keyed by entity identity.
type Snapshot map[string]*Attributes

// Names returns the entity identities in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the entity is present.
func (s Snapshot) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Equal is order-independent structural equality. A nil and an empty
// snapshot are equal.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for name, a := range s {
		b, ok := o[name]
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}
