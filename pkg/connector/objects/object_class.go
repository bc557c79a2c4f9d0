// Package objects defines the values exchanged between the framework and
// connectors: object classes, uids, attributes, connector objects, sync
// tokens and deltas, search results and operation options.
//
// Every value in this package is immutable once built. Builders validate on
// Build so connectors and the facade can rely on the invariants without
// re-checking them.
package objects

import "strings"

// ObjectClass names a kind of object on the resource. Names compare
// case-insensitively; use Equals rather than ==.
type ObjectClass struct {
	name string
}

// Predefined object classes.
var (
	Account = ObjectClass{name: "__ACCOUNT__"}
	Group   = ObjectClass{name: "__GROUP__"}
	// All is the sync wildcard meaning every object class the connector supports.
	All = ObjectClass{name: "__ALL__"}
)

// NewObjectClass returns the object class for name. Predefined names are
// canonicalized to their upper case spelling.
func NewObjectClass(name string) ObjectClass {
	for _, oc := range []ObjectClass{Account, Group, All} {
		if strings.EqualFold(oc.name, name) {
			return oc
		}
	}
	return ObjectClass{name: name}
}

// Name returns the object class name as given.
func (oc ObjectClass) Name() string { return oc.name }

// String implements fmt.Stringer.
func (oc ObjectClass) String() string { return oc.name }

// Key returns the lower-cased name, suitable as a map key.
func (oc ObjectClass) Key() string { return strings.ToLower(oc.name) }

// Equals reports whether both classes have the same name, ignoring case.
func (oc ObjectClass) Equals(other ObjectClass) bool {
	return strings.EqualFold(oc.name, other.name)
}

// IsAll reports whether oc is the All wildcard.
func (oc ObjectClass) IsAll() bool { return oc.Equals(All) }

// IsZero reports whether oc has no name.
func (oc ObjectClass) IsZero() bool { return oc.name == "" }

// MarshalText implements encoding.TextMarshaler.
func (oc ObjectClass) MarshalText() ([]byte, error) {
	return []byte(oc.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (oc *ObjectClass) UnmarshalText(text []byte) error {
	*oc = NewObjectClass(string(text))
	return nil
}
