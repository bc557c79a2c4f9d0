package schema

import (
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"
)

// Operation names a family of connector operations.
type Operation string

const (
	OpAuthenticate          Operation = "authenticate"
	OpCreate                Operation = "create"
	OpDelete                Operation = "delete"
	OpUpdate                Operation = "update"
	OpUpdateAttributeValues Operation = "update_attribute_values"
	OpResolveUsername       Operation = "resolve_username"
	OpSchema                Operation = "schema"
	OpScriptOnConnector     Operation = "script_on_connector"
	OpScriptOnResource      Operation = "script_on_resource"
	OpSearch                Operation = "search"
	OpSync                  Operation = "sync"
	OpTest                  Operation = "test"
)

// AllOperations lists every operation family in declaration order.
var AllOperations = []Operation{
	OpAuthenticate, OpCreate, OpDelete, OpUpdate, OpUpdateAttributeValues,
	OpResolveUsername, OpSchema, OpScriptOnConnector, OpScriptOnResource,
	OpSearch, OpSync, OpTest,
}

func (op Operation) bit() uint32 {
	for i, o := range AllOperations {
		if o == op {
			return 1 << uint(i)
		}
	}
	return 0
}

// Valid reports whether op is a known family.
func (op Operation) Valid() bool { return op.bit() != 0 }

// ParseOperation parses a family name, ignoring case.
func ParseOperation(s string) (Operation, bool) {
	for _, o := range AllOperations {
		if strings.EqualFold(string(o), s) {
			return o, true
		}
	}
	return "", false
}

// OperationSet is a set of operation families.
type OperationSet uint32

// NewOperationSet builds a set from ops. Unknown operations are ignored.
func NewOperationSet(ops ...Operation) OperationSet {
	var s OperationSet
	for _, op := range ops {
		s |= OperationSet(op.bit())
	}
	return s
}

// Has reports whether op is in the set.
func (s OperationSet) Has(op Operation) bool {
	b := op.bit()
	return b != 0 && uint32(s)&b != 0
}

// With returns s plus ops.
func (s OperationSet) With(ops ...Operation) OperationSet {
	return s | NewOperationSet(ops...)
}

// IsEmpty reports whether the set has no operations.
func (s OperationSet) IsEmpty() bool { return s == 0 }

// List returns the members in declaration order.
func (s OperationSet) List() []Operation {
	var out []Operation
	for _, op := range AllOperations {
		if s.Has(op) {
			out = append(out, op)
		}
	}
	return out
}

// String renders the set as a comma separated list.
func (s OperationSet) String() string {
	names := make([]string, 0, len(AllOperations))
	for _, op := range s.List() {
		names = append(names, string(op))
	}
	return strings.Join(names, ",")
}

// MarshalJSON renders the set as a sorted list of names.
func (s OperationSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(AllOperations))
	for _, op := range s.List() {
		names = append(names, string(op))
	}
	sort.Strings(names)
	return gojson.Marshal(names)
}
