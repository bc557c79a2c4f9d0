// Package filter holds the search filter tree, its client-side evaluation and
// the translation of filters into connector-native queries.
package filter

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
)

// Filter selects connector objects.
type Filter interface {
	// Accept evaluates the filter against obj on the client side.
	Accept(obj *objects.ConnectorObject) bool
	String() string
}

// Operator is the comparison performed by an AttributeFilter.
type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpContains           Operator = "CONTAINS"
	OpStartsWith         Operator = "STARTS_WITH"
	OpEndsWith           Operator = "ENDS_WITH"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThan           Operator = "LESS_THAN"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpContainsAllValues  Operator = "CONTAINS_ALL_VALUES"
	OpPresence           Operator = "PRESENCE"
)

// AttributeFilter compares one attribute of an object against a value.
type AttributeFilter struct {
	Op        Operator
	Attribute objects.Attribute
}

func leaf(op Operator, attr objects.Attribute) *AttributeFilter {
	return &AttributeFilter{Op: op, Attribute: attr}
}

func Equals(attr objects.Attribute) *AttributeFilter     { return leaf(OpEquals, attr) }
func Contains(attr objects.Attribute) *AttributeFilter   { return leaf(OpContains, attr) }
func StartsWith(attr objects.Attribute) *AttributeFilter { return leaf(OpStartsWith, attr) }
func EndsWith(attr objects.Attribute) *AttributeFilter   { return leaf(OpEndsWith, attr) }
func GreaterThan(attr objects.Attribute) *AttributeFilter {
	return leaf(OpGreaterThan, attr)
}
func GreaterThanOrEqual(attr objects.Attribute) *AttributeFilter {
	return leaf(OpGreaterThanOrEqual, attr)
}
func LessThan(attr objects.Attribute) *AttributeFilter { return leaf(OpLessThan, attr) }
func LessThanOrEqual(attr objects.Attribute) *AttributeFilter {
	return leaf(OpLessThanOrEqual, attr)
}
func ContainsAllValues(attr objects.Attribute) *AttributeFilter {
	return leaf(OpContainsAllValues, attr)
}

// Presence matches objects that carry attribute name.
func Presence(name string) *AttributeFilter {
	return leaf(OpPresence, objects.NewAttribute(name))
}

// Name returns the attribute name the filter tests.
func (f *AttributeFilter) Name() string { return f.Attribute.Name }

// Value returns the single comparison value, or nil.
func (f *AttributeFilter) Value() interface{} {
	if len(f.Attribute.Values) == 0 {
		return nil
	}
	return f.Attribute.Values[0]
}

// Accept implements Filter.
func (f *AttributeFilter) Accept(obj *objects.ConnectorObject) bool {
	if obj == nil {
		return false
	}
	attr, ok := obj.Attribute(f.Attribute.Name)
	if !ok {
		return false
	}

	switch f.Op {
	case OpPresence:
		return true
	case OpEquals:
		if len(f.Attribute.Values) == 1 {
			return containsValue(attr.Values, f.Attribute.Values[0])
		}
		return sameValues(attr.Values, f.Attribute.Values)
	case OpContainsAllValues:
		for _, want := range f.Attribute.Values {
			if !containsValue(attr.Values, want) {
				return false
			}
		}
		return true
	case OpContains, OpStartsWith, OpEndsWith:
		want, ok := f.Value().(string)
		if !ok {
			return false
		}
		for _, v := range attr.Values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if (f.Op == OpContains && strings.Contains(s, want)) ||
				(f.Op == OpStartsWith && strings.HasPrefix(s, want)) ||
				(f.Op == OpEndsWith && strings.HasSuffix(s, want)) {
				return true
			}
		}
		return false
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		for _, v := range attr.Values {
			c, ok := compareValues(v, f.Value())
			if !ok {
				continue
			}
			switch {
			case f.Op == OpGreaterThan && c > 0,
				f.Op == OpGreaterThanOrEqual && c >= 0,
				f.Op == OpLessThan && c < 0,
				f.Op == OpLessThanOrEqual && c <= 0:
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (f *AttributeFilter) String() string {
	if f.Op == OpPresence {
		return fmt.Sprintf("%s(%s)", f.Op, f.Attribute.Name)
	}
	return fmt.Sprintf("%s(%s, %v)", f.Op, f.Attribute.Name, f.Attribute.Values)
}

// AndFilter matches when both sides match.
type AndFilter struct {
	Left, Right Filter
}

// OrFilter matches when either side matches.
type OrFilter struct {
	Left, Right Filter
}

// NotFilter inverts its operand.
type NotFilter struct {
	Filter Filter
}

// And combines filters left to right. Nil operands are skipped.
func And(first Filter, rest ...Filter) Filter {
	out := first
	for _, f := range rest {
		switch {
		case f == nil:
		case out == nil:
			out = f
		default:
			out = &AndFilter{Left: out, Right: f}
		}
	}
	return out
}

// Or combines filters left to right. Nil operands are skipped.
func Or(first Filter, rest ...Filter) Filter {
	out := first
	for _, f := range rest {
		switch {
		case f == nil:
		case out == nil:
			out = f
		default:
			out = &OrFilter{Left: out, Right: f}
		}
	}
	return out
}

// Not inverts f.
func Not(f Filter) Filter { return &NotFilter{Filter: f} }

func (f *AndFilter) Accept(obj *objects.ConnectorObject) bool {
	return f.Left.Accept(obj) && f.Right.Accept(obj)
}

func (f *AndFilter) String() string { return fmt.Sprintf("AND(%s, %s)", f.Left, f.Right) }

func (f *OrFilter) Accept(obj *objects.ConnectorObject) bool {
	return f.Left.Accept(obj) || f.Right.Accept(obj)
}

func (f *OrFilter) String() string { return fmt.Sprintf("OR(%s, %s)", f.Left, f.Right) }

func (f *NotFilter) Accept(obj *objects.ConnectorObject) bool { return !f.Filter.Accept(obj) }

func (f *NotFilter) String() string { return fmt.Sprintf("NOT(%s)", f.Filter) }

// Accept evaluates f against obj, treating a nil filter as match-all.
func Accept(f Filter, obj *objects.ConnectorObject) bool {
	if f == nil {
		return true
	}
	return f.Accept(obj)
}

// UidEquals is the filter GetObject uses.
func UidEquals(uid objects.Uid) Filter {
	return Equals(objects.NewAttribute(objects.UidAttr, uid.Value))
}

func containsValue(values []interface{}, want interface{}) bool {
	for _, v := range values {
		if valuesEqual(v, want) {
			return true
		}
	}
	return false
}

func sameValues(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers, strings and times; ok is false otherwise.
func compareValues(a, b interface{}) (int, bool) {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
