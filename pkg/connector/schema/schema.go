// Package schema describes what a connector manages: the object classes,
// their attributes with access flags, the operations each class supports and
// the operation options the connector understands.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	gojson "github.com/goccy/go-json"
)

// ValueType names the type of an attribute or option value.
type ValueType string

const (
	TypeString        ValueType = "string"
	TypeInteger       ValueType = "integer"
	TypeLong          ValueType = "long"
	TypeDouble        ValueType = "double"
	TypeBoolean       ValueType = "boolean"
	TypeTime          ValueType = "time"
	TypeBytes         ValueType = "bytes"
	TypeGuardedString ValueType = "guardedstring"
	TypeStringList    ValueType = "stringlist"
	TypeAny           ValueType = "any"
)

// Accepts reports whether v is a valid non-nil value of type t. Integer and
// long accept any Go integer.
func (t ValueType) Accepts(v interface{}) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger, TypeLong:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case TypeDouble:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeTime:
		_, ok := v.(time.Time)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	case TypeGuardedString:
		g, ok := v.(*security.GuardedString)
		return ok && g != nil
	default:
		return true
	}
}

// CheckValues verifies every non-nil value of attr against the declared type.
func (a AttributeInfo) CheckValues(attr objects.Attribute) error {
	for _, v := range attr.Values {
		if v == nil || a.Type.Accepts(v) {
			continue
		}
		return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("attribute %s expects %s values, got %T", attr.Name, a.Type, v)).
			WithDetail("attribute", attr.Name).
			WithDetail("type", string(a.Type))
	}
	return nil
}

// Flag adjusts the access rules of an attribute. The zero value describes a
// single-valued, optional attribute that is creatable, updateable, readable
// and returned by default.
type Flag uint8

const (
	Required Flag = 1 << iota
	MultiValued
	NotCreatable
	NotUpdateable
	NotReadable
	NotReturnedByDefault
)

// AttributeInfo describes one attribute of an object class.
type AttributeInfo struct {
	Name  string
	Type  ValueType
	Flags Flag
}

// NewAttributeInfo builds an attribute description.
func NewAttributeInfo(name string, t ValueType, flags ...Flag) AttributeInfo {
	var f Flag
	for _, fl := range flags {
		f |= fl
	}
	return AttributeInfo{Name: name, Type: t, Flags: f}
}

func (a AttributeInfo) Is(name string) bool       { return strings.EqualFold(a.Name, name) }
func (a AttributeInfo) IsRequired() bool          { return a.Flags&Required != 0 }
func (a AttributeInfo) IsMultiValued() bool       { return a.Flags&MultiValued != 0 }
func (a AttributeInfo) IsCreatable() bool         { return a.Flags&NotCreatable == 0 }
func (a AttributeInfo) IsUpdateable() bool        { return a.Flags&NotUpdateable == 0 }
func (a AttributeInfo) IsReadable() bool          { return a.Flags&NotReadable == 0 }
func (a AttributeInfo) IsReturnedByDefault() bool { return a.Flags&NotReturnedByDefault == 0 }

type attributeView struct {
	Name              string    `json:"name"`
	Type              ValueType `json:"type"`
	Required          bool      `json:"required"`
	MultiValued       bool      `json:"multiValued"`
	Creatable         bool      `json:"creatable"`
	Updateable        bool      `json:"updateable"`
	Readable          bool      `json:"readable"`
	ReturnedByDefault bool      `json:"returnedByDefault"`
}

// MarshalJSON renders the flags as booleans.
func (a AttributeInfo) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(attributeView{
		Name:              a.Name,
		Type:              a.Type,
		Required:          a.IsRequired(),
		MultiValued:       a.IsMultiValued(),
		Creatable:         a.IsCreatable(),
		Updateable:        a.IsUpdateable(),
		Readable:          a.IsReadable(),
		ReturnedByDefault: a.IsReturnedByDefault(),
	})
}

// ObjectClassInfo describes one object class.
type ObjectClassInfo struct {
	Type       objects.ObjectClass `json:"type"`
	Container  bool                `json:"container,omitempty"`
	Attributes []AttributeInfo     `json:"attributes"`
}

// NewObjectClassInfo builds an object class description.
func NewObjectClassInfo(oc objects.ObjectClass, attrs ...AttributeInfo) ObjectClassInfo {
	return ObjectClassInfo{Type: oc, Attributes: append([]AttributeInfo(nil), attrs...)}
}

// Attribute looks up an attribute description, ignoring case.
func (o ObjectClassInfo) Attribute(name string) (AttributeInfo, bool) {
	for _, a := range o.Attributes {
		if a.Is(name) {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// ReturnedByDefault lists the attributes a search returns when the caller
// does not ask for specific ones.
func (o ObjectClassInfo) ReturnedByDefault() []string {
	var names []string
	for _, a := range o.Attributes {
		if a.IsReturnedByDefault() && a.IsReadable() {
			names = append(names, a.Name)
		}
	}
	return names
}

// OperationOptionInfo describes an operation option the connector accepts.
type OperationOptionInfo struct {
	Name string    `json:"name"`
	Type ValueType `json:"type"`
	// Operations the option applies to; empty means all.
	Operations OperationSet `json:"operations"`
}

// AppliesTo reports whether the option is meaningful for op.
func (o OperationOptionInfo) AppliesTo(op Operation) bool {
	return o.Operations.IsEmpty() || o.Operations.Has(op)
}

type classEntry struct {
	info ObjectClassInfo
	// ops declared for the class; empty means every operation
	ops OperationSet
}

// Schema is an immutable description of a connector's resource.
type Schema struct {
	classes []classEntry
	options []OperationOptionInfo
}

// ObjectClassInfos returns every object class description.
func (s *Schema) ObjectClassInfos() []ObjectClassInfo {
	out := make([]ObjectClassInfo, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c.info)
	}
	return out
}

// FindObjectClassInfo returns the description of oc.
func (s *Schema) FindObjectClassInfo(oc objects.ObjectClass) (ObjectClassInfo, bool) {
	if c := s.find(oc); c != nil {
		return c.info, true
	}
	return ObjectClassInfo{}, false
}

func (s *Schema) find(oc objects.ObjectClass) *classEntry {
	for i := range s.classes {
		if s.classes[i].info.Type.Equals(oc) {
			return &s.classes[i]
		}
	}
	return nil
}

// SupportsObjectClass reports whether op may be invoked on oc. A class
// declared without an operation list supports every operation. The All
// wildcard is accepted for sync when any class supports sync.
func (s *Schema) SupportsObjectClass(op Operation, oc objects.ObjectClass) bool {
	if c := s.find(oc); c != nil {
		return c.ops.IsEmpty() || c.ops.Has(op)
	}
	if oc.IsAll() && op == OpSync {
		return len(s.SupportedObjectClasses(OpSync)) > 0
	}
	return false
}

// SupportedObjectClasses lists the classes that support op.
func (s *Schema) SupportedObjectClasses(op Operation) []objects.ObjectClass {
	var out []objects.ObjectClass
	for _, c := range s.classes {
		if c.ops.IsEmpty() || c.ops.Has(op) {
			out = append(out, c.info.Type)
		}
	}
	return out
}

// OperationOptionInfos returns every operation option description.
func (s *Schema) OperationOptionInfos() []OperationOptionInfo {
	return append([]OperationOptionInfo(nil), s.options...)
}

// SupportedOptions lists the options that apply to op.
func (s *Schema) SupportedOptions(op Operation) []OperationOptionInfo {
	var out []OperationOptionInfo
	for _, o := range s.options {
		if o.AppliesTo(op) {
			out = append(out, o)
		}
	}
	return out
}

type classView struct {
	ObjectClassInfo
	Operations []Operation `json:"operations"`
}

// MarshalJSON renders the schema with the effective operations per class.
func (s *Schema) MarshalJSON() ([]byte, error) {
	view := struct {
		ObjectClasses    []classView           `json:"objectClasses"`
		OperationOptions []OperationOptionInfo `json:"operationOptions"`
	}{OperationOptions: s.options}
	for _, c := range s.classes {
		ops := c.ops
		if ops.IsEmpty() {
			ops = NewOperationSet(AllOperations...)
		}
		view.ObjectClasses = append(view.ObjectClasses, classView{ObjectClassInfo: c.info, Operations: ops.List()})
	}
	return gojson.Marshal(view)
}

// Builder assembles a Schema.
type Builder struct {
	classes []classEntry
	options []OperationOptionInfo
	err     error
}

// NewBuilder starts an empty schema.
func NewBuilder() *Builder {
	return &Builder{}
}

// DefineObjectClass adds a class. When ops is empty the class supports every
// operation the connector implements.
func (b *Builder) DefineObjectClass(info ObjectClassInfo, ops ...Operation) *Builder {
	if b.err != nil {
		return b
	}
	if info.Type.IsZero() {
		b.err = errors.New(errors.ErrorTypeValidation, "object class info requires a type")
		return b
	}
	for _, c := range b.classes {
		if c.info.Type.Equals(info.Type) {
			b.err = errors.New(errors.ErrorTypeValidation, fmt.Sprintf("object class %s defined twice", info.Type)).
				WithDetail("object_class", info.Type.Name())
			return b
		}
	}
	for _, op := range ops {
		if !op.Valid() {
			b.err = errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unknown operation %q", op)).
				WithDetail("object_class", info.Type.Name())
			return b
		}
	}
	b.classes = append(b.classes, classEntry{info: info, ops: NewOperationSet(ops...)})
	return b
}

// DefineOperationOption adds an option that applies to ops, or to every
// operation when ops is empty.
func (b *Builder) DefineOperationOption(name string, t ValueType, ops ...Operation) *Builder {
	if b.err != nil {
		return b
	}
	b.options = append(b.options, OperationOptionInfo{Name: name, Type: t, Operations: NewOperationSet(ops...)})
	return b
}

// Build returns the schema or the first definition error.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.classes) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "schema defines no object classes")
	}
	return &Schema{
		classes: append([]classEntry(nil), b.classes...),
		options: append([]OperationOptionInfo(nil), b.options...),
	}, nil
}
