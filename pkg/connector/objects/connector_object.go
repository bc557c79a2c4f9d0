package objects

import (
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

// Uid uniquely identifies an object within its object class on a resource.
// Revision is an optional version marker some resources report.
type Uid struct {
	Value    string `json:"value"`
	Revision string `json:"revision,omitempty"`
}

// NewUid creates a uid without a revision.
func NewUid(value string) Uid { return Uid{Value: value} }

// NewUidWithRevision creates a uid carrying a revision.
func NewUidWithRevision(value, revision string) Uid {
	return Uid{Value: value, Revision: revision}
}

// IsZero reports whether the uid is empty.
func (u Uid) IsZero() bool { return u.Value == "" }

// Equals compares uid values; revisions are ignored.
func (u Uid) Equals(other Uid) bool { return u.Value == other.Value }

// String implements fmt.Stringer.
func (u Uid) String() string { return u.Value }

// ConnectorObject is an object read from a resource.
type ConnectorObject struct {
	objectClass ObjectClass
	uid         Uid
	name        string
	attrs       []Attribute
}

// ObjectClass returns the class of the object.
func (o *ConnectorObject) ObjectClass() ObjectClass { return o.objectClass }

// Uid returns the uid of the object.
func (o *ConnectorObject) Uid() Uid { return o.uid }

// Name returns the __NAME__ value of the object.
func (o *ConnectorObject) Name() string { return o.name }

// Attributes returns a copy of every attribute, including __UID__ and __NAME__.
func (o *ConnectorObject) Attributes() []Attribute {
	out := make([]Attribute, len(o.attrs))
	copy(out, o.attrs)
	return out
}

// Attribute returns the attribute called name, ignoring case.
func (o *ConnectorObject) Attribute(name string) (Attribute, bool) {
	return Find(o.attrs, name)
}

// ConnectorObjectBuilder assembles a ConnectorObject.
type ConnectorObjectBuilder struct {
	objectClass ObjectClass
	uid         Uid
	name        string
	hasName     bool
	attrs       []Attribute
}

// NewConnectorObjectBuilder starts a builder for an object of class ACCOUNT.
func NewConnectorObjectBuilder() *ConnectorObjectBuilder {
	return &ConnectorObjectBuilder{objectClass: Account}
}

// SetObjectClass sets the object class.
func (b *ConnectorObjectBuilder) SetObjectClass(oc ObjectClass) *ConnectorObjectBuilder {
	b.objectClass = oc
	return b
}

// SetUid sets the uid.
func (b *ConnectorObjectBuilder) SetUid(uid Uid) *ConnectorObjectBuilder {
	b.uid = uid
	return b
}

// SetName sets the __NAME__ value.
func (b *ConnectorObjectBuilder) SetName(name string) *ConnectorObjectBuilder {
	b.name = name
	b.hasName = true
	return b
}

// AddAttributes adds attributes. __UID__ and __NAME__ set the uid and name.
// An attribute with the same name as an earlier one replaces it.
func (b *ConnectorObjectBuilder) AddAttributes(attrs ...Attribute) *ConnectorObjectBuilder {
	for _, a := range attrs {
		switch {
		case a.Is(UidAttr):
			b.uid = NewUid(a.StringValue())
		case a.Is(NameAttr):
			b.SetName(a.StringValue())
		default:
			b.attrs = append(Without(b.attrs, a.Name), a)
		}
	}
	return b
}

// AddAttribute is shorthand for AddAttributes(NewAttribute(name, values...)).
func (b *ConnectorObjectBuilder) AddAttribute(name string, values ...interface{}) *ConnectorObjectBuilder {
	return b.AddAttributes(NewAttribute(name, values...))
}

// Build returns the object. Uid and Name are mandatory.
func (b *ConnectorObjectBuilder) Build() (*ConnectorObject, error) {
	if b.uid.IsZero() {
		return nil, errors.New(errors.ErrorTypeValidation, "connector object requires a uid")
	}
	if !b.hasName || b.name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "connector object requires a name").
			WithDetail("uid", b.uid.Value)
	}
	if b.objectClass.IsZero() {
		return nil, errors.New(errors.ErrorTypeValidation, "connector object requires an object class")
	}

	attrs := make([]Attribute, 0, len(b.attrs)+2)
	attrs = append(attrs, UidAttribute(b.uid), NameAttribute(b.name))
	attrs = append(attrs, b.attrs...)
	return &ConnectorObject{
		objectClass: b.objectClass,
		uid:         b.uid,
		name:        b.name,
		attrs:       attrs,
	}, nil
}

// Rebuild returns a builder seeded with o, for derived objects such as
// normalized or trimmed copies.
func (o *ConnectorObject) Rebuild() *ConnectorObjectBuilder {
	b := NewConnectorObjectBuilder().SetObjectClass(o.objectClass).SetUid(o.uid).SetName(o.name)
	for _, a := range o.attrs {
		if a.Is(UidAttr) || a.Is(NameAttr) {
			continue
		}
		b.attrs = append(b.attrs, a)
	}
	return b
}

// objectView is the serialized form of a ConnectorObject.
type objectView struct {
	ObjectClass ObjectClass            `json:"objectClass"`
	Uid         Uid                    `json:"uid"`
	Name        string                 `json:"name"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// MarshalJSON renders the object with single values flattened. Secrets
// render masked.
func (o *ConnectorObject) MarshalJSON() ([]byte, error) {
	v := objectView{ObjectClass: o.objectClass, Uid: o.uid, Name: o.name}
	for _, a := range o.attrs {
		if a.Is(UidAttr) || a.Is(NameAttr) {
			continue
		}
		if v.Attributes == nil {
			v.Attributes = make(map[string]interface{})
		}
		if len(a.Values) == 1 {
			v.Attributes[a.Name] = a.Values[0]
		} else {
			v.Attributes[a.Name] = a.Values
		}
	}
	return marshalJSON(v)
}
