package objects

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Special attribute names. Names wrapped in double underscores are reserved
// for the framework.
const (
	NameAttr        = "__NAME__"
	UidAttr         = "__UID__"
	DescriptionAttr = "__DESCRIPTION__"
	GroupsAttr      = "__GROUPS__"

	// Operational attributes
	PasswordAttr               = "__PASSWORD__"
	CurrentPasswordAttr        = "__CURRENT_PASSWORD__"
	EnableAttr                 = "__ENABLE__"
	EnableDateAttr             = "__ENABLE_DATE__"
	DisableDateAttr            = "__DISABLE_DATE__"
	LockOutAttr                = "__LOCK_OUT__"
	PasswordExpirationDateAttr = "__PASSWORD_EXPIRATION_DATE__"
	PasswordExpiredAttr        = "__PASSWORD_EXPIRED__"
	ResetPasswordAttr          = "__RESET_PASSWORD__"
)

// MembersAttr lists the members of a group. It is an ordinary attribute,
// not a reserved one.
const MembersAttr = "members"

var operational = map[string]struct{}{
	PasswordAttr:               {},
	CurrentPasswordAttr:        {},
	EnableAttr:                 {},
	EnableDateAttr:             {},
	DisableDateAttr:            {},
	LockOutAttr:                {},
	PasswordExpirationDateAttr: {},
	PasswordExpiredAttr:        {},
	ResetPasswordAttr:          {},
}

// IsOperational reports whether name is an operational attribute such as
// __PASSWORD__ or __ENABLE__.
func IsOperational(name string) bool {
	_, ok := operational[strings.ToUpper(name)]
	return ok
}

// IsSpecial reports whether name is reserved by the framework.
func IsSpecial(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Attribute is a named, ordered list of values. A nil Values slice means the
// attribute carries no value at all, which differs from an empty list.
type Attribute struct {
	Name   string        `json:"name"`
	Values []interface{} `json:"values"`
}

// NewAttribute builds an attribute from its values.
func NewAttribute(name string, values ...interface{}) Attribute {
	if values == nil {
		return Attribute{Name: name}
	}
	cp := make([]interface{}, len(values))
	copy(cp, values)
	return Attribute{Name: name, Values: cp}
}

// NameAttribute builds the __NAME__ attribute.
func NameAttribute(name string) Attribute { return NewAttribute(NameAttr, name) }

// UidAttribute builds the __UID__ attribute.
func UidAttribute(uid Uid) Attribute { return NewAttribute(UidAttr, uid.Value) }

// PasswordAttribute builds the __PASSWORD__ attribute.
func PasswordAttribute(pw *security.GuardedString) Attribute {
	return NewAttribute(PasswordAttr, pw)
}

// Is reports whether the attribute is called name, ignoring case.
func (a Attribute) Is(name string) bool { return strings.EqualFold(a.Name, name) }

// SingleValue returns the only value of the attribute. It fails when the
// attribute is multivalued.
func (a Attribute) SingleValue() (interface{}, error) {
	switch len(a.Values) {
	case 0:
		return nil, nil
	case 1:
		return a.Values[0], nil
	default:
		return nil, fmt.Errorf("attribute %s has %d values, expected one", a.Name, len(a.Values))
	}
}

// StringValue returns the single value rendered as a string, or "" when absent.
func (a Attribute) StringValue() string {
	v, err := a.SingleValue()
	if err != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// BoolValue returns the single value as a bool and whether it was one.
func (a Attribute) BoolValue() (bool, bool) {
	v, err := a.SingleValue()
	if err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GuardedValue returns the single value as a secret, if it is one.
func (a Attribute) GuardedValue() *security.GuardedString {
	v, err := a.SingleValue()
	if err != nil {
		return nil
	}
	g, _ := v.(*security.GuardedString)
	return g
}

// HasNilValue reports whether any value is nil or the attribute carries none.
func (a Attribute) HasNilValue() bool {
	if a.Values == nil {
		return true
	}
	for _, v := range a.Values {
		if v == nil {
			return true
		}
	}
	return false
}

// Find returns the attribute called name, ignoring case.
func Find(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Is(name) {
			return a, true
		}
	}
	return Attribute{}, false
}

// Without returns attrs minus the ones whose names are listed.
func Without(attrs []Attribute, names ...string) []Attribute {
	out := make([]Attribute, 0, len(attrs))
outer:
	for _, a := range attrs {
		for _, n := range names {
			if a.Is(n) {
				continue outer
			}
		}
		out = append(out, a)
	}
	return out
}

// NameFrom returns the __NAME__ value from attrs, or "" when absent.
func NameFrom(attrs []Attribute) string {
	a, ok := Find(attrs, NameAttr)
	if !ok {
		return ""
	}
	return a.StringValue()
}

// UidFrom returns the __UID__ value from attrs.
func UidFrom(attrs []Attribute) (Uid, bool) {
	a, ok := Find(attrs, UidAttr)
	if !ok || a.StringValue() == "" {
		return Uid{}, false
	}
	return NewUid(a.StringValue()), true
}

// ToMap indexes attrs by name. Later duplicates win.
func ToMap(attrs []Attribute) map[string]Attribute {
	m := make(map[string]Attribute, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a
	}
	return m
}
