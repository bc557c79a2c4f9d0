package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// FieldDescriptor describes one property of a connector configuration of
// type T. Descriptors are declared as a static list next to the struct; the
// validator reads values through Get and never inspects the struct itself.
type FieldDescriptor[T any] struct {
	Name         string
	Required     bool
	NonBlank     bool
	Confidential bool
	HelpKey      string
	DisplayKey   string
	Order        int
	Get          func(cfg *T) interface{}
	Check        func(value interface{}) error
}

// FieldInfo is the type-erased, printable view of a descriptor.
type FieldInfo struct {
	Name         string `json:"name" yaml:"name"`
	Required     bool   `json:"required" yaml:"required"`
	Confidential bool   `json:"confidential" yaml:"confidential"`
	HelpKey      string `json:"help_key" yaml:"help_key"`
	DisplayKey   string `json:"display_key" yaml:"display_key"`
	Order        int    `json:"order" yaml:"order"`
	Value        string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Descriptors is the ordered field list of a configuration type.
type Descriptors[T any] []FieldDescriptor[T]

func (d Descriptors[T]) sorted() Descriptors[T] {
	out := make(Descriptors[T], len(d))
	copy(out, d)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Validate checks cfg field by field in Order and returns the first
// violation as an ErrorTypeConfig error carrying the field name.
func (d Descriptors[T]) Validate(cfg *T) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is nil")
	}
	for _, f := range d.sorted() {
		var value interface{}
		if f.Get != nil {
			value = f.Get(cfg)
		}
		if f.Required && isMissing(value) {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s is required", f.Name)).
				WithDetail("field", f.Name)
		}
		if f.NonBlank {
			if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
				return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s must not be blank", f.Name)).
					WithDetail("field", f.Name)
			}
		}
		if f.Check != nil {
			if err := f.Check(value); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("%s is invalid", f.Name)).
					WithDetail("field", f.Name)
			}
		}
	}
	return nil
}

// Describe returns the printable field list. Confidential values are masked
// and nil cfg yields descriptors without values.
func (d Descriptors[T]) Describe(cfg *T) []FieldInfo {
	sorted := d.sorted()
	out := make([]FieldInfo, 0, len(sorted))
	for _, f := range sorted {
		info := FieldInfo{
			Name:         f.Name,
			Required:     f.Required,
			Confidential: f.Confidential,
			HelpKey:      f.HelpKey,
			DisplayKey:   f.DisplayKey,
			Order:        f.Order,
		}
		if cfg != nil && f.Get != nil {
			info.Value = render(f.Get(cfg), f.Confidential)
		}
		out = append(out, info)
	}
	return out
}

// Confidential returns the names of the confidential fields.
func (d Descriptors[T]) Confidential() []string {
	var names []string
	for _, f := range d {
		if f.Confidential {
			names = append(names, f.Name)
		}
	}
	return names
}

func isMissing(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case *security.GuardedString:
		return v == nil
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func render(value interface{}, confidential bool) string {
	if confidential {
		if isMissing(value) {
			return ""
		}
		return security.Mask
	}
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
