package objects

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Well-known operation option keys.
const (
	OptionAttributesToGet    = "attributesToGet"
	OptionPageSize           = "pageSize"
	OptionPagedResultsCookie = "pagedResultsCookie"
	OptionPagedResultsOffset = "pagedResultsOffset"
	OptionRunAsUser          = "runAsUser"
	OptionRunWithPassword    = "runWithPassword"
	OptionSortKeys           = "sortKeys"
	OptionScope              = "scope"
	OptionContainer          = "container"
)

// Search scopes.
const (
	ScopeObject   = "object"
	ScopeOneLevel = "onelevel"
	ScopeSubtree  = "subtree"
)

// SortKey orders search results by one attribute.
type SortKey struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

// OperationOptions is an immutable bag of optional operation parameters.
// Unknown keys are carried along and ignored by connectors that do not
// understand them. A nil *OperationOptions behaves like an empty one.
type OperationOptions struct {
	options map[string]interface{}
}

// Get returns the raw value of key.
func (o *OperationOptions) Get(key string) (interface{}, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.options[key]
	return v, ok
}

// Keys returns the option keys in sorted order.
func (o *OperationOptions) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, len(o.options))
	for k := range o.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AttributesToGet returns the requested attribute names, or nil when every
// default attribute should be returned.
func (o *OperationOptions) AttributesToGet() []string {
	v, ok := o.Get(OptionAttributesToGet)
	if !ok {
		return nil
	}
	names, _ := v.([]string)
	return append([]string(nil), names...)
}

// PageSize returns the requested page size; zero means no paging.
func (o *OperationOptions) PageSize() int {
	v, _ := o.Get(OptionPageSize)
	n, _ := v.(int)
	return n
}

// PagedResultsCookie returns the cookie of the page to continue from.
func (o *OperationOptions) PagedResultsCookie() string {
	v, _ := o.Get(OptionPagedResultsCookie)
	s, _ := v.(string)
	return s
}

// PagedResultsOffset returns the 1-based offset of the first result, or 0.
func (o *OperationOptions) PagedResultsOffset() int {
	v, _ := o.Get(OptionPagedResultsOffset)
	n, _ := v.(int)
	return n
}

// RunAsUser returns the account to impersonate, if any.
func (o *OperationOptions) RunAsUser() string {
	v, _ := o.Get(OptionRunAsUser)
	s, _ := v.(string)
	return s
}

// RunWithPassword returns the impersonation password, if any.
func (o *OperationOptions) RunWithPassword() *security.GuardedString {
	v, _ := o.Get(OptionRunWithPassword)
	g, _ := v.(*security.GuardedString)
	return g
}

// SortKeys returns the requested result ordering.
func (o *OperationOptions) SortKeys() []SortKey {
	v, _ := o.Get(OptionSortKeys)
	keys, _ := v.([]SortKey)
	return append([]SortKey(nil), keys...)
}

// Scope returns the search scope, if any.
func (o *OperationOptions) Scope() string {
	v, _ := o.Get(OptionScope)
	s, _ := v.(string)
	return s
}

// Container returns the search container, if any.
func (o *OperationOptions) Container() string {
	v, _ := o.Get(OptionContainer)
	s, _ := v.(string)
	return s
}

// Wants reports whether attribute name should be returned under the
// attributesToGet option. Without the option every attribute is wanted.
func (o *OperationOptions) Wants(name string) bool {
	names := o.AttributesToGet()
	if names == nil {
		return true
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// OperationOptionsBuilder assembles OperationOptions.
type OperationOptionsBuilder struct {
	options map[string]interface{}
}

// NewOperationOptionsBuilder starts an empty builder.
func NewOperationOptionsBuilder() *OperationOptionsBuilder {
	return &OperationOptionsBuilder{options: make(map[string]interface{})}
}

// FromOptions seeds a builder with a copy of o.
func FromOptions(o *OperationOptions) *OperationOptionsBuilder {
	b := NewOperationOptionsBuilder()
	if o != nil {
		for k, v := range o.options {
			b.options[k] = v
		}
	}
	return b
}

// SetOption sets an arbitrary key.
func (b *OperationOptionsBuilder) SetOption(key string, value interface{}) *OperationOptionsBuilder {
	b.options[key] = value
	return b
}

func (b *OperationOptionsBuilder) SetAttributesToGet(names ...string) *OperationOptionsBuilder {
	return b.SetOption(OptionAttributesToGet, append([]string(nil), names...))
}

func (b *OperationOptionsBuilder) SetPageSize(n int) *OperationOptionsBuilder {
	return b.SetOption(OptionPageSize, n)
}

func (b *OperationOptionsBuilder) SetPagedResultsCookie(cookie string) *OperationOptionsBuilder {
	return b.SetOption(OptionPagedResultsCookie, cookie)
}

func (b *OperationOptionsBuilder) SetPagedResultsOffset(offset int) *OperationOptionsBuilder {
	return b.SetOption(OptionPagedResultsOffset, offset)
}

func (b *OperationOptionsBuilder) SetRunAsUser(user string) *OperationOptionsBuilder {
	return b.SetOption(OptionRunAsUser, user)
}

func (b *OperationOptionsBuilder) SetRunWithPassword(pw *security.GuardedString) *OperationOptionsBuilder {
	return b.SetOption(OptionRunWithPassword, pw)
}

func (b *OperationOptionsBuilder) SetSortKeys(keys ...SortKey) *OperationOptionsBuilder {
	return b.SetOption(OptionSortKeys, append([]SortKey(nil), keys...))
}

func (b *OperationOptionsBuilder) SetScope(scope string) *OperationOptionsBuilder {
	return b.SetOption(OptionScope, scope)
}

func (b *OperationOptionsBuilder) SetContainer(container string) *OperationOptionsBuilder {
	return b.SetOption(OptionContainer, container)
}

// Build returns the options. The builder may be reused afterwards.
func (b *OperationOptionsBuilder) Build() *OperationOptions {
	m := make(map[string]interface{}, len(b.options))
	for k, v := range b.options {
		m[k] = v
	}
	return &OperationOptions{options: m}
}
