package objects

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	gojson "github.com/goccy/go-json"
)

// SyncToken is an opaque high-water mark for incremental sync. Only the
// connector that produced a token interprets its value.
type SyncToken struct {
	value interface{}
}

// NewSyncToken wraps value. Integer, float, string and time.Time values are
// comparable with Compare.
func NewSyncToken(value interface{}) *SyncToken {
	return &SyncToken{value: value}
}

// Value returns the wrapped value.
func (t *SyncToken) Value() interface{} {
	if t == nil {
		return nil
	}
	return t.value
}

// String implements fmt.Stringer.
func (t *SyncToken) String() string {
	if t == nil {
		return "<nil>"
	}
	if ts, ok := t.value.(time.Time); ok {
		return ts.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(t.value)
}

// Equals reports whether both tokens wrap equal values.
func (t *SyncToken) Equals(other *SyncToken) bool {
	if t == nil || other == nil {
		return t == other
	}
	c, ok := t.Compare(other)
	if ok {
		return c == 0
	}
	return reflect.DeepEqual(t.value, other.value)
}

// Compare orders t against other: -1, 0 or +1. ok is false when the values
// are of incomparable kinds.
func (t *SyncToken) Compare(other *SyncToken) (int, bool) {
	if t == nil || other == nil {
		return 0, false
	}

	if a, aok := toInt64(t.value); aok {
		if b, bok := toInt64(other.value); bok {
			return cmp(a < b, a > b), true
		}
	}
	if a, aok := toFloat64(t.value); aok {
		if b, bok := toFloat64(other.value); bok {
			return cmp(a < b, a > b), true
		}
	}
	switch a := t.value.(type) {
	case string:
		if b, ok := other.value.(string); ok {
			return strings.Compare(a, b), true
		}
	case time.Time:
		if b, ok := other.value.(time.Time); ok {
			return cmp(a.Before(b), a.After(b)), true
		}
	}
	return 0, false
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true //nolint:gosec // tokens stay far below MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true //nolint:gosec // tokens stay far below MaxInt64
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

type tokenView struct {
	Type  string            `json:"type"`
	Value gojson.RawMessage `json:"value"`
}

// MarshalJSON encodes the token with its kind so it decodes to the same
// Go type: {"type":"int","value":42}.
func (t *SyncToken) MarshalJSON() ([]byte, error) {
	var kind string
	switch t.value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		kind = "int"
	case float32, float64:
		kind = "float"
	case string:
		kind = "string"
	case time.Time:
		kind = "time"
	default:
		kind = "any"
	}
	raw, err := gojson.Marshal(t.value)
	if err != nil {
		return nil, err
	}
	return gojson.Marshal(tokenView{Type: kind, Value: raw})
}

// UnmarshalJSON decodes a token written by MarshalJSON.
func (t *SyncToken) UnmarshalJSON(data []byte) error {
	var view tokenView
	if err := gojson.Unmarshal(data, &view); err != nil {
		return err
	}
	switch view.Type {
	case "int":
		var v int64
		if err := gojson.Unmarshal(view.Value, &v); err != nil {
			return err
		}
		t.value = v
	case "float":
		var v float64
		if err := gojson.Unmarshal(view.Value, &v); err != nil {
			return err
		}
		t.value = v
	case "string":
		var v string
		if err := gojson.Unmarshal(view.Value, &v); err != nil {
			return err
		}
		t.value = v
	case "time":
		var v time.Time
		if err := gojson.Unmarshal(view.Value, &v); err != nil {
			return err
		}
		t.value = v
	default:
		var v interface{}
		if err := gojson.Unmarshal(view.Value, &v); err != nil {
			return err
		}
		t.value = v
	}
	return nil
}

// SyncDeltaType is the kind of change a delta describes.
type SyncDeltaType string

const (
	SyncDeltaCreate         SyncDeltaType = "CREATE"
	SyncDeltaUpdate         SyncDeltaType = "UPDATE"
	SyncDeltaCreateOrUpdate SyncDeltaType = "CREATE_OR_UPDATE"
	SyncDeltaDelete         SyncDeltaType = "DELETE"
)

// SyncDelta is one change reported by a sync.
type SyncDelta struct {
	Token       *SyncToken       `json:"token"`
	DeltaType   SyncDeltaType    `json:"deltaType"`
	Uid         Uid              `json:"uid"`
	PreviousUid *Uid             `json:"previousUid,omitempty"`
	ObjectClass ObjectClass      `json:"objectClass"`
	Object      *ConnectorObject `json:"object,omitempty"`
}

// SyncDeltaBuilder assembles a SyncDelta.
type SyncDeltaBuilder struct {
	delta SyncDelta
}

// NewSyncDeltaBuilder starts an empty builder.
func NewSyncDeltaBuilder() *SyncDeltaBuilder {
	return &SyncDeltaBuilder{}
}

// FromDelta seeds a builder with every field of d.
func FromDelta(d *SyncDelta) *SyncDeltaBuilder {
	return &SyncDeltaBuilder{delta: *d}
}

func (b *SyncDeltaBuilder) SetToken(t *SyncToken) *SyncDeltaBuilder {
	b.delta.Token = t
	return b
}

func (b *SyncDeltaBuilder) SetDeltaType(dt SyncDeltaType) *SyncDeltaBuilder {
	b.delta.DeltaType = dt
	return b
}

func (b *SyncDeltaBuilder) SetUid(uid Uid) *SyncDeltaBuilder {
	b.delta.Uid = uid
	return b
}

func (b *SyncDeltaBuilder) SetPreviousUid(uid Uid) *SyncDeltaBuilder {
	b.delta.PreviousUid = &uid
	return b
}

func (b *SyncDeltaBuilder) SetObjectClass(oc ObjectClass) *SyncDeltaBuilder {
	b.delta.ObjectClass = oc
	return b
}

// SetObject sets the object and, unless already set, the uid and object class.
func (b *SyncDeltaBuilder) SetObject(obj *ConnectorObject) *SyncDeltaBuilder {
	b.delta.Object = obj
	if obj != nil {
		if b.delta.Uid.IsZero() {
			b.delta.Uid = obj.Uid()
		}
		if b.delta.ObjectClass.IsZero() {
			b.delta.ObjectClass = obj.ObjectClass()
		}
	}
	return b
}

// Build validates and returns the delta.
func (b *SyncDeltaBuilder) Build() (*SyncDelta, error) {
	d := b.delta
	if d.Token == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "sync delta requires a token")
	}
	switch d.DeltaType {
	case SyncDeltaCreate, SyncDeltaUpdate, SyncDeltaCreateOrUpdate, SyncDeltaDelete:
	case "":
		return nil, errors.New(errors.ErrorTypeValidation, "sync delta requires a delta type")
	default:
		return nil, errors.New(errors.ErrorTypeValidation, "unknown sync delta type").
			WithDetail("delta_type", string(d.DeltaType))
	}
	if d.Uid.IsZero() {
		return nil, errors.New(errors.ErrorTypeValidation, "sync delta requires a uid")
	}
	if d.DeltaType != SyncDeltaDelete && d.Object == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "sync delta requires an object unless it is a delete").
			WithDetail("delta_type", string(d.DeltaType))
	}
	if d.Object != nil && !d.Object.Uid().Equals(d.Uid) {
		return nil, errors.New(errors.ErrorTypeValidation, "sync delta uid does not match object uid").
			WithDetail("uid", d.Uid.Value).
			WithDetail("object_uid", d.Object.Uid().Value)
	}
	if d.Object == nil && d.ObjectClass.IsZero() {
		return nil, errors.New(errors.ErrorTypeValidation, "sync delta requires an object class when no object is given")
	}
	return &d, nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}
