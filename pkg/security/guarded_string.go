// Package security holds credential types that can be used by connectors but
// never printed, logged or serialized in clear text.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"sync"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Mask is what a GuardedString renders as everywhere it could leak.
const Mask = "****"

// GuardedString is an opaque secret. The clear value is kept XOR-masked in
// memory and can only be read through Access, which hands out a temporary
// copy that is zeroed when the callback returns.
//
// GuardedString has no String-like accessor for the clear value: fmt, JSON,
// YAML and zap all render Mask.
type GuardedString struct {
	mu       sync.Mutex
	key      []byte
	data     []byte
	disposed bool
}

// NewGuardedString copies clear into a new secret. The caller keeps
// ownership of clear and should zero it when done.
func NewGuardedString(clear []byte) *GuardedString {
	g := &GuardedString{}
	g.set(clear)
	return g
}

// GuardString wraps a clear-text string, typically read from configuration.
func GuardString(clear string) *GuardedString {
	return NewGuardedString([]byte(clear))
}

func (g *GuardedString) set(clear []byte) {
	g.key = make([]byte, len(clear))
	if _, err := rand.Read(g.key); err != nil {
		panic("security: crypto/rand unavailable: " + err.Error())
	}
	g.data = make([]byte, len(clear))
	for i := range clear {
		g.data[i] = clear[i] ^ g.key[i]
	}
}

// Access reveals the secret to fn. The slice passed to fn is zeroed after fn
// returns and must not be retained.
func (g *GuardedString) Access(fn func(clear []byte)) error {
	if g == nil {
		return errors.New(errors.ErrorTypeIllegalState, "guarded string is nil")
	}
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return errors.New(errors.ErrorTypeIllegalState, "guarded string has been disposed")
	}
	clear := make([]byte, len(g.data))
	for i := range g.data {
		clear[i] = g.data[i] ^ g.key[i]
	}
	g.mu.Unlock()

	defer zero(clear)
	fn(clear)
	return nil
}

// Equals compares two secrets in constant time.
func (g *GuardedString) Equals(other *GuardedString) bool {
	if g == nil || other == nil {
		return g == other
	}
	var equal bool
	_ = g.Access(func(a []byte) {
		_ = other.Access(func(b []byte) {
			equal = subtle.ConstantTimeCompare(a, b) == 1
		})
	})
	return equal
}

// IsEmpty reports whether the secret holds no bytes.
func (g *GuardedString) IsEmpty() bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.data) == 0
}

// Copy returns an independent secret with the same value.
func (g *GuardedString) Copy() *GuardedString {
	var c *GuardedString
	_ = g.Access(func(clear []byte) {
		c = NewGuardedString(clear)
	})
	return c
}

// Dispose zeroes the secret. Further Access calls fail.
func (g *GuardedString) Dispose() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	zero(g.data)
	zero(g.key)
	g.disposed = true
}

// String implements fmt.Stringer and never reveals the value.
func (g *GuardedString) String() string {
	return Mask
}

// GoString implements fmt.GoStringer for %#v.
func (g *GuardedString) GoString() string {
	return "security.GuardedString{" + Mask + "}"
}

// MarshalJSON renders the mask.
func (g *GuardedString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Mask + `"`), nil
}

// UnmarshalJSON accepts a clear-text JSON string.
func (g *GuardedString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "guarded string must be a JSON string")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set([]byte(raw))
	g.disposed = false
	return nil
}

// MarshalYAML renders the mask.
func (g *GuardedString) MarshalYAML() (interface{}, error) {
	return Mask, nil
}

// UnmarshalYAML accepts a clear-text scalar.
func (g *GuardedString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.New(errors.ErrorTypeConfig, "guarded string must be a scalar")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set([]byte(node.Value))
	g.disposed = false
	return nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (g *GuardedString) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("value", Mask)
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
