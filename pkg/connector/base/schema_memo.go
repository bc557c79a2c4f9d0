package base

import (
	"sync"

	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
)

// SchemaMemo caches the first successfully built schema. Failed builds are
// not cached so a later call can retry.
type SchemaMemo struct {
	mu     sync.Mutex
	schema *schema.Schema
}

// Get returns the cached schema, building it with build on first use.
func (m *SchemaMemo) Get(build func() (*schema.Schema, error)) (*schema.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.schema != nil {
		return m.schema, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	m.schema = s
	return s, nil
}

// Reset drops the cached schema.
func (m *SchemaMemo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = nil
}
