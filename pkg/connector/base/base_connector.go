// Package base provides the BaseConnector that connector types embed. It
// owns the instance lifecycle state machine, the configuration handed to
// Init, release hooks run on Dispose and the memoized schema.
//
// # Usage
//
//	type Connector struct {
//	    *base.BaseConnector
//	    cfg *Configuration
//	}
//
//	func New() core.Connector {
//	    return &Connector{BaseConnector: base.NewBaseConnector("sample")}
//	}
//
//	func (c *Connector) Init(cfg core.Configuration) error {
//	    if err := c.BaseConnector.Init(cfg); err != nil {
//	        return err
//	    }
//	    c.cfg = cfg.(*Configuration)
//	    return nil
//	}
//
// # Lifecycle
//
// Uninitialized -> Initialized (Init) -> Active (first checkout from the
// pool) -> Disposed (Dispose). Operations call EnsureUsable first; it fails
// with ErrorTypeIllegalState before Init and after Dispose.
package base

import (
	"fmt"
	"sync"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/logger"
	"go.uber.org/zap"
)

// State is the lifecycle state of a connector instance.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateActive
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BaseConnector implements the lifecycle half of core.Connector.
type BaseConnector struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	config   core.Configuration
	releases []func()

	schema SchemaMemo
}

// NewBaseConnector creates the base for a connector type called name.
func NewBaseConnector(name string) *BaseConnector {
	return &BaseConnector{
		name:   name,
		logger: logger.Get().With(zap.String("connector", name)),
	}
}

// Name returns the connector type name.
func (bc *BaseConnector) Name() string { return bc.name }

// Logger returns the connector's logger.
func (bc *BaseConnector) Logger() *zap.Logger { return bc.logger }

// State returns the current lifecycle state.
func (bc *BaseConnector) State() State {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.state
}

// Init stores cfg and moves the instance to Initialized. It may be called
// once; a second call or a call after Dispose is an illegal state.
func (bc *BaseConnector) Init(cfg core.Configuration) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.state != StateUninitialized {
		return errors.New(errors.ErrorTypeIllegalState, fmt.Sprintf("init called on %s connector", bc.state)).
			WithDetail("connector", bc.name).
			WithDetail("state", bc.state.String())
	}
	bc.config = cfg
	bc.state = StateInitialized
	bc.logger.Debug("connector initialized")
	return nil
}

// Activate moves an initialized instance to Active. Activating an active
// instance is a no-op.
func (bc *BaseConnector) Activate() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	switch bc.state {
	case StateInitialized:
		bc.state = StateActive
		return nil
	case StateActive:
		return nil
	default:
		return errors.New(errors.ErrorTypeIllegalState, fmt.Sprintf("cannot activate %s connector", bc.state)).
			WithDetail("connector", bc.name).
			WithDetail("state", bc.state.String())
	}
}

// EnsureUsable fails unless the instance is initialized and not disposed.
func (bc *BaseConnector) EnsureUsable() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.state == StateInitialized || bc.state == StateActive {
		return nil
	}
	return errors.New(errors.ErrorTypeIllegalState, fmt.Sprintf("connector is %s", bc.state)).
		WithDetail("connector", bc.name).
		WithDetail("state", bc.state.String())
}

// Configuration returns the configuration passed to Init, or nil.
func (bc *BaseConnector) Configuration() core.Configuration {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.config
}

// OnDispose registers fn to run on Dispose. Hooks run in reverse order of
// registration.
func (bc *BaseConnector) OnDispose(fn func()) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.releases = append(bc.releases, fn)
}

// Dispose releases the instance. It is idempotent and safe before Init.
func (bc *BaseConnector) Dispose() {
	bc.mu.Lock()
	if bc.state == StateDisposed {
		bc.mu.Unlock()
		return
	}
	releases := bc.releases
	bc.releases = nil
	bc.config = nil
	bc.state = StateDisposed
	bc.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
	bc.schema.Reset()
	bc.logger.Debug("connector disposed")
}

// SchemaMemo returns the instance's schema cache.
func (bc *BaseConnector) SchemaMemo() *SchemaMemo { return &bc.schema }
