// Package facade is the caller-facing entry point to a connector type. A
// Facade owns the instance pool for one configured connector and applies
// the framework guarantees around every call: manifest and object class
// gating, attribute normalization, input validation, search result
// de-duplication and paging reports, and exactly-once sync delivery.
package facade

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/connector/base"
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/registry"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/logger"
	"github.com/ajitpratap0/idconnect/pkg/metrics"
	"github.com/ajitpratap0/idconnect/pkg/observability"
	"github.com/ajitpratap0/idconnect/pkg/pool"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Facade dispatches operations to pooled instances of one connector type.
type Facade struct {
	info      registry.Info
	cfg       core.Configuration
	framework *config.FrameworkConfig

	pool    *pool.Pool
	limiter *rate.Limiter
	logger  *zap.Logger

	schemaMu sync.Mutex
	schema   *schema.Schema

	closed atomic.Bool
}

// New creates a facade for entry configured with cfg. A nil framework
// configuration uses the defaults.
func New(entry *registry.Entry, cfg core.Configuration, framework *config.FrameworkConfig) (*Facade, error) {
	if entry == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "connector entry is required")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "connector configuration is required").
			WithDetail("connector", entry.Info.Name)
	}
	if framework == nil {
		framework = config.NewFrameworkConfig()
	}
	if err := framework.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid framework configuration").
			WithDetail("connector", entry.Info.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Facade{
		info:      entry.Info,
		cfg:       cfg,
		framework: framework,
		logger:    logger.Get().With(zap.String("component", "facade"), zap.String("connector", entry.Info.Name)),
	}
	if framework.Reliability.IsRateLimited() {
		f.limiter = rate.NewLimiter(rate.Limit(framework.Reliability.RateLimitPerSec), framework.Reliability.Burst())
	}

	factory := func(ctx context.Context) (core.PoolableConnector, error) {
		c, ok := entry.New().(core.PoolableConnector)
		if !ok {
			return nil, errors.New(errors.ErrorTypeInternal, "connector is not poolable").
				WithDetail("connector", entry.Info.Name)
		}
		if err := c.Init(cfg); err != nil {
			c.Dispose()
			return nil, err
		}
		return c, nil
	}

	p, err := pool.New(entry.Info.Name, factory, framework.Pool, base.RetryPolicyFromConfig(framework.Reliability))
	if err != nil {
		return nil, err
	}
	f.pool = p

	f.logger.Debug("facade created",
		zap.Stringer("operations", f.info.Operations),
		zap.Int("max_objects", framework.Pool.MaxObjects))
	return f, nil
}

// Open creates a facade for the connector type registered as name.
func Open(name string, cfg core.Configuration, framework *config.FrameworkConfig) (*Facade, error) {
	entry, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(entry, cfg, framework)
}

// FromFile loads a connector file, resolves its confidential properties
// with resolver and opens a facade for it.
func FromFile(ctx context.Context, path string, resolver *security.Resolver) (*Facade, error) {
	cf, err := config.LoadConnectorFile(path)
	if err != nil {
		return nil, err
	}
	return FromConnectorFile(ctx, cf, resolver)
}

// FromConnectorFile opens a facade for an already loaded connector file.
func FromConnectorFile(ctx context.Context, cf *config.ConnectorFile, resolver *security.Resolver) (*Facade, error) {
	entry, err := registry.Lookup(cf.Connector)
	if err != nil {
		return nil, err
	}
	cfg := entry.NewConfig()
	if err := config.DecodeProperties(ctx, cf.Properties, cfg, cfg.Confidential(), resolver); err != nil {
		return nil, err
	}
	return New(entry, cfg, cf.Framework)
}

// Info describes the connector type behind the facade.
func (f *Facade) Info() registry.Info { return f.info }

// Configuration returns the connector configuration.
func (f *Facade) Configuration() core.Configuration { return f.cfg }

// Stats returns the pool statistics.
func (f *Facade) Stats() pool.Stats { return f.pool.Stats() }

// Supports reports whether the connector declares op.
func (f *Facade) Supports(op core.Operation) bool { return f.info.Operations.Has(op) }

// Validate checks the connector configuration.
func (f *Facade) Validate() error { return f.cfg.Validate() }

// Close shuts down the pool. It is safe to call more than once.
func (f *Facade) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	f.pool.Shutdown()
	f.logger.Debug("facade closed")
}

// Schema returns the connector schema, fetched once from an instance.
func (f *Facade) Schema(ctx context.Context) (*schema.Schema, error) {
	if err := f.checkOperation(core.OpSchema); err != nil {
		return nil, err
	}
	return f.loadSchema(ctx)
}

// Test checks the configuration against the live resource.
func (f *Facade) Test(ctx context.Context) error {
	return f.invoke(ctx, call{op: core.OpTest}, func(ctx context.Context, conn core.PoolableConnector) error {
		t, err := as[core.TestOp](conn, core.OpTest)
		if err != nil {
			return err
		}
		if err := t.Test(ctx); err != nil {
			return errors.Wrap(err, errors.TypeOf(err), "connector test failed").
				WithDetail("connector", f.info.Name)
		}
		return nil
	})
}

// call describes one dispatched operation.
type call struct {
	op       core.Operation
	oc       objects.ObjectClass
	hasClass bool
	// validate runs after the object class check and before an instance is
	// borrowed. info is nil when the connector has no schema.
	validate func(info *schema.ObjectClassInfo) error
}

func classCall(op core.Operation, oc objects.ObjectClass) call {
	return call{op: op, oc: oc, hasClass: true}
}

// invoke gates, throttles and instruments one operation, then runs fn on a
// borrowed instance.
func (f *Facade) invoke(ctx context.Context, c call, fn func(ctx context.Context, conn core.PoolableConnector) error) (err error) {
	if err := f.checkOperation(c.op); err != nil {
		return err
	}

	var info *schema.ObjectClassInfo
	if c.hasClass {
		if info, err = f.checkObjectClass(ctx, c.op, c.oc); err != nil {
			return err
		}
	}
	if c.validate != nil {
		if err := c.validate(info); err != nil {
			return err
		}
	}

	ctx = logger.ContextWith(ctx, logger.ConnectorKey, f.info.Name)
	ctx = logger.ContextWith(ctx, logger.OperationKey, string(c.op))

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "rate limit wait cancelled").
				WithDetail("operation", string(c.op))
		}
	}

	ctx, span := observability.StartOperationSpan(ctx, f.info.Name, string(c.op), c.oc.Name())
	timer := metrics.NewTimer()
	defer func() {
		observability.EndSpan(span, err)
		if f.framework.Observability.EnableMetrics {
			metrics.RecordOperation(f.info.Name, string(c.op), c.oc.Name(), timer.Elapsed(), err)
		}
	}()

	inst, err := f.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	ctx = logger.ContextWith(ctx, logger.InstanceIDKey, inst.ID())

	err = fn(ctx, inst.Connector())
	if err != nil && errors.HasType(err, errors.ErrorTypeConnection) {
		f.pool.Invalidate(inst)
	} else {
		f.pool.Return(inst)
	}

	log := logger.WithContext(ctx)
	if err != nil {
		log.Debug("operation failed", zap.Duration("duration", timer.Elapsed()), zap.Error(err))
	} else {
		log.Debug("operation completed", zap.Duration("duration", timer.Elapsed()))
	}
	return err
}

func (f *Facade) checkOperation(op core.Operation) error {
	if f.closed.Load() {
		return errors.New(errors.ErrorTypeIllegalState, "facade is closed").
			WithDetail("connector", f.info.Name)
	}
	if !f.info.Operations.Has(op) {
		return errors.New(errors.ErrorTypeUnsupportedOperation, fmt.Sprintf("%s does not support %s", f.info.Name, op)).
			WithDetail("connector", f.info.Name).
			WithDetail("operation", string(op))
	}
	return nil
}

// checkObjectClass rejects classes the schema does not allow for op. A
// connector without a schema accepts every class.
func (f *Facade) checkObjectClass(ctx context.Context, op core.Operation, oc objects.ObjectClass) (*schema.ObjectClassInfo, error) {
	if oc.IsZero() {
		return nil, errors.New(errors.ErrorTypeValidation, "object class is required").
			WithDetail("operation", string(op))
	}
	if !f.info.Operations.Has(core.OpSchema) {
		return nil, nil
	}
	s, err := f.loadSchema(ctx)
	if err != nil {
		return nil, err
	}
	if !s.SupportsObjectClass(op, oc) {
		f.logger.Warn("object class not supported",
			zap.String("operation", string(op)),
			zap.String("object_class", oc.Name()))
		return nil, errors.New(errors.ErrorTypeUnsupportedObjectClass, fmt.Sprintf("%s is not supported for %s", oc, op)).
			WithDetail("operation", string(op)).
			WithDetail("object_class", oc.Name())
	}
	if info, ok := s.FindObjectClassInfo(oc); ok {
		return &info, nil
	}
	return nil, nil
}

// loadSchema fetches the schema once. Failures are not cached.
func (f *Facade) loadSchema(ctx context.Context) (*schema.Schema, error) {
	f.schemaMu.Lock()
	defer f.schemaMu.Unlock()
	if f.schema != nil {
		return f.schema, nil
	}

	inst, err := f.pool.Borrow(ctx)
	if err != nil {
		return nil, err
	}
	defer f.pool.Return(inst)

	so, err := as[core.SchemaOp](inst.Connector(), core.OpSchema)
	if err != nil {
		return nil, err
	}
	s, err := so.Schema(ctx)
	if err != nil {
		return nil, err
	}
	f.schema = s
	return s, nil
}

// as asserts that conn implements the operation interface T.
func as[T any](conn core.PoolableConnector, op core.Operation) (T, error) {
	impl, ok := conn.(T)
	if !ok {
		var zero T
		return zero, errors.New(errors.ErrorTypeInternal, fmt.Sprintf("connector %T does not implement %s", conn, op)).
			WithDetail("operation", string(op))
	}
	return impl, nil
}
