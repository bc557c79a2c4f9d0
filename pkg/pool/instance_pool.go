package pool

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/connector/base"
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/logger"
	"github.com/ajitpratap0/idconnect/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Factory creates and initializes one connector instance.
type Factory func(ctx context.Context) (core.PoolableConnector, error)

// activator is implemented by connectors embedding base.BaseConnector.
type activator interface {
	Activate() error
}

// Instance is a pooled connector instance.
type Instance struct {
	id        string
	conn      core.PoolableConnector
	createdAt time.Time
	lastUsed  time.Time
	uses      int64
	borrowed  atomic.Bool
}

// ID returns the instance id used in logs.
func (i *Instance) ID() string { return i.id }

// Connector returns the underlying connector.
func (i *Instance) Connector() core.PoolableConnector { return i.conn }

// CreatedAt returns when the instance was created.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// Stats holds pool counters
type Stats struct {
	Active           int   `json:"active"`
	Idle             int   `json:"idle"`
	TotalCreated     int64 `json:"total_created"`
	TotalReused      int64 `json:"total_reused"`
	TotalEvicted     int64 `json:"total_evicted"`
	TotalInvalidated int64 `json:"total_invalidated"`
}

// Pool manages connector instances for one configuration
type Pool struct {
	name    string
	factory Factory
	config  config.PoolConfig
	retry   *base.RetryPolicy
	logger  *zap.Logger

	sem *semaphore.Weighted

	mu   sync.Mutex
	idle []*Instance // most recently used last

	active           int64
	totalCreated     int64
	totalReused      int64
	totalEvicted     int64
	totalInvalidated int64

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a pool for connector type name. retry governs instance
// creation; nil disables retries. The evictor starts when
// cfg.EvictionInterval is positive.
func New(name string, factory Factory, cfg config.PoolConfig, retry *base.RetryPolicy) (*Pool, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "pool factory is required")
	}
	if retry == nil {
		retry = base.NoRetryPolicy()
	}

	limit := int64(cfg.MaxObjects)
	if limit <= 0 {
		limit = math.MaxInt64
	}

	p := &Pool{
		name:    name,
		factory: factory,
		config:  cfg,
		retry:   retry,
		logger:  logger.Get().With(zap.String("component", "instance_pool"), zap.String("connector", name)),
		sem:     semaphore.NewWeighted(limit),
		idle:    make([]*Instance, 0, max(cfg.MaxIdle, 0)),
		stopCh:  make(chan struct{}),
	}

	if cfg.EvictionInterval > 0 {
		p.wg.Add(1)
		go p.evictLoop()
	}

	return p, nil
}

// Borrow checks out a live instance.
func (p *Pool) Borrow(ctx context.Context) (*Instance, error) {
	if p.closed.Load() {
		return nil, p.closedError()
	}

	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, p.closedError()
	}

	for {
		inst := p.popIdle()
		if inst == nil {
			break
		}
		if err := p.validate(ctx, inst); err != nil {
			p.logger.Warn("idle instance failed liveness check",
				zap.String("instance_id", inst.id),
				zap.Error(err))
			p.destroy(inst, metrics.PoolEventEvicted)
			atomic.AddInt64(&p.totalEvicted, 1)
			continue
		}
		atomic.AddInt64(&p.totalReused, 1)
		metrics.RecordPoolEvent(p.name, metrics.PoolEventReused)
		return p.checkout(inst), nil
	}

	inst, err := p.create(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	if err := p.validate(ctx, inst); err != nil {
		p.destroy(inst, metrics.PoolEventInvalidated)
		p.sem.Release(1)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "new connector instance failed liveness check").
			WithDetail("connector", p.name)
	}
	return p.checkout(inst), nil
}

// Return hands a borrowed instance back for reuse. Instances beyond MaxIdle,
// and all instances after Shutdown, are disposed.
func (p *Pool) Return(inst *Instance) {
	if inst == nil || !inst.borrowed.CompareAndSwap(true, false) {
		return
	}
	atomic.AddInt64(&p.active, -1)
	defer p.sem.Release(1)

	inst.lastUsed = time.Now()

	// closed is read under mu so Shutdown cannot drain idle between the
	// check and the append.
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		p.destroy(inst, "")
		p.publish()
		return
	}
	if len(p.idle) >= p.config.MaxIdle {
		p.mu.Unlock()
		p.destroy(inst, metrics.PoolEventEvicted)
		atomic.AddInt64(&p.totalEvicted, 1)
		p.publish()
		return
	}
	p.idle = append(p.idle, inst)
	p.mu.Unlock()
	p.publish()
}

// Invalidate disposes a borrowed instance instead of returning it.
func (p *Pool) Invalidate(inst *Instance) {
	if inst == nil || !inst.borrowed.CompareAndSwap(true, false) {
		return
	}
	atomic.AddInt64(&p.active, -1)
	atomic.AddInt64(&p.totalInvalidated, 1)
	p.destroy(inst, metrics.PoolEventInvalidated)
	p.sem.Release(1)
	p.publish()
}

// Stats returns current pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()

	return Stats{
		Active:           int(atomic.LoadInt64(&p.active)),
		Idle:             idle,
		TotalCreated:     atomic.LoadInt64(&p.totalCreated),
		TotalReused:      atomic.LoadInt64(&p.totalReused),
		TotalEvicted:     atomic.LoadInt64(&p.totalEvicted),
		TotalInvalidated: atomic.LoadInt64(&p.totalInvalidated),
	}
}

// Shutdown stops the evictor and disposes idle instances. Borrowed instances
// are disposed when returned. Subsequent calls are no-ops.
func (p *Pool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, inst := range idle {
		p.destroy(inst, "")
	}
	p.publish()
	p.logger.Debug("pool shut down", zap.Int("disposed", len(idle)))
}

func (p *Pool) acquire(ctx context.Context) error {
	waitCtx := ctx
	if p.config.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.config.MaxWait)
		defer cancel()
	}

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		metrics.RecordPoolEvent(p.name, metrics.PoolEventTimeout)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, errors.ErrorTypeTimeout, "checkout cancelled").
				WithDetail("connector", p.name)
		}
		return errors.New(errors.ErrorTypeTimeout,
			fmt.Sprintf("no connector instance available within %s", p.config.MaxWait)).
			WithDetail("connector", p.name).
			WithDetail("max_objects", p.config.MaxObjects)
	}
	return nil
}

func (p *Pool) popIdle() *Instance {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.idle)
	if n == 0 {
		return nil
	}
	inst := p.idle[n-1]
	p.idle[n-1] = nil
	p.idle = p.idle[:n-1]
	return inst
}

func (p *Pool) create(ctx context.Context) (*Instance, error) {
	var conn core.PoolableConnector
	err := p.retry.ExecuteWithCondition(ctx, func() error {
		c, err := p.factory(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, errors.IsRetryable)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inst := &Instance{
		id:        uuid.NewString(),
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
	}
	atomic.AddInt64(&p.totalCreated, 1)
	metrics.RecordPoolEvent(p.name, metrics.PoolEventCreated)
	p.logger.Debug("connector instance created", zap.String("instance_id", inst.id))
	return inst, nil
}

func (p *Pool) validate(ctx context.Context, inst *Instance) error {
	if a, ok := inst.conn.(activator); ok {
		if err := a.Activate(); err != nil {
			return err
		}
	}
	return inst.conn.CheckAlive(ctx)
}

func (p *Pool) checkout(inst *Instance) *Instance {
	inst.uses++
	inst.borrowed.Store(true)
	atomic.AddInt64(&p.active, 1)
	p.publish()
	return inst
}

func (p *Pool) destroy(inst *Instance, event string) {
	inst.conn.Dispose()
	if event != "" {
		metrics.RecordPoolEvent(p.name, event)
	}
	p.logger.Debug("connector instance disposed",
		zap.String("instance_id", inst.id),
		zap.Int64("uses", inst.uses))
}

func (p *Pool) publish() {
	stats := p.Stats()
	metrics.SetPoolInstances(p.name, stats.Active, stats.Idle)
}

func (p *Pool) closedError() error {
	return errors.New(errors.ErrorTypeIllegalState, "pool is shut down").
		WithDetail("connector", p.name)
}
