// Package pool keeps a bounded set of initialized connector instances for one
// connector configuration.
//
// # Checkout
//
// Borrow hands out the most recently used idle instance, or creates a new
// one when none is idle. Every checkout runs CheckAlive first; an idle
// instance that fails is disposed and the next one is tried, a fresh
// instance that fails surfaces as ErrorTypeConnection. At most MaxObjects
// instances exist at once and Borrow waits up to MaxWait for a free slot
// before returning ErrorTypeTimeout.
//
//	p, err := pool.New("sample", factory, cfg.Pool, retry)
//	inst, err := p.Borrow(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Return(inst)
//	uid, err := inst.Connector().(core.CreateOp).Create(ctx, oc, attrs, opts)
//
// An instance that failed mid-operation should be passed to Invalidate
// instead of Return.
//
// # Eviction
//
// When EvictionInterval is set, an evictor disposes instances that stayed
// idle longer than MinEvictableIdleTime and tops the idle set back up to
// MinIdle.
package pool
