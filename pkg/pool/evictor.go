package pool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// evictLoop runs eviction every EvictionInterval until Shutdown.
func (p *Pool) evictLoop() {
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(p.config.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Evict()
			if err := p.Prewarm(ctx); err != nil {
				p.logger.Warn("failed to keep minimum idle instances", zap.Error(err))
			}
		case <-p.stopCh:
			return
		}
	}
}

// Evict disposes idle instances unused for longer than MinEvictableIdleTime
// and returns how many were disposed. A non-positive MinEvictableIdleTime
// disables idle-time eviction.
func (p *Pool) Evict() int {
	if p.config.MinEvictableIdleTime <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-p.config.MinEvictableIdleTime)

	p.mu.Lock()
	kept := p.idle[:0]
	var expired []*Instance
	for _, inst := range p.idle {
		if inst.lastUsed.Before(cutoff) {
			expired = append(expired, inst)
			continue
		}
		kept = append(kept, inst)
	}
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
	p.mu.Unlock()

	for _, inst := range expired {
		p.destroy(inst, metrics.PoolEventEvicted)
	}
	if n := len(expired); n > 0 {
		atomic.AddInt64(&p.totalEvicted, int64(n))
		p.publish()
		p.logger.Debug("evicted idle instances", zap.Int("count", n))
	}
	return len(expired)
}

// Prewarm creates instances until MinIdle are idle. It never exceeds
// MaxObjects; slots held by borrowers are skipped rather than waited for.
func (p *Pool) Prewarm(ctx context.Context) error {
	if p.closed.Load() {
		return nil
	}

	p.mu.Lock()
	need := p.config.MinIdle - len(p.idle)
	p.mu.Unlock()
	if need <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < need; i++ {
		if !p.sem.TryAcquire(1) {
			break
		}
		g.Go(func() error {
			defer p.sem.Release(1)

			inst, err := p.create(gctx)
			if err != nil {
				return err
			}
			if err := p.validate(gctx, inst); err != nil {
				p.destroy(inst, metrics.PoolEventInvalidated)
				return err
			}
			inst.lastUsed = time.Now()

			p.mu.Lock()
			if p.closed.Load() || len(p.idle) >= max(p.config.MaxIdle, p.config.MinIdle) {
				p.mu.Unlock()
				p.destroy(inst, "")
				return nil
			}
			p.idle = append(p.idle, inst)
			p.mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	p.publish()
	return err
}
