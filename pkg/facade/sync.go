package facade

import (
	"context"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/metrics"
	"go.uber.org/zap"
)

const (
	deltaDelivered = "delivered"
	deltaDropped   = "dropped"
)

// Sync delivers the changes to class oc after token to handler, each
// exactly once and in token order.
//
// When every change was delivered, Sync returns the token to resume from
// and passes it to handler if it implements core.SyncTokenResultsHandler.
// When handler stops early the result is nil and the caller resumes from
// the token of the last delta it accepted. A nil token starts from the
// beginning of the change history.
func (f *Facade) Sync(ctx context.Context, oc objects.ObjectClass, token *objects.SyncToken, handler core.SyncResultsHandler, opts *objects.OperationOptions) (*objects.SyncToken, error) {
	if handler == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "sync handler is required").
			WithDetail("operation", string(core.OpSync))
	}

	var result *objects.SyncToken
	err := f.invoke(ctx, classCall(core.OpSync, oc), func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.SyncOp](conn, core.OpSync)
		if err != nil {
			return err
		}

		d := &deltaGate{
			caller:    handler,
			z:         normalizerFor(conn, oc),
			supplied:  token,
			connector: f.info.Name,
			oc:        oc,
			metrics:   f.framework.Observability.EnableMetrics,
			logger:    f.logger,
		}
		if err := op.Sync(ctx, oc, token, d, opts); err != nil {
			return err
		}
		if d.err != nil {
			return d.err
		}
		if d.stopped {
			return nil
		}

		final, err := d.finalToken(func() (*objects.SyncToken, error) {
			return op.GetLatestSyncToken(ctx, oc)
		})
		if err != nil {
			return err
		}
		if th, ok := handler.(core.SyncTokenResultsHandler); ok && final != nil {
			th.HandleResult(final)
		}
		result = final
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLatestSyncToken returns the current high-water mark for class oc
// without consuming any change.
func (f *Facade) GetLatestSyncToken(ctx context.Context, oc objects.ObjectClass) (*objects.SyncToken, error) {
	var token *objects.SyncToken
	err := f.invoke(ctx, classCall(core.OpSync, oc), func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.SyncOp](conn, core.OpSync)
		if err != nil {
			return err
		}
		token, err = op.GetLatestSyncToken(ctx, oc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// deltaGate filters the deltas a connector reports before they reach the
// caller: replays at or below the supplied token are dropped and token
// regressions abort the sync.
type deltaGate struct {
	caller    core.SyncResultsHandler
	z         normalizer
	supplied  *objects.SyncToken
	connector string
	oc        objects.ObjectClass
	metrics   bool
	logger    *zap.Logger

	last     *objects.SyncToken
	reported *objects.SyncToken
	stopped  bool
	err      error
}

func (d *deltaGate) Handle(delta *objects.SyncDelta) bool {
	if d.stopped || d.err != nil {
		return false
	}
	if delta == nil || delta.Token == nil {
		d.err = errors.New(errors.ErrorTypeIllegalState, "connector reported a delta without a token").
			WithDetail("object_class", d.oc.Name())
		return false
	}

	if c, ok := delta.Token.Compare(d.supplied); ok && c <= 0 {
		d.logger.Warn("delta at or before the supplied token dropped",
			zap.String("object_class", d.oc.Name()),
			zap.Stringer("token", delta.Token),
			zap.Stringer("since", d.supplied))
		d.record(deltaDropped)
		return true
	}
	if c, ok := delta.Token.Compare(d.last); ok && c < 0 {
		d.err = errors.New(errors.ErrorTypeIllegalState, "sync token went backwards").
			WithDetail("object_class", d.oc.Name()).
			WithDetail("token", delta.Token.String()).
			WithDetail("previous", d.last.String())
		return false
	}

	d.last = delta.Token
	d.record(deltaDelivered)
	if !d.caller.Handle(d.z.delta(delta)) {
		d.stopped = true
		return false
	}
	return true
}

func (d *deltaGate) HandleResult(token *objects.SyncToken) {
	switch {
	case d.stopped || d.err != nil:
		d.logger.Warn("sync token reported after handler stop dropped")
	case d.reported != nil:
		d.logger.Warn("duplicate sync token dropped", zap.Stringer("token", token))
	default:
		d.reported = token
	}
}

// finalToken picks the token to report after exhaustion: the connector's,
// else the last delta's, else the latest, else the supplied one.
func (d *deltaGate) finalToken(latest func() (*objects.SyncToken, error)) (*objects.SyncToken, error) {
	if d.reported != nil {
		if c, ok := d.reported.Compare(d.last); ok && c < 0 {
			return nil, errors.New(errors.ErrorTypeIllegalState, "reported sync token is behind the last delta").
				WithDetail("object_class", d.oc.Name()).
				WithDetail("token", d.reported.String()).
				WithDetail("last", d.last.String())
		}
		return d.reported, nil
	}
	if d.last != nil {
		return d.last, nil
	}
	token, err := latest()
	if err != nil {
		return nil, err
	}
	if token != nil {
		return token, nil
	}
	return d.supplied, nil
}

func (d *deltaGate) record(outcome string) {
	if d.metrics {
		metrics.RecordSyncDelta(d.connector, d.oc.Name(), outcome)
	}
}
