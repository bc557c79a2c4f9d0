package sample

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

// Sync replays the change log after token. The latest token is reported
// once every delta has been accepted. ALL is accepted and yields no deltas.
func (c *Connector) Sync(ctx context.Context, oc objects.ObjectClass, token *objects.SyncToken, handler core.SyncResultsHandler, opts *objects.OperationOptions) error {
	res, err := c.readyFor(ctx, schema.OpSync, oc)
	if err != nil {
		return err
	}

	if !oc.IsAll() {
		after, hasAfter, err := tokenValue(token)
		if err != nil {
			return err
		}
		s, err := c.Schema(ctx)
		if err != nil {
			return err
		}
		info, _ := s.FindObjectClassInfo(oc)

		for _, ch := range res.changesAfter(oc, after, hasAfter) {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeTimeout, "sync cancelled")
			}

			b := objects.NewSyncDeltaBuilder().
				SetToken(objects.NewSyncToken(ch.token)).
				SetDeltaType(ch.deltaType).
				SetUid(objects.NewUid(ch.uid)).
				SetObjectClass(ch.oc)
			if ch.object != nil {
				b.SetObject(project(info, ch.object, opts))
			}
			if ch.previousUid != "" {
				b.SetPreviousUid(objects.NewUid(ch.previousUid))
			}
			delta, err := b.Build()
			if err != nil {
				return err
			}
			if !handler.Handle(delta) {
				return nil
			}
		}
	}

	if th, ok := handler.(core.SyncTokenResultsHandler); ok {
		th.HandleResult(objects.NewSyncToken(res.LatestToken()))
	}
	return nil
}

// GetLatestSyncToken returns the token of the newest change.
func (c *Connector) GetLatestSyncToken(ctx context.Context, oc objects.ObjectClass) (*objects.SyncToken, error) {
	res, err := c.readyFor(ctx, schema.OpSync, oc)
	if err != nil {
		return nil, err
	}
	return objects.NewSyncToken(res.LatestToken()), nil
}

// tokenValue reads an integer token. A nil token means "from the start".
func tokenValue(token *objects.SyncToken) (int64, bool, error) {
	if token == nil {
		return 0, false, nil
	}
	switch v := token.Value().(type) {
	case int:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case float64:
		return int64(v), true, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, true, nil
		}
	}
	return 0, false, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("sync token %s is not an integer", token)).
		WithDetail("token", token.String())
}
