package dbtable

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

// Sync reports every row whose change number is above token as a
// CREATE_OR_UPDATE delta, in change order, then reports the latest change
// number.
func (c *Connector) Sync(ctx context.Context, oc objects.ObjectClass, token *objects.SyncToken, handler core.SyncResultsHandler, opts *objects.OperationOptions) error {
	if err := c.readyFor(ctx, schema.OpSync, oc); err != nil {
		return err
	}
	after, err := tokenValue(token)
	if err != nil {
		return err
	}

	cols := append(c.selected(opts), *c.table.changeLog)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = c.quote(col.name)
	}
	changeLog := c.quote(c.table.changeLog.name)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s > ? ORDER BY %s",
		strings.Join(names, ", "), c.quote(c.cfg.Table), changeLog, changeLog)

	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(q), after)
	if err != nil {
		return sqlError(err, "sync query failed")
	}
	defer rows.Close()

	var last int64
	for rows.Next() {
		values := make([]interface{}, len(cols))
		dest := make([]interface{}, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return sqlError(err, "reading change failed")
		}
		change, err := tokenValue(objects.NewSyncToken(values[len(values)-1]))
		if err != nil {
			return err
		}

		obj, err := c.scanObject(scannedRow(values[:len(values)-1]), cols[:len(cols)-1])
		if err != nil {
			return err
		}
		delta, err := objects.NewSyncDeltaBuilder().
			SetToken(objects.NewSyncToken(change)).
			SetDeltaType(objects.SyncDeltaCreateOrUpdate).
			SetObject(obj).
			Build()
		if err != nil {
			return err
		}
		last = change
		if !handler.Handle(delta) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return sqlError(err, "sync query failed")
	}
	if err := rows.Close(); err != nil {
		return sqlError(err, "sync query failed")
	}

	if th, ok := handler.(core.SyncTokenResultsHandler); ok {
		latest, err := c.latestChange(ctx, c.db)
		if err != nil {
			return err
		}
		if latest < last {
			latest = last
		}
		if latest < after {
			latest = after
		}
		th.HandleResult(objects.NewSyncToken(latest))
	}
	return nil
}

// GetLatestSyncToken returns the highest change number in the table.
func (c *Connector) GetLatestSyncToken(ctx context.Context, oc objects.ObjectClass) (*objects.SyncToken, error) {
	if err := c.readyFor(ctx, schema.OpSync, oc); err != nil {
		return nil, err
	}
	latest, err := c.latestChange(ctx, c.db)
	if err != nil {
		return nil, err
	}
	return objects.NewSyncToken(latest), nil
}

// scannedRow replays values already read from a row.
type scannedRow []interface{}

func (r scannedRow) Scan(dest ...interface{}) error {
	for i := range dest {
		*dest[i].(*interface{}) = r[i]
	}
	return nil
}

// tokenValue reads an integer token. A nil token starts before the first
// change.
func tokenValue(token *objects.SyncToken) (int64, error) {
	if token == nil {
		return 0, nil
	}
	switch v := token.Value().(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case []byte:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return n, nil
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("sync token %s is not an integer", token)).
		WithDetail("token", token.String())
}
