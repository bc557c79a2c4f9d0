// Package dbtable manages accounts stored as rows of one database table.
//
//	import _ "github.com/ajitpratap0/idconnect/pkg/connector/connectors/dbtable"
//
// The key column holds the uid. It also holds the account name unless a
// separate name column is configured, in which case keys may be generated
// UUIDs. Every other column is an attribute named after it. An optional password column backs
// Authenticate and an optional change-log column, stamped with an increasing
// number on every write, backs Sync. Deletes are not visible to Sync.
//
// Each pooled instance holds a single database connection. Writes from
// different instances are serialized per table on sqlite, postgres and
// mysql. On snowflake concurrent writers may stamp the same change number.
package dbtable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/base"
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"go.uber.org/zap"
)

// Name is the registered connector type name.
const Name = "dbtable"

// Version of the connector.
const Version = "1.0.0"

// Connector maps the rows of a table to ACCOUNT objects.
type Connector struct {
	*base.BaseConnector

	cfg     *Configuration
	dialect dialect
	db      *sql.DB
	table   *tableInfo
}

// New creates an uninitialized connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name)}
}

// Init validates cfg and opens the database handle. No connection is made
// until the first operation.
func (c *Connector) Init(cfg core.Configuration) error {
	dc, ok := cfg.(*Configuration)
	if !ok {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("expected *dbtable.Configuration, got %T", cfg))
	}
	if err := dc.Validate(); err != nil {
		return err
	}
	d, err := dialectFor(dc.Driver)
	if err != nil {
		return err
	}
	db, err := d.open(dc)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := c.BaseConnector.Init(cfg); err != nil {
		_ = db.Close()
		return err
	}
	c.cfg = dc
	c.dialect = d
	c.db = db
	c.OnDispose(func() {
		if err := db.Close(); err != nil {
			c.Logger().Warn("closing database failed", zap.Error(err))
		}
	})
	c.Logger().Debug("database opened", zap.String("driver", dc.Driver), zap.String("table", dc.Table))
	return nil
}

// CheckAlive pings the database and runs the validation query if one is
// configured.
func (c *Connector) CheckAlive(ctx context.Context) error {
	if err := c.EnsureUsable(); err != nil {
		return err
	}
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "database is unreachable").
			WithDetail("driver", c.cfg.Driver)
	}
	if q := c.cfg.ValidConnectionQuery; q != "" {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "connection validation query failed").
				WithDetail("driver", c.cfg.Driver)
		}
	}
	return nil
}

// Test checks the connection and that the table can be described.
func (c *Connector) Test(ctx context.Context) error {
	if err := c.CheckAlive(ctx); err != nil {
		return err
	}
	_, err := c.Schema(ctx)
	return err
}

// Schema describes the table as the ACCOUNT class.
func (c *Connector) Schema(ctx context.Context) (*schema.Schema, error) {
	if err := c.EnsureUsable(); err != nil {
		return nil, err
	}
	return c.SchemaMemo().Get(func() (*schema.Schema, error) {
		t, err := c.describe(ctx)
		if err != nil {
			return nil, err
		}
		c.table = t
		return buildSchema(t)
	})
}

// Authenticate checks the password column of the row named username.
func (c *Connector) Authenticate(ctx context.Context, oc objects.ObjectClass, username string, password *security.GuardedString, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.readyFor(ctx, schema.OpAuthenticate, oc); err != nil {
		return objects.Uid{}, err
	}
	secret, err := reveal(password)
	if err != nil {
		return objects.Uid{}, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = ?",
		c.quote(c.table.key.name), c.quote(c.cfg.Table), c.quote(c.nameColumn().name), c.quote(c.table.password.name))
	var key string
	err = c.db.QueryRowContext(ctx, c.dialect.rebind(q), username, secret).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return objects.Uid{}, errors.New(errors.ErrorTypeInvalidCredential, "invalid username or password").
			WithDetail("username", username)
	}
	if err != nil {
		return objects.Uid{}, sqlError(err, "authentication query failed")
	}
	return objects.NewUid(key), nil
}

// ResolveUsername returns the uid of the row named username.
func (c *Connector) ResolveUsername(ctx context.Context, oc objects.ObjectClass, username string, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.readyFor(ctx, schema.OpResolveUsername, oc); err != nil {
		return objects.Uid{}, err
	}
	key, err := c.findKey(ctx, c.db, c.nameColumn(), username)
	if err != nil {
		return objects.Uid{}, err
	}
	if key == "" {
		return objects.Uid{}, errors.New(errors.ErrorTypeUnknownUid, fmt.Sprintf("no %s named %s", oc, username)).
			WithDetail("username", username)
	}
	return objects.NewUid(key), nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// findKey returns the key of the row whose col equals value, or "" when
// there is none.
func (c *Connector) findKey(ctx context.Context, q querier, col columnInfo, value string) (string, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		c.quote(c.table.key.name), c.quote(c.cfg.Table), c.quote(col.name))
	var found string
	err := q.QueryRowContext(ctx, c.dialect.rebind(stmt), value).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", sqlError(err, "key lookup failed")
	}
	return found, nil
}

func (c *Connector) quote(name string) string { return c.cfg.QuoteName(name) }

// nameColumn is the column holding __NAME__.
func (c *Connector) nameColumn() columnInfo {
	if c.table.name != nil {
		return *c.table.name
	}
	return c.table.key
}

// readyFor checks the lifecycle state and that the schema allows op on oc.
func (c *Connector) readyFor(ctx context.Context, op schema.Operation, oc objects.ObjectClass) error {
	s, err := c.Schema(ctx)
	if err != nil {
		return err
	}
	if !s.SupportsObjectClass(op, oc) {
		return errors.New(errors.ErrorTypeUnsupportedObjectClass, fmt.Sprintf("%s is not supported for %s", oc, op)).
			WithDetail("operation", string(op)).
			WithDetail("object_class", oc.Name())
	}
	return nil
}

// column resolves an attribute name to a table column. The key and password
// columns are reachable only through their special attribute names.
func (c *Connector) column(name string) (columnInfo, bool) {
	switch {
	case strings.EqualFold(name, objects.UidAttr):
		return c.table.key, true
	case strings.EqualFold(name, objects.NameAttr):
		return c.nameColumn(), true
	case strings.EqualFold(name, objects.PasswordAttr):
		if c.table.password == nil {
			return columnInfo{}, false
		}
		return *c.table.password, true
	}
	col, ok := c.table.attrs[strings.ToLower(name)]
	return col, ok
}
