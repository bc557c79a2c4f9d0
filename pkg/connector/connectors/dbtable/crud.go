package dbtable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"go.uber.org/zap"
)

// Create inserts a row. The key is __NAME__, or a random UUID when
// generateUid is set and the name has its own column.
func (c *Connector) Create(ctx context.Context, oc objects.ObjectClass, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.readyFor(ctx, schema.OpCreate, oc); err != nil {
		return objects.Uid{}, err
	}

	name := objects.NameFrom(attrs)
	if name == "" {
		return objects.Uid{}, errors.New(errors.ErrorTypeRequiredAttributeMissing, "__NAME__ is required").
			WithDetail("attribute", objects.NameAttr).
			WithDetail("object_class", oc.Name())
	}
	key := name
	if c.cfg.GenerateUid {
		key = uuid.NewString()
	}

	cols := []string{c.quote(c.table.key.name)}
	args := []interface{}{key}
	if c.table.name != nil {
		cols = append(cols, c.quote(c.table.name.name))
		args = append(args, name)
	}
	for _, a := range attrs {
		if a.Is(objects.UidAttr) || a.Is(objects.NameAttr) || a.Values == nil {
			continue
		}
		col, v, err := c.bind(oc, a)
		if err != nil {
			return objects.Uid{}, err
		}
		cols = append(cols, c.quote(col.name))
		args = append(args, v)
	}

	err := c.inTx(ctx, func(tx *sql.Tx) error {
		if err := c.checkNameFree(ctx, tx, oc, name); err != nil {
			return err
		}
		if c.table.changeLog != nil {
			next, err := c.nextChange(ctx, tx)
			if err != nil {
				return err
			}
			cols = append(cols, c.quote(c.table.changeLog.name))
			args = append(args, next)
		}

		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			c.quote(c.cfg.Table), strings.Join(cols, ", "), placeholders(len(cols)))
		if _, err := tx.ExecContext(ctx, c.dialect.rebind(q), args...); err != nil {
			return sqlError(err, "insert failed")
		}
		return nil
	})
	if err != nil {
		return objects.Uid{}, err
	}
	c.Logger().Debug("row inserted", zap.String("table", c.cfg.Table), zap.String("uid", key))
	return objects.NewUid(key), nil
}

// Update sets the given columns. An attribute without values sets NULL. A
// new __NAME__ changes the uid unless the name has its own column.
func (c *Connector) Update(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.readyFor(ctx, schema.OpUpdate, oc); err != nil {
		return objects.Uid{}, err
	}

	newKey := uid.Value
	newName := ""
	var sets []string
	var args []interface{}
	for _, a := range attrs {
		switch {
		case a.Is(objects.UidAttr), a.Is(objects.CurrentPasswordAttr):
			continue
		case a.Is(objects.NameAttr):
			newName = a.StringValue()
			if newName == "" {
				return objects.Uid{}, errors.New(errors.ErrorTypeValidation, "__NAME__ must not be empty").
					WithDetail("uid", uid.Value)
			}
			if c.table.name == nil {
				newKey = newName
			}
			sets = append(sets, c.quote(c.nameColumn().name)+" = ?")
			args = append(args, newName)
			continue
		}

		col, v, err := c.bind(oc, a)
		if err != nil {
			return objects.Uid{}, err
		}
		sets = append(sets, c.quote(col.name)+" = ?")
		args = append(args, v)
	}

	err := c.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := c.findKey(ctx, tx, c.table.key, uid.Value)
		if err != nil {
			return err
		}
		if existing == "" {
			return unknownUid(oc, uid)
		}
		if newName != "" {
			owner, err := c.findKey(ctx, tx, c.nameColumn(), newName)
			if err != nil {
				return err
			}
			if owner != "" && owner != uid.Value {
				return alreadyExists(oc, newName)
			}
		}

		if c.table.changeLog != nil {
			next, err := c.nextChange(ctx, tx)
			if err != nil {
				return err
			}
			sets = append(sets, c.quote(c.table.changeLog.name)+" = ?")
			args = append(args, next)
		}
		if len(sets) == 0 {
			return nil
		}

		q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			c.quote(c.cfg.Table), strings.Join(sets, ", "), c.quote(c.table.key.name))
		if _, err := tx.ExecContext(ctx, c.dialect.rebind(q), append(args, uid.Value)...); err != nil {
			return sqlError(err, "update failed")
		}
		return nil
	})
	if err != nil {
		return objects.Uid{}, err
	}
	return objects.NewUid(newKey), nil
}

// checkNameFree fails when a row already carries name.
func (c *Connector) checkNameFree(ctx context.Context, q querier, oc objects.ObjectClass, name string) error {
	owner, err := c.findKey(ctx, q, c.nameColumn(), name)
	if err != nil {
		return err
	}
	if owner != "" {
		return alreadyExists(oc, name)
	}
	return nil
}

// Delete removes the row. A missing row is ErrorTypeUnknownUid.
func (c *Connector) Delete(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, _ *objects.OperationOptions) error {
	if err := c.readyFor(ctx, schema.OpDelete, oc); err != nil {
		return err
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.quote(c.cfg.Table), c.quote(c.table.key.name))
	res, err := c.db.ExecContext(ctx, c.dialect.rebind(q), uid.Value)
	if err != nil {
		return sqlError(err, "delete failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqlError(err, "delete failed")
	}
	if n == 0 {
		return unknownUid(oc, uid)
	}
	c.Logger().Debug("row deleted", zap.String("table", c.cfg.Table), zap.String("uid", uid.Value))
	return nil
}

// bind resolves a to its column and the value to store. Columns hold a
// single value.
func (c *Connector) bind(oc objects.ObjectClass, a objects.Attribute) (columnInfo, interface{}, error) {
	col, ok := c.column(a.Name)
	if !ok {
		return columnInfo{}, nil, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("attribute %s is not defined for %s", a.Name, oc)).
			WithDetail("attribute", a.Name).
			WithDetail("object_class", oc.Name())
	}
	v, err := a.SingleValue()
	if err != nil {
		return columnInfo{}, nil, errors.Wrap(err, errors.ErrorTypeValidation, "column values are single-valued").
			WithDetail("attribute", a.Name)
	}
	if g, ok := v.(*security.GuardedString); ok {
		s, err := reveal(g)
		if err != nil {
			return columnInfo{}, nil, err
		}
		v = s
	}
	return col, v, nil
}

// nextChange returns the next change-log number. It runs inside the write
// transaction, after inTx has taken the dialect's write lock.
func (c *Connector) nextChange(ctx context.Context, tx *sql.Tx) (int64, error) {
	latest, err := c.latestChange(ctx, tx)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

func (c *Connector) latestChange(ctx context.Context, q querier) (int64, error) {
	stmt := fmt.Sprintf("SELECT MAX(%s) FROM %s", c.quote(c.table.changeLog.name), c.quote(c.cfg.Table))
	var n sql.NullInt64
	if err := q.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, sqlError(err, "reading change log failed")
	}
	return n.Int64, nil
}

// inTx runs fn in a write transaction. Writes to the table are serialized
// across connections so name checks and change numbers stay consistent.
func (c *Connector) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return sqlError(err, "acquiring connection failed")
	}
	defer conn.Close()

	if c.dialect.namedLock {
		release, err := c.namedLock(ctx, conn)
		if err != nil {
			return err
		}
		defer release()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return sqlError(err, "begin transaction failed")
	}
	if c.dialect.lockTable != "" {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(c.dialect.lockTable, c.quote(c.cfg.Table))); err != nil {
			_ = tx.Rollback()
			return sqlError(err, "locking table failed")
		}
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.Logger().Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return sqlError(err, "commit failed")
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func unknownUid(oc objects.ObjectClass, uid objects.Uid) error {
	return errors.New(errors.ErrorTypeUnknownUid, fmt.Sprintf("%s %s does not exist", oc, uid.Value)).
		WithDetail("uid", uid.Value).
		WithDetail("object_class", oc.Name())
}

func alreadyExists(oc objects.ObjectClass, name string) error {
	return errors.New(errors.ErrorTypeAlreadyExists, fmt.Sprintf("%s %s already exists", oc, name)).
		WithDetail("name", name).
		WithDetail("object_class", oc.Name())
}

// writeLockWait bounds how long a write waits for a mysql named lock.
const writeLockWait = 30 * time.Second

// namedLock takes the mysql named lock for the table on conn. The returned
// func releases it and must run before conn goes back to the pool.
func (c *Connector) namedLock(ctx context.Context, conn *sql.Conn) (func(), error) {
	name := "idconnect." + c.cfg.Table
	if len(name) > 64 {
		name = name[:64]
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, int(writeLockWait.Seconds())).Scan(&got); err != nil {
		return nil, sqlError(err, "locking table failed")
	}
	if !got.Valid || got.Int64 != 1 {
		return nil, errors.New(errors.ErrorTypeTimeout, "timed out waiting for table write lock").
			WithDetail("table", c.cfg.Table)
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), "DO RELEASE_LOCK(?)", name); err != nil {
			c.Logger().Warn("releasing table lock failed", zap.String("table", c.cfg.Table), zap.Error(err))
		}
	}, nil
}
