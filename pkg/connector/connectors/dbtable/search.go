package dbtable

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// whereExpr is a WHERE clause fragment with ? placeholders.
type whereExpr struct {
	sql  string
	args []interface{}
}

// whereBuilder renders filters the database evaluates with the same result
// as the framework. Negations, and string ordering or pattern matches that a
// collation could bend, are left to client-side filtering.
type whereBuilder struct {
	c *Connector
}

func (b whereBuilder) Comparison(f *filter.AttributeFilter, not bool) (whereExpr, bool) {
	col, ok := b.c.column(f.Name())
	if !ok || col.typ == schema.TypeGuardedString {
		return whereExpr{}, false
	}
	name := b.c.quote(col.name)

	if f.Op == filter.OpPresence {
		if not {
			return whereExpr{sql: name + " IS NULL"}, true
		}
		return whereExpr{sql: name + " IS NOT NULL"}, true
	}
	if not || len(f.Attribute.Values) != 1 {
		return whereExpr{}, false
	}
	v := f.Value()
	if v == nil {
		return whereExpr{}, false
	}
	if _, secret := v.(*security.GuardedString); secret {
		return whereExpr{}, false
	}

	switch f.Op {
	case filter.OpEquals, filter.OpContainsAllValues:
		return whereExpr{sql: name + " = ?", args: []interface{}{v}}, true
	case filter.OpContains, filter.OpStartsWith, filter.OpEndsWith:
		s, ok := v.(string)
		if !ok || strings.ContainsAny(s, `%_\`) {
			return whereExpr{}, false
		}
		switch f.Op {
		case filter.OpContains:
			s = "%" + s + "%"
		case filter.OpStartsWith:
			s += "%"
		default:
			s = "%" + s
		}
		return whereExpr{sql: name + " LIKE ?", args: []interface{}{s}}, true
	case filter.OpGreaterThan, filter.OpGreaterThanOrEqual, filter.OpLessThan, filter.OpLessThanOrEqual:
		if col.typ != schema.TypeLong && col.typ != schema.TypeDouble && col.typ != schema.TypeTime {
			return whereExpr{}, false
		}
		ops := map[filter.Operator]string{
			filter.OpGreaterThan:        " > ?",
			filter.OpGreaterThanOrEqual: " >= ?",
			filter.OpLessThan:           " < ?",
			filter.OpLessThanOrEqual:    " <= ?",
		}
		return whereExpr{sql: name + ops[f.Op], args: []interface{}{v}}, true
	}
	return whereExpr{}, false
}

func (whereBuilder) And(left, right whereExpr) (whereExpr, bool) {
	return combine("AND", left, right), true
}

func (whereBuilder) Or(left, right whereExpr) (whereExpr, bool) {
	return combine("OR", left, right), true
}

func combine(op string, left, right whereExpr) whereExpr {
	args := make([]interface{}, 0, len(left.args)+len(right.args))
	args = append(append(args, left.args...), right.args...)
	return whereExpr{sql: "(" + left.sql + ") " + op + " (" + right.sql + ")", args: args}
}

// CreateFilterTranslator returns the WHERE clause translator. It returns nil,
// asking for a full scan, while the table cannot be described.
func (c *Connector) CreateFilterTranslator(objects.ObjectClass, *objects.OperationOptions) filter.Translator {
	if c.table == nil {
		if _, err := c.Schema(context.Background()); err != nil {
			return nil
		}
	}
	return filter.NewTranslator[whereExpr](whereBuilder{c: c})
}

// ExecuteQuery streams matching rows ordered by key. With a page size the
// cookie is the offset of the next page.
func (c *Connector) ExecuteQuery(ctx context.Context, oc objects.ObjectClass, query filter.Query, handler core.ResultsHandler, opts *objects.OperationOptions) error {
	if err := c.readyFor(ctx, schema.OpSearch, oc); err != nil {
		return err
	}

	var where whereExpr
	if query != nil {
		w, ok := query.(whereExpr)
		if !ok {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unexpected query type %T", query))
		}
		where = w
	}
	clause := ""
	if where.sql != "" {
		clause = " WHERE " + where.sql
	}

	start, err := pageStart(opts)
	if err != nil {
		return err
	}
	pageSize := opts.PageSize()
	total := 0
	if pageSize > 0 {
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", c.quote(c.cfg.Table), clause)
		if err := c.db.QueryRowContext(ctx, c.dialect.rebind(q), where.args...).Scan(&total); err != nil {
			return sqlError(err, "count query failed")
		}
	}

	cols := c.selected(opts)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = c.quote(col.name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(names, ", "), c.quote(c.cfg.Table), clause, c.quote(c.table.key.name))
	args := where.args
	if pageSize > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(append([]interface{}{}, args...), pageSize, start)
	}

	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(q), args...)
	if err != nil {
		return sqlError(err, "search query failed")
	}
	defer rows.Close()

	delivered := 0
	for rows.Next() {
		obj, err := c.scanObject(rows, cols)
		if err != nil {
			return err
		}
		delivered++
		if !handler.Handle(obj) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return sqlError(err, "search query failed")
	}

	if pageSize > 0 {
		if rh, ok := handler.(core.SearchResultsHandler); ok {
			end := start + delivered
			cookie := ""
			if end < total {
				cookie = strconv.Itoa(end)
			}
			remaining := total - end
			if remaining < 0 {
				remaining = 0
			}
			rh.HandleResult(objects.NewSearchResult(cookie, remaining))
		}
	}
	return nil
}

// selected lists the key and name columns followed by the columns to
// return.
func (c *Connector) selected(opts *objects.OperationOptions) []columnInfo {
	cols := []columnInfo{c.table.key, c.nameColumn()}
	requested := opts.AttributesToGet() != nil
	for _, col := range c.table.order {
		if requested {
			if !opts.Wants(col.name) {
				continue
			}
		} else if col.typ == schema.TypeBytes {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanObject reads one row laid out as selected returns it. NULL columns
// are omitted.
func (c *Connector) scanObject(row rowScanner, cols []columnInfo) (*objects.ConnectorObject, error) {
	values := make([]interface{}, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, sqlError(err, "reading row failed")
	}

	b := objects.NewConnectorObjectBuilder().
		SetObjectClass(objects.Account).
		SetUid(objects.NewUid(fmt.Sprint(columnValue(cols[0], values[0])))).
		SetName(fmt.Sprint(columnValue(cols[1], values[1])))
	for i := 2; i < len(cols); i++ {
		if values[i] == nil {
			continue
		}
		b.AddAttribute(cols[i].name, columnValue(cols[i], values[i]))
	}
	return b.Build()
}

// columnValue converts a driver value to the attribute type of col.
func columnValue(col columnInfo, v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		if col.typ == schema.TypeBytes {
			return append([]byte(nil), x...)
		}
		return string(x)
	case int64:
		if col.typ == schema.TypeBoolean {
			return x != 0
		}
	}
	return v
}

// pageStart reads the cookie, or the 1-based pagedResultsOffset.
func pageStart(opts *objects.OperationOptions) (int, error) {
	if cookie := opts.PagedResultsCookie(); cookie != "" {
		n, err := strconv.Atoi(cookie)
		if err != nil || n < 0 {
			return 0, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("invalid paged results cookie %q", cookie)).
				WithDetail("option", objects.OptionPagedResultsCookie)
		}
		return n, nil
	}
	if offset := opts.PagedResultsOffset(); offset > 1 {
		return offset - 1, nil
	}
	return 0, nil
}
