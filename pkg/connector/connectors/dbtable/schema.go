package dbtable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

type columnInfo struct {
	name     string
	typ      schema.ValueType
	required bool
}

// tableInfo is the column layout read from the database.
type tableInfo struct {
	key       columnInfo
	name      *columnInfo
	password  *columnInfo
	changeLog *columnInfo
	// attrs holds the ordinary columns by lower-cased name.
	attrs map[string]columnInfo
	order []columnInfo
}

// describe reads the column metadata of the configured table with a query
// that matches no row.
func (c *Connector) describe(ctx context.Context) (*tableInfo, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s IS NULL", c.quote(c.cfg.Table), c.quote(c.cfg.KeyColumn))
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, describeError(err, c.cfg.Table)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, describeError(err, c.cfg.Table)
	}
	return layout(c.cfg, types)
}

func describeError(err error, table string) error {
	wrapped := sqlError(err, "describing table failed")
	if errors.IsType(wrapped, errors.ErrorTypeInternal) {
		return errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("table %s cannot be described", table)).
			WithDetail("field", "table")
	}
	return wrapped
}

func layout(cfg *Configuration, types []*sql.ColumnType) (*tableInfo, error) {
	t := &tableInfo{attrs: make(map[string]columnInfo)}
	foundKey := false
	for _, ct := range types {
		col := columnInfo{name: ct.Name(), typ: valueType(ct.DatabaseTypeName())}
		if nullable, ok := ct.Nullable(); ok && !nullable {
			col.required = true
		}

		switch {
		case strings.EqualFold(col.name, cfg.KeyColumn):
			t.key = col
			foundKey = true
		case cfg.NameColumn != "" && strings.EqualFold(col.name, cfg.NameColumn):
			t.name = &col
		case cfg.PasswordColumn != "" && strings.EqualFold(col.name, cfg.PasswordColumn):
			col.typ = schema.TypeGuardedString
			t.password = &col
		case cfg.ChangeLogColumn != "" && strings.EqualFold(col.name, cfg.ChangeLogColumn):
			t.changeLog = &col
		default:
			t.attrs[strings.ToLower(col.name)] = col
			t.order = append(t.order, col)
		}
	}

	missing := func(field, name string) error {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("column %s not found in %s", name, cfg.Table)).
			WithDetail("field", field)
	}
	switch {
	case !foundKey:
		return nil, missing("keyColumn", cfg.KeyColumn)
	case cfg.NameColumn != "" && t.name == nil:
		return nil, missing("nameColumn", cfg.NameColumn)
	case cfg.PasswordColumn != "" && t.password == nil:
		return nil, missing("passwordColumn", cfg.PasswordColumn)
	case cfg.ChangeLogColumn != "" && t.changeLog == nil:
		return nil, missing("changeLogColumn", cfg.ChangeLogColumn)
	}
	return t, nil
}

// valueType maps a declared column type to an attribute type.
func valueType(dbType string) schema.ValueType {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "BOOL"):
		return schema.TypeBoolean
	case strings.Contains(t, "INT"):
		return schema.TypeLong
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return schema.TypeDouble
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return schema.TypeTime
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BINARY"), strings.Contains(t, "BYTEA"):
		return schema.TypeBytes
	default:
		return schema.TypeString
	}
}

// buildSchema declares one ACCOUNT class. Authenticate needs a password
// column and Sync a change-log column.
func buildSchema(t *tableInfo) (*schema.Schema, error) {
	attrs := []schema.AttributeInfo{schema.NewAttributeInfo(objects.NameAttr, schema.TypeString, schema.Required)}
	if t.password != nil {
		attrs = append(attrs, schema.NewAttributeInfo(objects.PasswordAttr, schema.TypeGuardedString,
			schema.NotReadable, schema.NotReturnedByDefault))
	}
	for _, col := range t.order {
		var flags []schema.Flag
		if col.required {
			flags = append(flags, schema.Required)
		}
		if col.typ == schema.TypeBytes {
			flags = append(flags, schema.NotReturnedByDefault)
		}
		attrs = append(attrs, schema.NewAttributeInfo(col.name, col.typ, flags...))
	}

	ops := []schema.Operation{schema.OpCreate, schema.OpDelete, schema.OpUpdate,
		schema.OpResolveUsername, schema.OpSearch}
	if t.password != nil {
		ops = append(ops, schema.OpAuthenticate)
	}
	if t.changeLog != nil {
		ops = append(ops, schema.OpSync)
	}

	return schema.NewBuilder().
		DefineObjectClass(schema.NewObjectClassInfo(objects.Account, attrs...), ops...).
		DefineOperationOption(objects.OptionAttributesToGet, schema.TypeStringList, schema.OpSearch).
		DefineOperationOption(objects.OptionPageSize, schema.TypeInteger, schema.OpSearch).
		DefineOperationOption(objects.OptionPagedResultsCookie, schema.TypeString, schema.OpSearch).
		Build()
}
