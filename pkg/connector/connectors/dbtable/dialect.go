package dbtable

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// dialect opens a database for one driver and renders its bind parameters.
//
// Change numbers are MAX+1 of the change-log column, so two writers must not
// read the maximum concurrently. sqlite takes the write lock at BEGIN (see
// sqliteDSN), postgres locks the table inside each write and mysql holds a
// named lock around it. snowflake has no such guarantee and needs a single
// writer per table.
type dialect struct {
	open     func(cfg *Configuration) (*sql.DB, error)
	numbered bool
	// lockTable is run with the quoted table name when a write begins.
	lockTable string
	// namedLock brackets each write with GET_LOCK and RELEASE_LOCK.
	namedLock bool
}

var dialects = map[string]dialect{
	"sqlite":    {open: openSQLite},
	"postgres":  {open: openPostgres, numbered: true, lockTable: "LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE"},
	"mysql":     {open: openMySQL, namedLock: true},
	"snowflake": {open: openSnowflake},
}

func dialectFor(name string) (dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return dialect{}, errors.New(errors.ErrorTypeConfig, "unknown driver "+name).
			WithDetail("field", "driver")
	}
	return d, nil
}

// rebind rewrites ? placeholders for drivers with numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func reveal(g *security.GuardedString) (string, error) {
	if g == nil {
		return "", nil
	}
	var s string
	err := g.Access(func(clear []byte) { s = string(clear) })
	return s, err
}

func openSQLite(cfg *Configuration) (*sql.DB, error) {
	return sql.Open("sqlite", sqliteDSN(cfg.DSN))
}

// sqliteDSN makes write transactions BEGIN IMMEDIATE and lets a blocked
// writer wait for the lock. Settings already in dsn are kept.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func openPostgres(cfg *Configuration) (*sql.DB, error) {
	pc, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres dsn")
	}
	if cfg.User != "" {
		pc.User = cfg.User
	}
	if cfg.Password != nil {
		if pc.Password, err = reveal(cfg.Password); err != nil {
			return nil, err
		}
	}
	return stdlib.OpenDB(*pc), nil
}

func openMySQL(cfg *Configuration) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid mysql dsn")
	}
	if cfg.User != "" {
		mc.User = cfg.User
	}
	if cfg.Password != nil {
		if mc.Passwd, err = reveal(cfg.Password); err != nil {
			return nil, err
		}
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid mysql configuration")
	}
	return sql.OpenDB(conn), nil
}

func openSnowflake(cfg *Configuration) (*sql.DB, error) {
	sc, err := gosnowflake.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid snowflake dsn")
	}
	if cfg.User != "" {
		sc.User = cfg.User
	}
	if cfg.Password != nil {
		if sc.Password, err = reveal(cfg.Password); err != nil {
			return nil, err
		}
	}
	return sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, *sc)), nil
}

// sqlError classifies a database/sql failure.
func sqlError(err error, message string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.ErrorTypeTimeout, message)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return errors.Wrap(err, errors.ErrorTypeConnection, message)
	default:
		return errors.Wrap(err, errors.ErrorTypeInternal, message)
	}
}
