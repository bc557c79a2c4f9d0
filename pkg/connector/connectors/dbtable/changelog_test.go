package dbtable

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"idm.db", "idm.db?_txlock=immediate&_pragma=busy_timeout(5000)"},
		{"file:idm.db?mode=rwc", "file:idm.db?mode=rwc&_txlock=immediate&_pragma=busy_timeout(5000)"},
		{"idm.db?_txlock=exclusive", "idm.db?_txlock=exclusive&_pragma=busy_timeout(5000)"},
		{"idm.db?_pragma=busy_timeout(100)&_txlock=deferred", "idm.db?_pragma=busy_timeout(100)&_txlock=deferred"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.dsn))
		})
	}
}

func TestWriteLockingPerDialect(t *testing.T) {
	pg, err := dialectFor("postgres")
	require.NoError(t, err)
	assert.Contains(t, pg.lockTable, "LOCK TABLE")

	my, err := dialectFor("mysql")
	require.NoError(t, err)
	assert.True(t, my.namedLock)

	sf, err := dialectFor("snowflake")
	require.NoError(t, err)
	assert.Empty(t, sf.lockTable)
	assert.False(t, sf.namedLock)
}

func openConnector(t *testing.T, cfg *Configuration) *Connector {
	t.Helper()
	c := New().(*Connector)
	require.NoError(t, c.Init(cfg))
	require.NoError(t, c.Activate())
	t.Cleanup(c.Dispose)
	return c
}

// requireDistinctChanges creates rows from several connectors sharing one
// table at once and checks every write got its own change number.
func requireDistinctChanges(t *testing.T, cfg func() *Configuration) {
	t.Helper()
	const writers, perWriter = 3, 8

	conns := make([]*Connector, writers)
	for i := range conns {
		conns[i] = openConnector(t, cfg())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w, c := range conns {
		wg.Add(1)
		go func(w int, c *Connector) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := c.Create(ctx, objects.Account, []objects.Attribute{
					objects.NameAttribute(fmt.Sprintf("user-%d-%d", w, i)),
				}, nil)
				errs <- err
			}
		}(w, c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	h := &deltaCollector{}
	require.NoError(t, conns[0].Sync(ctx, objects.Account, nil, h, nil))
	require.Len(t, h.deltas, writers*perWriter)
	for i, d := range h.deltas {
		assert.True(t, d.Token.Equals(objects.NewSyncToken(int64(i+1))), "delta %d has token %v", i, d.Token.Value())
	}
}

func TestConcurrentWritersGetDistinctChangeNumbers(t *testing.T) {
	testutil.UseTestLogger(t)
	dsn := newDatabase(t)
	requireDistinctChanges(t, func() *Configuration { return testConfig(dsn) })
}

const integrationTable = `CREATE TABLE %s (
	username VARCHAR(64) NOT NULL PRIMARY KEY,
	password VARCHAR(255),
	email    VARCHAR(255),
	age      INTEGER,
	active   BOOLEAN,
	changes  BIGINT
)`

// serverTable creates a fresh accounts table on a live database and returns
// a configuration for it.
func serverTable(t *testing.T, driver, dsn string) func() *Configuration {
	t.Helper()
	table := fmt.Sprintf("idc_accounts_%d", time.Now().UnixNano())

	d, err := dialectFor(driver)
	require.NoError(t, err)
	db, err := d.open(&Configuration{DSN: dsn})
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf(integrationTable, table))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec("DROP TABLE " + table)
		_ = db.Close()
	})

	return func() *Configuration {
		cfg := testConfig(dsn)
		cfg.Driver = driver
		cfg.Table = table
		return cfg
	}
}

func TestPostgresConcurrentWriters(t *testing.T) {
	dsn := testutil.IntegrationDSN(t, "IDCONNECT_TEST_POSTGRES_DSN")
	testutil.UseTestLogger(t)
	requireDistinctChanges(t, serverTable(t, "postgres", dsn))
}

func TestMySQLConcurrentWriters(t *testing.T) {
	dsn := testutil.IntegrationDSN(t, "IDCONNECT_TEST_MYSQL_DSN")
	testutil.UseTestLogger(t)
	requireDistinctChanges(t, serverTable(t, "mysql", dsn))
}
