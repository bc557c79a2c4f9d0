package facade

import (
	"context"
	"testing"

	"github.com/ajitpratap0/idconnect/pkg/connector/connectors/dbtable"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"github.com/ajitpratap0/idconnect/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTable(t *testing.T) *Facade {
	t.Helper()
	dsn := testutil.SQLiteDatabase(t, `CREATE TABLE users (
		login    TEXT NOT NULL PRIMARY KEY,
		secret   TEXT,
		dept     TEXT,
		revision INTEGER
	)`)

	f, err := Open(dbtable.Name, &dbtable.Configuration{
		Driver:          "sqlite",
		DSN:             dsn,
		Table:           "users",
		KeyColumn:       "login",
		PasswordColumn:  "secret",
		ChangeLogColumn: "revision",
	}, frameworkConfig())
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestTableLifecycle(t *testing.T) {
	f := openTable(t)
	ctx := context.Background()
	require.NoError(t, f.Test(ctx))

	for _, user := range []struct{ login, dept string }{{"ann", "ops"}, {"ben", "dev"}, {"cat", "ops"}} {
		_, err := f.Create(ctx, objects.Account, []objects.Attribute{
			objects.NameAttribute(user.login),
			objects.NewAttribute("dept", user.dept),
			objects.PasswordAttribute(security.GuardString(user.login + "-pw")),
		}, nil)
		require.NoError(t, err)
	}

	_, err := f.Create(ctx, objects.Account, []objects.Attribute{objects.NewAttribute("dept", "ops")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequiredAttributeMissing))

	h := &objectCollector{}
	_, err = f.Search(ctx, objects.Account, filter.Or(
		filter.Equals(objects.NewAttribute("dept", "ops")),
		filter.Not(filter.Presence("dept")),
	), h, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "cat"}, h.uids())

	obj, err := f.GetObject(ctx, objects.Account, objects.NewUid("ben"), nil)
	require.NoError(t, err)
	require.NotNil(t, obj)
	_, ok := obj.Attribute("secret")
	assert.False(t, ok)

	uid, err := f.Authenticate(ctx, objects.Account, "ben", security.GuardString("ben-pw"), nil)
	require.NoError(t, err)
	assert.Equal(t, "ben", uid.Value)

	_, err = f.AddAttributeValues(ctx, objects.Account, uid, []objects.Attribute{objects.NewAttribute("dept", "qa")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedOperation))
}

func TestTableSyncResumes(t *testing.T) {
	f := openTable(t)
	ctx := context.Background()

	_, err := f.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute("ann")}, nil)
	require.NoError(t, err)

	h := &deltaCollector{}
	token, err := f.Sync(ctx, objects.Account, nil, h, nil)
	require.NoError(t, err)
	require.Len(t, h.deltas, 1)
	assert.True(t, token.Equals(objects.NewSyncToken(int64(1))))

	renamed, err := f.Update(ctx, objects.Account, objects.NewUid("ann"), []objects.Attribute{objects.NameAttribute("anna")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anna", renamed.Value)

	next := &deltaCollector{}
	token, err = f.Sync(ctx, objects.Account, token, next, nil)
	require.NoError(t, err)
	require.Len(t, next.deltas, 1)
	assert.Equal(t, "anna", next.deltas[0].Uid.Value)
	assert.True(t, token.Equals(objects.NewSyncToken(int64(2))))

	none := &deltaCollector{}
	again, err := f.Sync(ctx, objects.Account, token, none, nil)
	require.NoError(t, err)
	assert.Empty(t, none.deltas)
	assert.True(t, again.Equals(token))
}
