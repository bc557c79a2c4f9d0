package sample

import (
	"context"
	"testing"

	"github.com/ajitpratap0/idconnect/pkg/connector/base"
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/registry"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Configuration {
	return &Configuration{
		Host:       "localhost",
		RemoteUser: "admin",
		Password:   security.GuardString("Passw0rd"),
	}
}

func newConnector(t *testing.T) (*Connector, *Resource) {
	t.Helper()
	dir := NewDirectory()
	c := NewWithDirectory(dir)
	require.NoError(t, c.Init(testConfig()))
	require.NoError(t, c.Activate())
	t.Cleanup(c.Dispose)
	return c, dir.Open("localhost")
}

type collector struct {
	objects []*objects.ConnectorObject
	results []*objects.SearchResult
	limit   int
}

func (h *collector) Handle(obj *objects.ConnectorObject) bool {
	h.objects = append(h.objects, obj)
	return h.limit == 0 || len(h.objects) < h.limit
}

func (h *collector) HandleResult(r *objects.SearchResult) { h.results = append(h.results, r) }

type deltaCollector struct {
	deltas []*objects.SyncDelta
	tokens []*objects.SyncToken
}

func (h *deltaCollector) Handle(d *objects.SyncDelta) bool {
	h.deltas = append(h.deltas, d)
	return true
}

func (h *deltaCollector) HandleResult(t *objects.SyncToken) { h.tokens = append(h.tokens, t) }

func TestConfigurationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
		field  string
	}{
		{"valid", func(*Configuration) {}, ""},
		{"missing host", func(c *Configuration) { c.Host = "" }, "host"},
		{"host with slash", func(c *Configuration) { c.Host = "a/b" }, "host"},
		{"blank remote user", func(c *Configuration) { c.RemoteUser = "  " }, "remoteUser"},
		{"missing password", func(c *Configuration) { c.Password = nil }, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			var e *errors.Error
			require.True(t, errors.As(err, &e))
			field, _ := e.Detail("field")
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestConfigurationFieldsMaskPassword(t *testing.T) {
	fields := testConfig().Fields()
	require.Len(t, fields, 4)
	assert.Equal(t, "host", fields[0].Name)
	assert.Equal(t, "password", fields[2].Name)
	assert.Equal(t, security.Mask, fields[2].Value)
	assert.Equal(t, []string{"password"}, testConfig().Confidential())
}

func TestInitRejectsInvalidConfiguration(t *testing.T) {
	c := NewWithDirectory(NewDirectory())
	cfg := testConfig()
	cfg.Host = ""
	err := c.Init(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, base.StateUninitialized, c.State())
}

func TestRegistered(t *testing.T) {
	entry, err := registry.Lookup(Name)
	require.NoError(t, err)
	assert.Equal(t, Operations, entry.Info.Operations)
	assert.Equal(t, Operations, core.Implements(entry.New()))
}

func TestCreateDeleteDelete(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	uid, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute("Foo")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "foo", uid.Value)

	_, err = c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute("FOO")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAlreadyExists))

	require.NoError(t, c.Delete(ctx, objects.Account, uid, nil))
	err = c.Delete(ctx, objects.Account, uid, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownUid))
}

func TestCreateValidation(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	_, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NewAttribute("lastName", "Doe")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequiredAttributeMissing))

	_, err = c.Create(ctx, objects.Account, []objects.Attribute{
		objects.NameAttribute("x"),
		objects.NewAttribute(objects.GroupsAttr, "admins"),
	}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeReadOnlyAttribute))

	_, err = c.Create(ctx, objects.Account, []objects.Attribute{
		objects.NameAttribute("x"),
		objects.NewAttribute("shoeSize", 42),
	}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = c.Create(ctx, objects.NewObjectClass("__PRINTER__"), []objects.Attribute{objects.NameAttribute("x")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedObjectClass))
}

func TestUpdateRenameAndReadOnly(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	uid, err := c.Create(ctx, objects.Account, []objects.Attribute{
		objects.NameAttribute("Jane"),
		objects.NewAttribute("lastName", "Doe"),
		objects.NewAttribute("email", "jane@example.com"),
	}, nil)
	require.NoError(t, err)

	renamed, err := c.Update(ctx, objects.Account, uid, []objects.Attribute{
		objects.NameAttribute("Janet"),
		objects.NewAttribute("email"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "janet", renamed.Value)

	_, err = c.Update(ctx, objects.Account, uid, []objects.Attribute{objects.NewAttribute("lastName", "X")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownUid))

	_, err = c.Update(ctx, objects.Account, renamed, []objects.Attribute{objects.NewAttribute(objects.GroupsAttr, "g")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeReadOnlyAttribute))

	h := &collector{}
	require.NoError(t, c.ExecuteQuery(ctx, objects.Account, filter.UidEquals(renamed), h, nil))
	require.Len(t, h.objects, 1)
	_, hasEmail := h.objects[0].Attribute("email")
	assert.False(t, hasEmail)
	assert.Equal(t, "Janet", h.objects[0].Name())
}

func TestAddRemoveValues(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	uid, err := c.Create(ctx, objects.Account, []objects.Attribute{
		objects.NameAttribute("multi"),
		objects.NewAttribute("email", "a@x"),
	}, nil)
	require.NoError(t, err)

	_, err = c.AddAttributeValues(ctx, objects.Account, uid, []objects.Attribute{objects.NewAttribute("email", "b@x", "a@x")}, nil)
	require.NoError(t, err)
	_, err = c.RemoveAttributeValues(ctx, objects.Account, uid, []objects.Attribute{objects.NewAttribute("email", "a@x")}, nil)
	require.NoError(t, err)

	h := &collector{}
	require.NoError(t, c.ExecuteQuery(ctx, objects.Account, filter.UidEquals(uid), h, nil))
	require.Len(t, h.objects, 1)
	email, _ := h.objects[0].Attribute("email")
	assert.Equal(t, []interface{}{"b@x"}, email.Values)

	_, err = c.AddAttributeValues(ctx, objects.Group, uid, []objects.Attribute{objects.NewAttribute("x", "y")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedObjectClass))
}

func TestNormalizeAttributeIdempotent(t *testing.T) {
	c, _ := newConnector(t)

	attr := objects.NewAttribute(objects.UidAttr, "MiXeD")
	once := c.NormalizeAttribute(objects.Account, attr)
	twice := c.NormalizeAttribute(objects.Account, once)
	assert.Equal(t, []interface{}{"mixed"}, once.Values)
	assert.Equal(t, once, twice)

	other := objects.NewAttribute("firstName", "MiXeD")
	assert.Equal(t, other, c.NormalizeAttribute(objects.Account, other))
}

func TestSchemaMemoized(t *testing.T) {
	c, _ := newConnector(t)
	s1, err := c.Schema(context.Background())
	require.NoError(t, err)
	s2, err := c.Schema(context.Background())
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	assert.True(t, s1.SupportsObjectClass(core.OpAuthenticate, objects.Account))
	assert.False(t, s1.SupportsObjectClass(core.OpAuthenticate, objects.Group))
	assert.True(t, s1.SupportsObjectClass(core.OpSync, objects.All))

	info, ok := s1.FindObjectClassInfo(objects.Group)
	require.True(t, ok)
	members, ok := info.Attribute("members")
	require.True(t, ok)
	assert.False(t, members.IsUpdateable())
	assert.False(t, objects.IsSpecial(members.Name))
}

func TestPagedSearch(t *testing.T) {
	c, res := newConnector(t)
	ctx := context.Background()
	for _, n := range []string{"a1", "a2", "a3", "a4"} {
		_, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute(n)}, nil)
		require.NoError(t, err)
	}
	total := res.Count(objects.Account)
	require.Equal(t, 5, total)

	opts := objects.NewOperationOptionsBuilder().SetPageSize(2).Build()
	var seen []string
	for pages := 0; pages < 10; pages++ {
		h := &collector{}
		require.NoError(t, c.ExecuteQuery(ctx, objects.Account, nil, h, opts))
		assert.LessOrEqual(t, len(h.objects), 2)
		require.Len(t, h.results, 1)
		for _, o := range h.objects {
			seen = append(seen, o.Uid().Value)
		}
		if h.results[0].IsLastPage() {
			assert.Equal(t, 0, h.results[0].RemainingPagedResults)
			break
		}
		opts = objects.FromOptions(opts).SetPagedResultsCookie(h.results[0].PagedResultsCookie).Build()
	}
	assert.Equal(t, []string{SeedUid, "a1", "a2", "a3", "a4"}, seen)
}

func TestSearchStopsAndSkipsResultAfterStop(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()
	for _, n := range []string{"b1", "b2", "b3"} {
		_, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute(n)}, nil)
		require.NoError(t, err)
	}

	h := &collector{limit: 1}
	opts := objects.NewOperationOptionsBuilder().SetPageSize(10).Build()
	require.NoError(t, c.ExecuteQuery(ctx, objects.Account, nil, h, opts))
	assert.Len(t, h.objects, 1)
	assert.Empty(t, h.results)
}

func TestTranslatedSearch(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()
	for _, n := range []string{"alice", "bob", "albert"} {
		_, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute(n)}, nil)
		require.NoError(t, err)
	}

	f := filter.Or(
		filter.StartsWith(objects.NameAttribute("al")),
		filter.Equals(objects.NameAttribute("bob")),
	)
	queries := c.CreateFilterTranslator(objects.Account, nil).Translate(f)
	require.Len(t, queries, 1)

	h := &collector{}
	require.NoError(t, c.ExecuteQuery(ctx, objects.Account, queries[0], h, nil))
	var names []string
	for _, o := range h.objects {
		names = append(names, o.Name())
	}
	assert.Equal(t, []string{"albert", "alice", "bob"}, names)

	untranslatable := filter.ContainsAllValues(objects.NewAttribute("email", "x"))
	assert.Empty(t, c.CreateFilterTranslator(objects.Account, nil).Translate(untranslatable))
}

func TestSearchHidesPasswordAndHonoursAttributesToGet(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()
	uid, err := c.Create(ctx, objects.Account, []objects.Attribute{
		objects.NameAttribute("secretive"),
		objects.PasswordAttribute(security.GuardString("pw")),
		objects.NewAttribute("firstName", "S"),
		objects.NewAttribute("lastName", "T"),
	}, nil)
	require.NoError(t, err)

	h := &collector{}
	require.NoError(t, c.ExecuteQuery(ctx, objects.Account, filter.UidEquals(uid), h, nil))
	require.Len(t, h.objects, 1)
	_, ok := h.objects[0].Attribute(objects.PasswordAttr)
	assert.False(t, ok)

	h = &collector{}
	opts := objects.NewOperationOptionsBuilder().SetAttributesToGet("lastName").Build()
	require.NoError(t, c.ExecuteQuery(ctx, objects.Account, filter.UidEquals(uid), h, opts))
	require.Len(t, h.objects, 1)
	_, ok = h.objects[0].Attribute("firstName")
	assert.False(t, ok)
	_, ok = h.objects[0].Attribute("lastName")
	assert.True(t, ok)
}

func TestSyncSeedThenNothing(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	h := &deltaCollector{}
	require.NoError(t, c.Sync(ctx, objects.Account, nil, h, nil))
	require.Len(t, h.deltas, 1)
	assert.Equal(t, objects.SyncDeltaCreate, h.deltas[0].DeltaType)
	assert.True(t, h.deltas[0].Token.Equals(objects.NewSyncToken(10)))
	assert.Equal(t, SeedUid, h.deltas[0].Uid.Value)
	require.Len(t, h.tokens, 1)
	assert.True(t, h.tokens[0].Equals(objects.NewSyncToken(10)))

	h2 := &deltaCollector{}
	require.NoError(t, c.Sync(ctx, objects.Account, h.tokens[0], h2, nil))
	assert.Empty(t, h2.deltas)
	require.Len(t, h2.tokens, 1)

	latest, err := c.GetLatestSyncToken(ctx, objects.Account)
	require.NoError(t, err)
	assert.True(t, latest.Equals(objects.NewSyncToken(int64(10))))
}

func TestSyncTracksChanges(t *testing.T) {
	c, res := newConnector(t)
	ctx := context.Background()

	uid, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute("Sam")}, nil)
	require.NoError(t, err)
	_, err = c.Create(ctx, objects.Group, []objects.Attribute{objects.NameAttribute("Ops")}, nil)
	require.NoError(t, err)
	renamed, err := c.Update(ctx, objects.Account, uid, []objects.Attribute{objects.NameAttribute("Samuel")}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, objects.Account, renamed, nil))

	h := &deltaCollector{}
	require.NoError(t, c.Sync(ctx, objects.Account, objects.NewSyncToken(10), h, nil))
	require.Len(t, h.deltas, 3)
	assert.Equal(t, objects.SyncDeltaCreate, h.deltas[0].DeltaType)
	assert.Equal(t, objects.SyncDeltaUpdate, h.deltas[1].DeltaType)
	require.NotNil(t, h.deltas[1].PreviousUid)
	assert.Equal(t, "sam", h.deltas[1].PreviousUid.Value)
	assert.Equal(t, objects.SyncDeltaDelete, h.deltas[2].DeltaType)
	assert.Nil(t, h.deltas[2].Object)
	assert.True(t, h.tokens[0].Equals(objects.NewSyncToken(res.LatestToken())))

	all := &deltaCollector{}
	require.NoError(t, c.Sync(ctx, objects.All, nil, all, nil))
	assert.Empty(t, all.deltas)
	assert.Len(t, all.tokens, 1)

	_, err = c.GetLatestSyncToken(ctx, objects.NewObjectClass("__PRINTER__"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedObjectClass))

	err = c.Sync(ctx, objects.Account, objects.NewSyncToken("ten"), h, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestAuthenticateAndResolve(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	uid, err := c.Create(ctx, objects.Account, []objects.Attribute{
		objects.NameAttribute("Login"),
		objects.PasswordAttribute(security.GuardString("s3cret")),
	}, nil)
	require.NoError(t, err)

	got, err := c.Authenticate(ctx, objects.Account, "login", security.GuardString("s3cret"), nil)
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	_, err = c.Authenticate(ctx, objects.Account, "login", security.GuardString("wrong"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidCredential))

	_, err = c.Update(ctx, objects.Account, uid, []objects.Attribute{objects.NewAttribute(objects.EnableAttr, false)}, nil)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, objects.Account, "login", security.GuardString("s3cret"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidCredential))

	resolved, err := c.ResolveUsername(ctx, objects.Account, "LOGIN", nil)
	require.NoError(t, err)
	assert.Equal(t, uid, resolved)

	_, err = c.ResolveUsername(ctx, objects.Account, "nobody", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownUid))

	_, err = c.Update(ctx, objects.Account, uid, []objects.Attribute{
		objects.NewAttribute(objects.CurrentPasswordAttr, security.GuardString("nope")),
		objects.PasswordAttribute(security.GuardString("new")),
	}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidCredential))
}

func TestMembershipIsResourceManaged(t *testing.T) {
	c, res := newConnector(t)
	ctx := context.Background()

	acct, err := c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute("m1")}, nil)
	require.NoError(t, err)
	grp, err := c.Create(ctx, objects.Group, []objects.Attribute{objects.NameAttribute("G1")}, nil)
	require.NoError(t, err)
	require.NoError(t, res.AddMember(grp.Value, acct.Value))

	h := &collector{}
	require.NoError(t, c.ExecuteQuery(ctx, objects.Group, filter.UidEquals(grp), h, nil))
	require.Len(t, h.objects, 1)
	members, ok := h.objects[0].Attribute(objects.MembersAttr)
	require.True(t, ok)
	assert.Equal(t, []interface{}{"m1"}, members.Values)

	require.NoError(t, c.Delete(ctx, objects.Account, acct, nil))
	h = &collector{}
	require.NoError(t, c.ExecuteQuery(ctx, objects.Group, filter.UidEquals(grp), h, nil))
	_, ok = h.objects[0].Attribute(objects.MembersAttr)
	assert.False(t, ok)
}

func TestScripts(t *testing.T) {
	c, _ := newConnector(t)
	ctx := context.Background()

	out, err := c.RunScriptOnConnector(ctx,
		objects.NewScriptContext("expr", `connector.host + ":" + x`, map[string]interface{}{"x": "1"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:1", out)

	out, err = c.RunScriptOnResource(ctx,
		objects.NewScriptContext("expr", `resource.count`, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	out, err = c.RunScriptOnResource(ctx,
		objects.NewScriptContext("expr", `lookup(uid).lastName`, map[string]interface{}{"uid": SeedUid}), nil)
	require.NoError(t, err)
	assert.Equal(t, "Bar", out)

	_, err = c.RunScriptOnConnector(ctx, objects.NewScriptContext("groovy", "1", nil), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeScript))

	opts := objects.NewOperationOptionsBuilder().
		SetRunAsUser("nobody").
		SetRunWithPassword(security.GuardString("x")).
		Build()
	_, err = c.RunScriptOnConnector(ctx, objects.NewScriptContext("expr", "1", nil), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidCredential))
}

func TestInternalOnlyRefusesResourceScripts(t *testing.T) {
	c := NewWithDirectory(NewDirectory())
	cfg := testConfig()
	cfg.InternalOnly = true
	require.NoError(t, c.Init(cfg))
	defer c.Dispose()

	_, err := c.RunScriptOnResource(context.Background(), objects.NewScriptContext("expr", "1", nil), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedOperation))
}

func TestCheckAliveAndDispose(t *testing.T) {
	c, res := newConnector(t)
	ctx := context.Background()

	require.NoError(t, c.CheckAlive(ctx))
	res.SetOnline(false)
	err := c.Test(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	res.SetOnline(true)

	c.Dispose()
	err = c.CheckAlive(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIllegalState))
	_, err = c.Create(ctx, objects.Account, []objects.Attribute{objects.NameAttribute("late")}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIllegalState))
}
