package facade

import (
	"context"
	"strings"
	"sync"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/connector/base"
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

type stubConfig struct {
	invalid bool
}

func (c *stubConfig) Validate() error {
	if c.invalid {
		return errors.New(errors.ErrorTypeConfig, "stub configuration is invalid")
	}
	return nil
}
func (c *stubConfig) Fields() []config.FieldInfo { return nil }
func (c *stubConfig) Confidential() []string     { return nil }

// stubBehavior is shared by every stub instance a facade creates. It counts
// calls and scripts what the connector reports.
type stubBehavior struct {
	mu    sync.Mutex
	calls map[string]int
	args  map[string][]interface{}

	objects  []*objects.ConnectorObject
	queries  []filter.Query
	results  []*objects.SearchResult
	deltas   []*objects.SyncDelta
	reported []*objects.SyncToken
	latest   *objects.SyncToken
	failWith error
}

func newStubBehavior() *stubBehavior {
	return &stubBehavior{calls: make(map[string]int), args: make(map[string][]interface{})}
}

func (b *stubBehavior) record(op string, arg interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	b.args[op] = append(b.args[op], arg)
	return b.failWith
}

func (b *stubBehavior) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *stubBehavior) lastArg(op string) interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	args := b.args[op]
	if len(args) == 0 {
		return nil
	}
	return args[len(args)-1]
}

type stubConnector struct {
	*base.BaseConnector
	b *stubBehavior
}

func (c *stubConnector) CheckAlive(context.Context) error { return c.EnsureUsable() }

func (c *stubConnector) NormalizeAttribute(_ objects.ObjectClass, attr objects.Attribute) objects.Attribute {
	if !attr.Is(objects.UidAttr) {
		return attr
	}
	return objects.NewAttribute(attr.Name, strings.ToLower(attr.StringValue()))
}

func (c *stubConnector) Schema(context.Context) (*schema.Schema, error) {
	_ = c.b.record("schema", nil)
	return c.SchemaMemo().Get(func() (*schema.Schema, error) {
		return schema.NewBuilder().
			DefineObjectClass(schema.NewObjectClassInfo(objects.Account,
				schema.NewAttributeInfo(objects.NameAttr, schema.TypeString, schema.Required),
				schema.NewAttributeInfo("mail", schema.TypeString, schema.MultiValued),
				schema.NewAttributeInfo("employeeNumber", schema.TypeString, schema.NotUpdateable),
			)).
			DefineObjectClass(schema.NewObjectClassInfo(objects.Group,
				schema.NewAttributeInfo(objects.NameAttr, schema.TypeString, schema.Required),
			), schema.OpSearch).
			Build()
	})
}

func (c *stubConnector) Create(_ context.Context, _ objects.ObjectClass, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.b.record("create", attrs); err != nil {
		return objects.Uid{}, err
	}
	return objects.NewUid(strings.ToUpper(objects.NameFrom(attrs))), nil
}

func (c *stubConnector) Update(_ context.Context, _ objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.b.record("update", uid); err != nil {
		return objects.Uid{}, err
	}
	return uid, nil
}

func (c *stubConnector) AddAttributeValues(_ context.Context, _ objects.ObjectClass, uid objects.Uid, _ []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.b.record("add", uid); err != nil {
		return objects.Uid{}, err
	}
	return uid, nil
}

func (c *stubConnector) RemoveAttributeValues(_ context.Context, _ objects.ObjectClass, uid objects.Uid, _ []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	if err := c.b.record("remove", uid); err != nil {
		return objects.Uid{}, err
	}
	return uid, nil
}

func (c *stubConnector) Delete(_ context.Context, _ objects.ObjectClass, uid objects.Uid, _ *objects.OperationOptions) error {
	return c.b.record("delete", uid)
}

type translatorFunc func(filter.Filter) []filter.Query

func (f translatorFunc) Translate(flt filter.Filter) []filter.Query { return f(flt) }

func (c *stubConnector) CreateFilterTranslator(objects.ObjectClass, *objects.OperationOptions) filter.Translator {
	return translatorFunc(func(filter.Filter) []filter.Query { return c.b.queries })
}

// ExecuteQuery reports every scripted object for each query, then every
// scripted search result.
func (c *stubConnector) ExecuteQuery(_ context.Context, _ objects.ObjectClass, query filter.Query, handler core.ResultsHandler, _ *objects.OperationOptions) error {
	if err := c.b.record("query", query); err != nil {
		return err
	}
	for _, obj := range c.b.objects {
		if !handler.Handle(obj) {
			return nil
		}
	}
	if rh, ok := handler.(core.SearchResultsHandler); ok {
		for _, r := range c.b.results {
			rh.HandleResult(r)
		}
	}
	return nil
}

func (c *stubConnector) Sync(_ context.Context, _ objects.ObjectClass, token *objects.SyncToken, handler core.SyncResultsHandler, _ *objects.OperationOptions) error {
	if err := c.b.record("sync", token); err != nil {
		return err
	}
	for _, d := range c.b.deltas {
		if !handler.Handle(d) {
			return nil
		}
	}
	if th, ok := handler.(core.SyncTokenResultsHandler); ok {
		for _, t := range c.b.reported {
			th.HandleResult(t)
		}
	}
	return nil
}

func (c *stubConnector) GetLatestSyncToken(context.Context, objects.ObjectClass) (*objects.SyncToken, error) {
	if err := c.b.record("latest", nil); err != nil {
		return nil, err
	}
	return c.b.latest, nil
}

var stubOperations = core.NewOperationSet(
	core.OpCreate,
	core.OpUpdate,
	core.OpUpdateAttributeValues,
	core.OpDelete,
	core.OpSchema,
	core.OpSearch,
	core.OpSync,
)

func account(uid, name string, attrs ...objects.Attribute) *objects.ConnectorObject {
	obj, err := objects.NewConnectorObjectBuilder().
		SetObjectClass(objects.Account).
		SetUid(objects.NewUid(uid)).
		SetName(name).
		AddAttributes(attrs...).
		Build()
	if err != nil {
		panic(err)
	}
	return obj
}

func delta(token int64, uid string) *objects.SyncDelta {
	d, err := objects.NewSyncDeltaBuilder().
		SetToken(objects.NewSyncToken(token)).
		SetDeltaType(objects.SyncDeltaCreateOrUpdate).
		SetObject(account(uid, uid)).
		Build()
	if err != nil {
		panic(err)
	}
	return d
}

type objectCollector struct {
	objects []*objects.ConnectorObject
	results []*objects.SearchResult
	limit   int
}

func (h *objectCollector) Handle(obj *objects.ConnectorObject) bool {
	h.objects = append(h.objects, obj)
	return h.limit == 0 || len(h.objects) < h.limit
}

func (h *objectCollector) HandleResult(r *objects.SearchResult) { h.results = append(h.results, r) }

func (h *objectCollector) uids() []string {
	out := make([]string, len(h.objects))
	for i, o := range h.objects {
		out[i] = o.Uid().Value
	}
	return out
}

type deltaCollector struct {
	deltas []*objects.SyncDelta
	tokens []*objects.SyncToken
	limit  int
}

func (h *deltaCollector) Handle(d *objects.SyncDelta) bool {
	h.deltas = append(h.deltas, d)
	return h.limit == 0 || len(h.deltas) < h.limit
}

func (h *deltaCollector) HandleResult(t *objects.SyncToken) { h.tokens = append(h.tokens, t) }
