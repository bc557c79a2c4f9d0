package core

import (
	"context"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Operation and OperationSet are declared by the schema package, which
// describes per-class support; they are re-exported here for connectors.
type (
	Operation    = schema.Operation
	OperationSet = schema.OperationSet
)

const (
	OpAuthenticate          = schema.OpAuthenticate
	OpCreate                = schema.OpCreate
	OpDelete                = schema.OpDelete
	OpUpdate                = schema.OpUpdate
	OpUpdateAttributeValues = schema.OpUpdateAttributeValues
	OpResolveUsername       = schema.OpResolveUsername
	OpSchema                = schema.OpSchema
	OpScriptOnConnector     = schema.OpScriptOnConnector
	OpScriptOnResource      = schema.OpScriptOnResource
	OpSearch                = schema.OpSearch
	OpSync                  = schema.OpSync
	OpTest                  = schema.OpTest
)

// NewOperationSet builds a manifest.
func NewOperationSet(ops ...Operation) OperationSet { return schema.NewOperationSet(ops...) }

// Configuration is the connector-specific configuration of a connector type.
type Configuration interface {
	// Validate checks every field and reports the first violation as an
	// ErrorTypeConfig error.
	Validate() error
	// Fields describes the configuration with confidential values masked.
	Fields() []config.FieldInfo
	// Confidential names the fields whose values are secrets.
	Confidential() []string
}

// Connector is the lifecycle every connector implements. Init is called
// exactly once with a validated configuration before any operation; Dispose
// releases all resources and may be called more than once.
type Connector interface {
	Init(cfg Configuration) error
	Configuration() Configuration
	Dispose()
}

// PoolableConnector is a connector whose instances can be pooled. CheckAlive
// must be cheap and free of side effects; an error makes the pool discard
// the instance.
type PoolableConnector interface {
	Connector
	CheckAlive(ctx context.Context) error
}

// AttributeNormalizer is implemented by connectors whose resource compares
// attribute values in a canonical form, for example case-insensitive uids.
// NormalizeAttribute must be idempotent and free of side effects.
type AttributeNormalizer interface {
	NormalizeAttribute(oc objects.ObjectClass, attr objects.Attribute) objects.Attribute
}

// AuthenticateOp verifies credentials and returns the uid of the account.
type AuthenticateOp interface {
	Authenticate(ctx context.Context, oc objects.ObjectClass, username string, password *security.GuardedString, opts *objects.OperationOptions) (objects.Uid, error)
}

// ResolveUsernameOp maps a username to a uid without checking a password.
type ResolveUsernameOp interface {
	ResolveUsername(ctx context.Context, oc objects.ObjectClass, username string, opts *objects.OperationOptions) (objects.Uid, error)
}

// CreateOp creates an object. attrs always include __NAME__.
type CreateOp interface {
	Create(ctx context.Context, oc objects.ObjectClass, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error)
}

// DeleteOp deletes an object. Deleting a missing object is ErrorTypeUnknownUid.
type DeleteOp interface {
	Delete(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, opts *objects.OperationOptions) error
}

// UpdateOp replaces attribute values. The returned uid differs from the
// input when the update renamed the object.
type UpdateOp interface {
	Update(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error)
}

// UpdateAttributeValuesOp adds and removes individual values of
// multi-valued attributes.
type UpdateAttributeValuesOp interface {
	AddAttributeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error)
	RemoveAttributeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error)
}

// SchemaOp describes the resource.
type SchemaOp interface {
	Schema(ctx context.Context) (*schema.Schema, error)
}

// ScriptOnConnectorOp runs a script inside the connector process.
type ScriptOnConnectorOp interface {
	RunScriptOnConnector(ctx context.Context, sc objects.ScriptContext, opts *objects.OperationOptions) (interface{}, error)
}

// ScriptOnResourceOp runs a script on the resource itself.
type ScriptOnResourceOp interface {
	RunScriptOnResource(ctx context.Context, sc objects.ScriptContext, opts *objects.OperationOptions) (interface{}, error)
}

// SearchOp queries the resource.
//
// ExecuteQuery calls handler.Handle for each match in order and returns as
// soon as it returns false. When paging was requested and the handler is a
// SearchResultsHandler, HandleResult is called once after the last object
// of the page, and never after a stop. A nil query means every object of
// the class.
type SearchOp interface {
	CreateFilterTranslator(oc objects.ObjectClass, opts *objects.OperationOptions) filter.Translator
	ExecuteQuery(ctx context.Context, oc objects.ObjectClass, query filter.Query, handler ResultsHandler, opts *objects.OperationOptions) error
}

// SyncOp reports changes since a token.
//
// Sync calls handler.Handle for each change with a token greater than the
// supplied one, in token order, and stops when it returns false. After the
// last change it reports the new high-water mark once through
// SyncTokenResultsHandler, if the handler implements it.
type SyncOp interface {
	Sync(ctx context.Context, oc objects.ObjectClass, token *objects.SyncToken, handler SyncResultsHandler, opts *objects.OperationOptions) error
	GetLatestSyncToken(ctx context.Context, oc objects.ObjectClass) (*objects.SyncToken, error)
}

// TestOp checks the configuration against the live resource.
type TestOp interface {
	Test(ctx context.Context) error
}

// ResultsHandler receives search results. Returning false stops the search.
type ResultsHandler interface {
	Handle(obj *objects.ConnectorObject) bool
}

// ResultsHandlerFunc adapts a function into a ResultsHandler.
type ResultsHandlerFunc func(obj *objects.ConnectorObject) bool

// Handle implements ResultsHandler.
func (f ResultsHandlerFunc) Handle(obj *objects.ConnectorObject) bool { return f(obj) }

// SearchResultsHandler additionally receives the terminal paging report.
type SearchResultsHandler interface {
	ResultsHandler
	HandleResult(result *objects.SearchResult)
}

// SyncResultsHandler receives sync deltas. Returning false stops the sync.
type SyncResultsHandler interface {
	Handle(delta *objects.SyncDelta) bool
}

// SyncResultsHandlerFunc adapts a function into a SyncResultsHandler.
type SyncResultsHandlerFunc func(delta *objects.SyncDelta) bool

// Handle implements SyncResultsHandler.
func (f SyncResultsHandlerFunc) Handle(delta *objects.SyncDelta) bool { return f(delta) }

// SyncTokenResultsHandler additionally receives the final token of a sync.
type SyncTokenResultsHandler interface {
	SyncResultsHandler
	HandleResult(token *objects.SyncToken)
}

// Implements reports which operation families c implements.
func Implements(c Connector) OperationSet {
	var set OperationSet
	check := func(op Operation, ok bool) {
		if ok {
			set = set.With(op)
		}
	}
	_, ok := c.(AuthenticateOp)
	check(OpAuthenticate, ok)
	_, ok = c.(CreateOp)
	check(OpCreate, ok)
	_, ok = c.(DeleteOp)
	check(OpDelete, ok)
	_, ok = c.(UpdateOp)
	check(OpUpdate, ok)
	_, ok = c.(UpdateAttributeValuesOp)
	check(OpUpdateAttributeValues, ok)
	_, ok = c.(ResolveUsernameOp)
	check(OpResolveUsername, ok)
	_, ok = c.(SchemaOp)
	check(OpSchema, ok)
	_, ok = c.(ScriptOnConnectorOp)
	check(OpScriptOnConnector, ok)
	_, ok = c.(ScriptOnResourceOp)
	check(OpScriptOnResource, ok)
	_, ok = c.(SearchOp)
	check(OpSearch, ok)
	_, ok = c.(SyncOp)
	check(OpSync, ok)
	_, ok = c.(TestOp)
	check(OpTest, ok)
	return set
}
