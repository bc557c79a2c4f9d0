package dbtable

import (
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/registry"
)

// Operations is the manifest the connector registers with. Authenticate and
// Sync are further limited by the schema of each configured table.
var Operations = core.NewOperationSet(
	core.OpAuthenticate,
	core.OpCreate,
	core.OpDelete,
	core.OpUpdate,
	core.OpResolveUsername,
	core.OpSchema,
	core.OpSearch,
	core.OpSync,
	core.OpTest,
)

func init() {
	registry.MustRegister(registry.Info{
		Name:        Name,
		Version:     Version,
		Description: "Accounts stored as rows of a SQL table",
		Operations:  Operations,
	}, New, func() core.Configuration { return NewConfiguration() })
}

var (
	_ core.PoolableConnector = (*Connector)(nil)
	_ core.AuthenticateOp    = (*Connector)(nil)
	_ core.ResolveUsernameOp = (*Connector)(nil)
	_ core.CreateOp          = (*Connector)(nil)
	_ core.DeleteOp          = (*Connector)(nil)
	_ core.UpdateOp          = (*Connector)(nil)
	_ core.SchemaOp          = (*Connector)(nil)
	_ core.SearchOp          = (*Connector)(nil)
	_ core.SyncOp            = (*Connector)(nil)
	_ core.TestOp            = (*Connector)(nil)
)
