// Package core defines the contract between the framework and connector
// implementations.
//
// A connector type is a struct that embeds base.BaseConnector, implements
// PoolableConnector and any subset of the operation interfaces
// (CreateOp, SearchOp, SyncOp, ...). The operations a type supports are
// declared once, as an OperationSet manifest, when the type is registered:
//
//	registry.MustRegister(registry.Info{
//		Name:       "sample",
//		Operations: core.NewOperationSet(core.OpCreate, core.OpSearch, core.OpSync),
//	}, New, NewConfiguration)
//
// The registry checks the manifest against the interfaces the type really
// implements; the facade dispatches on the manifest alone.
package core
