// Package sample is the reference connector. It manages accounts and groups
// in an in-memory Resource looked up by host, and implements every
// operation family.
//
//	import _ "github.com/ajitpratap0/idconnect/pkg/connector/connectors/sample"
//
// Uids are the lower-cased account or group name, so a rename changes the
// uid. The resource keeps a change log with increasing integer tokens that
// Sync replays.
package sample

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/base"
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"go.uber.org/zap"
)

// Name is the registered connector type name.
const Name = "sample"

// Version of the connector.
const Version = "1.0.0"

// Connector implements every operation family against a Resource.
type Connector struct {
	*base.BaseConnector

	directory *Directory
	cfg       *Configuration
	resource  *Resource
}

// New creates a connector bound to the default directory.
func New() core.Connector {
	return NewWithDirectory(DefaultDirectory())
}

// NewWithDirectory creates a connector that resolves hosts in d.
func NewWithDirectory(d *Directory) *Connector {
	return &Connector{
		BaseConnector: base.NewBaseConnector(Name),
		directory:     d,
	}
}

// Init validates cfg and attaches the resource for its host.
func (c *Connector) Init(cfg core.Configuration) error {
	sc, ok := cfg.(*Configuration)
	if !ok {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("expected *sample.Configuration, got %T", cfg))
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := c.BaseConnector.Init(cfg); err != nil {
		return err
	}

	c.cfg = sc
	c.resource = c.directory.Open(sc.Host)
	c.OnDispose(func() {
		c.resource = nil
		c.cfg = nil
	})
	c.Logger().Debug("attached to resource", zap.String("host", sc.Host))
	return nil
}

// CheckAlive pings the resource.
func (c *Connector) CheckAlive(ctx context.Context) error {
	res, err := c.ready()
	if err != nil {
		return err
	}
	return res.Ping()
}

// Test verifies the resource is reachable.
func (c *Connector) Test(ctx context.Context) error {
	return c.CheckAlive(ctx)
}

// Schema returns the memoized schema.
func (c *Connector) Schema(ctx context.Context) (*schema.Schema, error) {
	if err := c.EnsureUsable(); err != nil {
		return nil, err
	}
	return c.SchemaMemo().Get(buildSchema)
}

// NormalizeAttribute lower-cases uid values.
func (c *Connector) NormalizeAttribute(_ objects.ObjectClass, attr objects.Attribute) objects.Attribute {
	if !attr.Is(objects.UidAttr) || attr.Values == nil {
		return attr
	}
	values := make([]interface{}, len(attr.Values))
	for i, v := range attr.Values {
		if s, ok := v.(string); ok {
			v = strings.ToLower(s)
		}
		values[i] = v
	}
	return objects.NewAttribute(attr.Name, values...)
}

// Authenticate checks an account password and returns the account uid.
func (c *Connector) Authenticate(ctx context.Context, oc objects.ObjectClass, username string, password *security.GuardedString, _ *objects.OperationOptions) (objects.Uid, error) {
	res, err := c.readyFor(ctx, schema.OpAuthenticate, oc)
	if err != nil {
		return objects.Uid{}, err
	}

	uid, ok := res.FindByName(oc, username)
	if !ok || !res.CheckPassword(uid, password) {
		return objects.Uid{}, errors.New(errors.ErrorTypeInvalidCredential, "invalid username or password").
			WithDetail("username", username)
	}
	if obj, ok := res.Get(oc, uid); ok {
		if attr, ok := obj.Attribute(objects.EnableAttr); ok {
			if enabled, ok := attr.BoolValue(); ok && !enabled {
				return objects.Uid{}, errors.New(errors.ErrorTypeInvalidCredential, "account is disabled").
					WithDetail("username", username)
			}
		}
	}
	return objects.NewUid(uid), nil
}

// ResolveUsername returns the uid of the account called username.
func (c *Connector) ResolveUsername(ctx context.Context, oc objects.ObjectClass, username string, _ *objects.OperationOptions) (objects.Uid, error) {
	res, err := c.readyFor(ctx, schema.OpResolveUsername, oc)
	if err != nil {
		return objects.Uid{}, err
	}
	uid, ok := res.FindByName(oc, username)
	if !ok {
		return objects.Uid{}, errors.New(errors.ErrorTypeUnknownUid, fmt.Sprintf("no %s named %s", oc, username)).
			WithDetail("username", username)
	}
	return objects.NewUid(uid), nil
}

func (c *Connector) ready() (*Resource, error) {
	if err := c.EnsureUsable(); err != nil {
		return nil, err
	}
	return c.resource, nil
}

// readyFor checks the lifecycle state and that the schema allows op on oc.
func (c *Connector) readyFor(ctx context.Context, op schema.Operation, oc objects.ObjectClass) (*Resource, error) {
	res, err := c.ready()
	if err != nil {
		return nil, err
	}
	s, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if !s.SupportsObjectClass(op, oc) {
		return nil, errors.New(errors.ErrorTypeUnsupportedObjectClass, fmt.Sprintf("%s is not supported for %s", oc, op)).
			WithDetail("operation", string(op)).
			WithDetail("object_class", oc.Name())
	}
	return res, nil
}

// project drops attributes the caller may not read or did not ask for.
func project(info schema.ObjectClassInfo, obj *objects.ConnectorObject, opts *objects.OperationOptions) *objects.ConnectorObject {
	requested := opts.AttributesToGet() != nil
	b := objects.NewConnectorObjectBuilder().
		SetObjectClass(obj.ObjectClass()).
		SetUid(obj.Uid()).
		SetName(obj.Name())
	for _, a := range obj.Attributes() {
		if a.Is(objects.UidAttr) || a.Is(objects.NameAttr) {
			continue
		}
		ai, ok := info.Attribute(a.Name)
		if ok && !ai.IsReadable() {
			continue
		}
		if requested {
			if !opts.Wants(a.Name) {
				continue
			}
		} else if ok && !ai.IsReturnedByDefault() {
			continue
		}
		b.AddAttributes(a)
	}
	out, err := b.Build()
	if err != nil {
		return obj
	}
	return out
}
