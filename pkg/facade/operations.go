package facade

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Authenticate verifies username and password and returns the account uid.
func (f *Facade) Authenticate(ctx context.Context, oc objects.ObjectClass, username string, password *security.GuardedString, opts *objects.OperationOptions) (objects.Uid, error) {
	c := classCall(core.OpAuthenticate, oc)
	c.validate = func(*schema.ObjectClassInfo) error {
		if username == "" {
			return errors.New(errors.ErrorTypeValidation, "username is required")
		}
		if password == nil {
			return errors.New(errors.ErrorTypeValidation, "password is required").
				WithDetail("username", username)
		}
		return nil
	}

	var uid objects.Uid
	err := f.invoke(ctx, c, func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.AuthenticateOp](conn, core.OpAuthenticate)
		if err != nil {
			return err
		}
		out, err := op.Authenticate(ctx, oc, username, password, opts)
		if err != nil {
			return err
		}
		uid = normalizerFor(conn, oc).uid(out)
		return nil
	})
	return uid, err
}

// ResolveUsername returns the uid of the account called username.
func (f *Facade) ResolveUsername(ctx context.Context, oc objects.ObjectClass, username string, opts *objects.OperationOptions) (objects.Uid, error) {
	c := classCall(core.OpResolveUsername, oc)
	c.validate = func(*schema.ObjectClassInfo) error {
		if username == "" {
			return errors.New(errors.ErrorTypeValidation, "username is required")
		}
		return nil
	}

	var uid objects.Uid
	err := f.invoke(ctx, c, func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.ResolveUsernameOp](conn, core.OpResolveUsername)
		if err != nil {
			return err
		}
		out, err := op.ResolveUsername(ctx, oc, username, opts)
		if err != nil {
			return err
		}
		uid = normalizerFor(conn, oc).uid(out)
		return nil
	})
	return uid, err
}

// Create creates an object and returns its uid. attrs must carry __NAME__.
func (f *Facade) Create(ctx context.Context, oc objects.ObjectClass, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error) {
	c := classCall(core.OpCreate, oc)
	c.validate = func(info *schema.ObjectClassInfo) error {
		if err := checkDistinct(attrs); err != nil {
			return err
		}
		if objects.NameFrom(attrs) == "" {
			return errors.New(errors.ErrorTypeRequiredAttributeMissing, "__NAME__ is required").
				WithDetail("attribute", objects.NameAttr).
				WithDetail("object_class", oc.Name())
		}
		return checkValues(info, attrs)
	}

	var uid objects.Uid
	err := f.invoke(ctx, c, func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.CreateOp](conn, core.OpCreate)
		if err != nil {
			return err
		}
		z := normalizerFor(conn, oc)
		out, err := op.Create(ctx, oc, z.attributes(attrs), opts)
		if err != nil {
			return err
		}
		uid = z.uid(out)
		return nil
	})
	return uid, err
}

// Update replaces the values of attrs and returns the possibly changed uid.
func (f *Facade) Update(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error) {
	c := classCall(core.OpUpdate, oc)
	c.validate = func(info *schema.ObjectClassInfo) error {
		if err := checkUid(oc, uid); err != nil {
			return err
		}
		if err := checkDistinct(attrs); err != nil {
			return err
		}
		if err := checkUpdateable(oc, info, attrs); err != nil {
			return err
		}
		return checkValues(info, attrs)
	}
	return f.modify(ctx, c, uid, func(ctx context.Context, conn core.PoolableConnector, uid objects.Uid, attrs []objects.Attribute) (objects.Uid, error) {
		op, err := as[core.UpdateOp](conn, core.OpUpdate)
		if err != nil {
			return objects.Uid{}, err
		}
		return op.Update(ctx, oc, uid, attrs, opts)
	}, attrs)
}

// AddAttributeValues adds values to multi-valued attributes.
func (f *Facade) AddAttributeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error) {
	return f.updateValues(ctx, oc, uid, attrs, opts, true)
}

// RemoveAttributeValues removes values from multi-valued attributes.
func (f *Facade) RemoveAttributeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions) (objects.Uid, error) {
	return f.updateValues(ctx, oc, uid, attrs, opts, false)
}

func (f *Facade) updateValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, opts *objects.OperationOptions, add bool) (objects.Uid, error) {
	c := classCall(core.OpUpdateAttributeValues, oc)
	c.validate = func(info *schema.ObjectClassInfo) error {
		if err := checkUid(oc, uid); err != nil {
			return err
		}
		if err := checkDistinct(attrs); err != nil {
			return err
		}
		for _, a := range attrs {
			if a.Is(objects.NameAttr) || objects.IsOperational(a.Name) {
				return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("%s cannot be added or removed", a.Name)).
					WithDetail("attribute", a.Name).
					WithDetail("object_class", oc.Name())
			}
			if a.HasNilValue() {
				return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("%s has no values to add or remove", a.Name)).
					WithDetail("attribute", a.Name).
					WithDetail("object_class", oc.Name())
			}
		}
		if err := checkUpdateable(oc, info, attrs); err != nil {
			return err
		}
		return checkValues(info, attrs)
	}
	return f.modify(ctx, c, uid, func(ctx context.Context, conn core.PoolableConnector, uid objects.Uid, attrs []objects.Attribute) (objects.Uid, error) {
		op, err := as[core.UpdateAttributeValuesOp](conn, core.OpUpdateAttributeValues)
		if err != nil {
			return objects.Uid{}, err
		}
		if add {
			return op.AddAttributeValues(ctx, oc, uid, attrs, opts)
		}
		return op.RemoveAttributeValues(ctx, oc, uid, attrs, opts)
	}, attrs)
}

type modifyFunc func(ctx context.Context, conn core.PoolableConnector, uid objects.Uid, attrs []objects.Attribute) (objects.Uid, error)

// modify normalizes the uid and attributes on the way in and the returned
// uid on the way out.
func (f *Facade) modify(ctx context.Context, c call, uid objects.Uid, fn modifyFunc, attrs []objects.Attribute) (objects.Uid, error) {
	var out objects.Uid
	err := f.invoke(ctx, c, func(ctx context.Context, conn core.PoolableConnector) error {
		z := normalizerFor(conn, c.oc)
		result, err := fn(ctx, conn, z.uid(uid), z.attributes(attrs))
		if err != nil {
			return err
		}
		out = z.uid(result)
		return nil
	})
	return out, err
}

// Delete removes an object. Deleting a missing object is ErrorTypeUnknownUid.
func (f *Facade) Delete(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, opts *objects.OperationOptions) error {
	c := classCall(core.OpDelete, oc)
	c.validate = func(*schema.ObjectClassInfo) error { return checkUid(oc, uid) }

	return f.invoke(ctx, c, func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.DeleteOp](conn, core.OpDelete)
		if err != nil {
			return err
		}
		return op.Delete(ctx, oc, normalizerFor(conn, oc).uid(uid), opts)
	})
}

// RunScriptOnConnector runs sc inside the connector.
func (f *Facade) RunScriptOnConnector(ctx context.Context, sc objects.ScriptContext, opts *objects.OperationOptions) (interface{}, error) {
	var result interface{}
	err := f.invoke(ctx, call{op: core.OpScriptOnConnector, validate: scriptCheck(sc)}, func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.ScriptOnConnectorOp](conn, core.OpScriptOnConnector)
		if err != nil {
			return err
		}
		result, err = op.RunScriptOnConnector(ctx, sc, opts)
		return err
	})
	return result, err
}

// RunScriptOnResource runs sc on the resource.
func (f *Facade) RunScriptOnResource(ctx context.Context, sc objects.ScriptContext, opts *objects.OperationOptions) (interface{}, error) {
	var result interface{}
	err := f.invoke(ctx, call{op: core.OpScriptOnResource, validate: scriptCheck(sc)}, func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.ScriptOnResourceOp](conn, core.OpScriptOnResource)
		if err != nil {
			return err
		}
		result, err = op.RunScriptOnResource(ctx, sc, opts)
		return err
	})
	return result, err
}

func scriptCheck(sc objects.ScriptContext) func(*schema.ObjectClassInfo) error {
	return func(*schema.ObjectClassInfo) error {
		if sc.Language == "" {
			return errors.New(errors.ErrorTypeValidation, "script language is required")
		}
		if sc.Text == "" {
			return errors.New(errors.ErrorTypeValidation, "script text is required").
				WithDetail("language", sc.Language)
		}
		return nil
	}
}

func checkUid(oc objects.ObjectClass, uid objects.Uid) error {
	if uid.IsZero() {
		return errors.New(errors.ErrorTypeValidation, "uid is required").
			WithDetail("object_class", oc.Name())
	}
	return nil
}

// checkDistinct rejects attribute lists naming the same attribute twice.
func checkDistinct(attrs []objects.Attribute) error {
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		key := strings.ToLower(a.Name)
		if _, dup := seen[key]; dup {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("duplicate attribute %s", a.Name)).
				WithDetail("attribute", a.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// checkUpdateable rejects attributes the schema declares not updateable.
// Attributes the schema does not know are left to the connector.
func checkUpdateable(oc objects.ObjectClass, info *schema.ObjectClassInfo, attrs []objects.Attribute) error {
	if info == nil {
		return nil
	}
	for _, a := range attrs {
		if a.Is(objects.UidAttr) {
			continue
		}
		ai, ok := info.Attribute(a.Name)
		if ok && !ai.IsUpdateable() {
			return errors.New(errors.ErrorTypeReadOnlyAttribute, fmt.Sprintf("attribute %s is read-only", a.Name)).
				WithDetail("attribute", a.Name).
				WithDetail("object_class", oc.Name())
		}
	}
	return nil
}

// checkValues rejects values that do not match the type the schema declares,
// such as a plain string given for a password.
func checkValues(info *schema.ObjectClassInfo, attrs []objects.Attribute) error {
	if info == nil {
		return nil
	}
	for _, a := range attrs {
		ai, ok := info.Attribute(a.Name)
		if !ok {
			continue
		}
		if err := ai.CheckValues(a); err != nil {
			return err
		}
	}
	return nil
}
