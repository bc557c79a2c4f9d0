package sample

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"go.uber.org/zap"
)

type writeMode int

const (
	modeCreate writeMode = iota
	modeUpdate
)

// Create stores a new object. The uid is the lower-cased name.
func (c *Connector) Create(ctx context.Context, oc objects.ObjectClass, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	res, err := c.readyFor(ctx, schema.OpCreate, oc)
	if err != nil {
		return objects.Uid{}, err
	}

	name := objects.NameFrom(attrs)
	if name == "" {
		return objects.Uid{}, errors.New(errors.ErrorTypeRequiredAttributeMissing, "__NAME__ is required").
			WithDetail("attribute", objects.NameAttr).
			WithDetail("object_class", oc.Name())
	}
	if err := c.checkWritable(ctx, oc, attrs, modeCreate); err != nil {
		return objects.Uid{}, err
	}

	var password *security.GuardedString
	if pw, ok := objects.Find(attrs, objects.PasswordAttr); ok {
		password = pw.GuardedValue().Copy()
	}
	stored := withoutNil(objects.Without(attrs, objects.NameAttr, objects.UidAttr, objects.PasswordAttr))

	uid := strings.ToLower(name)
	if err := res.Insert(oc, uid, name, stored, password); err != nil {
		return objects.Uid{}, err
	}
	c.Logger().Debug("object created", zap.String("object_class", oc.Name()), zap.String("uid", uid))
	return objects.NewUid(uid), nil
}

// Update replaces the given attributes. An attribute without values is
// removed; a new __NAME__ renames the object and changes its uid.
func (c *Connector) Update(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	res, err := c.readyFor(ctx, schema.OpUpdate, oc)
	if err != nil {
		return objects.Uid{}, err
	}
	if err := c.checkWritable(ctx, oc, attrs, modeUpdate); err != nil {
		return objects.Uid{}, err
	}

	if current, ok := objects.Find(attrs, objects.CurrentPasswordAttr); ok {
		if !res.CheckPassword(uid.Value, current.GuardedValue()) {
			return objects.Uid{}, errors.New(errors.ErrorTypeInvalidCredential, "current password does not match").
				WithDetail("uid", uid.Value)
		}
	}

	newUid, err := res.Modify(oc, uid.Value, func(rec *record) error {
		for _, a := range attrs {
			switch {
			case a.Is(objects.UidAttr), a.Is(objects.CurrentPasswordAttr):
			case a.Is(objects.NameAttr):
				name := a.StringValue()
				if name == "" {
					return errors.New(errors.ErrorTypeValidation, "__NAME__ must not be empty").
						WithDetail("uid", uid.Value)
				}
				rec.name = name
				rec.uid = strings.ToLower(name)
			case a.Is(objects.PasswordAttr):
				rec.password = a.GuardedValue().Copy()
			case a.Values == nil:
				rec.attrs = objects.Without(rec.attrs, a.Name)
			default:
				rec.attrs = append(objects.Without(rec.attrs, a.Name), a)
			}
		}
		return nil
	})
	if err != nil {
		return objects.Uid{}, err
	}
	return objects.NewUid(newUid), nil
}

// AddAttributeValues merges values into multi-valued attributes.
func (c *Connector) AddAttributeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	return c.mergeValues(ctx, oc, uid, attrs, true)
}

// RemoveAttributeValues removes values from multi-valued attributes.
func (c *Connector) RemoveAttributeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, _ *objects.OperationOptions) (objects.Uid, error) {
	return c.mergeValues(ctx, oc, uid, attrs, false)
}

func (c *Connector) mergeValues(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, attrs []objects.Attribute, add bool) (objects.Uid, error) {
	res, err := c.readyFor(ctx, schema.OpUpdateAttributeValues, oc)
	if err != nil {
		return objects.Uid{}, err
	}
	if err := c.checkWritable(ctx, oc, attrs, modeUpdate); err != nil {
		return objects.Uid{}, err
	}

	newUid, err := res.Modify(oc, uid.Value, func(rec *record) error {
		for _, a := range attrs {
			for _, v := range a.Values {
				s := fmt.Sprint(v)
				if add {
					addValue(rec, a.Name, s)
				} else {
					removeValue(rec, a.Name, s)
				}
			}
		}
		return nil
	})
	if err != nil {
		return objects.Uid{}, err
	}
	return objects.NewUid(newUid), nil
}

// Delete removes the object. Deleting a missing uid is ErrorTypeUnknownUid.
func (c *Connector) Delete(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, _ *objects.OperationOptions) error {
	res, err := c.readyFor(ctx, schema.OpDelete, oc)
	if err != nil {
		return err
	}
	if err := res.Remove(oc, uid.Value); err != nil {
		return err
	}
	c.Logger().Debug("object deleted", zap.String("object_class", oc.Name()), zap.String("uid", uid.Value))
	return nil
}

// checkWritable rejects attributes the schema does not declare, or declares
// not creatable or not updateable for mode.
func (c *Connector) checkWritable(ctx context.Context, oc objects.ObjectClass, attrs []objects.Attribute, mode writeMode) error {
	s, err := c.Schema(ctx)
	if err != nil {
		return err
	}
	info, ok := s.FindObjectClassInfo(oc)
	if !ok {
		return errors.New(errors.ErrorTypeUnsupportedObjectClass, fmt.Sprintf("%s is not defined", oc)).
			WithDetail("object_class", oc.Name())
	}

	for _, a := range attrs {
		if a.Is(objects.UidAttr) {
			continue
		}
		ai, ok := info.Attribute(a.Name)
		if !ok {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("attribute %s is not defined for %s", a.Name, oc)).
				WithDetail("attribute", a.Name).
				WithDetail("object_class", oc.Name())
		}
		if (mode == modeCreate && !ai.IsCreatable()) || (mode == modeUpdate && !ai.IsUpdateable()) {
			return errors.New(errors.ErrorTypeReadOnlyAttribute, fmt.Sprintf("attribute %s is read-only", a.Name)).
				WithDetail("attribute", a.Name).
				WithDetail("object_class", oc.Name())
		}
		if err := ai.CheckValues(a); err != nil {
			return err
		}
	}
	return nil
}

func withoutNil(attrs []objects.Attribute) []objects.Attribute {
	out := attrs[:0:0]
	for _, a := range attrs {
		if a.Values != nil {
			out = append(out, a)
		}
	}
	return out
}
