package facade

import (
	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
)

// normalizer applies a connector's AttributeNormalizer, or nothing when the
// connector does not implement one.
type normalizer struct {
	n  core.AttributeNormalizer
	oc objects.ObjectClass
}

func normalizerFor(conn core.PoolableConnector, oc objects.ObjectClass) normalizer {
	n, _ := conn.(core.AttributeNormalizer)
	return normalizer{n: n, oc: oc}
}

func (z normalizer) enabled() bool { return z.n != nil }

func (z normalizer) attribute(a objects.Attribute) objects.Attribute {
	if z.n == nil {
		return a
	}
	return z.n.NormalizeAttribute(z.oc, a)
}

func (z normalizer) attributes(attrs []objects.Attribute) []objects.Attribute {
	if z.n == nil || attrs == nil {
		return attrs
	}
	out := make([]objects.Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = z.attribute(a)
	}
	return out
}

// uid normalizes the uid value and keeps its revision.
func (z normalizer) uid(uid objects.Uid) objects.Uid {
	if z.n == nil || uid.IsZero() {
		return uid
	}
	a := z.attribute(objects.UidAttribute(uid))
	v := a.StringValue()
	if v == "" {
		return uid
	}
	return objects.NewUidWithRevision(v, uid.Revision)
}

func (z normalizer) object(obj *objects.ConnectorObject) *objects.ConnectorObject {
	if z.n == nil || obj == nil {
		return obj
	}
	b := objects.NewConnectorObjectBuilder().
		SetObjectClass(obj.ObjectClass()).
		SetUid(z.uid(obj.Uid())).
		SetName(obj.Name())
	for _, a := range obj.Attributes() {
		if a.Is(objects.UidAttr) || a.Is(objects.NameAttr) {
			continue
		}
		b.AddAttributes(z.attribute(a))
	}
	out, err := b.Build()
	if err != nil {
		return obj
	}
	return out
}

func (z normalizer) delta(d *objects.SyncDelta) *objects.SyncDelta {
	if z.n == nil || d == nil {
		return d
	}
	out := *d
	out.Uid = z.uid(d.Uid)
	if d.PreviousUid != nil {
		prev := z.uid(*d.PreviousUid)
		out.PreviousUid = &prev
	}
	out.Object = z.object(d.Object)
	return &out
}

// filter rewrites the attribute values of every leaf.
func (z normalizer) filter(f filter.Filter) filter.Filter {
	if z.n == nil || f == nil {
		return f
	}
	switch t := f.(type) {
	case *filter.AttributeFilter:
		return &filter.AttributeFilter{Op: t.Op, Attribute: z.attribute(t.Attribute)}
	case *filter.AndFilter:
		return &filter.AndFilter{Left: z.filter(t.Left), Right: z.filter(t.Right)}
	case *filter.OrFilter:
		return &filter.OrFilter{Left: z.filter(t.Left), Right: z.filter(t.Right)}
	case *filter.NotFilter:
		return &filter.NotFilter{Filter: z.filter(t.Filter)}
	}
	return f
}
