package filter

// Query is a connector-native query produced by a Translator. Only the
// connector that created it interprets it.
type Query interface{}

// Translator turns a filter into connector-native queries. An empty result
// asks for a full scan; the framework filters the objects client-side. More
// than one query means the results of each are merged with duplicates
// removed.
type Translator interface {
	Translate(f Filter) []Query
}

// ExpressionBuilder creates native expressions of type T. A builder returns
// ok=false for anything it cannot express; the translator then widens the
// query and relies on client-side filtering.
type ExpressionBuilder[T any] interface {
	// Comparison expresses a single attribute filter, negated when not is set.
	Comparison(f *AttributeFilter, not bool) (T, bool)
	And(left, right T) (T, bool)
	Or(left, right T) (T, bool)
}

// NewTranslator adapts an ExpressionBuilder into a Translator.
func NewTranslator[T any](b ExpressionBuilder[T]) Translator {
	return translator[T]{b: b}
}

type translator[T any] struct {
	b ExpressionBuilder[T]
}

func (t translator[T]) Translate(f Filter) []Query {
	exprs := Translate(t.b, f)
	out := make([]Query, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, e)
	}
	return out
}

// Translate pushes negations down to the leaves and builds the expression
// list for f.
//
// An AND with an untranslatable side keeps the translatable side; an OR
// with an untranslatable side cannot be narrowed and yields nothing. An OR
// that the builder cannot combine becomes two queries.
func Translate[T any](b ExpressionBuilder[T], f Filter) []T {
	if f == nil {
		return nil
	}
	exprs, ok := translate(b, normalize(f, false))
	if !ok {
		return nil
	}
	return exprs
}

// normalize rewrites f so that NotFilter only wraps attribute filters.
func normalize(f Filter, not bool) Filter {
	switch v := f.(type) {
	case *NotFilter:
		return normalize(v.Filter, !not)
	case *AndFilter:
		l, r := normalize(v.Left, not), normalize(v.Right, not)
		if not {
			return &OrFilter{Left: l, Right: r}
		}
		return &AndFilter{Left: l, Right: r}
	case *OrFilter:
		l, r := normalize(v.Left, not), normalize(v.Right, not)
		if not {
			return &AndFilter{Left: l, Right: r}
		}
		return &OrFilter{Left: l, Right: r}
	default:
		if not {
			return &NotFilter{Filter: f}
		}
		return f
	}
}

func translate[T any](b ExpressionBuilder[T], f Filter) ([]T, bool) {
	switch v := f.(type) {
	case *AndFilter:
		return translateAnd(b, v)
	case *OrFilter:
		return translateOr(b, v)
	case *NotFilter:
		af, ok := v.Filter.(*AttributeFilter)
		if !ok {
			return nil, false
		}
		e, ok := b.Comparison(af, true)
		if !ok {
			return nil, false
		}
		return []T{e}, true
	case *AttributeFilter:
		e, ok := b.Comparison(v, false)
		if !ok {
			return nil, false
		}
		return []T{e}, true
	default:
		return nil, false
	}
}

func translateAnd[T any](b ExpressionBuilder[T], f *AndFilter) ([]T, bool) {
	left, lok := translate(b, f.Left)
	right, rok := translate(b, f.Right)
	switch {
	case !lok && !rok:
		return nil, false
	case !lok:
		return right, true
	case !rok:
		return left, true
	}

	// (a OR b) AND (c OR d) distributes into every pairing
	out := make([]T, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			e, ok := b.And(l, r)
			if !ok {
				// the left side alone is a superset of the result
				return left, true
			}
			out = append(out, e)
		}
	}
	return out, true
}

func translateOr[T any](b ExpressionBuilder[T], f *OrFilter) ([]T, bool) {
	left, lok := translate(b, f.Left)
	if !lok {
		return nil, false
	}
	right, rok := translate(b, f.Right)
	if !rok {
		return nil, false
	}
	if len(left) == 1 && len(right) == 1 {
		if e, ok := b.Or(left[0], right[0]); ok {
			return []T{e}, true
		}
	}
	return append(append([]T{}, left...), right...), true
}
