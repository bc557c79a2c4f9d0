package filter

import (
	"fmt"
	"testing"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(t *testing.T) *objects.ConnectorObject {
	t.Helper()
	obj, err := objects.NewConnectorObjectBuilder().
		SetUid(objects.NewUid("jdoe")).
		SetName("jdoe").
		AddAttribute("firstName", "John").
		AddAttribute("lastName", "Doe").
		AddAttribute("uidNumber", 1042).
		AddAttribute("roles", "admin", "dev").
		AddAttribute("created", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)).
		Build()
	require.NoError(t, err)
	return obj
}

func attr(name string, values ...interface{}) objects.Attribute {
	return objects.NewAttribute(name, values...)
}

func TestAccept(t *testing.T) {
	obj := person(t)
	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"equals", Equals(attr("lastName", "Doe")), true},
		{"equals miss", Equals(attr("lastName", "Roe")), false},
		{"equals multivalued member", Equals(attr("roles", "dev")), true},
		{"equals whole list", Equals(attr("roles", "admin", "dev")), true},
		{"equals number widths", Equals(attr("uidNumber", int64(1042))), true},
		{"uid", UidEquals(objects.NewUid("jdoe")), true},
		{"missing attribute", Equals(attr("mail", "x")), false},
		{"contains", Contains(attr("firstName", "oh")), true},
		{"starts", StartsWith(attr("firstName", "Jo")), true},
		{"ends", EndsWith(attr("firstName", "Jo")), false},
		{"gt", GreaterThan(attr("uidNumber", 1000)), true},
		{"gte equal", GreaterThanOrEqual(attr("uidNumber", 1042)), true},
		{"lt", LessThan(attr("uidNumber", 1000)), false},
		{"lte time", LessThanOrEqual(attr("created", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))), true},
		{"gt incomparable", GreaterThan(attr("firstName", 5)), false},
		{"contains all", ContainsAllValues(attr("roles", "dev", "admin")), true},
		{"contains all miss", ContainsAllValues(attr("roles", "dev", "ops")), false},
		{"presence", Presence("roles"), true},
		{"absence", Presence("mail"), false},
		{"and", And(Equals(attr("firstName", "John")), Equals(attr("lastName", "Doe"))), true},
		{"or", Or(Equals(attr("firstName", "Jane")), Equals(attr("lastName", "Doe"))), true},
		{"not", Not(Equals(attr("lastName", "Doe"))), false},
		{"nil is match all", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accept(tt.f, obj))
		})
	}
	assert.False(t, Equals(attr("a", 1)).Accept(nil))
}

func TestAndOrSkipNil(t *testing.T) {
	f := Equals(attr("a", 1))
	assert.Same(t, f, And(nil, f))
	assert.Same(t, f, Or(f, nil))
	assert.Nil(t, And(nil))
}

// sqlBuilder expresses equality and ordering only.
type sqlBuilder struct {
	noAnd bool
	noOr  bool
}

func (b sqlBuilder) Comparison(f *AttributeFilter, not bool) (string, bool) {
	var op string
	switch f.Op {
	case OpEquals:
		op = "="
		if not {
			op = "<>"
		}
	case OpGreaterThan:
		if not {
			return "", false
		}
		op = ">"
	default:
		return "", false
	}
	return fmt.Sprintf("%s %s %v", f.Name(), op, f.Value()), true
}

func (b sqlBuilder) And(l, r string) (string, bool) {
	if b.noAnd {
		return "", false
	}
	return "(" + l + " AND " + r + ")", true
}

func (b sqlBuilder) Or(l, r string) (string, bool) {
	if b.noOr {
		return "", false
	}
	return "(" + l + " OR " + r + ")", true
}

func TestTranslate(t *testing.T) {
	a := Equals(attr("a", 1))
	b := Equals(attr("b", 2))
	c := Equals(attr("c", 3))
	untranslatable := Contains(attr("d", "x"))

	tests := []struct {
		name    string
		builder sqlBuilder
		f       Filter
		want    []string
	}{
		{"nil filter", sqlBuilder{}, nil, nil},
		{"leaf", sqlBuilder{}, a, []string{"a = 1"}},
		{"untranslatable leaf", sqlBuilder{}, untranslatable, nil},
		{"and", sqlBuilder{}, And(a, b), []string{"(a = 1 AND b = 2)"}},
		{"and keeps translatable side", sqlBuilder{}, And(untranslatable, b), []string{"b = 2"}},
		{"or", sqlBuilder{}, Or(a, b), []string{"(a = 1 OR b = 2)"}},
		{"or with untranslatable side", sqlBuilder{}, Or(a, untranslatable), nil},
		{"or split when builder cannot combine", sqlBuilder{noOr: true}, Or(a, b), []string{"a = 1", "b = 2"}},
		{"and distributes over split or", sqlBuilder{noOr: true}, And(Or(a, b), c),
			[]string{"(a = 1 AND c = 3)", "(b = 2 AND c = 3)"}},
		{"and falls back to left", sqlBuilder{noAnd: true}, And(a, b), []string{"a = 1"}},
		{"not leaf", sqlBuilder{}, Not(a), []string{"a <> 1"}},
		{"de morgan and", sqlBuilder{}, Not(And(a, b)), []string{"(a <> 1 OR b <> 2)"}},
		{"de morgan or", sqlBuilder{}, Not(Or(a, b)), []string{"(a <> 1 AND b <> 2)"}},
		{"double negation", sqlBuilder{}, Not(Not(a)), []string{"a = 1"}},
		{"negated untranslatable", sqlBuilder{}, Not(GreaterThan(attr("a", 1))), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate[string](tt.builder, tt.f))
		})
	}
}

func TestNewTranslator(t *testing.T) {
	tr := NewTranslator[string](sqlBuilder{noOr: true})
	queries := tr.Translate(Or(Equals(attr("a", 1)), Equals(attr("b", 2))))
	require.Len(t, queries, 2)
	assert.Equal(t, "a = 1", queries[0])
	assert.Empty(t, tr.Translate(nil))
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"lastName=Doe", "EQUALS(lastName, [Doe])"},
		{"uidNumber>=1000", "GREATER_THAN_OR_EQUAL(uidNumber, [1000])"},
		{"uidNumber>1000", "GREATER_THAN(uidNumber, [1000])"},
		{"uidNumber<5", "LESS_THAN(uidNumber, [5])"},
		{"mail$=@example.com", "ENDS_WITH(mail, [@example.com])"},
		{"cn^=Jo", "STARTS_WITH(cn, [Jo])"},
		{"cn*=oh", "CONTAINS(cn, [oh])"},
		{"dn=cn=admin,dc=example", "EQUALS(dn, [cn=admin,dc=example])"},
		{"active!=true", "NOT(EQUALS(active, [true]))"},
		{"manager?", "PRESENCE(manager)"},
		{` title = "Head of IT" `, "EQUALS(title, [Head of IT])"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}

	for _, bad := range []string{"", "novalue", "=x", "?"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}

	f, err := ParseAll([]string{"a=1", "b=2"})
	require.NoError(t, err)
	assert.Equal(t, "AND(EQUALS(a, [1]), EQUALS(b, [2]))", f.String())
	uidNumber, _ := f.(*AndFilter).Left.(*AttributeFilter)
	assert.Equal(t, int64(1), uidNumber.Value())
}
