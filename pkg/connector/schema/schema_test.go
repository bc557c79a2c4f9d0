package schema

import (
	"testing"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	account := NewObjectClassInfo(objects.Account,
		NewAttributeInfo(objects.NameAttr, TypeString, Required),
		NewAttributeInfo(objects.PasswordAttr, TypeGuardedString, NotReadable, NotReturnedByDefault),
		NewAttributeInfo(objects.GroupsAttr, TypeString, MultiValued, NotCreatable, NotUpdateable),
		NewAttributeInfo("lastName", TypeString, Required),
	)
	group := NewObjectClassInfo(objects.Group,
		NewAttributeInfo(objects.NameAttr, TypeString, Required),
	)

	s, err := NewBuilder().
		DefineObjectClass(account).
		DefineObjectClass(group, OpCreate, OpSearch, OpUpdate, OpDelete).
		DefineOperationOption(objects.OptionPageSize, TypeInteger, OpSearch).
		DefineOperationOption(objects.OptionRunAsUser, TypeString).
		Build()
	require.NoError(t, err)
	return s
}

func TestSupportsObjectClass(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		op   Operation
		oc   objects.ObjectClass
		want bool
	}{
		{OpCreate, objects.Account, true},
		{OpSync, objects.Account, true},
		{OpAuthenticate, objects.NewObjectClass("__account__"), true},
		{OpCreate, objects.Group, true},
		{OpSync, objects.Group, false},
		{OpAuthenticate, objects.Group, false},
		{OpSync, objects.All, true},
		{OpSearch, objects.All, false},
		{OpCreate, objects.NewObjectClass("printer"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+tt.oc.Name(), func(t *testing.T) {
			assert.Equal(t, tt.want, s.SupportsObjectClass(tt.op, tt.oc))
		})
	}

	assert.Len(t, s.SupportedObjectClasses(OpSync), 1)
	assert.Len(t, s.SupportedObjectClasses(OpDelete), 2)
}

func TestAllNotSupportedWithoutSyncClass(t *testing.T) {
	s, err := NewBuilder().
		DefineObjectClass(NewObjectClassInfo(objects.Group), OpSearch).
		Build()
	require.NoError(t, err)
	assert.False(t, s.SupportsObjectClass(OpSync, objects.All))
}

func TestAttributeFlags(t *testing.T) {
	s := testSchema(t)
	info, ok := s.FindObjectClassInfo(objects.Account)
	require.True(t, ok)

	pw, ok := info.Attribute("__password__")
	require.True(t, ok)
	assert.False(t, pw.IsReadable())
	assert.False(t, pw.IsReturnedByDefault())
	assert.True(t, pw.IsUpdateable())

	groups, _ := info.Attribute(objects.GroupsAttr)
	assert.True(t, groups.IsMultiValued())
	assert.False(t, groups.IsCreatable())
	assert.False(t, groups.IsUpdateable())

	assert.Equal(t, []string{objects.NameAttr, objects.GroupsAttr, "lastName"}, info.ReturnedByDefault())

	_, ok = info.Attribute("missing")
	assert.False(t, ok)
}

func TestOperationOptions(t *testing.T) {
	s := testSchema(t)
	assert.Len(t, s.OperationOptionInfos(), 2)
	assert.Len(t, s.SupportedOptions(OpSearch), 2)
	assert.Len(t, s.SupportedOptions(OpCreate), 1)
}

func TestBuilderErrors(t *testing.T) {
	_, err := NewBuilder().Build()
	require.Error(t, err)

	_, err = NewBuilder().
		DefineObjectClass(NewObjectClassInfo(objects.Account)).
		DefineObjectClass(NewObjectClassInfo(objects.NewObjectClass("__ACCOUNT__"))).
		Build()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = NewBuilder().
		DefineObjectClass(NewObjectClassInfo(objects.Account), Operation("frobnicate")).
		Build()
	require.Error(t, err)
}

func TestOperationSet(t *testing.T) {
	set := NewOperationSet(OpCreate, OpSearch)
	assert.True(t, set.Has(OpCreate))
	assert.False(t, set.Has(OpSync))
	assert.False(t, set.Has(Operation("bogus")))
	assert.Equal(t, "create,search", set.String())
	assert.Equal(t, []Operation{OpCreate, OpSearch, OpSync}, set.With(OpSync).List())
	assert.True(t, OperationSet(0).IsEmpty())

	op, ok := ParseOperation("SCRIPT_ON_RESOURCE")
	assert.True(t, ok)
	assert.Equal(t, OpScriptOnResource, op)
	_, ok = ParseOperation("nope")
	assert.False(t, ok)
}

func TestSchemaJSON(t *testing.T) {
	data, err := gojson.Marshal(testSchema(t))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"type":"__ACCOUNT__"`)
	assert.Contains(t, out, `"readable":false`)
	assert.Contains(t, out, `"operations":["create","delete","update","search"]`)
}
