package sample

import (
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
)

func buildSchema() (*schema.Schema, error) {
	account := schema.NewObjectClassInfo(objects.Account,
		schema.NewAttributeInfo(objects.NameAttr, schema.TypeString, schema.Required),
		schema.NewAttributeInfo(objects.PasswordAttr, schema.TypeGuardedString, schema.NotReadable, schema.NotReturnedByDefault),
		schema.NewAttributeInfo(objects.CurrentPasswordAttr, schema.TypeGuardedString,
			schema.NotCreatable, schema.NotReadable, schema.NotReturnedByDefault),
		schema.NewAttributeInfo(objects.GroupsAttr, schema.TypeString, schema.MultiValued, schema.NotCreatable, schema.NotUpdateable),
		schema.NewAttributeInfo("firstName", schema.TypeString),
		schema.NewAttributeInfo("lastName", schema.TypeString, schema.Required),
		schema.NewAttributeInfo("email", schema.TypeString, schema.MultiValued),
		schema.NewAttributeInfo(objects.EnableAttr, schema.TypeBoolean),
	)

	group := schema.NewObjectClassInfo(objects.Group,
		schema.NewAttributeInfo(objects.NameAttr, schema.TypeString, schema.Required),
		schema.NewAttributeInfo(objects.DescriptionAttr, schema.TypeString),
		schema.NewAttributeInfo(objects.MembersAttr, schema.TypeString, schema.MultiValued, schema.NotCreatable, schema.NotUpdateable),
	)

	return schema.NewBuilder().
		DefineObjectClass(account).
		DefineObjectClass(group, schema.OpCreate, schema.OpSearch, schema.OpUpdate, schema.OpDelete).
		DefineOperationOption(objects.OptionAttributesToGet, schema.TypeStringList, schema.OpSearch).
		DefineOperationOption(objects.OptionPageSize, schema.TypeInteger, schema.OpSearch).
		DefineOperationOption(objects.OptionPagedResultsCookie, schema.TypeString, schema.OpSearch).
		DefineOperationOption(objects.OptionRunAsUser, schema.TypeString).
		DefineOperationOption(objects.OptionRunWithPassword, schema.TypeGuardedString).
		Build()
}
