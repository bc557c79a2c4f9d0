package dbtable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Identifier quoting styles accepted by the quoting property.
const (
	QuoteNone     = "none"
	QuoteDouble   = "double"
	QuoteSingle   = "single"
	QuoteBack     = "back"
	QuoteBrackets = "brackets"
)

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Configuration holds the properties of a database table connector.
type Configuration struct {
	// Driver is one of sqlite, postgres, mysql or snowflake.
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the driver connection string without credentials.
	DSN string `yaml:"dsn" json:"dsn"`
	// User overrides the user in DSN.
	User string `yaml:"user" json:"user"`
	// Password overrides the password in DSN.
	Password *security.GuardedString `yaml:"password" json:"password"`
	// Table holds one account per row.
	Table string `yaml:"table" json:"table"`
	// KeyColumn holds the uid, and the account name unless NameColumn is set.
	KeyColumn string `yaml:"keyColumn" json:"keyColumn"`
	// NameColumn holds __NAME__ apart from the key.
	NameColumn string `yaml:"nameColumn" json:"nameColumn"`
	// PasswordColumn enables authentication when set.
	PasswordColumn string `yaml:"passwordColumn" json:"passwordColumn"`
	// ChangeLogColumn holds an increasing change number and enables sync.
	ChangeLogColumn string `yaml:"changeLogColumn" json:"changeLogColumn"`
	// ValidConnectionQuery is run to check a pooled connection.
	ValidConnectionQuery string `yaml:"validConnectionQuery" json:"validConnectionQuery"`
	// Quoting selects how table and column names are quoted.
	Quoting string `yaml:"quoting" json:"quoting"`
	// GenerateUid stores a random UUID in the key column of created rows. It
	// requires NameColumn.
	GenerateUid bool `yaml:"generateUid" json:"generateUid"`
}

// NewConfiguration returns an empty configuration to decode into.
func NewConfiguration() *Configuration {
	return &Configuration{}
}

func checkIdentifier(v interface{}) error {
	s, _ := v.(string)
	if s != "" && strings.ContainsAny(s, "\"'`[]; \t\n") {
		return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("%q is not a valid identifier", s))
	}
	return nil
}

var fields = config.Descriptors[Configuration]{
	{
		Name:       "driver",
		Required:   true,
		HelpKey:    "driver.help",
		DisplayKey: "driver.display",
		Order:      1,
		Get:        func(c *Configuration) interface{} { return c.Driver },
		Check: func(v interface{}) error {
			if _, ok := dialects[strings.ToLower(fmt.Sprint(v))]; !ok {
				return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unknown driver %v", v))
			}
			return nil
		},
	},
	{
		Name:       "dsn",
		Required:   true,
		NonBlank:   true,
		HelpKey:    "dsn.help",
		DisplayKey: "dsn.display",
		Order:      2,
		Get:        func(c *Configuration) interface{} { return c.DSN },
	},
	{
		Name:       "user",
		HelpKey:    "user.help",
		DisplayKey: "user.display",
		Order:      3,
		Get:        func(c *Configuration) interface{} { return c.User },
	},
	{
		Name:         "password",
		Confidential: true,
		HelpKey:      "password.help",
		DisplayKey:   "password.display",
		Order:        4,
		Get:          func(c *Configuration) interface{} { return c.Password },
	},
	{
		Name:       "table",
		Required:   true,
		NonBlank:   true,
		HelpKey:    "table.help",
		DisplayKey: "table.display",
		Order:      5,
		Get:        func(c *Configuration) interface{} { return c.Table },
		Check:      checkIdentifier,
	},
	{
		Name:       "keyColumn",
		Required:   true,
		NonBlank:   true,
		HelpKey:    "keyColumn.help",
		DisplayKey: "keyColumn.display",
		Order:      6,
		Get:        func(c *Configuration) interface{} { return c.KeyColumn },
		Check:      checkIdentifier,
	},
	{
		Name:       "nameColumn",
		HelpKey:    "nameColumn.help",
		DisplayKey: "nameColumn.display",
		Order:      7,
		Get:        func(c *Configuration) interface{} { return c.NameColumn },
		Check:      checkIdentifier,
	},
	{
		Name:       "passwordColumn",
		HelpKey:    "passwordColumn.help",
		DisplayKey: "passwordColumn.display",
		Order:      8,
		Get:        func(c *Configuration) interface{} { return c.PasswordColumn },
		Check:      checkIdentifier,
	},
	{
		Name:       "changeLogColumn",
		HelpKey:    "changeLogColumn.help",
		DisplayKey: "changeLogColumn.display",
		Order:      9,
		Get:        func(c *Configuration) interface{} { return c.ChangeLogColumn },
		Check:      checkIdentifier,
	},
	{
		Name:       "validConnectionQuery",
		HelpKey:    "validConnectionQuery.help",
		DisplayKey: "validConnectionQuery.display",
		Order:      10,
		Get:        func(c *Configuration) interface{} { return c.ValidConnectionQuery },
	},
	{
		Name:       "quoting",
		HelpKey:    "quoting.help",
		DisplayKey: "quoting.display",
		Order:      11,
		Get:        func(c *Configuration) interface{} { return c.Quoting },
		Check: func(v interface{}) error {
			switch strings.ToLower(fmt.Sprint(v)) {
			case "", QuoteNone, QuoteDouble, QuoteSingle, QuoteBack, QuoteBrackets:
				return nil
			}
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unknown quoting %v", v))
		},
	},
	{
		Name:       "generateUid",
		HelpKey:    "generateUid.help",
		DisplayKey: "generateUid.display",
		Order:      12,
		Get:        func(c *Configuration) interface{} { return c.GenerateUid },
	},
}

// Validate checks the properties and that the special columns are distinct.
// Unquoted names must be plain SQL identifiers.
func (c *Configuration) Validate() error {
	if err := fields.Validate(c); err != nil {
		return err
	}

	seen := map[string]string{strings.ToLower(c.KeyColumn): "keyColumn"}
	for _, col := range []struct{ field, name string }{
		{"nameColumn", c.NameColumn},
		{"passwordColumn", c.PasswordColumn},
		{"changeLogColumn", c.ChangeLogColumn},
	} {
		if col.name == "" {
			continue
		}
		if other, dup := seen[strings.ToLower(col.name)]; dup {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s must differ from %s", col.field, other)).
				WithDetail("field", col.field)
		}
		seen[strings.ToLower(col.name)] = col.field
	}

	if c.GenerateUid && c.NameColumn == "" {
		return errors.New(errors.ErrorTypeConfig, "generateUid requires nameColumn").
			WithDetail("field", "nameColumn")
	}

	if c.quoting() == QuoteNone {
		for _, name := range []string{c.Table, c.KeyColumn, c.NameColumn, c.PasswordColumn, c.ChangeLogColumn} {
			if name != "" && !plainIdentifier.MatchString(name) {
				return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%q must be quoted", name)).
					WithDetail("field", "quoting")
			}
		}
	}
	return nil
}

// Fields describes the configuration with secrets masked.
func (c *Configuration) Fields() []config.FieldInfo { return fields.Describe(c) }

// Confidential lists the properties holding secrets.
func (c *Configuration) Confidential() []string { return fields.Confidential() }

func (c *Configuration) quoting() string {
	if c.Quoting == "" {
		return QuoteNone
	}
	return strings.ToLower(c.Quoting)
}

// QuoteName quotes a table or column name in the configured style.
func (c *Configuration) QuoteName(name string) string {
	switch c.quoting() {
	case QuoteDouble:
		return `"` + name + `"`
	case QuoteSingle:
		return `'` + name + `'`
	case QuoteBack:
		return "`" + name + "`"
	case QuoteBrackets:
		return "[" + name + "]"
	default:
		return name
	}
}
