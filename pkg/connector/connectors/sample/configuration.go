package sample

import (
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Configuration holds the properties of a sample connector instance.
type Configuration struct {
	// Host names the resource in the in-process Directory.
	Host string `yaml:"host" json:"host"`
	// RemoteUser is the administrative account used for scripts.
	RemoteUser string `yaml:"remoteUser" json:"remoteUser"`
	// Password of RemoteUser.
	Password *security.GuardedString `yaml:"password" json:"password"`
	// InternalOnly refuses scripts that run on the resource itself.
	InternalOnly bool `yaml:"internalOnly" json:"internalOnly"`
}

// NewConfiguration returns an empty configuration to decode into.
func NewConfiguration() *Configuration {
	return &Configuration{}
}

var fields = config.Descriptors[Configuration]{
	{
		Name:       "host",
		Required:   true,
		HelpKey:    "host.help",
		DisplayKey: "host.display",
		Order:      1,
		Get:        func(c *Configuration) interface{} { return c.Host },
		Check: func(v interface{}) error {
			if s, _ := v.(string); strings.ContainsAny(s, " \t/") {
				return errors.New(errors.ErrorTypeValidation, "host must not contain spaces or slashes")
			}
			return nil
		},
	},
	{
		Name:       "remoteUser",
		Required:   true,
		NonBlank:   true,
		HelpKey:    "remoteUser.help",
		DisplayKey: "remoteUser.display",
		Order:      2,
		Get:        func(c *Configuration) interface{} { return c.RemoteUser },
	},
	{
		Name:         "password",
		Required:     true,
		Confidential: true,
		HelpKey:      "password.help",
		DisplayKey:   "password.display",
		Order:        3,
		Get:          func(c *Configuration) interface{} { return c.Password },
	},
	{
		Name:       "internalOnly",
		HelpKey:    "internalOnly.help",
		DisplayKey: "internalOnly.display",
		Order:      4,
		Get:        func(c *Configuration) interface{} { return c.InternalOnly },
	},
}

// Validate checks the configuration against its field descriptors.
func (c *Configuration) Validate() error { return fields.Validate(c) }

// Fields describes the configuration with secrets masked.
func (c *Configuration) Fields() []config.FieldInfo { return fields.Describe(c) }

// Confidential lists the properties holding secrets.
func (c *Configuration) Confidential() []string { return fields.Confidential() }
