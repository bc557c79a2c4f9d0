// Package config provides configuration management for idconnect.
//
// # Two layers
//
// FrameworkConfig holds the settings every connector facade shares (pool
// sizing, retries, rate limiting, observability, logging). Connector
// properties are the connector-specific fields (host, credentials, table
// names) that a connector type declares through a static Descriptors list.
//
// # Connector files
//
// A connector file names the connector type and carries both layers:
//
//	connector: sample
//	framework:
//	  pool:
//	    max_objects: 4
//	    max_wait: 10s
//	properties:
//	  host: ${SAMPLE_HOST}
//	  remoteUser: admin
//	  password: env:SAMPLE_PASSWORD
//
// Files ending in .toml are parsed as TOML, everything else as YAML.
// ${VAR_NAME} is replaced with the environment value before parsing.
// Confidential properties additionally accept secret references that are
// resolved by security.Resolver at decode time.
//
// # Field descriptors
//
// Connector configurations declare their fields once:
//
//	var fields = config.Descriptors[Configuration]{
//		{Name: "host", Required: true, HelpKey: "host.help", Order: 1,
//			Get: func(c *Configuration) interface{} { return c.Host }},
//		{Name: "password", Required: true, Confidential: true, Order: 3,
//			Get: func(c *Configuration) interface{} { return c.Password }},
//	}
//
//	func (c *Configuration) Validate() error { return fields.Validate(c) }
//
// Validate walks the list in Order and reports the first violation as an
// ErrorTypeConfig error with a "field" detail. Describe renders the list for
// tooling with confidential values masked.
package config
