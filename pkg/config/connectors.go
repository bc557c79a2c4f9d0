package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"gopkg.in/yaml.v3"
)

// ConnectorFile is the on-disk description of one connector target: the
// registered connector type, optional framework overrides and the
// connector-specific properties.
//
//	connector: sample
//	framework:
//	  pool: {max_objects: 4}
//	properties:
//	  host: localhost
//	  remoteUser: admin
//	  password: env:SAMPLE_PASSWORD
type ConnectorFile struct {
	Connector  string                 `yaml:"connector" json:"connector" toml:"connector"`
	Framework  *FrameworkConfig       `yaml:"-" json:"-" toml:"-"` // read by LoadFramework
	Properties map[string]interface{} `yaml:"properties" json:"properties" toml:"properties"`
}

// LoadConnectorFile loads and checks a connector file. The framework section
// goes through LoadFramework, so IDCONNECT_FRAMEWORK_* variables override it.
func LoadConnectorFile(filePath string) (*ConnectorFile, error) {
	var cf ConnectorFile
	if err := Load(filePath, &cf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load connector file").
			WithDetail("path", filePath)
	}
	if cf.Connector == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "connector is required").
			WithDetail("path", filePath)
	}
	fw, err := LoadFramework(filePath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid framework section").
			WithDetail("path", filePath)
	}
	cf.Framework = fw
	return &cf, nil
}

// DecodeProperties decodes props into target, the connector's configuration
// struct, using its yaml tags. Values of the confidential fields may be
// secret references ("env:NAME", "vault:path#key"). They are resolved and
// assigned to the matching *security.GuardedString field directly, so the
// cleartext never passes through the yaml encoder.
func DecodeProperties(ctx context.Context, props map[string]interface{}, target interface{}, confidential []string, resolver *security.Resolver) error {
	if resolver == nil {
		resolver = security.NewResolver()
	}

	plain := make(map[string]interface{}, len(props))
	for k, v := range props {
		plain[k] = v
	}

	secrets := make(map[string]*security.GuardedString, len(confidential))
	for _, name := range confidential {
		raw, ok := plain[name].(string)
		if !ok {
			continue
		}
		secret, err := resolver.Resolve(ctx, raw)
		if err != nil {
			disposeAll(secrets)
			return errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to resolve %s", name)).
				WithDetail("field", name)
		}
		secrets[name] = secret
		delete(plain, name)
	}

	data, err := yaml.Marshal(plain)
	if err != nil {
		disposeAll(secrets)
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode properties")
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		disposeAll(secrets)
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode properties")
	}

	for name, secret := range secrets {
		if err := assignSecret(target, name, secret); err != nil {
			disposeAll(secrets)
			return err
		}
	}
	return nil
}

var guardedType = reflect.TypeOf((*security.GuardedString)(nil))

// assignSecret stores secret in the field of target whose yaml key is name.
// The field must be a *security.GuardedString; target takes ownership.
func assignSecret(target interface{}, name string, secret *security.GuardedString) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("cannot assign %s: target is %T", name, target)).
			WithDetail("field", name)
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if yamlKey(f) != name {
			continue
		}
		if f.Type != guardedType || !v.Field(i).CanSet() {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("confidential field %s must be a guarded string", name)).
				WithDetail("field", name)
		}
		v.Field(i).Set(reflect.ValueOf(secret))
		return nil
	}
	return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown confidential field %s", name)).
		WithDetail("field", name)
}

// yamlKey mirrors yaml.v3: the tag name, else the lower-cased field name.
func yamlKey(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return tag
}

func disposeAll(secrets map[string]*security.GuardedString) {
	for _, s := range secrets {
		s.Dispose()
	}
}
