package security

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	vaultapi "github.com/hashicorp/vault/api"
)

// Reference schemes understood by Resolver.
const (
	SchemeEnv   = "env"
	SchemeVault = "vault"
	SchemePlain = "plain"
)

// SecretSource looks up the clear value for a reference path.
type SecretSource interface {
	Lookup(ctx context.Context, path string) (string, error)
}

// Resolver turns confidential configuration values into GuardedStrings.
// Values of the form "scheme:path" are looked up in the matching source;
// anything else is taken literally.
type Resolver struct {
	sources map[string]SecretSource
}

// NewResolver creates a resolver with the env source registered.
func NewResolver() *Resolver {
	r := &Resolver{sources: make(map[string]SecretSource)}
	r.Register(SchemeEnv, EnvSource{})
	return r
}

// Register adds or replaces the source for a scheme.
func (r *Resolver) Register(scheme string, src SecretSource) {
	r.sources[strings.ToLower(scheme)] = src
}

// ParseReference splits "scheme:path". ok is false for literal values.
func ParseReference(raw string) (scheme, path string, ok bool) {
	i := strings.Index(raw, ":")
	if i <= 0 {
		return "", raw, false
	}
	scheme = strings.ToLower(raw[:i])
	switch scheme {
	case SchemeEnv, SchemeVault, SchemePlain:
		return scheme, raw[i+1:], true
	}
	return "", raw, false
}

// Resolve returns the secret for raw.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*GuardedString, error) {
	scheme, path, ok := ParseReference(raw)
	if !ok || scheme == SchemePlain {
		return GuardString(path), nil
	}
	src, found := r.sources[scheme]
	if !found {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("no secret source registered for scheme %q", scheme)).
			WithDetail("scheme", scheme)
	}
	value, err := src.Lookup(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to resolve secret reference").
			WithDetail("scheme", scheme)
	}
	return GuardString(value), nil
}

// EnvSource reads secrets from environment variables.
type EnvSource struct{}

// Lookup implements SecretSource.
func (EnvSource) Lookup(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", errors.New(errors.ErrorTypeConfig, fmt.Sprintf("environment variable %s is not set", name))
	}
	return v, nil
}

// VaultOptions configures VaultSource.
type VaultOptions struct {
	Address   string
	Token     string
	Namespace string
}

// VaultSource reads KV secrets from HashiCorp Vault. Paths have the form
// "mount/data/path#key"; KV v2 responses are unwrapped from their "data" map.
type VaultSource struct {
	client *vaultapi.Client
}

// NewVaultSource creates a Vault-backed source. Empty options fall back to
// VAULT_ADDR and VAULT_TOKEN via the Vault client defaults.
func NewVaultSource(opts VaultOptions) (*VaultSource, error) {
	cfg := vaultapi.DefaultConfig()
	if opts.Address != "" {
		cfg.Address = opts.Address
	}
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "vault client setup")
	}
	if opts.Token != "" {
		client.SetToken(opts.Token)
	}
	if opts.Namespace != "" {
		client.SetNamespace(opts.Namespace)
	}
	return &VaultSource{client: client}, nil
}

// Lookup implements SecretSource.
func (v *VaultSource) Lookup(ctx context.Context, ref string) (string, error) {
	path, key, found := strings.Cut(ref, "#")
	if !found || key == "" {
		return "", errors.New(errors.ErrorTypeConfig, "vault reference must be path#key")
	}
	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "vault read failed").WithDetail("path", path)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.New(errors.ErrorTypeConfig, "vault secret not found").WithDetail("path", path)
	}
	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	value, ok := data[key].(string)
	if !ok {
		return "", errors.New(errors.ErrorTypeConfig, "vault secret key not found").
			WithDetail("path", path).
			WithDetail("key", key)
	}
	return value, nil
}
