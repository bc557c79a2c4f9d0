package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/facade"
	"github.com/ajitpratap0/idconnect/pkg/json"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// parseAttributes turns name=value pairs into attributes. Values are typed
// from the schema when the connector publishes one. A repeated name adds a
// value and "name=" yields an attribute without values.
func parseAttributes(ctx context.Context, f *facade.Facade, oc objects.ObjectClass, pairs []string) ([]objects.Attribute, error) {
	var info *schema.ObjectClassInfo
	if f.Supports(core.OpSchema) {
		sch, err := f.Schema(ctx)
		if err != nil {
			return nil, err
		}
		if ci, ok := sch.FindObjectClassInfo(oc); ok {
			info = &ci
		}
	}
	return buildAttributes(info, pairs)
}

func buildAttributes(info *schema.ObjectClassInfo, pairs []string) ([]objects.Attribute, error) {
	var order []string
	names := make(map[string]string)
	values := make(map[string][]interface{})
	for i, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			// the pair may hold a secret, so it is not echoed
			return nil, errors.New(errors.ErrorTypeValidation, "attributes must be given as name=value").
				WithDetail("position", strconv.Itoa(i+1))
		}
		key := strings.ToLower(name)
		if _, seen := names[key]; !seen {
			names[key] = name
			order = append(order, key)
		}
		if raw == "" {
			continue
		}
		v, err := attributeValue(info, name, raw)
		if err != nil {
			return nil, err
		}
		values[key] = append(values[key], v)
	}

	attrs := make([]objects.Attribute, 0, len(order))
	for _, key := range order {
		attrs = append(attrs, objects.NewAttribute(names[key], values[key]...))
	}
	return attrs, nil
}

func attributeValue(info *schema.ObjectClassInfo, name, raw string) (interface{}, error) {
	typ := schema.TypeString
	if strings.EqualFold(name, objects.PasswordAttr) || strings.EqualFold(name, objects.CurrentPasswordAttr) {
		typ = schema.TypeGuardedString
	}
	if info != nil {
		if ai, ok := info.Attribute(name); ok {
			typ = ai.Type
		}
	}

	var (
		v   interface{}
		err error
	)
	switch typ {
	case schema.TypeGuardedString:
		return security.GuardString(raw), nil
	case schema.TypeLong:
		v, err = strconv.ParseInt(raw, 10, 64)
	case schema.TypeInteger:
		v, err = strconv.Atoi(raw)
	case schema.TypeDouble:
		v, err = strconv.ParseFloat(raw, 64)
	case schema.TypeBoolean:
		v, err = strconv.ParseBool(raw)
	case schema.TypeTime:
		v, err = time.Parse(time.RFC3339, raw)
	case schema.TypeBytes:
		return []byte(raw), nil
	default:
		return raw, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, fmt.Sprintf("attribute %s expects a %s value", name, typ)).
			WithDetail("attribute", name)
	}
	return v, nil
}

// parseArguments turns name=value pairs into script arguments. Integers,
// floats and booleans are typed; everything else stays a string.
func parseArguments(pairs []string) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(pairs))
	for i, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "script arguments must be given as name=value").
				WithDetail("position", strconv.Itoa(i+1))
		}
		args[name] = scalar(raw)
	}
	return args, nil
}

func scalar(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// loadToken reads a token saved by saveToken. A missing or empty file means
// no token, so the sync starts from the beginning.
func loadToken(path string) (*objects.SyncToken, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read token file").
			WithDetail("path", path)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var token objects.SyncToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "token file is not a sync token").
			WithDetail("path", path)
	}
	return &token, nil
}

// saveToken replaces the token file through a rename so an interrupted
// write leaves the previous token intact.
func saveToken(path string, token *objects.SyncToken) error {
	if path == "" || token == nil {
		return nil
	}
	data, err := json.Marshal(token)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode sync token")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write token file").
			WithDetail("path", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write token file").
			WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write token file").
			WithDetail("path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to replace token file").
			WithDetail("path", path)
	}
	return nil
}
