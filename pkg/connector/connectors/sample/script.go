package sample

import (
	"context"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/script"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"go.uber.org/zap"
)

// RunScriptOnConnector evaluates sc inside the connector. The script sees
// its arguments plus "connector" and "runAsUser". When runWithPassword is
// set the runAsUser credentials are verified first.
func (c *Connector) RunScriptOnConnector(ctx context.Context, sc objects.ScriptContext, opts *objects.OperationOptions) (interface{}, error) {
	res, err := c.ready()
	if err != nil {
		return nil, err
	}

	runAs := opts.RunAsUser()
	if err := impersonate(res, runAs, opts.RunWithPassword()); err != nil {
		return nil, err
	}

	args := scriptArgs(sc)
	args["connector"] = map[string]interface{}{
		"host":       c.cfg.Host,
		"remoteUser": c.cfg.RemoteUser,
	}
	args["runAsUser"] = runAs

	c.Logger().Debug("running script on connector",
		zap.String("language", sc.Language),
		zap.String("run_as", runAs))
	return script.Run(ctx, sc.Language, sc.Text, args)
}

// RunScriptOnResource evaluates sc against the resource. The script sees a
// "resource" value with host and account count, and a lookup(uid) function
// returning an account as a map.
func (c *Connector) RunScriptOnResource(ctx context.Context, sc objects.ScriptContext, opts *objects.OperationOptions) (interface{}, error) {
	res, err := c.ready()
	if err != nil {
		return nil, err
	}
	if c.cfg.InternalOnly {
		return nil, errors.New(errors.ErrorTypeUnsupportedOperation, "resource scripts are disabled for internal-only resources").
			WithDetail("host", c.cfg.Host)
	}
	if err := impersonate(res, opts.RunAsUser(), opts.RunWithPassword()); err != nil {
		return nil, err
	}

	args := scriptArgs(sc)
	args["resource"] = map[string]interface{}{
		"host":  res.Host(),
		"count": res.Count(objects.Account),
	}
	args["lookup"] = func(uid string) map[string]interface{} {
		return res.lookup(objects.Account, uid)
	}
	return script.Run(ctx, sc.Language, sc.Text, args)
}

// impersonate verifies runAs credentials. Without a password there is
// nothing to verify.
func impersonate(res *Resource, runAs string, password *security.GuardedString) error {
	if runAs == "" || password == nil {
		return nil
	}
	uid, ok := res.FindByName(objects.Account, runAs)
	if !ok || !res.CheckPassword(uid, password) {
		return errors.New(errors.ErrorTypeInvalidCredential, "cannot run as user").
			WithDetail("run_as", runAs)
	}
	return nil
}

func scriptArgs(sc objects.ScriptContext) map[string]interface{} {
	args := make(map[string]interface{}, len(sc.Arguments)+2)
	for k, v := range sc.Arguments {
		args[k] = v
	}
	return args
}
