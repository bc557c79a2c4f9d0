// Package script evaluates ScriptContext text for the connectors that run
// scripts on the connector side.
//
// Two languages are supported:
//
//   - "expr" (alias "expression"): an expression evaluated with
//     github.com/antonmedv/expr against the script arguments
//   - "template": a text/template rendered with the arguments as data
//
// Executors are compiled once and safe for concurrent use.
package script

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Languages
const (
	LanguageExpr       = "expr"
	LanguageExpression = "expression"
	LanguageTemplate   = "template"
)

// Executor runs a compiled script.
type Executor interface {
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Languages returns the supported language names.
func Languages() []string {
	return []string{LanguageExpr, LanguageExpression, LanguageTemplate}
}

// Supports reports whether language can be compiled.
func Supports(language string) bool {
	switch strings.ToLower(language) {
	case LanguageExpr, LanguageExpression, LanguageTemplate:
		return true
	}
	return false
}

// NewExecutor compiles text in language. Compilation failures and unknown
// languages are ErrorTypeScript.
func NewExecutor(language, text string) (Executor, error) {
	switch strings.ToLower(language) {
	case LanguageExpr, LanguageExpression:
		program, err := expr.Compile(text, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeScript, "failed to compile expression").
				WithDetail("language", language)
		}
		return &exprExecutor{program: program}, nil
	case LanguageTemplate:
		tmpl, err := template.New("script").Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeScript, "failed to parse template").
				WithDetail("language", language)
		}
		return &templateExecutor{tmpl: tmpl}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeScript, "unsupported script language %q", language).
			WithDetail("language", language)
	}
}

// Run compiles and executes text in one step.
func Run(ctx context.Context, language, text string, args map[string]interface{}) (interface{}, error) {
	exec, err := NewExecutor(language, text)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, args)
}

type exprExecutor struct {
	program *vm.Program
}

func (e *exprExecutor) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "script cancelled")
	}
	env := make(map[string]interface{}, len(args))
	for k, v := range args {
		env[k] = v
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeScript, "expression failed")
	}
	return out, nil
}

type templateExecutor struct {
	tmpl *template.Template
}

func (t *templateExecutor) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "script cancelled")
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, args); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeScript, "template failed")
	}
	return buf.String(), nil
}
