package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

// operator spellings, longest first so ">=" wins over ">"
var spellings = []struct {
	token string
	op    Operator
}{
	{">=", OpGreaterThanOrEqual},
	{"<=", OpLessThanOrEqual},
	{"*=", OpContains},
	{"^=", OpStartsWith},
	{"$=", OpEndsWith},
	{"!=", OpEquals},
	{"=", OpEquals},
	{">", OpGreaterThan},
	{"<", OpLessThan},
}

// Parse reads a single comparison such as "lastName=Smith", "mail$=@example.com",
// "uidNumber>=1000" or "manager?" (presence). "!=" negates an equality.
// Values that parse as integers or booleans are typed accordingly.
func Parse(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasSuffix(expr, "?") {
		name := strings.TrimSpace(strings.TrimSuffix(expr, "?"))
		if name == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "presence filter requires an attribute name")
		}
		return Presence(name), nil
	}

	best, bestAt := -1, len(expr)
	for i, s := range spellings {
		at := strings.Index(expr, s.token)
		if at > 0 && (at < bestAt || (at == bestAt && len(s.token) > len(spellings[best].token))) {
			best, bestAt = i, at
		}
	}
	if best < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("cannot parse filter %q", expr)).
			WithDetail("filter", expr)
	}

	s := spellings[best]
	name := strings.TrimSpace(expr[:bestAt])
	raw := strings.TrimSpace(expr[bestAt+len(s.token):])
	f := leaf(s.op, objects.NewAttribute(name, typed(raw)))
	if s.token == "!=" {
		return Not(f), nil
	}
	return f, nil
}

// ParseAll parses each expression and joins the results with AND.
func ParseAll(exprs []string) (Filter, error) {
	var out Filter
	for _, e := range exprs {
		f, err := Parse(e)
		if err != nil {
			return nil, err
		}
		out = And(out, f)
	}
	return out, nil
}

func typed(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return strings.Trim(raw, `"`)
}
