package collection

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The reference store supports single-comparison filter expressions of the
// form "field OP value", e.g. `priority >= 3` or `source == "web"`. Real
// backends bring their own expression engines; smoke tests only need this
// much.
var filterPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=|>=|<=|>|<)\s*(.+?)\s*$`)

type filterExpr struct {
	field string
	op    string
	str   *string
	num   *float64
	boolv *bool
}

// parseFilter returns nil for the empty (match-all) expression.
func parseFilter(expr string) (*filterExpr, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	m := filterPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("unsupported filter expression %q", expr)
	}

	f := &filterExpr{field: m[1], op: m[2]}
	raw := m[3]

	switch {
	case len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0]:
		s := raw[1 : len(raw)-1]
		f.str = &s
	case raw == "true" || raw == "false":
		b := raw == "true"
		f.boolv = &b
	default:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("unsupported filter value %q", raw)
		}
		f.num = &n
	}

	if (f.str != nil || f.boolv != nil) && f.op != "==" && f.op != "!=" {
		return nil, fmt.Errorf("operator %s requires a numeric value", f.op)
	}

	return f, nil
}

func (f *filterExpr) match(rec Record) bool {
	v, ok := rec[f.field]
	if !ok || v == nil {
		return false
	}

	switch {
	case f.str != nil:
		s, ok := v.(string)
		if !ok {
			return false
		}
		if f.op == "==" {
			return s == *f.str
		}
		return s != *f.str

	case f.boolv != nil:
		b, ok := v.(bool)
		if !ok {
			return false
		}
		if f.op == "==" {
			return b == *f.boolv
		}
		return b != *f.boolv

	default:
		n, ok := asFloat(v)
		if !ok {
			return false
		}
		switch f.op {
		case "==":
			return n == *f.num
		case "!=":
			return n != *f.num
		case ">=":
			return n >= *f.num
		case "<=":
			return n <= *f.num
		case ">":
			return n > *f.num
		case "<":
			return n < *f.num
		}
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
