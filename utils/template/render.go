// Package template implements the renderer contract: a pure function
// over a flat key/value view of the execution state, supporting dotted
// lookup, a default filter, and a small if/else conditional form. It is
// hand-rolled rather than built on a general template engine because
// the grammar needed is exactly these three forms, and shoehorning a
// heavyweight engine (e.g. text/template, which doesn't natively
// express "missing key renders empty") would be more code, not less.
package template

import (
	"strconv"
	"strings"

	"github.com/recipeforge/reciperunner/utils/rerr"
)

// Render renders template text against view, a flat namespace merging
// artifacts and config (artifacts take precedence; see
// state.State.FlatView). It never mutates or reads anything but its
// arguments.
func Render(tmpl string, view map[string]interface{}) (string, error) {
	var out strings.Builder
	if err := render(tmpl, view, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func render(tmpl string, view map[string]interface{}, out *strings.Builder) error {
	i := 0
	for i < len(tmpl) {
		if strings.HasPrefix(tmpl[i:], "{%") {
			end := strings.Index(tmpl[i:], "%}")
			if end < 0 {
				return &rerr.TemplateError{Template: tmpl, Reason: "unterminated {%... %} tag"}
			}
			// Find the matching {% endif %}, honoring nesting and a
			// single {% else %} split.
			consumed, err := renderIfBlock(tmpl[i:], view, out)
			if err != nil {
				return err
			}
			i += consumed
			continue
		}
		if strings.HasPrefix(tmpl[i:], "{{") {
			end := strings.Index(tmpl[i:], "}}")
			if end < 0 {
				return &rerr.TemplateError{Template: tmpl, Reason: "unterminated {{... }} expression"}
			}
			expr := strings.TrimSpace(tmpl[i+2: i+end])
			val, err := evalVariable(expr, view)
			if err != nil {
				return err
			}
			out.WriteString(val)
			i += end + 2
			continue
		}
		out.WriteByte(tmpl[i])
		i++
	}
	return nil
}

// renderIfBlock renders a {% if COND %}...{% else %}...{% endif %} block
// starting at s[0:] == "{%". It returns the number of bytes of s consumed.
func renderIfBlock(s string, view map[string]interface{}, out *strings.Builder) (int, error) {
	tagEnd := strings.Index(s, "%}")
	tag := strings.TrimSpace(s[2:tagEnd])
	if !strings.HasPrefix(tag, "if ") {
		return 0, &rerr.TemplateError{Template: s, Reason: "only {% if %} tags are supported"}
	}
	cond := strings.TrimSpace(tag[len("if "):])

	rest := s[tagEnd+2:]
	elseIdx, endifIdx, err := findElseEndif(rest)
	if err != nil {
		return 0, err
	}

	truthy, err := lookupTruthy(cond, view)
	if err != nil {
		return 0, err
	}

	var trueBranch, falseBranch string
	if elseIdx >= 0 {
		trueBranch = rest[:elseIdx]
		falseBranch = rest[elseIdx+len("{% else %}"): endifIdx]
	} else {
		trueBranch = rest[:endifIdx]
		falseBranch = ""
	}

	branch := falseBranch
	if truthy {
		branch = trueBranch
	}
	if err := render(branch, view, out); err != nil {
		return 0, err
	}

	consumed := tagEnd + 2 + endifIdx + len("{% endif %}")
	return consumed, nil
}

// findElseEndif locates the matching {% else %} (if any, at depth 0) and
// {% endif %} for a block, honoring nested {% if %}...{% endif %} pairs.
func findElseEndif(s string) (elseIdx, endifIdx int, err error) {
	elseIdx = -1
	depth := 0
	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], "{% if ") {
			depth++
			i += len("{% if ")
			continue
		}
		if strings.HasPrefix(s[i:], "{% else %}") && depth == 0 && elseIdx < 0 {
			elseIdx = i
			i += len("{% else %}")
			continue
		}
		if strings.HasPrefix(s[i:], "{% endif %}") {
			if depth == 0 {
				return elseIdx, i, nil
			}
			depth--
			i += len("{% endif %}")
			continue
		}
		i++
	}
	return -1, -1, &rerr.TemplateError{Template: s, Reason: "missing {% endif %}"}
}

// lookupTruthy evaluates a conditional's variable expression as a
// boolean: the artifact/config value at that dotted path, treated as
// truthy per the usual rules (non-empty string, non-zero number, true,
// non-empty collection).
func lookupTruthy(expr string, view map[string]interface{}) (bool, error) {
	val, found := lookupDotted(expr, view)
	if !found {
		return false, nil
	}
	return isTruthy(val), nil
}

func isTruthy(val interface{}) bool {
	switch v := val.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && strings.ToLower(v) != "false"
	case int:
		return v != 0
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// evalVariable evaluates a {{... }} expression body: dotted lookup,
// optionally piped through |default:'x'.
func evalVariable(expr string, view map[string]interface{}) (string, error) {
	path := expr
	var defaultVal string
	hasDefault := false
	if idx := strings.Index(expr, "|"); idx >= 0 {
		path = strings.TrimSpace(expr[:idx])
		filter := strings.TrimSpace(expr[idx+1:])
		const prefix = "default:"
		if !strings.HasPrefix(filter, prefix) {
			return "", &rerr.TemplateError{Template: expr, Reason: "unsupported filter: " + filter}
		}
		defaultVal = strings.Trim(strings.TrimSpace(filter[len(prefix):]), `'"`)
		hasDefault = true
	}

	val, found := lookupDotted(path, view)
	if !found || (hasDefault && !isTruthy(val)) {
		if hasDefault {
			return defaultVal, nil
		}
		return "", nil
	}
	return stringify(val), nil
}

// Lookup resolves a dotted path against view and returns the raw value
// (not stringified), for callers that need the structural value rather
// than its rendered text form — e.g. the loop step resolving its `items`
// collection.
func Lookup(path string, view map[string]interface{}) (interface{}, bool) {
	return lookupDotted(path, view)
}

// lookupDotted resolves a.b.c against view, stepping into nested maps.
// A missing key at any step (including the first) is reported as "not
// found" rather than an error, so missing middle keys render as empty.
func lookupDotted(path string, view map[string]interface{}) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = view
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return anyToString(val)
	}
}
