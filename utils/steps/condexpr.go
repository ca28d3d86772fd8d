package steps

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// condition expression grammar: literals true/false
// (case-insensitive) and 1/0, file_exists(path), and(a,b,...), or(a,b,...),
// not(a), and bare non-empty strings counting as truthy. Anything else is
// malformed and must fail closed.

var callPattern = regexp.MustCompile(`(?s)^([a-zA-Z_]+)\((.*)\)$`)

func evalExpr(raw string) (bool, error) {
	expr := strings.TrimSpace(raw)
	if m := callPattern.FindStringSubmatch(expr); m != nil {
		name, inner := m[1], m[2]
		switch name {
		case "and":
			return evalVariadic(inner, true)
		case "or":
			return evalVariadic(inner, false)
		case "not":
			args, err := splitArgs(inner)
			if err != nil {
				return false, err
			}
			if len(args) != 1 {
				return false, fmt.Errorf("not takes exactly one argument")
			}
			v, err := evalExpr(args[0])
			if err != nil {
				return false, err
			}
			return !v, nil
		case "file_exists":
			args, err := splitArgs(inner)
			if err != nil {
				return false, err
			}
			if len(args) != 1 {
				return false, fmt.Errorf("file_exists takes exactly one argument")
			}
			path := unquote(strings.TrimSpace(args[0]))
			_, statErr := os.Stat(path)
			return statErr == nil, nil
		default:
			return false, fmt.Errorf("unknown function %q", name)
		}
	}
	if strings.ContainsAny(expr, "()") {
		return false, fmt.Errorf("malformed expression %q", expr)
	}
	return literalOrBareTruthy(expr), nil
}

func evalVariadic(inner string, isAnd bool) (bool, error) {
	args, err := splitArgs(inner)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, fmt.Errorf("requires at least one argument")
	}
	for _, a := range args {
		v, err := evalExpr(a)
		if err != nil {
			return false, err
		}
		if isAnd && !v {
			return false, nil
		}
		if !isAnd && v {
			return true, nil
		}
	}
	return isAnd, nil
}

func literalOrBareTruthy(expr string) bool {
	trimmed := unquote(strings.TrimSpace(expr))
	switch strings.ToLower(trimmed) {
	case "true", "1":
		return true
	case "false", "0", "":
		return false
	}
	return trimmed != ""
}

// splitArgs splits a comma-separated argument list at top-level depth,
// honoring nested parentheses and quoted strings.
func splitArgs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var args []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1: len(s)-1]
		}
	}
	return s
}
