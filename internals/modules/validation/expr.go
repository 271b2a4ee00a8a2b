package validation

import (
	"fmt"
	"strconv"
	"strings"
	"upwatch/pkg/jsonpath"
)

// Custom checks are single boolean comparisons of the form
//
//	<operand> <op> <operand>
//
// where an operand is a dot-path into the body, len(<path>), or a
// literal (number, quoted string, true, false, null), and <op> is one
// of == != >= <= > <. Anything the evaluator cannot make sense of is
// an evaluation error, which the validator records as a failure reason.

var comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<"}

func evalExpr(expr string, doc any) (bool, error) {
	op, left, right, err := splitExpr(expr)
	if err != nil {
		return false, err
	}

	lv, err := resolveOperand(left, doc)
	if err != nil {
		return false, err
	}
	rv, err := resolveOperand(right, doc)
	if err != nil {
		return false, err
	}

	return compare(op, lv, rv)
}

// splitExpr finds the comparison operator outside of quoted strings.
// Two-character operators are matched before their one-character
// prefixes.
func splitExpr(expr string) (op, left, right string, err error) {
	inQuote := byte(0)

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}

		for _, candidate := range comparisonOps {
			if strings.HasPrefix(expr[i:], candidate) {
				left = strings.TrimSpace(expr[:i])
				right = strings.TrimSpace(expr[i+len(candidate):])
				if left == "" || right == "" {
					return "", "", "", fmt.Errorf("expression %q is missing an operand", expr)
				}
				return candidate, left, right, nil
			}
		}
	}

	return "", "", "", fmt.Errorf("expression %q has no comparison operator", expr)
}

func resolveOperand(token string, doc any) (any, error) {
	// len(path)
	if strings.HasPrefix(token, "len(") && strings.HasSuffix(token, ")") {
		path := strings.TrimSpace(token[4 : len(token)-1])
		value, ok := jsonpath.Lookup(doc, path)
		if !ok {
			return nil, fmt.Errorf("path %q not found", path)
		}
		switch v := value.(type) {
		case []any:
			return float64(len(v)), nil
		case map[string]any:
			return float64(len(v)), nil
		case string:
			return float64(len(v)), nil
		default:
			return nil, fmt.Errorf("len() is not defined for path %q", path)
		}
	}

	// quoted string literal
	if len(token) >= 2 {
		first, last := token[0], token[len(token)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return token[1 : len(token)-1], nil
		}
	}

	switch token {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}

	// number literal
	if n, err := strconv.ParseFloat(token, 64); err == nil {
		return n, nil
	}

	// dot-path into the body
	value, ok := jsonpath.Lookup(doc, token)
	if !ok {
		return nil, fmt.Errorf("path %q not found", token)
	}
	return value, nil
}

func compare(op string, left, right any) (bool, error) {
	// null takes part in equality only
	if left == nil || right == nil {
		switch op {
		case "==":
			return left == nil && right == nil, nil
		case "!=":
			return (left == nil) != (right == nil), nil
		default:
			return false, fmt.Errorf("operator %q is not defined for null", op)
		}
	}

	switch lv := left.(type) {
	case float64:
		rv, ok := right.(float64)
		if !ok {
			return false, fmt.Errorf("cannot compare number with %T", right)
		}
		return compareOrdered(op, lv, rv)
	case string:
		rv, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("cannot compare string with %T", right)
		}
		return compareOrdered(op, lv, rv)
	case bool:
		rv, ok := right.(bool)
		if !ok {
			return false, fmt.Errorf("cannot compare bool with %T", right)
		}
		switch op {
		case "==":
			return lv == rv, nil
		case "!=":
			return lv != rv, nil
		default:
			return false, fmt.Errorf("operator %q is not defined for bool", op)
		}
	default:
		return false, fmt.Errorf("cannot compare values of type %T", left)
	}
}

func compareOrdered[T float64 | string](op string, l, r T) (bool, error) {
	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}
