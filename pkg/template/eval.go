package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/drover-sh/drover/pkg/types"
)

// evaluateCondition evaluates a boolean expression against the scope.
// Supported forms: literals, variable references (dot notation), not/and/or,
// comparison operators, "in"/"not in" membership, and "is defined" checks.
func evaluateCondition(scope map[string]interface{}, condition string) (bool, error) {
	condition = strings.TrimSpace(condition)

	switch condition {
	case "true", "True", "yes":
		return true, nil
	case "false", "False", "no":
		return false, nil
	}

	if strings.HasPrefix(condition, "not ") {
		result, err := evaluateCondition(scope, strings.TrimPrefix(condition, "not "))
		return !result, err
	}

	if strings.Contains(condition, " and ") {
		for _, part := range strings.Split(condition, " and ") {
			result, err := evaluateCondition(scope, part)
			if err != nil {
				return false, err
			}
			if !result {
				return false, nil
			}
		}
		return true, nil
	}

	if strings.Contains(condition, " or ") {
		for _, part := range strings.Split(condition, " or ") {
			result, err := evaluateCondition(scope, part)
			if err != nil {
				return false, err
			}
			if result {
				return true, nil
			}
		}
		return false, nil
	}

	// Longer operators are matched first so ">=" is not split as ">".
	for _, op := range []string{" is defined", " is undefined", " not in ", " in ", "==", "!=", ">=", "<=", ">", "<"} {
		if strings.Contains(condition, op) {
			return evaluateComparison(scope, condition, op)
		}
	}

	value, _ := lookupVariable(scope, condition)
	return truthy(value), nil
}

func evaluateComparison(scope map[string]interface{}, condition, op string) (bool, error) {
	switch op {
	case " is defined":
		name := strings.TrimSpace(strings.TrimSuffix(condition, op))
		_, exists := lookupVariable(scope, name)
		return exists, nil
	case " is undefined":
		name := strings.TrimSpace(strings.TrimSuffix(condition, op))
		_, exists := lookupVariable(scope, name)
		return !exists, nil
	case " in ", " not in ":
		parts := strings.SplitN(condition, op, 2)
		if len(parts) != 2 {
			return false, fmt.Errorf("invalid membership expression: %s", condition)
		}
		needle := resolveOperandLenient(scope, parts[0])
		haystack := resolveOperandLenient(scope, parts[1])
		found := contains(haystack, needle)
		if op == " not in " {
			return !found, nil
		}
		return found, nil
	}

	parts := strings.SplitN(condition, op, 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid comparison expression: %s", condition)
	}
	left := resolveOperandLenient(scope, parts[0])
	right := resolveOperandLenient(scope, parts[1])

	switch op {
	case "==":
		return looseEquals(left, right), nil
	case "!=":
		return !looseEquals(left, right), nil
	case ">":
		return compareNumeric(left, right) > 0, nil
	case "<":
		return compareNumeric(left, right) < 0, nil
	case ">=":
		return compareNumeric(left, right) >= 0, nil
	case "<=":
		return compareNumeric(left, right) <= 0, nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// resolveOperand resolves a literal or variable reference, erroring on a
// missing variable.
func resolveOperand(scope map[string]interface{}, expr string) (interface{}, error) {
	expr = strings.TrimSpace(expr)

	if lit, ok := literalValue(expr); ok {
		return lit, nil
	}

	value, exists := lookupVariable(scope, expr)
	if !exists {
		return nil, fmt.Errorf("undefined variable: %s", expr)
	}
	return value, nil
}

// resolveOperandLenient is resolveOperand for comparison operands, where a
// missing variable compares as nil rather than erroring.
func resolveOperandLenient(scope map[string]interface{}, expr string) interface{} {
	expr = strings.TrimSpace(expr)

	if lit, ok := literalValue(expr); ok {
		return lit
	}

	value, _ := lookupVariable(scope, expr)
	return value
}

func literalValue(expr string) (interface{}, bool) {
	if len(expr) >= 2 {
		if (strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'")) ||
			(strings.HasPrefix(expr, "\"") && strings.HasSuffix(expr, "\"")) {
			return expr[1 : len(expr)-1], true
		}
	}
	if num, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return num, true
	}
	if num, err := strconv.ParseFloat(expr, 64); err == nil {
		return num, true
	}
	switch expr {
	case "true", "True":
		return true, true
	case "false", "False":
		return false, true
	}
	return nil, false
}

// lookupVariable gets a variable value, supporting dot notation and
// array index notation like items[0].
func lookupVariable(scope map[string]interface{}, name string) (interface{}, bool) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	current := scope

	for i, part := range parts {
		if strings.Contains(part, "[") && strings.HasSuffix(part, "]") {
			arrayPart := part[:strings.Index(part, "[")]
			indexStr := part[strings.Index(part, "[")+1 : len(part)-1]

			val, exists := current[arrayPart]
			if !exists {
				return nil, false
			}

			items, ok := val.([]interface{})
			if !ok {
				return nil, false
			}
			index, err := strconv.Atoi(indexStr)
			if err != nil || index < 0 || index >= len(items) {
				return nil, false
			}
			if i == len(parts)-1 {
				return items[index], true
			}
			m, ok := items[index].(map[string]interface{})
			if !ok {
				return nil, false
			}
			current = m
			continue
		}

		val, exists := current[part]
		if !exists {
			return nil, false
		}

		if i == len(parts)-1 {
			return val, true
		}

		m, ok := val.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = m
	}

	return nil, false
}

func truthy(value interface{}) bool {
	if value == nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "False" && v != "no" && v != "0"
	case int, int64:
		return reflect.ValueOf(v).Int() != 0
	case float64:
		return v != 0.0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}

func looseEquals(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}

	if reflect.DeepEqual(a, b) {
		return true
	}

	return types.ConvertToString(a) == types.ConvertToString(b)
}

func compareNumeric(a, b interface{}) int {
	an := toNumber(a)
	bn := toNumber(b)

	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}

func toNumber(value interface{}) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		if num, err := strconv.ParseFloat(v, 64); err == nil {
			return num
		}
	}
	return 0
}

func contains(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, types.ConvertToString(needle))
	case []interface{}:
		for _, item := range h {
			if looseEquals(item, needle) {
				return true
			}
		}
	case map[string]interface{}:
		_, exists := h[types.ConvertToString(needle)]
		return exists
	}
	return false
}
