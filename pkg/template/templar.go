// Package template provides the Templar, the rendering engine used for all
// task parameter strings. Rendering is purely functional over a supplied
// variable scope; the engine never mutates the scope.
package template

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/drover-sh/drover/pkg/types"
)

// Mode controls how the Templar treats template strings.
//
// Off returns input strings verbatim and is used during the structural
// pre-scan before any host scope exists. Strict is the normal apply-time
// mode; references to missing variables fail. Hush swallows render errors
// into an empty string and exists for cosmetic contexts like display names.
type Mode int

const (
	Off Mode = iota
	Strict
	Hush
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "Off"
	case Strict:
		return "Strict"
	case Hush:
		return "Hush"
	default:
		return "Unknown"
	}
}

var exprPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Templar renders parameter strings against a variable scope.
type Templar struct{}

// New creates a new Templar.
func New() *Templar {
	return &Templar{}
}

// Render expands {{ expr }} references in the input against the scope.
// Each expression is a variable path (dot notation supported) optionally
// followed by pipe filters.
func (t *Templar) Render(scope map[string]interface{}, input string, mode Mode) (string, error) {
	if mode == Off {
		return input, nil
	}

	var firstErr error
	result := exprPattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		value, err := t.resolveExpr(scope, expr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		return types.ConvertToString(value)
	})

	if firstErr != nil {
		if mode == Hush {
			return "", nil
		}
		return "", firstErr
	}

	return result, nil
}

// RenderList renders a template to a list of items. A raw expression
// resolving to a list yields its elements; anything else yields a single
// element list.
func (t *Templar) RenderList(scope map[string]interface{}, input interface{}) ([]interface{}, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if m := exprPattern.FindStringSubmatch(trimmed); m != nil && exprPattern.FindString(trimmed) == trimmed {
			value, err := t.resolveExpr(scope, strings.TrimSpace(m[1]))
			if err != nil {
				return nil, err
			}
			if items, ok := value.([]interface{}); ok {
				return items, nil
			}
			return []interface{}{value}, nil
		}
		rendered, err := t.Render(scope, v, Strict)
		if err != nil {
			return nil, err
		}
		return []interface{}{rendered}, nil
	default:
		return []interface{}{v}, nil
	}
}

// EvaluateBoolean evaluates a truthy template expression against the scope.
// The surrounding {{ }} markers are optional.
func (t *Templar) EvaluateBoolean(scope map[string]interface{}, expr string) (bool, error) {
	trimmed := strings.TrimSpace(expr)
	trimmed = strings.TrimPrefix(trimmed, "{{")
	trimmed = strings.TrimSuffix(trimmed, "}}")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return false, fmt.Errorf("empty condition expression")
	}

	return evaluateCondition(scope, trimmed)
}

// resolveExpr resolves one expression: a variable path plus optional filters.
func (t *Templar) resolveExpr(scope map[string]interface{}, expr string) (interface{}, error) {
	parts := strings.Split(expr, "|")
	head := strings.TrimSpace(parts[0])

	value, err := resolveOperand(scope, head)
	if err != nil && len(parts) < 2 {
		return nil, err
	}

	for _, raw := range parts[1:] {
		filter := strings.TrimSpace(raw)
		value, err = applyFilter(filter, value, err)
		if err != nil {
			return nil, err
		}
	}

	if err != nil {
		return nil, err
	}
	return value, nil
}

var filterArgPattern = regexp.MustCompile(`^(\w+)\(\s*'([^']*)'\s*\)$`)

// applyFilter applies one pipe filter. The unresolved error from the operand
// is threaded through so default() can absorb it.
func applyFilter(filter string, value interface{}, unresolved error) (interface{}, error) {
	name := filter
	arg := ""
	if m := filterArgPattern.FindStringSubmatch(filter); m != nil {
		name = m[1]
		arg = m[2]
	}

	switch name {
	case "default":
		if unresolved != nil || value == nil || value == "" {
			return arg, nil
		}
		return value, nil
	case "basename":
		if unresolved != nil {
			return nil, unresolved
		}
		return filepath.Base(types.ConvertToString(value)), nil
	case "dirname":
		if unresolved != nil {
			return nil, unresolved
		}
		return filepath.Dir(types.ConvertToString(value)), nil
	case "upper":
		if unresolved != nil {
			return nil, unresolved
		}
		return strings.ToUpper(types.ConvertToString(value)), nil
	case "lower":
		if unresolved != nil {
			return nil, unresolved
		}
		return strings.ToLower(types.ConvertToString(value)), nil
	case "trim":
		if unresolved != nil {
			return nil, unresolved
		}
		return strings.TrimSpace(types.ConvertToString(value)), nil
	default:
		return nil, fmt.Errorf("unknown template filter: %s", name)
	}
}
