// Package types provides the shared value types, conversions, and error
// taxonomy used across the drover engine.
package types

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// MatchPattern checks if a string matches a pattern (supports shell-style wildcards)
func MatchPattern(pattern, text string) bool {
	if pattern == "" || pattern == "*" || pattern == "all" {
		return true
	}

	if pattern == text {
		return true
	}

	// Convert shell-style wildcards to regex
	if strings.Contains(pattern, "*") || strings.Contains(pattern, "?") {
		regexPattern := regexp.QuoteMeta(pattern)
		regexPattern = strings.ReplaceAll(regexPattern, "\\*", ".*")
		regexPattern = strings.ReplaceAll(regexPattern, "\\?", ".")
		regexPattern = "^" + regexPattern + "$"

		matched, err := regexp.MatchString(regexPattern, text)
		return err == nil && matched
	}

	return false
}

// ConvertToString converts various types to string
func ConvertToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ConvertToBool converts various types to bool
func ConvertToBool(value interface{}) bool {
	if value == nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1", "y", "t":
			return true
		default:
			return false
		}
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0
	case float32, float64:
		return reflect.ValueOf(v).Float() != 0.0
	default:
		return false
	}
}

// ConvertToInt converts various types to int
func ConvertToInt(value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// MergeVars merges variable maps, with later maps taking precedence. Nested
// maps are merged recursively.
func MergeVars(maps ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for _, m := range maps {
		result = deepMerge(result, m)
	}

	return result
}

func deepMerge(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if existing, exists := result[k]; exists {
			if existingMap, ok := existing.(map[string]interface{}); ok {
				if overrideMap, ok := v.(map[string]interface{}); ok {
					result[k] = deepMerge(existingMap, overrideMap)
					continue
				}
			}
		}
		result[k] = v
	}

	return result
}

// StringSliceContains checks if a string slice contains a value
func StringSliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// UniqueStrings removes duplicates from a string slice preserving order
func UniqueStrings(slice []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(slice))

	for _, item := range slice {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
