package tasks

import (
	"strings"

	"github.com/drover-sh/drover/pkg/types"
)

// FileAttributesInput is the raw `attributes:` block of the file-family
// modules. All values may contain templates.
type FileAttributesInput struct {
	Owner string `yaml:"owner,omitempty"`
	Group string `yaml:"group,omitempty"`
	Mode  string `yaml:"mode,omitempty"`
}

// FileAttributesEvaluated holds rendered file attributes.
type FileAttributesEvaluated struct {
	Owner string
	Group string
	Mode  string
}

// IsOctalString reports whether a string is a valid octal mode, with or
// without a leading "0o" prefix.
func IsOctalString(s string) bool {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	if trimmed == "" {
		return false
	}
	for _, c := range trimmed {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}

// NormalizeMode strips an optional "0o" prefix from an octal mode string so
// it can be passed to chmod.
func NormalizeMode(s string) (string, error) {
	if !IsOctalString(s) {
		return "", types.NewValidationError("mode", s, "not an octal mode string")
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	return trimmed, nil
}
