package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToString(t *testing.T) {
	assert.Equal(t, "hello", ConvertToString("hello"))
	assert.Equal(t, "42", ConvertToString(42))
	assert.Equal(t, "true", ConvertToString(true))
	assert.Equal(t, "false", ConvertToString(false))
	assert.Equal(t, "", ConvertToString(nil))
	assert.Equal(t, "1.5", ConvertToString(1.5))
}

func TestConvertToBool(t *testing.T) {
	assert.True(t, ConvertToBool("yes"))
	assert.True(t, ConvertToBool("true"))
	assert.True(t, ConvertToBool("1"))
	assert.True(t, ConvertToBool(true))
	assert.True(t, ConvertToBool(1))
	assert.False(t, ConvertToBool("no"))
	assert.False(t, ConvertToBool("false"))
	assert.False(t, ConvertToBool(""))
	assert.False(t, ConvertToBool(nil))
	assert.False(t, ConvertToBool(0))
}

func TestConvertToInt(t *testing.T) {
	n, err := ConvertToInt("42")
	assert.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = ConvertToInt(7)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = ConvertToInt("not a number")
	assert.Error(t, err)
}

func TestMergeVarsPrecedence(t *testing.T) {
	base := map[string]interface{}{"a": 1, "b": 1}
	override := map[string]interface{}{"b": 2, "c": 2}

	merged := MergeVars(base, override)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 2, merged["b"])
	assert.Equal(t, 2, merged["c"])
}

func TestMergeVarsDeep(t *testing.T) {
	base := map[string]interface{}{
		"nested": map[string]interface{}{"keep": "yes", "replace": "old"},
	}
	override := map[string]interface{}{
		"nested": map[string]interface{}{"replace": "new"},
	}

	merged := MergeVars(base, override)
	nested := merged["nested"].(map[string]interface{})
	assert.Equal(t, "yes", nested["keep"])
	assert.Equal(t, "new", nested["replace"])
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, MatchPattern("*", "anything"))
	assert.True(t, MatchPattern("all", "anything"))
	assert.True(t, MatchPattern("web1", "web1"))
	assert.True(t, MatchPattern("web*", "web1"))
	assert.True(t, MatchPattern("web?", "web1"))
	assert.False(t, MatchPattern("web*", "db1"))
	assert.False(t, MatchPattern("web1", "web2"))
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqueStrings([]string{"a", "b", "a", "c", "b"}))
}

func TestErrorTypes(t *testing.T) {
	connErr := NewConnectionError("web1", "refused", nil)
	assert.Contains(t, connErr.Error(), "web1")

	tmplErr := NewTemplateError("path", "{{ x }}", "undefined variable", nil)
	assert.Contains(t, tmplErr.Error(), "path")

	screenErr := NewScreenError("/bad;path", "illegal character")
	assert.Contains(t, screenErr.Error(), "illegal character")
}
