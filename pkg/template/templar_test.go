package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVariables(t *testing.T) {
	templar := New()
	scope := map[string]interface{}{"user": "testuser"}

	result, err := templar.Render(scope, "/home/{{ user }}/.config", Strict)
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config", result)
}

func TestRenderOffReturnsVerbatim(t *testing.T) {
	templar := New()

	result, err := templar.Render(nil, "/home/{{ user }}/.config", Off)
	require.NoError(t, err)
	assert.Equal(t, "/home/{{ user }}/.config", result)
}

func TestRenderStrictMissingVariableFails(t *testing.T) {
	templar := New()

	_, err := templar.Render(map[string]interface{}{}, "hi {{ nobody }}", Strict)
	assert.Error(t, err)
}

func TestRenderHushSwallowsErrors(t *testing.T) {
	templar := New()

	result, err := templar.Render(map[string]interface{}{}, "hi {{ nobody }}", Hush)
	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestRenderDotNotation(t *testing.T) {
	templar := New()
	scope := map[string]interface{}{
		"app": map[string]interface{}{"port": 8080},
	}

	result, err := templar.Render(scope, "port={{ app.port }}", Strict)
	require.NoError(t, err)
	assert.Equal(t, "port=8080", result)
}

func TestRenderDefaultFilter(t *testing.T) {
	templar := New()

	result, err := templar.Render(map[string]interface{}{}, "{{ version | default('latest') }}", Strict)
	require.NoError(t, err)
	assert.Equal(t, "latest", result)

	result, err = templar.Render(map[string]interface{}{"version": "1.22"}, "{{ version | default('latest') }}", Strict)
	require.NoError(t, err)
	assert.Equal(t, "1.22", result)
}

func TestRenderBasenameFilter(t *testing.T) {
	templar := New()
	scope := map[string]interface{}{"item": "/etc/app/config.yml"}

	result, err := templar.Render(scope, "{{ item | basename }}", Strict)
	require.NoError(t, err)
	assert.Equal(t, "config.yml", result)
}

func TestEvaluateBooleanLiterals(t *testing.T) {
	templar := New()

	for expr, expected := range map[string]bool{
		"true":       true,
		"false":      false,
		"{{ true }}": true,
		"1 == 1":     true,
		"{{ 1 == 2 }}": false,
		"1 != 2":     true,
		"3 > 2":      true,
		"2 >= 3":     false,
	} {
		result, err := templar.EvaluateBoolean(nil, expr)
		require.NoError(t, err, expr)
		assert.Equal(t, expected, result, expr)
	}
}

func TestEvaluateBooleanVariables(t *testing.T) {
	templar := New()
	scope := map[string]interface{}{
		"test_var": 42,
		"enabled":  true,
		"env":      "production",
	}

	cases := map[string]bool{
		"{{ test_var == 42 }}":      true,
		"{{ test_var == 0 }}":       false,
		"enabled":                   true,
		"not enabled":               false,
		"env == 'production'":       true,
		"env == 'staging'":          false,
		"enabled and test_var == 42": true,
		"enabled or test_var == 0":  true,
		"test_var is defined":       true,
		"missing is defined":        false,
		"missing is undefined":      true,
	}

	for expr, expected := range cases {
		result, err := templar.EvaluateBoolean(scope, expr)
		require.NoError(t, err, expr)
		assert.Equal(t, expected, result, expr)
	}
}

func TestEvaluateBooleanMembership(t *testing.T) {
	templar := New()
	scope := map[string]interface{}{
		"groups": []interface{}{"web", "db"},
	}

	result, err := templar.EvaluateBoolean(scope, "'web' in groups")
	require.NoError(t, err)
	assert.True(t, result)

	result, err = templar.EvaluateBoolean(scope, "'cache' not in groups")
	require.NoError(t, err)
	assert.True(t, result)
}

func TestRenderList(t *testing.T) {
	templar := New()
	scope := map[string]interface{}{
		"packages": []interface{}{"vim", "git"},
	}

	items, err := templar.RenderList(scope, "{{ packages }}")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"vim", "git"}, items)

	items, err = templar.RenderList(scope, []interface{}{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, items, 3)

	items, err = templar.RenderList(scope, nil)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "Off", Off.String())
	assert.Equal(t, "Strict", Strict.String())
	assert.Equal(t, "Hush", Hush.String())
}
