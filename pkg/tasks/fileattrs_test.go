package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOctalString(t *testing.T) {
	assert.True(t, IsOctalString("0o755"))
	assert.True(t, IsOctalString("0644"))
	assert.True(t, IsOctalString("755"))
	assert.False(t, IsOctalString("999"))
	assert.False(t, IsOctalString(""))
	assert.False(t, IsOctalString("0o"))
	assert.False(t, IsOctalString("rwxr-xr-x"))
}

func TestNormalizeMode(t *testing.T) {
	mode, err := NormalizeMode("0o755")
	assert.NoError(t, err)
	assert.Equal(t, "755", mode)

	mode, err = NormalizeMode("0644")
	assert.NoError(t, err)
	assert.Equal(t, "0644", mode)

	_, err = NormalizeMode("999")
	assert.Error(t, err)
}
