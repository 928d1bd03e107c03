package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldEquality(t *testing.T) {
	assert.Equal(t, Branch, Branch)
	assert.NotEqual(t, Branch, Content)
	assert.NotEqual(t, Owner, Group)
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "Version", Version.String())
	assert.Equal(t, "Owner", Owner.String())
	assert.Equal(t, "Mode", Mode.String())
}

func TestAllFileAttributes(t *testing.T) {
	attrs := AllFileAttributes()
	assert.Len(t, attrs, 3)

	// Verify order
	assert.Equal(t, Owner, attrs[0])
	assert.Equal(t, Group, attrs[1])
	assert.Equal(t, Mode, attrs[2])
}

func TestAllFieldVariantsUnique(t *testing.T) {
	fields := []Field{
		Branch, Content, Disable, Enable, Gecos, Gid, Group, Groups,
		Mode, Owner, Restart, Shell, Start, Stop, Uid, Users, Version,
	}

	unique := make(map[Field]bool)
	for _, field := range fields {
		unique[field] = true
	}
	assert.Len(t, unique, len(fields))
}

func TestFieldsContain(t *testing.T) {
	fields := []Field{Owner, Mode}
	assert.True(t, FieldsContain(fields, Owner))
	assert.True(t, FieldsContain(fields, Mode))
	assert.False(t, FieldsContain(fields, Group))
	assert.False(t, FieldsContain(nil, Content))
}
