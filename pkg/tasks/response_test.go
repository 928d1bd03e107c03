package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskResponseCreation(t *testing.T) {
	response := &TaskResponse{
		Status: IsCreated,
		Msg:    "Test message",
	}

	assert.Equal(t, IsCreated, response.Status)
	assert.Equal(t, "Test message", response.Msg)
	assert.Len(t, response.Changes, 0)
}

func TestTaskResponseWithChanges(t *testing.T) {
	response := &TaskResponse{
		Status:  IsModified,
		Changes: []Field{Mode},
	}

	assert.Equal(t, IsModified, response.Status)
	assert.Len(t, response.Changes, 1)
	assert.Equal(t, Mode, response.Changes[0])
}

func TestTaskResponseFailed(t *testing.T) {
	response := &TaskResponse{
		Status: Failed,
		Msg:    "Error occurred",
	}

	assert.True(t, response.IsFailed())
	assert.Equal(t, "Error occurred", response.Msg)
}

func TestTaskStatusVariants(t *testing.T) {
	statuses := []TaskStatus{
		IsCreated, IsRemoved, IsModified, IsExecuted, IsPassive,
		IsMatched, IsSkipped, NeedsCreation, NeedsRemoval,
		NeedsModification, NeedsExecution, NeedsPassive, Failed,
	}

	seen := make(map[string]bool)
	for _, status := range statuses {
		assert.NotEqual(t, "Unknown", status.String())
		assert.False(t, seen[status.String()])
		seen[status.String()] = true
	}
}

func TestStatusApplied(t *testing.T) {
	assert.Equal(t, IsCreated, NeedsCreation.Applied())
	assert.Equal(t, IsRemoved, NeedsRemoval.Applied())
	assert.Equal(t, IsModified, NeedsModification.Applied())
	assert.Equal(t, IsExecuted, NeedsExecution.Applied())
	assert.Equal(t, IsPassive, NeedsPassive.Applied())
	assert.Equal(t, IsMatched, IsMatched.Applied())
}

func TestStatusIsChange(t *testing.T) {
	assert.True(t, IsCreated.IsChange())
	assert.True(t, IsModified.IsChange())
	assert.True(t, NeedsCreation.IsChange())
	assert.False(t, IsMatched.IsChange())
	assert.False(t, IsPassive.IsChange())
	assert.False(t, IsSkipped.IsChange())
	assert.False(t, Failed.IsChange())
}

func TestCmdInfo(t *testing.T) {
	response := &TaskResponse{
		Status: IsExecuted,
		Command: &CommandResult{
			Cmd: "test command",
			Out: "output text",
			RC:  0,
		},
	}

	rc, out := CmdInfo(response)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "output text", out)
}

func TestCmdInfoWithError(t *testing.T) {
	response := &TaskResponse{
		Status: Failed,
		Msg:    "Command failed",
		Command: &CommandResult{
			Cmd: "failing command",
			Out: "error message",
			RC:  1,
		},
	}

	rc, out := CmdInfo(response)
	assert.Equal(t, 1, rc)
	assert.Equal(t, "error message", out)
}

func TestCmdInfoWithoutCommandResultPanics(t *testing.T) {
	response := &TaskResponse{Status: IsPassive}

	assert.PanicsWithValue(t,
		"called cmd_info on a response that is not a command result",
		func() { CmdInfo(response) })
}
