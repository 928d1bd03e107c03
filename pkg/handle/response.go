package handle

import (
	"fmt"
	"sort"

	"github.com/drover-sh/drover/pkg/tasks"
)

// Response constructors. Each validates that the status is legal for the
// request being answered; an illegal combination is a coding error in the
// module, not a runtime condition, so it panics.

func protocolViolation(req *tasks.Request, status tasks.TaskStatus) {
	panic(fmt.Sprintf("module returned %s for a %s request", status, req.Type))
}

// IsMatched reports that the target already matches the desired state.
func (h *TaskHandle) IsMatched(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Query {
		protocolViolation(req, tasks.IsMatched)
	}
	return &tasks.TaskResponse{Status: tasks.IsMatched}
}

// NeedsCreation plans a creation.
func (h *TaskHandle) NeedsCreation(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Query {
		protocolViolation(req, tasks.NeedsCreation)
	}
	return &tasks.TaskResponse{Status: tasks.NeedsCreation, Changes: []tasks.Field{tasks.Content}}
}

// NeedsRemoval plans a removal.
func (h *TaskHandle) NeedsRemoval(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Query {
		protocolViolation(req, tasks.NeedsRemoval)
	}
	return &tasks.TaskResponse{Status: tasks.NeedsRemoval, Changes: []tasks.Field{tasks.Content}}
}

// NeedsModification plans a modification with the given change set.
func (h *TaskHandle) NeedsModification(req *tasks.Request, changes []tasks.Field) *tasks.TaskResponse {
	if req.Type != tasks.Query {
		protocolViolation(req, tasks.NeedsModification)
	}
	return &tasks.TaskResponse{Status: tasks.NeedsModification, Changes: changes}
}

// NeedsExecution plans an execution.
func (h *TaskHandle) NeedsExecution(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Query {
		protocolViolation(req, tasks.NeedsExecution)
	}
	return &tasks.TaskResponse{Status: tasks.NeedsExecution}
}

// NeedsPassive plans a passive (no host change) apply.
func (h *TaskHandle) NeedsPassive(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Query {
		protocolViolation(req, tasks.NeedsPassive)
	}
	return &tasks.TaskResponse{Status: tasks.NeedsPassive}
}

// IsCreated records a completed creation carrying the created fields.
func (h *TaskHandle) IsCreated(req *tasks.Request, changes []tasks.Field) *tasks.TaskResponse {
	if req.Type != tasks.Create {
		protocolViolation(req, tasks.IsCreated)
	}
	return &tasks.TaskResponse{Status: tasks.IsCreated, Changes: changes}
}

// IsRemoved records a completed removal.
func (h *TaskHandle) IsRemoved(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Remove {
		protocolViolation(req, tasks.IsRemoved)
	}
	return &tasks.TaskResponse{Status: tasks.IsRemoved, Changes: []tasks.Field{tasks.Content}}
}

// IsModified records a completed modification. The applied change set must
// be exactly the set the Plan phase predicted; a divergence fails the task.
func (h *TaskHandle) IsModified(req *tasks.Request, changes []tasks.Field) *tasks.TaskResponse {
	if req.Type != tasks.Modify {
		protocolViolation(req, tasks.IsModified)
	}
	if !sameFields(req.Changes, changes) {
		return h.Failed(req, fmt.Sprintf("apply produced changes %v but plan predicted %v", changes, req.Changes))
	}
	return &tasks.TaskResponse{Status: tasks.IsModified, Changes: changes}
}

// IsExecuted records a completed execution.
func (h *TaskHandle) IsExecuted(req *tasks.Request) *tasks.TaskResponse {
	if req.Type != tasks.Execute {
		protocolViolation(req, tasks.IsExecuted)
	}
	return &tasks.TaskResponse{Status: tasks.IsExecuted}
}

// IsPassive records a completed passive apply.
func (h *TaskHandle) IsPassive(req *tasks.Request, msg string) *tasks.TaskResponse {
	if req.Type != tasks.Passive && req.Type != tasks.Query {
		protocolViolation(req, tasks.IsPassive)
	}
	return &tasks.TaskResponse{Status: tasks.IsPassive, Msg: msg}
}

// IsSkipped records that the task was short-circuited for this host.
func (h *TaskHandle) IsSkipped(req *tasks.Request) *tasks.TaskResponse {
	return &tasks.TaskResponse{Status: tasks.IsSkipped}
}

// Failed records a module failure with a human message.
func (h *TaskHandle) Failed(req *tasks.Request, msg string) *tasks.TaskResponse {
	return &tasks.TaskResponse{Status: tasks.Failed, Msg: msg}
}

// FailedWithResult records a command failure carrying the command output.
func (h *TaskHandle) FailedWithResult(req *tasks.Request, msg string, result *tasks.CommandResult) *tasks.TaskResponse {
	return &tasks.TaskResponse{Status: tasks.Failed, Msg: msg, Command: result}
}

// CommandOK records a successful command execution.
func (h *TaskHandle) CommandOK(req *tasks.Request, result *tasks.CommandResult) *tasks.TaskResponse {
	if req.Type != tasks.Execute {
		protocolViolation(req, tasks.IsExecuted)
	}
	return &tasks.TaskResponse{Status: tasks.IsExecuted, Command: result}
}

func sameFields(a, b []tasks.Field) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]tasks.Field, len(a))
	bs := make([]tasks.Field, len(b))
	copy(as, a)
	copy(bs, b)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
