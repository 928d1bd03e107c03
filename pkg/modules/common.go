// Package modules implements the closed set of task modules. Every module
// parses its parameters from YAML, evaluates them against the host scope,
// and implements the Query/Plan/Apply protocol through its action's
// dispatch.
package modules

import (
	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// Task is one parsed task: a module-specific parameter record plus the
// optional `with`/`and` logic blocks.
type Task interface {
	// Module returns the module name used in playbooks.
	Module() string

	// TaskName returns the optional human name ("" when unset).
	TaskName() string

	// GetWith returns the raw pre-logic block, if any.
	GetWith() *tasks.PreLogicInput

	// GetAnd returns the raw post-logic block, if any.
	GetAnd() *tasks.PostLogicInput

	// Evaluate templates the task's parameters under the given mode and
	// returns the concrete action bundled with its evaluated logic.
	Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error)
}

// Action is an evaluated module ready for phase dispatch.
type Action interface {
	Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse
}

// EvaluatedTask bundles a concrete action with its evaluated logic blocks.
type EvaluatedTask struct {
	Action Action
	With   *tasks.PreLogicEvaluated
	And    *tasks.PostLogicEvaluated
}

// DisplayName returns the task's display name: its human name when one was
// given, the module name otherwise.
func DisplayName(t Task) string {
	if name := t.TaskName(); name != "" {
		return name
	}
	return t.Module()
}

// boolish interprets the "yes"/"no" string parameters used by module
// records.
func boolish(s string) bool {
	return types.ConvertToBool(s)
}

// evaluateAttributes renders a raw attributes block.
func evaluateAttributes(h *handle.TaskHandle, in *tasks.FileAttributesInput, tm template.Mode) (*tasks.FileAttributesEvaluated, error) {
	if in == nil {
		return nil, nil
	}

	out := &tasks.FileAttributesEvaluated{}
	var err error

	if in.Owner != "" {
		if out.Owner, err = h.Template("owner", in.Owner, tm); err != nil {
			return nil, err
		}
	}
	if in.Group != "" {
		if out.Group, err = h.Template("group", in.Group, tm); err != nil {
			return nil, err
		}
	}
	if in.Mode != "" {
		if out.Mode, err = h.Template("mode", in.Mode, tm); err != nil {
			return nil, err
		}
		if tm != template.Off && !tasks.IsOctalString(out.Mode) {
			return nil, types.NewValidationError("mode", out.Mode, "not an octal mode string")
		}
	}
	return out, nil
}

// attributeFields lists the fields an attributes block specifies.
func attributeFields(attrs *tasks.FileAttributesEvaluated) []tasks.Field {
	if attrs == nil {
		return nil
	}
	var fields []tasks.Field
	if attrs.Owner != "" {
		fields = append(fields, tasks.Owner)
	}
	if attrs.Group != "" {
		fields = append(fields, tasks.Group)
	}
	if attrs.Mode != "" {
		fields = append(fields, tasks.Mode)
	}
	return fields
}
