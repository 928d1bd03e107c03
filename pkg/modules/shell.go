package modules

import (
	"fmt"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// ShellTask runs one command on the target. It always plans an execution;
// idempotence is the playbook author's concern (guard with
// skip_if_exists or a condition).
type ShellTask struct {
	Name string                `yaml:"name,omitempty"`
	Cmd  string                `yaml:"cmd"`
	With *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *ShellTask) Module() string                { return "shell" }
func (t *ShellTask) TaskName() string              { return t.Name }
func (t *ShellTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *ShellTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the command string.
func (t *ShellTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	if t.Cmd == "" {
		return nil, types.NewValidationError("cmd", t.Cmd, "required parameter is missing")
	}

	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	cmd, err := h.Template("cmd", t.Cmd, tm)
	if err != nil {
		return nil, err
	}

	return &EvaluatedTask{Action: &shellAction{Cmd: cmd}, With: with, And: and}, nil
}

type shellAction struct {
	Cmd string
}

func (a *shellAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		return h.NeedsExecution(req)
	case tasks.Execute:
		return h.Execute(req, []string{"sh", "-c", a.Cmd})
	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}
