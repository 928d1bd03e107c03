package modules

import (
	"fmt"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// StatTask probes one remote path and stores the result in host facts
// under the save key. It is read-only and always passive.
type StatTask struct {
	Name string                `yaml:"name,omitempty"`
	Path string                `yaml:"path"`
	Save string                `yaml:"save"`
	With *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *StatTask) Module() string                { return "stat" }
func (t *StatTask) TaskName() string              { return t.Name }
func (t *StatTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *StatTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters and returns the stat action.
func (t *StatTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	if t.Path == "" {
		return nil, types.NewValidationError("path", t.Path, "required parameter is missing")
	}
	if t.Save == "" {
		return nil, types.NewValidationError("save", t.Save, "required parameter is missing")
	}

	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	path, err := h.TemplatePath("path", t.Path, tm)
	if err != nil {
		return nil, err
	}
	save, err := h.Template("save", t.Save, tm)
	if err != nil {
		return nil, err
	}

	return &EvaluatedTask{
		Action: &StatAction{Path: path, Save: save},
		With:   with,
		And:    and,
	}, nil
}

// StatAction is the evaluated stat module.
type StatAction struct {
	Path string
	Save string
}

// Dispatch probes the path and records the result as a host fact.
func (a *StatAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		return h.NeedsPassive(req)

	case tasks.Passive:
		stat, err := h.RemoteStat(a.Path)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("stat failed: %v", err))
		}

		result := map[string]interface{}{
			"exists": stat != nil,
		}
		if stat != nil {
			result["directory"] = stat.IsDirectory
			result["owner"] = stat.Owner
			result["group"] = stat.Group
			result["mode"] = stat.Mode
		}
		h.Host.SetFact(a.Save, result)
		return h.IsPassive(req, fmt.Sprintf("saved stat of %s as %s", a.Path, a.Save))

	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}
