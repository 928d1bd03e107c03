package modules

import (
	"fmt"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// DirectoryTask ensures a directory exists with the given attributes, or is
// absent when remove is set. With recurse, attributes apply to the whole
// tree.
type DirectoryTask struct {
	Name       string                     `yaml:"name,omitempty"`
	Path       string                     `yaml:"path"`
	Remove     string                     `yaml:"remove,omitempty"`
	Recurse    string                     `yaml:"recurse,omitempty"`
	Attributes *tasks.FileAttributesInput `yaml:"attributes,omitempty"`
	With       *tasks.PreLogicInput       `yaml:"with,omitempty"`
	And        *tasks.PostLogicInput      `yaml:"and,omitempty"`
}

func (t *DirectoryTask) Module() string                { return "directory" }
func (t *DirectoryTask) TaskName() string              { return t.Name }
func (t *DirectoryTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *DirectoryTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters and returns the directory action.
func (t *DirectoryTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	if t.Path == "" {
		return nil, types.NewValidationError("path", t.Path, "required parameter is missing")
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
	attrs, err := evaluateAttributes(h, t.Attributes, tm)
	if err != nil {
		return nil, err
	}

	return &EvaluatedTask{
		Action: &DirectoryAction{
			Path:       path,
			Remove:     boolish(t.Remove),
			Recurse:    boolish(t.Recurse),
			Attributes: attrs,
		},
		With: with,
		And:  and,
	}, nil
}

// DirectoryAction is the evaluated directory module.
type DirectoryAction struct {
	Path       string
	Remove     bool
	Recurse    bool
	Attributes *tasks.FileAttributesEvaluated
}

// Dispatch implements the Query/Plan/Apply protocol for directories.
func (a *DirectoryAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		stat, err := h.RemoteStat(a.Path)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("stat failed: %v", err))
		}

		if a.Remove {
			if stat == nil {
				return h.IsMatched(req)
			}
			return h.NeedsRemoval(req)
		}

		if stat == nil {
			return h.NeedsCreation(req)
		}
		if !stat.IsDirectory {
			return h.Failed(req, fmt.Sprintf("path is not a directory: %s", a.Path))
		}
		if changes := handle.AttributeDiff(stat, a.Attributes); len(changes) > 0 {
			return h.NeedsModification(req, changes)
		}
		return h.IsMatched(req)

	case tasks.Create:
		result, err := h.Probe([]string{"mkdir", "-p", a.Path})
		if err != nil || result.RC != 0 {
			return h.Failed(req, fmt.Sprintf("mkdir failed: %v", err))
		}
		fields := attributeFields(a.Attributes)
		if _, err := h.RemoteApplyAttributes(a.Path, a.Attributes, fields, a.Recurse); err != nil {
			return h.Failed(req, fmt.Sprintf("attribute apply failed: %v", err))
		}
		return h.IsCreated(req, append([]tasks.Field{tasks.Content}, fields...))

	case tasks.Remove:
		result, err := h.Probe([]string{"rm", "-rf", a.Path})
		if err != nil || result.RC != 0 {
			return h.Failed(req, fmt.Sprintf("remove failed: %v", err))
		}
		return h.IsRemoved(req)

	case tasks.Modify:
		applied, err := h.RemoteApplyAttributes(a.Path, a.Attributes, req.Changes, a.Recurse)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("attribute apply failed: %v", err))
		}
		return h.IsModified(req, applied)

	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}
