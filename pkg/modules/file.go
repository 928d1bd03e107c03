package modules

import (
	"fmt"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// FileTask ensures a file exists with the given attributes, or is absent
// when remove is set.
type FileTask struct {
	Name       string                      `yaml:"name,omitempty"`
	Path       string                      `yaml:"path"`
	Remove     string                      `yaml:"remove,omitempty"`
	Attributes *tasks.FileAttributesInput  `yaml:"attributes,omitempty"`
	With       *tasks.PreLogicInput        `yaml:"with,omitempty"`
	And        *tasks.PostLogicInput       `yaml:"and,omitempty"`
}

func (t *FileTask) Module() string                 { return "file" }
func (t *FileTask) TaskName() string               { return t.Name }
func (t *FileTask) GetWith() *tasks.PreLogicInput  { return t.With }
func (t *FileTask) GetAnd() *tasks.PostLogicInput  { return t.And }

// Evaluate templates the parameters and returns the file action.
func (t *FileTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
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
		Action: &FileAction{
			Path:       path,
			Remove:     boolish(t.Remove),
			Attributes: attrs,
		},
		With: with,
		And:  and,
	}, nil
}

// FileAction is the evaluated file module.
type FileAction struct {
	Path       string
	Remove     bool
	Attributes *tasks.FileAttributesEvaluated
}

// Dispatch implements the Query/Plan/Apply protocol for files.
func (a *FileAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
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
		if stat.IsDirectory {
			return h.Failed(req, fmt.Sprintf("path is a directory: %s", a.Path))
		}
		if changes := handle.AttributeDiff(stat, a.Attributes); len(changes) > 0 {
			return h.NeedsModification(req, changes)
		}
		return h.IsMatched(req)

	case tasks.Create:
		mode := ""
		if a.Attributes != nil {
			mode = a.Attributes.Mode
		}
		if err := h.PutFile(nil, a.Path, mode); err != nil {
			return h.Failed(req, fmt.Sprintf("create failed: %v", err))
		}
		ownership := ownershipFields(a.Attributes)
		if _, err := h.RemoteApplyAttributes(a.Path, a.Attributes, ownership, false); err != nil {
			return h.Failed(req, fmt.Sprintf("attribute apply failed: %v", err))
		}
		return h.IsCreated(req, append([]tasks.Field{tasks.Content}, attributeFields(a.Attributes)...))

	case tasks.Remove:
		result, err := h.Probe([]string{"rm", "-f", a.Path})
		if err != nil || result.RC != 0 {
			return h.Failed(req, fmt.Sprintf("remove failed: %v", err))
		}
		return h.IsRemoved(req)

	case tasks.Modify:
		applied, err := h.RemoteApplyAttributes(a.Path, a.Attributes, req.Changes, false)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("attribute apply failed: %v", err))
		}
		return h.IsModified(req, applied)

	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}

// ownershipFields returns the owner/group fields of an attributes block;
// mode is applied at upload time by Put.
func ownershipFields(attrs *tasks.FileAttributesEvaluated) []tasks.Field {
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
	return fields
}
