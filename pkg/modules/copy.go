package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// CopyTask transfers controller-side file bytes to a destination path,
// converging on an identical SHA-512 and matching attributes.
type CopyTask struct {
	Name       string                     `yaml:"name,omitempty"`
	Src        string                     `yaml:"src"`
	Dest       string                     `yaml:"dest"`
	Attributes *tasks.FileAttributesInput `yaml:"attributes,omitempty"`
	With       *tasks.PreLogicInput       `yaml:"with,omitempty"`
	And        *tasks.PostLogicInput      `yaml:"and,omitempty"`
}

func (t *CopyTask) Module() string                { return "copy" }
func (t *CopyTask) TaskName() string              { return t.Name }
func (t *CopyTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *CopyTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters, reads the source bytes, and returns
// the copy action.
func (t *CopyTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	if t.Src == "" {
		return nil, types.NewValidationError("src", t.Src, "required parameter is missing")
	}
	if t.Dest == "" {
		return nil, types.NewValidationError("dest", t.Dest, "required parameter is missing")
	}

	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	dest, err := h.TemplatePath("dest", t.Dest, tm)
	if err != nil {
		return nil, err
	}
	attrs, err := evaluateAttributes(h, t.Attributes, tm)
	if err != nil {
		return nil, err
	}

	action := &CopyAction{Dest: dest, Attributes: attrs}

	if tm != template.Off {
		src, err := h.Template("src", t.Src, tm)
		if err != nil {
			return nil, err
		}
		data, err := readSource(h, src, "files")
		if err != nil {
			return nil, err
		}
		action.Content = data
	}

	return &EvaluatedTask{Action: action, With: with, And: and}, nil
}

// CopyAction is the evaluated copy module, carrying the source bytes read
// from the controller.
type CopyAction struct {
	Dest       string
	Content    []byte
	Attributes *tasks.FileAttributesEvaluated
}

// Dispatch implements the Query/Plan/Apply protocol for copies.
func (a *CopyAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	return dispatchContent(h, req, a.Dest, a.Content, a.Attributes)
}

// dispatchContent is the shared content-convergence machine used by the
// copy and template modules.
func dispatchContent(h *handle.TaskHandle, req *tasks.Request, dest string, content []byte, attrs *tasks.FileAttributesEvaluated) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		stat, err := h.RemoteStat(dest)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("stat failed: %v", err))
		}
		if stat == nil {
			return h.NeedsCreation(req)
		}
		if stat.IsDirectory {
			return h.Failed(req, fmt.Sprintf("destination is a directory: %s", dest))
		}

		var changes []tasks.Field
		remote, err := h.RemoteChecksum(dest)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("checksum failed: %v", err))
		}
		if remote != tasks.Sha512Bytes(content) {
			changes = append(changes, tasks.Content)
		}
		changes = append(changes, handle.AttributeDiff(stat, attrs)...)

		if len(changes) > 0 {
			return h.NeedsModification(req, changes)
		}
		return h.IsMatched(req)

	case tasks.Create:
		mode := ""
		if attrs != nil {
			mode = attrs.Mode
		}
		if err := h.PutFile(content, dest, mode); err != nil {
			return h.Failed(req, fmt.Sprintf("upload failed: %v", err))
		}
		ownership := ownershipFields(attrs)
		if _, err := h.RemoteApplyAttributes(dest, attrs, ownership, false); err != nil {
			return h.Failed(req, fmt.Sprintf("attribute apply failed: %v", err))
		}
		return h.IsCreated(req, append([]tasks.Field{tasks.Content}, attributeFields(attrs)...))

	case tasks.Modify:
		if tasks.FieldsContain(req.Changes, tasks.Content) {
			mode := ""
			if attrs != nil {
				mode = attrs.Mode
			}
			if err := h.PutFile(content, dest, mode); err != nil {
				return h.Failed(req, fmt.Sprintf("upload failed: %v", err))
			}
		}
		var attrChanges []tasks.Field
		for _, field := range req.Changes {
			if field != tasks.Content {
				attrChanges = append(attrChanges, field)
			}
		}
		applied, err := h.RemoteApplyAttributes(dest, attrs, attrChanges, false)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("attribute apply failed: %v", err))
		}
		if tasks.FieldsContain(req.Changes, tasks.Content) {
			applied = append([]tasks.Field{tasks.Content}, applied...)
		}
		return h.IsModified(req, applied)

	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}

// readSource reads a controller-side source file, resolving relative paths
// against the role's asset directory and the playbook directory.
func readSource(h *handle.TaskHandle, src, assetKind string) ([]byte, error) {
	candidates := []string{}
	if filepath.IsAbs(src) {
		candidates = append(candidates, src)
	} else {
		if h.Run != nil {
			if rolePath := h.Run.Context.RolePath; rolePath != "" {
				candidates = append(candidates, filepath.Join(rolePath, assetKind, src))
			}
			if dir := h.Run.Context.PlaybookDirectory; dir != "" {
				candidates = append(candidates, filepath.Join(dir, src))
			}
		}
		candidates = append(candidates, src)
	}

	var lastErr error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, types.NewValidationError("src", src, fmt.Sprintf("source not found: %v", lastErr))
}
