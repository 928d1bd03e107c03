package modules

import (
	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// TemplateTask renders a controller-side template against the host scope
// and converges the destination on the rendered content.
type TemplateTask struct {
	Name       string                     `yaml:"name,omitempty"`
	Src        string                     `yaml:"src"`
	Dest       string                     `yaml:"dest"`
	Attributes *tasks.FileAttributesInput `yaml:"attributes,omitempty"`
	With       *tasks.PreLogicInput       `yaml:"with,omitempty"`
	And        *tasks.PostLogicInput      `yaml:"and,omitempty"`
}

func (t *TemplateTask) Module() string                { return "template" }
func (t *TemplateTask) TaskName() string              { return t.Name }
func (t *TemplateTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *TemplateTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters, renders the source against the host
// scope, and returns the action.
func (t *TemplateTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
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

	action := &TemplateAction{Dest: dest, Attributes: attrs}

	if tm != template.Off {
		src, err := h.Template("src", t.Src, tm)
		if err != nil {
			return nil, err
		}
		raw, err := readSource(h, src, "templates")
		if err != nil {
			return nil, err
		}
		rendered, err := h.Templar.Render(h.Scope(), string(raw), tm)
		if err != nil {
			return nil, types.NewTemplateError("src", src, "failed to render template source", err)
		}
		action.Content = []byte(rendered)
	}

	return &EvaluatedTask{Action: action, With: with, And: and}, nil
}

// TemplateAction is the evaluated template module, carrying the rendered
// content.
type TemplateAction struct {
	Dest       string
	Content    []byte
	Attributes *tasks.FileAttributesEvaluated
}

// Dispatch implements the Query/Plan/Apply protocol for templates.
func (a *TemplateAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	return dispatchContent(h, req, a.Dest, a.Content, a.Attributes)
}
