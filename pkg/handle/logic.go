package handle

import (
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// EvaluatePreLogic evaluates a task's `with:` block against the current
// host scope. Under template mode Off (the structural pre-scan) nothing is
// rendered: the condition passes, items are not expanded, and
// skip_if_exists keeps its raw template. skip_if_exists stays raw even
// under Strict; the apply path renders it immediately before Apply.
func (h *TaskHandle) EvaluatePreLogic(in *tasks.PreLogicInput, tm template.Mode) (*tasks.PreLogicEvaluated, error) {
	if in == nil {
		return &tasks.PreLogicEvaluated{Condition: true}, nil
	}

	out := &tasks.PreLogicEvaluated{
		Condition:    true,
		Subscribe:    in.Subscribe,
		Tags:         in.Tags,
		SkipIfExists: in.SkipIfExists,
	}

	if tm == template.Off {
		out.Sudo = in.Sudo
		out.DelegateTo = in.DelegateTo
		out.HasItems = in.Items != nil
		return out, nil
	}

	scope := h.Scope()

	if in.Condition != "" {
		met, err := h.TemplateBoolean("condition", in.Condition, tm)
		if err != nil {
			return nil, err
		}
		out.Condition = met
	}

	if in.Items != nil {
		items, err := h.Templar.RenderList(scope, in.Items)
		if err != nil {
			return nil, types.NewTemplateError("items", "", "failed to render items", err)
		}
		out.Items = items
		out.HasItems = true
	}

	if in.Sudo != "" {
		sudo, err := h.Template("sudo", in.Sudo, tm)
		if err != nil {
			return nil, err
		}
		out.Sudo = sudo
	}

	if in.DelegateTo != "" {
		delegate, err := h.Template("delegate_to", in.DelegateTo, tm)
		if err != nil {
			return nil, err
		}
		out.DelegateTo = delegate
	}

	return out, nil
}

// EvaluatePostLogic evaluates a task's `and:` block.
func (h *TaskHandle) EvaluatePostLogic(in *tasks.PostLogicInput, tm template.Mode) (*tasks.PostLogicEvaluated, error) {
	if in == nil {
		return &tasks.PostLogicEvaluated{}, nil
	}

	out := &tasks.PostLogicEvaluated{
		Retry: in.Retry,
		Delay: in.Delay,
	}

	if in.IgnoreErrors != nil {
		out.IgnoreErrors = types.ConvertToBool(in.IgnoreErrors)
	}

	if in.Notify != "" {
		if tm == template.Off {
			out.Notify = in.Notify
		} else {
			notify, err := h.Template("notify", in.Notify, tm)
			if err != nil {
				return nil, err
			}
			out.Notify = notify
		}
	}

	return out, nil
}
