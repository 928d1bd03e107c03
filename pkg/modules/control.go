package modules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
)

// EchoTask prints a templated message. Always passive.
type EchoTask struct {
	Name string                `yaml:"name,omitempty"`
	Msg  string                `yaml:"msg"`
	With *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *EchoTask) Module() string                { return "echo" }
func (t *EchoTask) TaskName() string              { return t.Name }
func (t *EchoTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *EchoTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the message.
func (t *EchoTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	msg, err := h.Template("msg", t.Msg, tm)
	if err != nil {
		return nil, err
	}

	return &EvaluatedTask{Action: &passiveMessageAction{Msg: msg}, With: with, And: and}, nil
}

// passiveMessageAction carries a human message with no host change; it
// backs the echo and debug modules.
type passiveMessageAction struct {
	Msg string
}

func (a *passiveMessageAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		return h.NeedsPassive(req)
	case tasks.Passive:
		return h.IsPassive(req, a.Msg)
	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}

// DebugTask prints selected scope variables, or the whole scope when none
// are named. Always passive.
type DebugTask struct {
	Name string                `yaml:"name,omitempty"`
	Vars []string              `yaml:"vars,omitempty"`
	With *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *DebugTask) Module() string                { return "debug" }
func (t *DebugTask) TaskName() string              { return t.Name }
func (t *DebugTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *DebugTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate resolves the requested variables from the scope.
func (t *DebugTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	msg := ""
	if tm != template.Off {
		scope := h.Scope()
		names := t.Vars
		if len(names) == 0 {
			names = make([]string, 0, len(scope))
			for name := range scope {
				names = append(names, name)
			}
			sort.Strings(names)
		}
		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s = %v", name, scope[name]))
		}
		msg = strings.Join(lines, "\n")
	}

	return &EvaluatedTask{Action: &passiveMessageAction{Msg: msg}, With: with, And: and}, nil
}

// FailTask fails unconditionally with a templated message.
type FailTask struct {
	Name string                `yaml:"name,omitempty"`
	Msg  string                `yaml:"msg,omitempty"`
	With *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *FailTask) Module() string                { return "fail" }
func (t *FailTask) TaskName() string              { return t.Name }
func (t *FailTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *FailTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the failure message.
func (t *FailTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	msg, err := h.Template("msg", t.Msg, tm)
	if err != nil {
		return nil, err
	}
	if msg == "" {
		msg = "failed as requested"
	}

	return &EvaluatedTask{Action: &failAction{Msg: msg}, With: with, And: and}, nil
}

type failAction struct {
	Msg string
}

func (a *failAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	return h.Failed(req, a.Msg)
}

// SetTask merges templated variables into the host's fact scope. Always
// passive.
type SetTask struct {
	Name string                 `yaml:"name,omitempty"`
	Vars map[string]interface{} `yaml:"vars,omitempty"`
	With *tasks.PreLogicInput   `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput  `yaml:"and,omitempty"`
}

func (t *SetTask) Module() string                { return "set" }
func (t *SetTask) TaskName() string              { return t.Name }
func (t *SetTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *SetTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate renders string-valued vars against the scope.
func (t *SetTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	rendered := make(map[string]interface{}, len(t.Vars))
	for key, value := range t.Vars {
		if raw, ok := value.(string); ok && tm != template.Off {
			s, err := h.Template(key, raw, tm)
			if err != nil {
				return nil, err
			}
			rendered[key] = s
		} else {
			rendered[key] = value
		}
	}

	return &EvaluatedTask{Action: &setAction{Vars: rendered}, With: with, And: and}, nil
}

type setAction struct {
	Vars map[string]interface{}
}

func (a *setAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		return h.NeedsPassive(req)
	case tasks.Passive:
		h.Host.SetFacts(a.Vars)
		return h.IsPassive(req, fmt.Sprintf("set %d variables", len(a.Vars)))
	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}

// AssertTask evaluates truth expressions against the scope and fails on
// violation. Passive on pass.
type AssertTask struct {
	Name     string                `yaml:"name,omitempty"`
	Msg      string                `yaml:"msg,omitempty"`
	True     string                `yaml:"true,omitempty"`
	False    string                `yaml:"false,omitempty"`
	AllTrue  []string              `yaml:"all_true,omitempty"`
	AllFalse []string              `yaml:"all_false,omitempty"`
	SomeTrue []string              `yaml:"some_true,omitempty"`
	With     *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And      *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *AssertTask) Module() string                { return "assert" }
func (t *AssertTask) TaskName() string              { return t.Name }
func (t *AssertTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *AssertTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate checks the assertion expressions against the scope.
func (t *AssertTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	action := &assertAction{Msg: t.Msg, Passed: true}

	if tm != template.Off {
		action.Passed, action.Detail, err = t.check(h, tm)
		if err != nil {
			return nil, err
		}
	}

	return &EvaluatedTask{Action: action, With: with, And: and}, nil
}

func (t *AssertTask) check(h *handle.TaskHandle, tm template.Mode) (bool, string, error) {
	if t.True != "" {
		ok, err := h.TemplateBoolean("true", t.True, tm)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, fmt.Sprintf("expression is not true: %s", t.True), nil
		}
	}
	if t.False != "" {
		ok, err := h.TemplateBoolean("false", t.False, tm)
		if err != nil {
			return false, "", err
		}
		if ok {
			return false, fmt.Sprintf("expression is not false: %s", t.False), nil
		}
	}
	for _, expr := range t.AllTrue {
		ok, err := h.TemplateBoolean("all_true", expr, tm)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, fmt.Sprintf("expression is not true: %s", expr), nil
		}
	}
	for _, expr := range t.AllFalse {
		ok, err := h.TemplateBoolean("all_false", expr, tm)
		if err != nil {
			return false, "", err
		}
		if ok {
			return false, fmt.Sprintf("expression is not false: %s", expr), nil
		}
	}
	if len(t.SomeTrue) > 0 {
		any := false
		for _, expr := range t.SomeTrue {
			ok, err := h.TemplateBoolean("some_true", expr, tm)
			if err != nil {
				return false, "", err
			}
			if ok {
				any = true
				break
			}
		}
		if !any {
			return false, "no expression in some_true evaluated true", nil
		}
	}
	return true, "", nil
}

type assertAction struct {
	Msg    string
	Passed bool
	Detail string
}

func (a *assertAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		if !a.Passed {
			msg := a.Msg
			if msg == "" {
				msg = a.Detail
			}
			return h.Failed(req, msg)
		}
		return h.NeedsPassive(req)
	case tasks.Passive:
		return h.IsPassive(req, "assertion passed")
	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}
