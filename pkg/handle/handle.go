// Package handle provides the TaskHandle, the per-(host,task) façade
// handed to modules. It bundles the run state, host, connection, and
// templar, and exposes a narrow, security-screened surface: templated
// strings, screened paths, command execution, and remote file primitives.
package handle

import (
	"context"
	"strings"

	"github.com/drover-sh/drover/pkg/connection"
	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/runstate"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// TaskHandle is the module-facing bundle for one (host, task) execution.
// The connection may belong to a different host than Host when the task is
// delegated; the scope always comes from the originating host.
type TaskHandle struct {
	Run     *runstate.RunState
	Host    *inventory.Host
	Conn    connection.Connection
	Templar *template.Templar

	ctx      context.Context
	sudo     string
	taskVars map[string]interface{}
}

// New creates a handle for one host. The connection may be nil during the
// structural pre-scan (template mode Off), where no commands are issued.
func New(ctx context.Context, run *runstate.RunState, host *inventory.Host, conn connection.Connection) *TaskHandle {
	return &TaskHandle{
		Run:      run,
		Host:     host,
		Conn:     conn,
		Templar:  template.New(),
		ctx:      ctx,
		taskVars: make(map[string]interface{}),
	}
}

// Context returns the cancellation context for this handle's commands.
func (h *TaskHandle) Context() context.Context {
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

// SetItem binds the current iteration item into the task-level scope.
func (h *TaskHandle) SetItem(item interface{}) {
	h.taskVars["item"] = item
}

// SetSudo sets the user commands run as for this task.
func (h *TaskHandle) SetSudo(user string) {
	h.sudo = user
	if user != "" {
		h.taskVars["sudo_user"] = user
	}
}

// Sudo returns the effective sudo user for this task.
func (h *TaskHandle) Sudo() string {
	return h.sudo
}

// Scope returns the merged variable map for the current (host, task, item).
func (h *TaskHandle) Scope() map[string]interface{} {
	var host *inventory.Host
	var inv *inventory.Inventory
	if h.Host != nil {
		host = h.Host
	}
	if h.Run != nil {
		inv = h.Run.Inventory
	}

	var scope map[string]interface{}
	if h.Run != nil {
		scope = h.Run.Context.BuildScope(host, inv)
	} else {
		scope = make(map[string]interface{})
	}
	return types.MergeVars(scope, h.taskVars)
}

// Template renders a raw parameter string under the current scope. The
// field name appears in the error when rendering fails.
func (h *TaskHandle) Template(field, raw string, tm template.Mode) (string, error) {
	rendered, err := h.Templar.Render(h.Scope(), raw, tm)
	if err != nil {
		return "", types.NewTemplateError(field, raw, "failed to render", err)
	}
	return rendered, nil
}

// TemplateBoolean evaluates a raw truthy expression under the current
// scope. Under mode Off it returns true without evaluating.
func (h *TaskHandle) TemplateBoolean(field, raw string, tm template.Mode) (bool, error) {
	if tm == template.Off {
		return true, nil
	}
	value, err := h.Templar.EvaluateBoolean(h.Scope(), raw)
	if err != nil {
		return false, types.NewTemplateError(field, raw, "failed to evaluate", err)
	}
	return value, nil
}

// TemplatePath renders a raw path and screens the result. Under mode Off
// the raw string is returned verbatim, unscreened; screening happens when
// the path is rendered for real.
func (h *TaskHandle) TemplatePath(field, raw string, tm template.Mode) (string, error) {
	if tm == template.Off {
		return raw, nil
	}
	rendered, err := h.Template(field, raw, tm)
	if err != nil {
		return "", err
	}
	if err := ScreenPath(rendered); err != nil {
		return "", err
	}
	return rendered, nil
}

// ScreenPath rejects strings containing template markers (an unrendered
// template leaked through) or any character outside the path whitelist.
// This is the defense against command interpolation of unvetted paths.
func ScreenPath(path string) error {
	if path == "" {
		return types.NewScreenError(path, "empty path")
	}
	if strings.Contains(path, "{{") || strings.Contains(path, "}}") {
		return types.NewScreenError(path, "unrendered template in path")
	}
	for _, c := range path {
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
			c == '.' || c == '_' || c == '/' || c == ' ' || c == '-') {
			return types.NewScreenError(path, "illegal character in path")
		}
	}
	return nil
}
