package modules

import (
	"fmt"
	"strings"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// packageManager describes one package tool's command surface. The apt,
// yum_dnf, and homebrew modules share the same convergence machine and
// differ only here.
type packageManager struct {
	name        string
	queryArgv   func(pkg string) []string
	installArgv func(pkg, version string) []string
	removeArgv  func(pkg string) []string
	updateArgv  []string
}

// packageParams is the evaluated form of the parameters shared by the
// package modules.
type packageParams struct {
	Package string
	Version string
	Update  bool
	Remove  bool
}

// evaluatePackageParams templates the common package parameters.
func evaluatePackageParams(h *handle.TaskHandle, tm template.Mode, pkg, version, update, remove string) (*packageParams, error) {
	if pkg == "" {
		return nil, types.NewValidationError("package", pkg, "required parameter is missing")
	}

	out := &packageParams{
		Update: boolish(update),
		Remove: boolish(remove),
	}

	var err error
	if out.Package, err = h.Template("package", pkg, tm); err != nil {
		return nil, err
	}
	if version != "" {
		if out.Version, err = h.Template("version", version, tm); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// packageAction is the evaluated form of any package module.
type packageAction struct {
	mgr    packageManager
	params *packageParams
}

// Dispatch implements the Query/Plan/Apply protocol for packages. An
// update=yes index refresh is accounted as a change regardless of the
// installed state.
func (a *packageAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		installed, version, err := a.queryInstalled(h)
		if err != nil {
			return h.Failed(req, fmt.Sprintf("package query failed: %v", err))
		}

		if a.params.Remove {
			if installed {
				return h.NeedsRemoval(req)
			}
			return h.IsMatched(req)
		}

		if !installed {
			return h.NeedsCreation(req)
		}
		if a.params.Version != "" && !strings.HasPrefix(version, a.params.Version) {
			return h.NeedsModification(req, []tasks.Field{tasks.Version})
		}
		if a.params.Update {
			return h.NeedsModification(req, []tasks.Field{tasks.Version})
		}
		return h.IsMatched(req)

	case tasks.Create:
		if a.params.Update {
			if resp := a.refreshIndex(h, req); resp != nil {
				return resp
			}
		}
		result, err := h.Probe(a.mgr.installArgv(a.params.Package, a.params.Version))
		if err != nil {
			return h.Failed(req, fmt.Sprintf("install failed: %v", err))
		}
		if result.RC != 0 {
			return h.FailedWithResult(req, fmt.Sprintf("install returned rc=%d", result.RC), result)
		}
		return h.IsCreated(req, []tasks.Field{tasks.Version})

	case tasks.Remove:
		result, err := h.Probe(a.mgr.removeArgv(a.params.Package))
		if err != nil {
			return h.Failed(req, fmt.Sprintf("remove failed: %v", err))
		}
		if result.RC != 0 {
			return h.FailedWithResult(req, fmt.Sprintf("remove returned rc=%d", result.RC), result)
		}
		return h.IsRemoved(req)

	case tasks.Modify:
		if a.params.Update {
			if resp := a.refreshIndex(h, req); resp != nil {
				return resp
			}
		}
		result, err := h.Probe(a.mgr.installArgv(a.params.Package, a.params.Version))
		if err != nil {
			return h.Failed(req, fmt.Sprintf("install failed: %v", err))
		}
		if result.RC != 0 {
			return h.FailedWithResult(req, fmt.Sprintf("install returned rc=%d", result.RC), result)
		}
		return h.IsModified(req, req.Changes)

	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}

func (a *packageAction) queryInstalled(h *handle.TaskHandle) (bool, string, error) {
	result, err := h.Probe(a.mgr.queryArgv(a.params.Package))
	if err != nil {
		return false, "", err
	}
	if result.RC != 0 {
		return false, "", nil
	}
	// Some tools (brew) echo the package name before the version.
	version := strings.TrimSpace(result.Out)
	version = strings.TrimSpace(strings.TrimPrefix(version, a.params.Package))
	return true, version, nil
}

func (a *packageAction) refreshIndex(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	result, err := h.Probe(a.mgr.updateArgv)
	if err != nil {
		return h.Failed(req, fmt.Sprintf("index refresh failed: %v", err))
	}
	if result.RC != 0 {
		return h.FailedWithResult(req, fmt.Sprintf("index refresh returned rc=%d", result.RC), result)
	}
	return nil
}
