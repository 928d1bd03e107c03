package modules

import (
	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
)

// HomebrewTask manages Homebrew packages on macOS targets.
type HomebrewTask struct {
	Name    string                `yaml:"name,omitempty"`
	Package string                `yaml:"package"`
	Version string                `yaml:"version,omitempty"`
	Update  string                `yaml:"update,omitempty"`
	Remove  string                `yaml:"remove,omitempty"`
	With    *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And     *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *HomebrewTask) Module() string                { return "homebrew" }
func (t *HomebrewTask) TaskName() string              { return t.Name }
func (t *HomebrewTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *HomebrewTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters and returns the homebrew action.
func (t *HomebrewTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	params, err := evaluatePackageParams(h, tm, t.Package, t.Version, t.Update, t.Remove)
	if err != nil {
		return nil, err
	}

	return &EvaluatedTask{
		Action: &packageAction{mgr: homebrewManager, params: params},
		With:   with,
		And:    and,
	}, nil
}

var homebrewManager = packageManager{
	name: "homebrew",
	queryArgv: func(pkg string) []string {
		return []string{"brew", "list", "--versions", pkg}
	},
	installArgv: func(pkg, version string) []string {
		spec := pkg
		if version != "" {
			spec = pkg + "@" + version
		}
		return []string{"brew", "install", spec}
	},
	removeArgv: func(pkg string) []string {
		return []string{"brew", "uninstall", pkg}
	},
	updateArgv: []string{"brew", "update"},
}
