package modules

import (
	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
)

// YumDnfTask manages RPM packages through dnf.
type YumDnfTask struct {
	Name    string                `yaml:"name,omitempty"`
	Package string                `yaml:"package"`
	Version string                `yaml:"version,omitempty"`
	Update  string                `yaml:"update,omitempty"`
	Remove  string                `yaml:"remove,omitempty"`
	With    *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And     *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *YumDnfTask) Module() string                { return "yum_dnf" }
func (t *YumDnfTask) TaskName() string              { return t.Name }
func (t *YumDnfTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *YumDnfTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters and returns the dnf action.
func (t *YumDnfTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
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
		Action: &packageAction{mgr: yumDnfManager, params: params},
		With:   with,
		And:    and,
	}, nil
}

var yumDnfManager = packageManager{
	name: "yum_dnf",
	queryArgv: func(pkg string) []string {
		return []string{"rpm", "-q", "--qf", "%{VERSION}", pkg}
	},
	installArgv: func(pkg, version string) []string {
		spec := pkg
		if version != "" {
			spec = pkg + "-" + version
		}
		return []string{"dnf", "install", "-y", spec}
	},
	removeArgv: func(pkg string) []string {
		return []string{"dnf", "remove", "-y", pkg}
	},
	updateArgv: []string{"dnf", "makecache"},
}
