package modules

import (
	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
)

// AptTask manages Debian packages. update refreshes the package index and
// is accounted as a change.
type AptTask struct {
	Name    string                `yaml:"name,omitempty"`
	Package string                `yaml:"package"`
	Version string                `yaml:"version,omitempty"`
	Update  string                `yaml:"update,omitempty"`
	Remove  string                `yaml:"remove,omitempty"`
	With    *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And     *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *AptTask) Module() string                { return "apt" }
func (t *AptTask) TaskName() string              { return t.Name }
func (t *AptTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *AptTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate templates the parameters and returns the apt action.
func (t *AptTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
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
		Action: &packageAction{mgr: aptManager, params: params},
		With:   with,
		And:    and,
	}, nil
}

var aptManager = packageManager{
	name: "apt",
	queryArgv: func(pkg string) []string {
		return []string{"dpkg-query", "-W", "-f", "${Version}", pkg}
	},
	installArgv: func(pkg, version string) []string {
		spec := pkg
		if version != "" {
			spec = pkg + "=" + version + "*"
		}
		return []string{"apt-get", "install", "-y", spec}
	},
	removeArgv: func(pkg string) []string {
		return []string{"apt-get", "remove", "-y", pkg}
	},
	updateArgv: []string{"apt-get", "update"},
}
