package modules

import (
	"fmt"
	"strings"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
)

// FactsTask probes the target and merges discovered facts into the host
// scope. Always passive.
type FactsTask struct {
	Name string                `yaml:"name,omitempty"`
	With *tasks.PreLogicInput  `yaml:"with,omitempty"`
	And  *tasks.PostLogicInput `yaml:"and,omitempty"`
}

func (t *FactsTask) Module() string                { return "facts" }
func (t *FactsTask) TaskName() string              { return t.Name }
func (t *FactsTask) GetWith() *tasks.PreLogicInput { return t.With }
func (t *FactsTask) GetAnd() *tasks.PostLogicInput { return t.And }

// Evaluate returns the facts action; there are no parameters to template.
func (t *FactsTask) Evaluate(h *handle.TaskHandle, req *tasks.Request, tm template.Mode) (*EvaluatedTask, error) {
	with, err := h.EvaluatePreLogic(t.With, tm)
	if err != nil {
		return nil, err
	}
	and, err := h.EvaluatePostLogic(t.And, tm)
	if err != nil {
		return nil, err
	}

	return &EvaluatedTask{Action: &factsAction{}, With: with, And: and}, nil
}

type factsAction struct{}

// Dispatch gathers facts by probing uname on the target.
func (a *factsAction) Dispatch(h *handle.TaskHandle, req *tasks.Request) *tasks.TaskResponse {
	switch req.Type {
	case tasks.Query:
		return h.NeedsPassive(req)

	case tasks.Passive:
		facts := make(map[string]interface{})

		probes := map[string][]string{
			"os_type":  {"uname", "-s"},
			"arch":     {"uname", "-m"},
			"hostname": {"uname", "-n"},
		}
		for key, argv := range probes {
			result, err := h.Probe(argv)
			if err != nil {
				return h.Failed(req, fmt.Sprintf("fact probe failed: %v", err))
			}
			if result.RC == 0 {
				facts[key] = strings.TrimSpace(result.Out)
			}
		}

		if result, err := h.Probe([]string{"uname", "-r"}); err == nil && result.RC == 0 {
			facts["os_release"] = strings.TrimSpace(result.Out)
		}

		h.Host.SetFacts(facts)
		return h.IsPassive(req, fmt.Sprintf("gathered %d facts", len(facts)))

	default:
		return h.Failed(req, fmt.Sprintf("unsupported request: %s", req.Type))
	}
}
