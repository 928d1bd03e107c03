// Package playbook parses playbook and role YAML and drives the traversal
// engine: playbooks → plays → (roles ∪ tasks) → host batches, with handler
// flush at play end.
package playbook

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/drover-sh/drover/pkg/modules"
	"github.com/drover-sh/drover/pkg/types"
)

// GroupList accepts a single group name or a list of names.
type GroupList []string

// UnmarshalYAML accepts scalar or sequence forms.
func (g *GroupList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*g = GroupList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*g = GroupList(list)
		return nil
	default:
		return fmt.Errorf("groups must be a name or a list of names")
	}
}

// RoleRef is one role invocation in a play: a bare name or a mapping with
// overriding vars.
type RoleRef struct {
	Role string                 `yaml:"role"`
	Vars map[string]interface{} `yaml:"vars,omitempty"`
}

// UnmarshalYAML accepts scalar or mapping forms.
func (r *RoleRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Role = node.Value
		return nil
	}
	type plain RoleRef
	return node.Decode((*plain)(r))
}

// TaskList is an ordered list of parsed module tasks. Each entry is a YAML
// mapping tagged with a module name, either as a !module tag or as a
// single module key with name/with/and as sibling keys.
type TaskList []modules.Task

// UnmarshalYAML parses each task entry through the module registry.
func (l *TaskList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("tasks must be a list")
	}

	parsed := make([]modules.Task, 0, len(node.Content))
	for _, item := range node.Content {
		task, err := parseTaskNode(item)
		if err != nil {
			return err
		}
		parsed = append(parsed, task)
	}

	*l = TaskList(parsed)
	return nil
}

func parseTaskNode(node *yaml.Node) (modules.Task, error) {
	// Tag form: - !echo { msg: hi }
	if strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!") {
		name := strings.TrimPrefix(node.Tag, "!")
		if !modules.Known(name) {
			return nil, types.NewPlaybookError("", "", name, "unknown module tag", types.ErrModuleNotFound)
		}
		// Restore the standard tag so the decoder accepts the node.
		clone := *node
		clone.Tag = "!!map"
		return modules.Parse(name, &clone)
	}

	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("task entry must be a mapping")
	}

	// Single-key form: the module name is a top-level key whose value holds
	// the parameters; name/with/and may sit beside it.
	var moduleName string
	var moduleValue *yaml.Node
	var siblings []*yaml.Node

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		if modules.Known(key.Value) && moduleName == "" {
			moduleName = key.Value
			moduleValue = value
		} else {
			siblings = append(siblings, key, value)
		}
	}

	if moduleName == "" {
		return nil, fmt.Errorf("task entry does not name a known module")
	}

	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if moduleValue.Kind == yaml.MappingNode {
		merged.Content = append(merged.Content, moduleValue.Content...)
	}
	merged.Content = append(merged.Content, siblings...)

	return modules.Parse(moduleName, merged)
}

// Play binds tasks and roles to a set of hosts with shared defaults.
type Play struct {
	Name      string                 `yaml:"name"`
	Groups    GroupList              `yaml:"groups,omitempty"`
	Hosts     GroupList              `yaml:"hosts,omitempty"`
	Sudo      string                 `yaml:"sudo,omitempty"`
	SudoUser  string                 `yaml:"sudo_user,omitempty"`
	SSHUser   string                 `yaml:"ssh_user,omitempty"`
	SSHPort   int                    `yaml:"ssh_port,omitempty"`
	BatchSize int                    `yaml:"batch_size,omitempty"`
	Vars      map[string]interface{} `yaml:"vars,omitempty"`
	Roles     []RoleRef              `yaml:"roles,omitempty"`
	PreTasks  TaskList               `yaml:"pre_tasks,omitempty"`
	Tasks     TaskList               `yaml:"tasks,omitempty"`
	PostTasks TaskList               `yaml:"post_tasks,omitempty"`
	Handlers  TaskList               `yaml:"handlers,omitempty"`
}

// TargetGroups returns the play's host selection patterns, accepting both
// the groups and hosts spellings.
func (p *Play) TargetGroups() []string {
	out := make([]string, 0, len(p.Groups)+len(p.Hosts))
	out = append(out, p.Groups...)
	out = append(out, p.Hosts...)
	return out
}

// Role is a reusable, directory-rooted bundle of tasks and handlers with
// its own defaults.
type Role struct {
	Name     string                 `yaml:"name"`
	Defaults map[string]interface{} `yaml:"defaults,omitempty"`
	Tasks    TaskList               `yaml:"tasks,omitempty"`
	Handlers TaskList               `yaml:"handlers,omitempty"`
}
