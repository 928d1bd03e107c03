package modules

import (
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/drover-sh/drover/pkg/types"
)

// Constructor builds an empty task record for a module, ready for YAML
// decoding.
type Constructor func() Task

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a module constructor under its YAML tag.
func Register(name string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = constructor
}

// Known reports whether a module name is registered.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Names returns the registered module names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse decodes a task node for the named module.
func Parse(name string, node *yaml.Node) (Task, error) {
	registryMu.RLock()
	constructor, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, types.NewPlaybookError("", "", name, "unknown module", types.ErrModuleNotFound)
	}

	task := constructor()
	if node != nil {
		if err := node.Decode(task); err != nil {
			return nil, types.NewPlaybookError("", "", name, "failed to decode task parameters", err)
		}
	}
	return task, nil
}

func init() {
	Register("file", func() Task { return &FileTask{} })
	Register("directory", func() Task { return &DirectoryTask{} })
	Register("copy", func() Task { return &CopyTask{} })
	Register("template", func() Task { return &TemplateTask{} })
	Register("stat", func() Task { return &StatTask{} })
	Register("apt", func() Task { return &AptTask{} })
	Register("yum_dnf", func() Task { return &YumDnfTask{} })
	Register("homebrew", func() Task { return &HomebrewTask{} })
	Register("set", func() Task { return &SetTask{} })
	Register("fail", func() Task { return &FailTask{} })
	Register("assert", func() Task { return &AssertTask{} })
	Register("facts", func() Task { return &FactsTask{} })
	Register("echo", func() Task { return &EchoTask{} })
	Register("debug", func() Task { return &DebugTask{} })
	Register("shell", func() Task { return &ShellTask{} })
}
