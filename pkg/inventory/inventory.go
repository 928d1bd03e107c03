// Package inventory manages the set of hosts and groups a run targets.
package inventory

import (
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/drover-sh/drover/pkg/types"
)

// Group is a named set of hosts plus a variable map merged into every
// member host's scope with group precedence.
type Group struct {
	Name  string
	Hosts []string
	Vars  map[string]interface{}
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{
		Name: name,
		Vars: make(map[string]interface{}),
	}
}

// AddHost adds a host name to the group.
func (g *Group) AddHost(name string) {
	if !types.StringSliceContains(g.Hosts, name) {
		g.Hosts = append(g.Hosts, name)
	}
}

// Inventory holds all hosts and groups for a run. Hosts are created once
// per run and shared; the inventory itself is read-mostly after loading.
type Inventory struct {
	mu     sync.RWMutex
	hosts  map[string]*Host
	groups map[string]*Group
}

// New creates an empty inventory.
func New() *Inventory {
	return &Inventory{
		hosts:  make(map[string]*Host),
		groups: make(map[string]*Group),
	}
}

// inventoryFile is the YAML shape of an inventory file.
type inventoryFile struct {
	Hosts  map[string]map[string]interface{} `yaml:"hosts"`
	Groups map[string]struct {
		Hosts []string               `yaml:"hosts"`
		Vars  map[string]interface{} `yaml:"vars"`
	} `yaml:"groups"`
}

// Load reads an inventory YAML file into the inventory.
func (inv *Inventory) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewInventoryError(path, "failed to read inventory file", err)
	}

	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return types.NewInventoryError(path, "failed to parse inventory file", err)
	}

	for name, vars := range file.Hosts {
		host := inv.CreateHost(name)
		if vars != nil {
			host.SetVars(vars)
		}
	}

	for name, entry := range file.Groups {
		group := inv.CreateGroup(name)
		if entry.Vars != nil {
			group.Vars = types.MergeVars(group.Vars, entry.Vars)
		}
		for _, hostname := range entry.Hosts {
			host := inv.CreateHost(hostname)
			group.AddHost(hostname)
			host.AddGroup(name)
		}
	}

	return nil
}

// CreateHost returns the named host, creating it if absent.
func (inv *Inventory) CreateHost(name string) *Host {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if host, ok := inv.hosts[name]; ok {
		return host
	}
	host := NewHost(name)
	inv.hosts[name] = host
	return host
}

// CreateGroup returns the named group, creating it if absent.
func (inv *Inventory) CreateGroup(name string) *Group {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if group, ok := inv.groups[name]; ok {
		return group
	}
	group := NewGroup(name)
	inv.groups[name] = group
	return group
}

// GetHost returns a host by name.
func (inv *Inventory) GetHost(name string) (*Host, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	host, ok := inv.hosts[name]
	return host, ok
}

// GetGroup returns a group by name.
func (inv *Inventory) GetGroup(name string) (*Group, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	group, ok := inv.groups[name]
	return group, ok
}

// HostNames returns all host names in sorted order.
func (inv *Inventory) HostNames() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	names := make([]string, 0, len(inv.hosts))
	for name := range inv.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupNames returns all group names in sorted order.
func (inv *Inventory) GroupNames() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	names := make([]string, 0, len(inv.groups))
	for name := range inv.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether the inventory has no hosts.
func (inv *Inventory) IsEmpty() bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.hosts) == 0
}

// Match returns the hosts selected by a list of group patterns, in sorted
// host-name order. Patterns support shell-style wildcards; the pattern
// "all" or "*" selects every host.
func (inv *Inventory) Match(patterns []string) []*Host {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	selected := make(map[string]*Host)
	for _, pattern := range patterns {
		if pattern == "all" || pattern == "*" {
			for name, host := range inv.hosts {
				selected[name] = host
			}
			continue
		}
		for name, group := range inv.groups {
			if types.MatchPattern(pattern, name) {
				for _, hostname := range group.Hosts {
					if host, ok := inv.hosts[hostname]; ok {
						selected[hostname] = host
					}
				}
			}
		}
		// A bare hostname pattern selects the host directly.
		for name, host := range inv.hosts {
			if types.MatchPattern(pattern, name) {
				selected[name] = host
			}
		}
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	hosts := make([]*Host, 0, len(names))
	for _, name := range names {
		hosts = append(hosts, selected[name])
	}
	return hosts
}

// GroupVarsForHost merges the variable maps of every group the host belongs
// to, in sorted group order.
func (inv *Inventory) GroupVarsForHost(host *Host) map[string]interface{} {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	groups := host.Groups()
	sort.Strings(groups)

	merged := make(map[string]interface{})
	for _, name := range groups {
		if group, ok := inv.groups[name]; ok {
			merged = types.MergeVars(merged, group.Vars)
		}
	}
	return merged
}
