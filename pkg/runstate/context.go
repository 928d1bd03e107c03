package runstate

import (
	"sync"

	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/types"
)

// scopeKind orders the variable layers by precedence: higher kinds override
// lower ones. Group and host variables come from the inventory at scope
// build time and sit between play and task.
type scopeKind int

const (
	scopePlaybook scopeKind = iota
	scopeRole
	scopePlay
	scopeTask
)

type scopeLayer struct {
	kind scopeKind
	vars map[string]interface{}
}

// PlaybookContext is the scoped state of the current playbook, play, role,
// and task. Push and pop operations are scoped to plays and roles and must
// always pair. Readers on worker goroutines take the read lock.
type PlaybookContext struct {
	mu sync.RWMutex

	PlaybookPath      string
	PlaybookDirectory string
	Play              string
	Role              string
	RolePath          string
	Verbosity         int

	playCount int
	roleCount int
	taskCount int

	stack []scopeLayer
}

// NewContext creates an empty context.
func NewContext() *PlaybookContext {
	return &PlaybookContext{}
}

// SetPlaybook records the playbook being traversed.
func (c *PlaybookContext) SetPlaybook(path, directory string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PlaybookPath = path
	c.PlaybookDirectory = directory
}

// PushPlaybookScope enters a playbook-defaults variable layer.
func (c *PlaybookContext) PushPlaybookScope(vars map[string]interface{}) {
	c.push(scopePlaybook, vars)
}

// PushPlayScope enters a play and its variable layer.
func (c *PlaybookContext) PushPlayScope(play string, vars map[string]interface{}) {
	c.mu.Lock()
	c.Play = play
	c.playCount++
	c.mu.Unlock()
	c.push(scopePlay, vars)
}

// PushRoleScope enters a role and its defaults layer.
func (c *PlaybookContext) PushRoleScope(role, path string, defaults map[string]interface{}) {
	c.mu.Lock()
	c.Role = role
	c.RolePath = path
	c.roleCount++
	c.mu.Unlock()
	c.push(scopeRole, defaults)
}

// PushTaskScope enters a task-level layer (item, sudo user bindings).
func (c *PlaybookContext) PushTaskScope(vars map[string]interface{}) {
	c.push(scopeTask, vars)
}

// PopScope leaves the most recently pushed layer.
func (c *PlaybookContext) PopScope() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 {
		panic("scope pop without matching push")
	}
	popped := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]

	switch popped.kind {
	case scopeRole:
		c.Role = ""
		c.RolePath = ""
	case scopePlay:
		c.Play = ""
	}
}

func (c *PlaybookContext) push(kind scopeKind, vars map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if vars == nil {
		vars = make(map[string]interface{})
	}
	c.stack = append(c.stack, scopeLayer{kind: kind, vars: vars})
}

// IncTask counts one task traversed in this context.
func (c *PlaybookContext) IncTask() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskCount++
}

// PlayCount returns the number of plays entered.
func (c *PlaybookContext) PlayCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playCount
}

// RoleCount returns the number of roles entered.
func (c *PlaybookContext) RoleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roleCount
}

// TaskCount returns the number of tasks traversed.
func (c *PlaybookContext) TaskCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.taskCount
}

// BuildScope merges the variable layers into the scope for one host:
// playbook defaults, then role defaults, then play vars, then group vars,
// then host vars and facts, then task-level bindings. Later layers win.
func (c *PlaybookContext) BuildScope(host *inventory.Host, inv *inventory.Inventory) map[string]interface{} {
	c.mu.RLock()
	layers := make([]scopeLayer, len(c.stack))
	copy(layers, c.stack)
	c.mu.RUnlock()

	scope := make(map[string]interface{})
	for _, kind := range []scopeKind{scopePlaybook, scopeRole, scopePlay} {
		for _, layer := range layers {
			if layer.kind == kind {
				scope = types.MergeVars(scope, layer.vars)
			}
		}
	}

	if host != nil {
		if inv != nil {
			scope = types.MergeVars(scope, inv.GroupVarsForHost(host))
		}
		scope = types.MergeVars(scope, host.Vars(), host.Facts())
		scope["host"] = host.Name
	}

	for _, layer := range layers {
		if layer.kind == scopeTask {
			scope = types.MergeVars(scope, layer.vars)
		}
	}

	return scope
}
