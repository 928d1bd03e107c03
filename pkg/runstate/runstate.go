package runstate

import (
	"sync"

	"github.com/google/uuid"

	"github.com/drover-sh/drover/pkg/connection"
	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/types"
)

// RunState is the shared root of one run: immutable after construction
// except for the role-tracking sets, which are guarded by their own lock.
// It is shared read-only by all workers.
type RunState struct {
	Inventory     *inventory.Inventory
	PlaybookPaths []string
	RolePaths     []string
	ModulePaths   []string

	LimitHosts  []string
	LimitGroups []string
	Tags        []string

	BatchSize int
	Threads   int

	Context *PlaybookContext
	Visitor *PlaybookVisitor
	Factory connection.Factory

	IsPullMode bool
	RunID      string

	mu                     sync.RWMutex
	processedRoleTasks     map[string]bool
	processedRoleHandlers  map[string]bool
	roleProcessingStack    []string
}

// New creates a run state with empty role tracking.
func New(inv *inventory.Inventory, context *PlaybookContext, visitor *PlaybookVisitor, factory connection.Factory) *RunState {
	return &RunState{
		Inventory:             inv,
		Context:               context,
		Visitor:               visitor,
		Factory:               factory,
		Threads:               1,
		RunID:                 uuid.NewString(),
		processedRoleTasks:    make(map[string]bool),
		processedRoleHandlers: make(map[string]bool),
	}
}

// SelectHosts matches a play's group patterns against the inventory and
// applies the run's host and group limit filters.
func (r *RunState) SelectHosts(patterns []string) []*inventory.Host {
	hosts := r.Inventory.Match(patterns)

	if len(r.LimitGroups) > 0 {
		limited := hosts[:0:0]
		for _, host := range hosts {
			for _, group := range host.Groups() {
				if types.StringSliceContains(r.LimitGroups, group) {
					limited = append(limited, host)
					break
				}
			}
		}
		hosts = limited
	}

	if len(r.LimitHosts) > 0 {
		limited := hosts[:0:0]
		for _, host := range hosts {
			if types.StringSliceContains(r.LimitHosts, host.Name) {
				limited = append(limited, host)
			}
		}
		hosts = limited
	}

	return hosts
}

// MarkRoleTasksProcessed records that a role's task list has been entered.
// Returns false if it was already processed.
func (r *RunState) MarkRoleTasksProcessed(role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processedRoleTasks[role] {
		return false
	}
	r.processedRoleTasks[role] = true
	return true
}

// MarkRoleHandlersProcessed records that a role's handlers have been
// registered for the current play. Returns false if already registered.
func (r *RunState) MarkRoleHandlersProcessed(role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processedRoleHandlers[role] {
		return false
	}
	r.processedRoleHandlers[role] = true
	return true
}

// ResetRoleProcessing clears the per-play role tracking; called between
// plays so each play replays role handler registration.
func (r *RunState) ResetRoleProcessing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processedRoleTasks = make(map[string]bool)
	r.processedRoleHandlers = make(map[string]bool)
	r.roleProcessingStack = nil
}

// EnterRole pushes a role onto the processing stack, rejecting re-entry of
// a role already on it (cycle detection).
func (r *RunState) EnterRole(role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if types.StringSliceContains(r.roleProcessingStack, role) {
		return types.NewPlaybookError("", "", "", "role dependency cycle at "+role, nil)
	}
	r.roleProcessingStack = append(r.roleProcessingStack, role)
	return nil
}

// ExitRole pops a role from the processing stack.
func (r *RunState) ExitRole() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.roleProcessingStack) > 0 {
		r.roleProcessingStack = r.roleProcessingStack[:len(r.roleProcessingStack)-1]
	}
}

// Summary snapshots the visitor counters.
func (r *RunState) Summary() *Summary {
	return &Summary{
		Plays:   r.Visitor.PlayCount(),
		Roles:   r.Visitor.RoleCount(),
		Tasks:   r.Visitor.TaskCount(),
		Changes: r.Visitor.ChangeCount(),
		Failed:  r.Visitor.FailedCount(),
		Skipped: r.Visitor.SkippedCount(),
	}
}
