package runstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/tasks"
)

func TestCheckModeValues(t *testing.T) {
	assert.NotEqual(t, Yes, No)
	assert.Equal(t, "Yes", Yes.String())
	assert.Equal(t, "No", No.String())
}

func TestVisitorInitialState(t *testing.T) {
	visitor := NewVisitor(No)

	assert.Equal(t, 0, visitor.PlayCount())
	assert.Equal(t, 0, visitor.RoleCount())
	assert.Equal(t, 0, visitor.TaskCount())
	assert.Equal(t, 0, visitor.ChangeCount())
	assert.Equal(t, 0, visitor.FailedCount())
	assert.Equal(t, 0, visitor.SkippedCount())
	assert.Equal(t, 0, visitor.NotifiedCount())
	assert.Equal(t, No, visitor.CheckMode)
}

func TestVisitorWithCheckMode(t *testing.T) {
	visitor := NewVisitor(Yes)
	assert.Equal(t, Yes, visitor.CheckMode)
}

func TestVisitorCounters(t *testing.T) {
	visitor := NewVisitor(No)
	host := inventory.NewHost("web1")

	visitor.IncPlay()
	visitor.IncRole()
	visitor.IncTask()
	visitor.IncTask()

	visitor.RecordResponse(host, &tasks.TaskResponse{Status: tasks.IsCreated})
	visitor.RecordResponse(host, &tasks.TaskResponse{Status: tasks.NeedsModification})
	visitor.RecordResponse(host, &tasks.TaskResponse{Status: tasks.Failed})
	visitor.RecordResponse(host, &tasks.TaskResponse{Status: tasks.IsSkipped})
	visitor.RecordResponse(host, &tasks.TaskResponse{Status: tasks.IsMatched})
	visitor.RecordResponse(host, &tasks.TaskResponse{Status: tasks.IsPassive})

	assert.Equal(t, 1, visitor.PlayCount())
	assert.Equal(t, 1, visitor.RoleCount())
	assert.Equal(t, 2, visitor.TaskCount())
	assert.Equal(t, 2, visitor.ChangeCount())
	assert.Equal(t, 1, visitor.FailedCount())
	assert.Equal(t, 1, visitor.SkippedCount())
}

func TestVisitorNotifications(t *testing.T) {
	visitor := NewVisitor(No)
	web1 := inventory.NewHost("web1")
	web2 := inventory.NewHost("web2")

	visitor.Notify("reload", web1)
	visitor.Notify("reload", web2)
	visitor.Notify("reload", web1) // duplicate, same host
	visitor.Notify("restart", web2)

	assert.Equal(t, 2, visitor.NotifiedCount())

	hosts := visitor.NotifiedHostsFor("reload")
	require.Len(t, hosts, 2)
	assert.Equal(t, "web1", hosts[0].Name)
	assert.Equal(t, "web2", hosts[1].Name)

	// The entry is consumed by the flush.
	assert.Empty(t, visitor.NotifiedHostsFor("reload"))
	assert.Equal(t, 1, visitor.NotifiedCount())

	assert.Empty(t, visitor.NotifiedHostsFor("never_notified"))
}

func TestContextCounters(t *testing.T) {
	context := NewContext()

	context.PushPlayScope("play one", nil)
	context.PushPlayScope("play two", nil)
	context.IncTask()

	assert.Equal(t, 2, context.PlayCount())
	assert.Equal(t, 0, context.RoleCount())
	assert.Equal(t, 1, context.TaskCount())
}

func TestContextScopePrecedence(t *testing.T) {
	inv := inventory.New()
	host := inv.CreateHost("web1")
	host.AddGroup("webservers")
	host.SetVars(map[string]interface{}{"port": 9999})

	group := inv.CreateGroup("webservers")
	group.AddHost("web1")
	group.Vars["port"] = 8080
	group.Vars["scheme"] = "https"

	context := NewContext()
	context.PushPlaybookScope(map[string]interface{}{"port": 1, "root": "/srv"})
	context.PushRoleScope("app", "/roles/app", map[string]interface{}{"port": 2})
	context.PushPlayScope("deploy", map[string]interface{}{"port": 3})

	scope := context.BuildScope(host, inv)

	// host > group > play > role > playbook
	assert.Equal(t, 9999, scope["port"])
	assert.Equal(t, "https", scope["scheme"])
	assert.Equal(t, "/srv", scope["root"])
	assert.Equal(t, "web1", scope["host"])

	context.PushTaskScope(map[string]interface{}{"port": -1})
	scope = context.BuildScope(host, inv)
	assert.Equal(t, -1, scope["port"])
}

func TestContextPopPairs(t *testing.T) {
	context := NewContext()
	context.PushPlayScope("play", nil)
	context.PushRoleScope("role", "/r", nil)

	assert.Equal(t, "role", context.Role)
	context.PopScope()
	assert.Equal(t, "", context.Role)
	context.PopScope()

	assert.Panics(t, func() { context.PopScope() })
}

func TestRunStateRoleTracking(t *testing.T) {
	run := newTestRunState(t)

	assert.True(t, run.MarkRoleTasksProcessed("common"))
	assert.False(t, run.MarkRoleTasksProcessed("common"))

	assert.True(t, run.MarkRoleHandlersProcessed("common"))
	assert.False(t, run.MarkRoleHandlersProcessed("common"))

	run.ResetRoleProcessing()
	assert.True(t, run.MarkRoleTasksProcessed("common"))
}

func TestRunStateRoleCycleDetection(t *testing.T) {
	run := newTestRunState(t)

	require.NoError(t, run.EnterRole("a"))
	require.NoError(t, run.EnterRole("b"))
	assert.Error(t, run.EnterRole("a"))

	run.ExitRole()
	run.ExitRole()
	run.ExitRole() // extra exit is a no-op
}

func TestRunStateSelectHosts(t *testing.T) {
	run := newTestRunState(t)
	run.Inventory.CreateHost("web1").AddGroup("webservers")
	run.Inventory.CreateHost("web2").AddGroup("webservers")
	group := run.Inventory.CreateGroup("webservers")
	group.AddHost("web1")
	group.AddHost("web2")

	assert.Len(t, run.SelectHosts([]string{"all"}), 3)

	run.LimitHosts = []string{"web1"}
	selected := run.SelectHosts([]string{"webservers"})
	require.Len(t, selected, 1)
	assert.Equal(t, "web1", selected[0].Name)
}

func newTestRunState(t *testing.T) *RunState {
	t.Helper()
	inv := inventory.New()
	inv.CreateHost("localhost")
	return New(inv, NewContext(), NewVisitor(No), nil)
}
