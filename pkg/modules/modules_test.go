package modules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/modules"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/testutil"
)

func decodeTask(t *testing.T, module, source string) modules.Task {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(source), &node))
	task, err := modules.Parse(module, node.Content[0])
	require.NoError(t, err)
	return task
}

func newTestHandle(t *testing.T, conn *testutil.FakeConnection) *handle.TaskHandle {
	t.Helper()
	run := testutil.NewTestRunState(conn)
	host, _ := run.Inventory.GetHost("localhost")
	return handle.New(context.Background(), run, host, conn)
}

func evaluate(t *testing.T, task modules.Task, h *handle.TaskHandle) *modules.EvaluatedTask {
	t.Helper()
	evaluated, err := task.Evaluate(h, tasks.NewQueryRequest(), template.Strict)
	require.NoError(t, err)
	return evaluated
}

func TestRegistryKnownModules(t *testing.T) {
	for _, name := range []string{
		"file", "directory", "copy", "template", "stat",
		"apt", "yum_dnf", "homebrew",
		"set", "fail", "assert", "facts", "echo", "debug", "shell",
	} {
		assert.True(t, modules.Known(name), name)
	}
	assert.False(t, modules.Known("bogus"))
	assert.Contains(t, modules.Names(), "file")
}

func TestFileTaskDeserialization(t *testing.T) {
	task := decodeTask(t, "file", `
name: Create test file
path: /tmp/test.txt
attributes:
  owner: root
  group: root
  mode: "0644"
`)

	file, ok := task.(*modules.FileTask)
	require.True(t, ok)
	assert.Equal(t, "file", file.Module())
	assert.Equal(t, "Create test file", file.TaskName())
	assert.Equal(t, "/tmp/test.txt", file.Path)
	require.NotNil(t, file.Attributes)
	assert.Equal(t, "root", file.Attributes.Owner)
	assert.Equal(t, "0644", file.Attributes.Mode)
	assert.Nil(t, file.GetWith())
}

func TestFileTaskDeserializationRemove(t *testing.T) {
	task := decodeTask(t, "file", `
path: /tmp/delete_me.txt
remove: "yes"
`)

	file := task.(*modules.FileTask)
	assert.Equal(t, "yes", file.Remove)
	assert.Empty(t, file.TaskName())
}

func TestFileTaskWithLogic(t *testing.T) {
	task := decodeTask(t, "file", `
path: /tmp/conditional.txt
with:
  condition: "{{ create_file }}"
and:
  notify: "file_created"
`)

	file := task.(*modules.FileTask)
	require.NotNil(t, file.GetWith())
	assert.Equal(t, "{{ create_file }}", file.GetWith().Condition)
	require.NotNil(t, file.GetAnd())
	assert.Equal(t, "file_created", file.GetAnd().Notify)
}

func TestAptTaskDeserialization(t *testing.T) {
	task := decodeTask(t, "apt", `
name: Install web server
package: nginx
version: "1.22"
update: "yes"
`)

	apt := task.(*modules.AptTask)
	assert.Equal(t, "apt", apt.Module())
	assert.Equal(t, "nginx", apt.Package)
	assert.Equal(t, "1.22", apt.Version)
	assert.Equal(t, "yes", apt.Update)
	assert.Empty(t, apt.Remove)
}

func TestAssertTaskDeserializationWithLists(t *testing.T) {
	task := decodeTask(t, "assert", `
all_true:
  - "{{ condition1 }}"
  - "{{ condition2 }}"
some_true:
  - "{{ maybe1 }}"
  - "{{ maybe2 }}"
`)

	a := task.(*modules.AssertTask)
	assert.Len(t, a.AllTrue, 2)
	assert.Len(t, a.SomeTrue, 2)
}

func TestStatTaskKeepsRawTemplates(t *testing.T) {
	task := decodeTask(t, "stat", `
name: Check multiple files
path: "{{ item }}"
save: "file_stat"
with:
  items: "{{ files_to_check }}"
`)

	s := task.(*modules.StatTask)
	assert.Contains(t, s.Path, "{{ item }}")
	require.NotNil(t, s.GetWith())
	assert.NotNil(t, s.GetWith().Items)
}

func TestDisplayName(t *testing.T) {
	named := decodeTask(t, "echo", `{name: Say hello, msg: hi}`)
	assert.Equal(t, "Say hello", modules.DisplayName(named))

	unnamed := decodeTask(t, "echo", `{msg: hi}`)
	assert.Equal(t, "echo", modules.DisplayName(unnamed))
}

func TestFileQueryAbsentNeedsCreation(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("stat -L", 1, "stat: cannot stat")

	h := newTestHandle(t, conn)
	task := decodeTask(t, "file", `{path: /tmp/x, attributes: {mode: "0644"}}`)

	query := tasks.NewQueryRequest()
	evaluated := evaluate(t, task, h)
	response := evaluated.Action.Dispatch(h, query)
	assert.Equal(t, tasks.NeedsCreation, response.Status)
}

func TestFileQueryMatched(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("stat -L", 0, "regular file|root|root|644")

	h := newTestHandle(t, conn)
	task := decodeTask(t, "file", `{path: /tmp/x, attributes: {owner: root, group: root, mode: "0644"}}`)

	response := evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.IsMatched, response.Status)
}

func TestFileQueryAttributeDrift(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("stat -L", 0, "regular file|root|root|600")

	h := newTestHandle(t, conn)
	task := decodeTask(t, "file", `{path: /tmp/x, attributes: {mode: "0644"}}`)

	response := evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.NeedsModification, response.Status)
	assert.Equal(t, []tasks.Field{tasks.Mode}, response.Changes)
}

func TestFileQueryRemove(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("stat -L", 0, "regular file|root|root|644")

	h := newTestHandle(t, conn)
	task := decodeTask(t, "file", `{path: /tmp/x, remove: "yes"}`)

	response := evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.NeedsRemoval, response.Status)

	// Absent path already matches the removed state.
	conn2 := testutil.NewFakeConnection()
	conn2.Script("stat -L", 1, "")
	h2 := newTestHandle(t, conn2)
	response = evaluate(t, task, h2).Action.Dispatch(h2, tasks.NewQueryRequest())
	assert.Equal(t, tasks.IsMatched, response.Status)
}

func TestFileCreateApply(t *testing.T) {
	conn := testutil.NewFakeConnection()

	h := newTestHandle(t, conn)
	task := decodeTask(t, "file", `{path: /tmp/x, attributes: {mode: "0644"}}`)

	response := evaluate(t, task, h).Action.Dispatch(h, tasks.NewCreateRequest())
	require.Equal(t, tasks.IsCreated, response.Status)
	assert.Equal(t, []tasks.Field{tasks.Content, tasks.Mode}, response.Changes)
	assert.Contains(t, conn.Uploads, "/tmp/x")
}

func TestAptQuerySemantics(t *testing.T) {
	// Installed at the requested version.
	conn := testutil.NewFakeConnection()
	conn.Script("dpkg-query", 0, "1.22.1-1")
	h := newTestHandle(t, conn)
	task := decodeTask(t, "apt", `{package: nginx, version: "1.22"}`)
	response := evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.IsMatched, response.Status)

	// Not installed.
	conn = testutil.NewFakeConnection()
	conn.Script("dpkg-query", 1, "no packages found")
	h = newTestHandle(t, conn)
	response = evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.NeedsCreation, response.Status)

	// update=yes forces an index refresh accounted as a change.
	conn = testutil.NewFakeConnection()
	conn.Script("dpkg-query", 0, "1.22.1-1")
	h = newTestHandle(t, conn)
	task = decodeTask(t, "apt", `{package: nginx, version: "1.22", update: "yes"}`)
	response = evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.NeedsModification, response.Status)
	assert.Equal(t, []tasks.Field{tasks.Version}, response.Changes)

	// remove=yes with the package installed.
	conn = testutil.NewFakeConnection()
	conn.Script("dpkg-query", 0, "2.4.57-2")
	h = newTestHandle(t, conn)
	task = decodeTask(t, "apt", `{package: apache2, remove: "yes"}`)
	response = evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.NeedsRemoval, response.Status)
}

func TestEchoDispatch(t *testing.T) {
	conn := testutil.NewFakeConnection()
	h := newTestHandle(t, conn)
	h.Host.SetFact("name", "world")

	task := decodeTask(t, "echo", `{msg: "hi {{ name }}"}`)
	evaluated := evaluate(t, task, h)

	query := evaluated.Action.Dispatch(h, tasks.NewQueryRequest())
	require.Equal(t, tasks.NeedsPassive, query.Status)

	response := evaluated.Action.Dispatch(h, tasks.NewPassiveRequest())
	assert.Equal(t, tasks.IsPassive, response.Status)
	assert.Equal(t, "hi world", response.Msg)
	assert.Empty(t, conn.Commands)
}

func TestSetDispatchMergesFacts(t *testing.T) {
	conn := testutil.NewFakeConnection()
	h := newTestHandle(t, conn)

	task := decodeTask(t, "set", `{vars: {env: production, port: 8080}}`)
	evaluated := evaluate(t, task, h)

	response := evaluated.Action.Dispatch(h, tasks.NewPassiveRequest())
	require.Equal(t, tasks.IsPassive, response.Status)

	value, ok := h.Host.GetFact("env")
	require.True(t, ok)
	assert.Equal(t, "production", value)
}

func TestFailDispatch(t *testing.T) {
	conn := testutil.NewFakeConnection()
	h := newTestHandle(t, conn)

	task := decodeTask(t, "fail", `{msg: "nope"}`)
	response := evaluate(t, task, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.Failed, response.Status)
	assert.Equal(t, "nope", response.Msg)
}

func TestAssertDispatch(t *testing.T) {
	conn := testutil.NewFakeConnection()
	h := newTestHandle(t, conn)
	h.Host.SetFact("test_var", 42)

	pass := decodeTask(t, "assert", `{true: "{{ test_var == 42 }}"}`)
	response := evaluate(t, pass, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.NeedsPassive, response.Status)

	violation := decodeTask(t, "assert", `{true: "{{ 1 == 2 }}", msg: "math is broken"}`)
	response = evaluate(t, violation, h).Action.Dispatch(h, tasks.NewQueryRequest())
	assert.Equal(t, tasks.Failed, response.Status)
	assert.Equal(t, "math is broken", response.Msg)
}

func TestShellDispatch(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("sh -c systemctl reload nginx", 0, "")
	h := newTestHandle(t, conn)

	task := decodeTask(t, "shell", `{cmd: systemctl reload nginx}`)
	evaluated := evaluate(t, task, h)

	query := evaluated.Action.Dispatch(h, tasks.NewQueryRequest())
	require.Equal(t, tasks.NeedsExecution, query.Status)

	response := evaluated.Action.Dispatch(h, tasks.NewExecuteRequest())
	require.Equal(t, tasks.IsExecuted, response.Status)
	require.NotNil(t, response.Command)
	assert.Equal(t, 0, response.Command.RC)
}

func TestShellDispatchFailure(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("sh -c", 2, "boom")
	h := newTestHandle(t, conn)

	task := decodeTask(t, "shell", `{cmd: explode}`)
	evaluated := evaluate(t, task, h)

	response := evaluated.Action.Dispatch(h, tasks.NewExecuteRequest())
	assert.Equal(t, tasks.Failed, response.Status)
	require.NotNil(t, response.Command)
	assert.Equal(t, 2, response.Command.RC)
}

func TestStatDispatchSavesFacts(t *testing.T) {
	conn := testutil.NewFakeConnection()
	conn.Script("stat -L", 0, "directory|root|root|755")
	h := newTestHandle(t, conn)

	task := decodeTask(t, "stat", `{path: /opt/app, save: app_dir}`)
	evaluated := evaluate(t, task, h)

	response := evaluated.Action.Dispatch(h, tasks.NewPassiveRequest())
	require.Equal(t, tasks.IsPassive, response.Status)

	value, ok := h.Host.GetFact("app_dir")
	require.True(t, ok)
	saved := value.(map[string]interface{})
	assert.Equal(t, true, saved["exists"])
	assert.Equal(t, true, saved["directory"])
	assert.Equal(t, "root", saved["owner"])
}

func TestValidationMissingRequired(t *testing.T) {
	conn := testutil.NewFakeConnection()
	h := newTestHandle(t, conn)

	task := decodeTask(t, "file", `{remove: "yes"}`)
	_, err := task.Evaluate(h, tasks.NewValidateRequest(), template.Off)
	assert.Error(t, err)

	task = decodeTask(t, "copy", `{dest: /tmp/x}`)
	_, err = task.Evaluate(h, tasks.NewValidateRequest(), template.Off)
	assert.Error(t, err)
}
