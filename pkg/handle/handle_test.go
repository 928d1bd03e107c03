package handle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
)

func newBareHandle() *TaskHandle {
	return New(context.Background(), nil, nil, nil)
}

func TestScreenPathAllowsRenderedResult(t *testing.T) {
	assert.NoError(t, ScreenPath("/home/testuser/.config"))
	assert.NoError(t, ScreenPath("/var/log/app-1.2_x/file name"))
}

func TestScreenPathRejectsTemplateSyntax(t *testing.T) {
	assert.Error(t, ScreenPath("/home/{{ user }}/.config"))
	assert.Error(t, ScreenPath("}}"))
}

func TestScreenPathRejectsIllegalChars(t *testing.T) {
	assert.Error(t, ScreenPath("/home/test;user/.config"))
	assert.Error(t, ScreenPath("/tmp/$(rm -rf)"))
	assert.Error(t, ScreenPath("/tmp/a|b"))
	assert.Error(t, ScreenPath(""))
}

func TestTemplateRendersVariables(t *testing.T) {
	h := newBareHandle()
	h.taskVars["user"] = "testuser"

	result, err := h.Template("path", "/home/{{ user }}/.config", template.Strict)
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config", result)
}

func TestTemplateNamesFieldOnFailure(t *testing.T) {
	h := newBareHandle()

	_, err := h.Template("dest", "{{ missing }}", template.Strict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dest")
}

func TestTemplatePathOffReturnsRaw(t *testing.T) {
	h := newBareHandle()

	result, err := h.TemplatePath("path", "/home/{{ user }}/.config", template.Off)
	require.NoError(t, err)
	assert.Equal(t, "/home/{{ user }}/.config", result)
}

func TestTemplatePathScreensRenderedValue(t *testing.T) {
	h := newBareHandle()
	h.taskVars["user"] = "bad;user"

	_, err := h.TemplatePath("path", "/home/{{ user }}/.config", template.Strict)
	assert.Error(t, err)
}

func TestPreLogicSkipIfExistsStoresRawTemplate(t *testing.T) {
	in := &tasks.PreLogicInput{
		SkipIfExists: "/home/{{ user }}/.config",
	}

	h := newBareHandle()

	// Off mode, like the first structural evaluation.
	evaluated, err := h.EvaluatePreLogic(in, template.Off)
	require.NoError(t, err)
	assert.Equal(t, "/home/{{ user }}/.config", evaluated.SkipIfExists)
	assert.True(t, evaluated.Condition)

	// The raw template survives strict evaluation too; only the apply
	// path renders it.
	h.taskVars["user"] = "testuser"
	evaluated, err = h.EvaluatePreLogic(in, template.Strict)
	require.NoError(t, err)
	assert.Equal(t, "/home/{{ user }}/.config", evaluated.SkipIfExists)
}

func TestPreLogicCondition(t *testing.T) {
	h := newBareHandle()
	h.taskVars["deploy"] = true

	evaluated, err := h.EvaluatePreLogic(&tasks.PreLogicInput{Condition: "{{ deploy }}"}, template.Strict)
	require.NoError(t, err)
	assert.True(t, evaluated.Condition)

	evaluated, err = h.EvaluatePreLogic(&tasks.PreLogicInput{Condition: "not deploy"}, template.Strict)
	require.NoError(t, err)
	assert.False(t, evaluated.Condition)
}

func TestPreLogicItems(t *testing.T) {
	h := newBareHandle()
	h.taskVars["files"] = []interface{}{"a", "b", "c"}

	evaluated, err := h.EvaluatePreLogic(&tasks.PreLogicInput{Items: "{{ files }}"}, template.Strict)
	require.NoError(t, err)
	assert.True(t, evaluated.HasItems)
	assert.Equal(t, []interface{}{"a", "b", "c"}, evaluated.Items)
}

func TestPreLogicNil(t *testing.T) {
	h := newBareHandle()

	evaluated, err := h.EvaluatePreLogic(nil, template.Strict)
	require.NoError(t, err)
	assert.True(t, evaluated.Condition)
	assert.False(t, evaluated.HasItems)
}

func TestPostLogic(t *testing.T) {
	h := newBareHandle()

	evaluated, err := h.EvaluatePostLogic(&tasks.PostLogicInput{
		Notify:       "reload",
		IgnoreErrors: "yes",
		Retry:        3,
		Delay:        2,
	}, template.Strict)
	require.NoError(t, err)
	assert.Equal(t, "reload", evaluated.Notify)
	assert.True(t, evaluated.IgnoreErrors)
	assert.Equal(t, 3, evaluated.Retry)
	assert.Equal(t, 2, evaluated.Delay)
}

func TestResponseConstructorsValidateRequestType(t *testing.T) {
	h := newBareHandle()
	query := tasks.NewQueryRequest()
	create := tasks.NewCreateRequest()

	assert.Equal(t, tasks.IsMatched, h.IsMatched(query).Status)
	assert.Equal(t, tasks.NeedsCreation, h.NeedsCreation(query).Status)
	assert.Equal(t, tasks.IsCreated, h.IsCreated(create, nil).Status)

	assert.Panics(t, func() { h.IsMatched(create) })
	assert.Panics(t, func() { h.IsCreated(query, nil) })
	assert.Panics(t, func() { h.NeedsRemoval(create) })
	assert.Panics(t, func() { h.IsExecuted(query) })
}

func TestIsModifiedEnforcesPlannedChanges(t *testing.T) {
	h := newBareHandle()
	modify := tasks.NewModifyRequest([]tasks.Field{tasks.Owner, tasks.Mode})

	response := h.IsModified(modify, []tasks.Field{tasks.Mode, tasks.Owner})
	assert.Equal(t, tasks.IsModified, response.Status)

	response = h.IsModified(modify, []tasks.Field{tasks.Mode})
	assert.Equal(t, tasks.Failed, response.Status)
}

func TestFailedResponse(t *testing.T) {
	h := newBareHandle()
	query := tasks.NewQueryRequest()

	response := h.Failed(query, "something broke")
	assert.True(t, response.IsFailed())
	assert.Equal(t, "something broke", response.Msg)
}

func TestAttributeDiff(t *testing.T) {
	stat := &StatInfo{Owner: "root", Group: "root", Mode: "644"}

	changes := AttributeDiff(stat, &tasks.FileAttributesEvaluated{
		Owner: "app", Group: "root", Mode: "0644",
	})
	assert.Equal(t, []tasks.Field{tasks.Owner}, changes)

	changes = AttributeDiff(stat, &tasks.FileAttributesEvaluated{Mode: "0755"})
	assert.Equal(t, []tasks.Field{tasks.Mode}, changes)

	assert.Nil(t, AttributeDiff(stat, nil))
}
