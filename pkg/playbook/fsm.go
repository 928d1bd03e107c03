package playbook

import (
	"context"
	"fmt"
	"time"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/modules"
	"github.com/drover-sh/drover/pkg/runstate"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// runTaskOnHost drives the full Validate→Query→Apply sequence for one host.
// Module failures never unwind past this boundary; they become Failed
// responses that mark the host.
func (t *Traversal) runTaskOnHost(ctx context.Context, play *Play, task modules.Task, host *inventory.Host, isHandler bool) {
	if host.IsFailed() {
		t.report(play, task, host, &tasks.TaskResponse{Status: tasks.IsSkipped}, nil)
		return
	}

	if !t.tagsMatch(task) {
		t.report(play, task, host, &tasks.TaskResponse{Status: tasks.IsSkipped}, nil)
		return
	}

	conn, err := t.State.Factory.Connect(ctx, host)
	if err != nil {
		host.MarkFailed()
		t.report(play, task, host, &tasks.TaskResponse{
			Status: tasks.Failed, Msg: fmt.Sprintf("connection failed: %v", err),
		}, nil)
		return
	}

	h := handle.New(ctx, t.State, host, conn)

	with, err := h.EvaluatePreLogic(task.GetWith(), template.Strict)
	if err != nil {
		t.failHost(play, task, host, h, nil, err.Error())
		return
	}
	and, err := h.EvaluatePostLogic(task.GetAnd(), template.Strict)
	if err != nil {
		t.failHost(play, task, host, h, nil, err.Error())
		return
	}

	if !with.Condition {
		t.report(play, task, host, &tasks.TaskResponse{Status: tasks.IsSkipped, With: with, And: and}, and)
		return
	}

	// Delegation swaps the connection; the originating host's scope stays.
	if with.DelegateTo != "" {
		target, ok := t.State.Inventory.GetHost(with.DelegateTo)
		if !ok && (with.DelegateTo == "localhost" || with.DelegateTo == "127.0.0.1") {
			target = t.State.Inventory.CreateHost(with.DelegateTo)
			ok = true
		}
		if !ok {
			t.failHost(play, task, host, h, and, "delegate host not in inventory: "+with.DelegateTo)
			return
		}
		delegateConn, err := t.State.Factory.Connect(ctx, target)
		if err != nil {
			t.failHost(play, task, host, h, and, fmt.Sprintf("delegate connection failed: %v", err))
			return
		}
		h.Conn = delegateConn
	}

	h.SetSudo(t.effectiveSudo(play, with))

	items := []interface{}{nil}
	if with.HasItems {
		items = with.Items
	}

	for _, item := range items {
		if item != nil || with.HasItems {
			h.SetItem(item)
		}

		response := t.runItem(play, task, host, h, with, and)
		t.report(play, task, host, response, and)

		if response.Status.IsChange() && and.Notify != "" && !isHandler {
			t.State.Visitor.Notify(and.Notify, host)
		}

		if response.Status == tasks.Failed {
			if and.IgnoreErrors {
				continue
			}
			host.MarkFailed()
			return
		}
	}
}

// runItem executes the Query phase and, outside check mode, the matching
// apply phase for one (host, item) pair.
func (t *Traversal) runItem(play *Play, task modules.Task, host *inventory.Host, h *handle.TaskHandle, with *tasks.PreLogicEvaluated, and *tasks.PostLogicEvaluated) *tasks.TaskResponse {
	queryReq := tasks.NewQueryRequest()

	evaluated, err := task.Evaluate(h, queryReq, template.Strict)
	if err != nil {
		return &tasks.TaskResponse{Status: tasks.Failed, Msg: err.Error(), With: with, And: and}
	}

	query := evaluated.Action.Dispatch(h, queryReq)
	query.With, query.And = with, and

	if query.Status == tasks.IsMatched || query.Status == tasks.Failed {
		return query
	}
	if !query.Status.IsPlanned() {
		return &tasks.TaskResponse{
			Status: tasks.Failed, With: with, And: and,
			Msg: fmt.Sprintf("query returned illegal status %s", query.Status),
		}
	}

	// Check mode stops after Query and reports the plan as if it had
	// occurred; passive applies still run since they cannot mutate.
	if t.State.Visitor.CheckMode == runstate.Yes && query.Status != tasks.NeedsPassive {
		return query
	}

	// skip_if_exists renders after all other logic, immediately before
	// Apply, and never earlier.
	if with.SkipIfExists != "" {
		path, err := h.TemplatePath("skip_if_exists", with.SkipIfExists, template.Strict)
		if err != nil {
			return &tasks.TaskResponse{Status: tasks.Failed, Msg: err.Error(), With: with, And: and}
		}
		stat, err := h.RemoteStat(path)
		if err != nil {
			return &tasks.TaskResponse{
				Status: tasks.Failed, With: with, And: and,
				Msg: fmt.Sprintf("skip_if_exists stat failed: %v", err),
			}
		}
		if stat != nil {
			return &tasks.TaskResponse{Status: tasks.IsSkipped, With: with, And: and}
		}
	}

	var applyReq *tasks.Request
	switch query.Status {
	case tasks.NeedsCreation:
		applyReq = tasks.NewCreateRequest()
	case tasks.NeedsRemoval:
		applyReq = tasks.NewRemoveRequest()
	case tasks.NeedsModification:
		applyReq = tasks.NewModifyRequest(query.Changes)
	case tasks.NeedsExecution:
		applyReq = tasks.NewExecuteRequest()
	case tasks.NeedsPassive:
		applyReq = tasks.NewPassiveRequest()
	}

	// Retry wraps only genuine failures; ignore_errors is honored after
	// the retries are exhausted.
	response := evaluated.Action.Dispatch(h, applyReq)
	for attempt := 0; response.Status == tasks.Failed && attempt < and.Retry; attempt++ {
		if and.Delay > 0 {
			time.Sleep(time.Duration(and.Delay) * time.Second)
		}
		response = evaluated.Action.Dispatch(h, applyReq)
	}

	response.With, response.And = with, and
	return response
}

// report records one per-host response with the visitor and emits its
// event. ignore_errors converts a failure to passive for the counters and
// the barrier only; the message is still logged.
func (t *Traversal) report(play *Play, task modules.Task, host *inventory.Host, response *tasks.TaskResponse, and *tasks.PostLogicEvaluated) {
	recorded := response
	if response.Status == tasks.Failed && and != nil && and.IgnoreErrors {
		recorded = &tasks.TaskResponse{Status: tasks.IsPassive, Msg: response.Msg}
	}
	t.State.Visitor.RecordResponse(host, recorded)

	changes := make([]string, 0, len(response.Changes))
	for _, field := range response.Changes {
		changes = append(changes, field.String())
	}

	t.State.Visitor.Emit(runstate.Event{
		Type: runstate.EventHostResult, RunID: t.State.RunID,
		Play: play.Name, Role: t.State.Context.Role,
		Task: modules.DisplayName(task), Host: host.Name,
		Status: response.Status.String(), Msg: response.Msg,
		Changes: changes, Timestamp: time.Now(),
	})
}

func (t *Traversal) failHost(play *Play, task modules.Task, host *inventory.Host, h *handle.TaskHandle, and *tasks.PostLogicEvaluated, msg string) {
	response := &tasks.TaskResponse{Status: tasks.Failed, Msg: msg, And: and}
	if !(and != nil && and.IgnoreErrors) {
		host.MarkFailed()
	}
	t.report(play, task, host, response, and)
}

// tagsMatch applies the run's tag filter: the task runs when the filter is
// absent or intersects the task's tags.
func (t *Traversal) tagsMatch(task modules.Task) bool {
	if len(t.State.Tags) == 0 {
		return true
	}
	with := task.GetWith()
	if with == nil || len(with.Tags) == 0 {
		return false
	}
	for _, tag := range with.Tags {
		if types.StringSliceContains(t.State.Tags, tag) {
			return true
		}
	}
	return false
}

// effectiveSudo resolves the user to become: the task's own sudo, then the
// play's sudo_user, then root when the play sets sudo.
func (t *Traversal) effectiveSudo(play *Play, with *tasks.PreLogicEvaluated) string {
	if with.Sudo != "" {
		return with.Sudo
	}
	if play.SudoUser != "" {
		return play.SudoUser
	}
	if types.ConvertToBool(play.Sudo) {
		return "root"
	}
	return ""
}

// flushHandlers runs the notified handlers at play end in declaration
// order, each against exactly the hosts that notified it.
func (t *Traversal) flushHandlers(ctx context.Context, play *Play, handlers []handlerEntry, batch []*inventory.Host) error {
	inBatch := make(map[string]bool, len(batch))
	for _, host := range batch {
		inBatch[host.Name] = true
	}

	for _, entry := range handlers {
		notified := t.State.Visitor.NotifiedHostsFor(entry.key)
		if len(notified) == 0 {
			continue
		}

		targets := notified[:0:0]
		for _, host := range notified {
			if inBatch[host.Name] {
				targets = append(targets, host)
			}
		}
		if len(targets) == 0 {
			continue
		}

		t.State.Visitor.Emit(runstate.Event{
			Type: runstate.EventHandlerFlush, RunID: t.State.RunID,
			Play: play.Name, Task: entry.key, Timestamp: time.Now(),
		})

		if entry.role != nil {
			t.State.Context.PushRoleScope(entry.role.Name, entry.rolePath, entry.role.Defaults)
		}
		err := t.runTaskOver(ctx, play, entry.task, targets, true)
		if entry.role != nil {
			t.State.Context.PopScope()
		}
		if err != nil {
			return err
		}
	}
	return nil
}
