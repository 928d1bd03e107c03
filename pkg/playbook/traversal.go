package playbook

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/drover-sh/drover/pkg/handle"
	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/modules"
	"github.com/drover-sh/drover/pkg/runstate"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/template"
	"github.com/drover-sh/drover/pkg/types"
)

// ErrAllHostsFailed aborts a play when every host in the batch has failed.
var ErrAllHostsFailed = errors.New("every host in the batch has failed")

// segment is one contiguous run of tasks in a play's task stream, with the
// role that contributed it (nil for the play's own tasks).
type segment struct {
	role     *Role
	rolePath string
	roleVars map[string]interface{}
	tasks    []modules.Task
}

// handlerEntry is one registered handler in declaration order. The key is
// what notify references: the subscribe event when given, the task name
// otherwise.
type handlerEntry struct {
	key      string
	task     modules.Task
	role     *Role
	rolePath string
}

// Traversal is the top-level orchestrator of one run.
type Traversal struct {
	State *runstate.RunState
}

// NewTraversal creates a traversal over a run state.
func NewTraversal(run *runstate.RunState) *Traversal {
	return &Traversal{State: run}
}

// Run walks every playbook: plays, roles, task batches, and handler flush.
// The connection cache is drained on the way out.
func (t *Traversal) Run(ctx context.Context) error {
	defer t.State.Factory.Cache().Drain()

	for _, path := range t.State.PlaybookPaths {
		plays, err := Load(path)
		if err != nil {
			return err
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		t.State.Context.SetPlaybook(abs, filepath.Dir(abs))
		t.State.Visitor.Emit(runstate.Event{
			Type: runstate.EventPlaybookStart, RunID: t.State.RunID,
			Playbook: abs, Timestamp: time.Now(),
		})

		t.State.Context.PushPlaybookScope(nil)
		for i := range plays {
			if err := t.runPlay(ctx, &plays[i]); err != nil {
				t.State.Context.PopScope()
				return err
			}
		}
		t.State.Context.PopScope()
	}

	t.State.Visitor.Emit(runstate.Event{
		Type: runstate.EventRunComplete, RunID: t.State.RunID, Timestamp: time.Now(),
	})
	return nil
}

func (t *Traversal) runPlay(ctx context.Context, play *Play) error {
	t.State.ResetRoleProcessing()
	t.State.Context.PushPlayScope(play.Name, play.Vars)
	defer t.State.Context.PopScope()

	t.State.Visitor.IncPlay()
	t.State.Visitor.Emit(runstate.Event{
		Type: runstate.EventPlayStart, RunID: t.State.RunID,
		Play: play.Name, Timestamp: time.Now(),
	})

	stream, handlers, err := t.buildStream(play)
	if err != nil {
		return err
	}

	if err := t.prescan(ctx, play, stream, handlers); err != nil {
		return err
	}

	hosts := t.State.SelectHosts(play.TargetGroups())
	if len(hosts) == 0 {
		log.Debug().Str("play", play.Name).Msg("no hosts selected, skipping play")
		t.emitPlayComplete(play)
		return nil
	}

	batchSize := play.BatchSize
	if batchSize <= 0 {
		batchSize = t.State.BatchSize
	}
	if batchSize <= 0 {
		batchSize = len(hosts)
	}

	for start := 0; start < len(hosts); start += batchSize {
		end := start + batchSize
		if end > len(hosts) {
			end = len(hosts)
		}
		batch := hosts[start:end]

		if err := t.runBatch(ctx, play, stream, handlers, batch); err != nil {
			return err
		}
	}

	t.emitPlayComplete(play)
	return nil
}

func (t *Traversal) emitPlayComplete(play *Play) {
	t.State.Visitor.Emit(runstate.Event{
		Type: runstate.EventPlayComplete, RunID: t.State.RunID,
		Play: play.Name, Timestamp: time.Now(),
	})
}

func (t *Traversal) runBatch(ctx context.Context, play *Play, stream []segment, handlers []handlerEntry, batch []*inventory.Host) error {
	for i := range stream {
		seg := &stream[i]

		if seg.role != nil {
			t.State.Visitor.IncRole()
			t.State.Context.PushRoleScope(seg.role.Name, seg.rolePath,
				types.MergeVars(seg.role.Defaults, seg.roleVars))
			t.State.Visitor.Emit(runstate.Event{
				Type: runstate.EventRoleStart, RunID: t.State.RunID,
				Play: play.Name, Role: seg.role.Name, Timestamp: time.Now(),
			})
		}

		for _, task := range seg.tasks {
			if err := t.checkInterrupt(ctx, batch); err != nil {
				if seg.role != nil {
					t.State.Context.PopScope()
				}
				return err
			}
			if err := t.runTaskOver(ctx, play, task, batch, false); err != nil {
				if seg.role != nil {
					t.State.Context.PopScope()
				}
				return err
			}
		}

		if seg.role != nil {
			t.State.Context.PopScope()
		}
	}

	if err := t.flushHandlers(ctx, play, handlers, batch); err != nil {
		return err
	}

	// Failed hosts still traverse the remaining tasks as skips; the play
	// aborts only here, once every host in the batch has failed.
	allFailed := true
	for _, host := range batch {
		if !host.IsFailed() {
			allFailed = false
			break
		}
	}
	if allFailed {
		return fmt.Errorf("%w: play %q", ErrAllHostsFailed, play.Name)
	}
	return nil
}

// checkInterrupt honors a controller signal at the barrier: all hosts are
// marked failed and the run unwinds for drain.
func (t *Traversal) checkInterrupt(ctx context.Context, batch []*inventory.Host) error {
	if ctx.Err() == nil {
		return nil
	}
	for _, host := range batch {
		host.MarkFailed()
	}
	return types.ErrInterrupted
}

// buildStream assembles the play's ordered task stream (pre_tasks, role
// tasks, tasks, post_tasks) and the handler table in declaration order.
// Each role contributes at most once; re-entry of a role already being
// processed is a cycle and rejected.
func (t *Traversal) buildStream(play *Play) ([]segment, []handlerEntry, error) {
	var stream []segment
	var handlers []handlerEntry

	if len(play.PreTasks) > 0 {
		stream = append(stream, segment{tasks: play.PreTasks})
	}

	for _, ref := range play.Roles {
		if !t.State.MarkRoleTasksProcessed(ref.Role) {
			continue
		}
		if err := t.State.EnterRole(ref.Role); err != nil {
			return nil, nil, err
		}

		dir, err := FindRole(ref.Role, t.State.RolePaths, t.State.Context.PlaybookDirectory)
		if err != nil {
			t.State.ExitRole()
			return nil, nil, err
		}
		role, err := LoadRole(dir)
		if err != nil {
			t.State.ExitRole()
			return nil, nil, err
		}

		stream = append(stream, segment{
			role:     role,
			rolePath: dir,
			roleVars: ref.Vars,
			tasks:    role.Tasks,
		})

		if t.State.MarkRoleHandlersProcessed(ref.Role) {
			for _, task := range role.Handlers {
				handlers = append(handlers, handlerEntry{
					key: handlerKey(task), task: task, role: role, rolePath: dir,
				})
			}
		}
		t.State.ExitRole()
	}

	if len(play.Tasks) > 0 {
		stream = append(stream, segment{tasks: play.Tasks})
	}
	if len(play.PostTasks) > 0 {
		stream = append(stream, segment{tasks: play.PostTasks})
	}

	for _, task := range play.Handlers {
		handlers = append(handlers, handlerEntry{key: handlerKey(task), task: task})
	}

	return stream, handlers, nil
}

// handlerKey is what notify strings reference: the subscribe event when
// one is declared, the handler's name otherwise.
func handlerKey(task modules.Task) string {
	if with := task.GetWith(); with != nil && with.Subscribe != "" {
		return with.Subscribe
	}
	return task.TaskName()
}

// prescan walks every task with template mode Off before any host runs:
// parameters parse, structure validates, and nothing is rendered.
func (t *Traversal) prescan(ctx context.Context, play *Play, stream []segment, handlers []handlerEntry) error {
	bare := handle.New(ctx, t.State, nil, nil)
	validate := tasks.NewValidateRequest()

	check := func(task modules.Task) error {
		if _, err := task.Evaluate(bare, validate, template.Off); err != nil {
			return types.NewPlaybookError(t.State.Context.PlaybookPath, play.Name,
				modules.DisplayName(task), "task validation failed", err)
		}
		return nil
	}

	for _, seg := range stream {
		for _, task := range seg.tasks {
			if err := check(task); err != nil {
				return err
			}
		}
	}
	for _, entry := range handlers {
		if err := check(entry.task); err != nil {
			return err
		}
	}
	return nil
}

// runTaskOver dispatches one task to every host in the batch concurrently,
// bounded by the configured thread count, and joins at the barrier before
// the next task. A failure on one host never aborts other hosts' current
// task; the play aborts only when every host in the batch has failed.
func (t *Traversal) runTaskOver(ctx context.Context, play *Play, task modules.Task, batch []*inventory.Host, isHandler bool) error {
	t.State.Visitor.IncTask()
	t.State.Context.IncTask()
	t.State.Visitor.Emit(runstate.Event{
		Type: runstate.EventTaskStart, RunID: t.State.RunID,
		Play: play.Name, Role: t.State.Context.Role,
		Task: modules.DisplayName(task), Timestamp: time.Now(),
	})

	threads := t.State.Threads
	if threads <= 0 {
		threads = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(threads)

	for _, host := range batch {
		host := host
		g.Go(func() error {
			t.runTaskOnHost(ctx, play, task, host, isHandler)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return nil
}
