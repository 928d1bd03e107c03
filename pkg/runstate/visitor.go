// Package runstate holds the shared state of one engine run: the immutable
// RunState root, the scoped PlaybookContext, and the PlaybookVisitor that
// accumulates per-run counters and handler notifications.
package runstate

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/tasks"
)

// CheckMode selects whether modules stop after Query (no mutation).
type CheckMode int

const (
	No CheckMode = iota
	Yes
)

func (m CheckMode) String() string {
	if m == Yes {
		return "Yes"
	}
	return "No"
}

// PlaybookVisitor accumulates per-run counters, the hosts-to-notify table,
// and renders progress events through the output handler. Counters use
// atomic increments; the notification table has its own lock.
type PlaybookVisitor struct {
	CheckMode CheckMode

	playCount    int64
	roleCount    int64
	taskCount    int64
	changeCount  int64
	failedCount  int64
	skippedCount int64

	mu            sync.Mutex
	notifiedHosts map[string]map[string]*inventory.Host

	output OutputHandler
}

// NewVisitor creates a visitor for the given check mode.
func NewVisitor(checkMode CheckMode) *PlaybookVisitor {
	return &PlaybookVisitor{
		CheckMode:     checkMode,
		notifiedHosts: make(map[string]map[string]*inventory.Host),
	}
}

// SetOutputHandler installs the pluggable event sink.
func (v *PlaybookVisitor) SetOutputHandler(handler OutputHandler) {
	v.output = handler
}

// Emit forwards one progress event to the output handler, if any.
func (v *PlaybookVisitor) Emit(event Event) {
	if v.output != nil {
		v.output.OnEvent(event)
	}
}

// IncPlay counts one play entered.
func (v *PlaybookVisitor) IncPlay() { atomic.AddInt64(&v.playCount, 1) }

// IncRole counts one role entered.
func (v *PlaybookVisitor) IncRole() { atomic.AddInt64(&v.roleCount, 1) }

// IncTask counts one task traversed.
func (v *PlaybookVisitor) IncTask() { atomic.AddInt64(&v.taskCount, 1) }

// PlayCount returns the number of plays entered.
func (v *PlaybookVisitor) PlayCount() int { return int(atomic.LoadInt64(&v.playCount)) }

// RoleCount returns the number of roles entered.
func (v *PlaybookVisitor) RoleCount() int { return int(atomic.LoadInt64(&v.roleCount)) }

// TaskCount returns the number of tasks traversed.
func (v *PlaybookVisitor) TaskCount() int { return int(atomic.LoadInt64(&v.taskCount)) }

// ChangeCount returns the number of host changes recorded.
func (v *PlaybookVisitor) ChangeCount() int { return int(atomic.LoadInt64(&v.changeCount)) }

// FailedCount returns the number of host failures recorded.
func (v *PlaybookVisitor) FailedCount() int { return int(atomic.LoadInt64(&v.failedCount)) }

// SkippedCount returns the number of skips recorded.
func (v *PlaybookVisitor) SkippedCount() int { return int(atomic.LoadInt64(&v.skippedCount)) }

// RecordResponse updates the counters from one per-host task response. The
// changed-field list in the response is the authoritative diff; Needs*
// statuses count as changes so check mode reports what would occur.
func (v *PlaybookVisitor) RecordResponse(host *inventory.Host, response *tasks.TaskResponse) {
	switch {
	case response.Status == tasks.Failed:
		atomic.AddInt64(&v.failedCount, 1)
	case response.Status == tasks.IsSkipped:
		atomic.AddInt64(&v.skippedCount, 1)
	case response.Status.IsChange():
		atomic.AddInt64(&v.changeCount, 1)
	}
}

// Notify records that a host notified a handler.
func (v *PlaybookVisitor) Notify(handler string, host *inventory.Host) {
	v.mu.Lock()
	defer v.mu.Unlock()

	set, ok := v.notifiedHosts[handler]
	if !ok {
		set = make(map[string]*inventory.Host)
		v.notifiedHosts[handler] = set
	}
	set[host.Name] = host
}

// NotifiedHostsFor returns the hosts that notified a handler, in sorted
// host-name order, and clears the handler's entry.
func (v *PlaybookVisitor) NotifiedHostsFor(handler string) []*inventory.Host {
	v.mu.Lock()
	defer v.mu.Unlock()

	set, ok := v.notifiedHosts[handler]
	if !ok {
		return nil
	}
	delete(v.notifiedHosts, handler)

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	hosts := make([]*inventory.Host, 0, len(names))
	for _, name := range names {
		hosts = append(hosts, set[name])
	}
	return hosts
}

// NotifiedCount returns the number of handlers with pending notifications.
func (v *PlaybookVisitor) NotifiedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.notifiedHosts)
}
