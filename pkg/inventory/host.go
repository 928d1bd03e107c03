package inventory

import (
	"sync"

	"github.com/drover-sh/drover/pkg/types"
)

// Host is a target in the inventory: an identity, a live fact map, and the
// accumulated state of the current run. Facts are mutated only by the task
// currently executing against the host; the lock exists for readers on
// other goroutines (delegation, reporting).
type Host struct {
	Name string

	mu     sync.RWMutex
	facts  map[string]interface{}
	vars   map[string]interface{}
	groups []string
	failed bool
}

// NewHost creates a host with empty facts.
func NewHost(name string) *Host {
	return &Host{
		Name:  name,
		facts: make(map[string]interface{}),
		vars:  make(map[string]interface{}),
	}
}

// SetFact stores one discovered or user-set fact.
func (h *Host) SetFact(key string, value interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.facts[key] = value
}

// SetFacts merges a fact map into the host.
func (h *Host) SetFacts(facts map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range facts {
		h.facts[k] = v
	}
}

// GetFact returns one fact.
func (h *Host) GetFact(key string) (interface{}, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	value, ok := h.facts[key]
	return value, ok
}

// Facts returns a copy of the host's fact map.
func (h *Host) Facts() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]interface{}, len(h.facts))
	for k, v := range h.facts {
		out[k] = v
	}
	return out
}

// SetVars merges inventory-level host variables.
func (h *Host) SetVars(vars map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range vars {
		h.vars[k] = v
	}
}

// Vars returns a copy of the host's inventory variables.
func (h *Host) Vars() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]interface{}, len(h.vars))
	for k, v := range h.vars {
		out[k] = v
	}
	return out
}

// AddGroup records group membership.
func (h *Host) AddGroup(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !types.StringSliceContains(h.groups, name) {
		h.groups = append(h.groups, name)
	}
}

// Groups returns the names of the groups the host belongs to.
func (h *Host) Groups() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.groups))
	copy(out, h.groups)
	return out
}

// MarkFailed transitions the host to the failed state. A failed host
// executes no further tasks in the run.
func (h *Host) MarkFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = true
}

// IsFailed reports whether the host has failed during this run.
func (h *Host) IsFailed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.failed
}
