package runstate

import "time"

// EventType labels a progress event.
type EventType string

const (
	EventPlaybookStart EventType = "playbook_start"
	EventPlayStart     EventType = "play_start"
	EventRoleStart     EventType = "role_start"
	EventTaskStart     EventType = "task_start"
	EventHostResult    EventType = "host_result"
	EventHandlerFlush  EventType = "handler_flush"
	EventPlayComplete  EventType = "play_complete"
	EventRunComplete   EventType = "run_complete"
)

// Event is one progress event emitted by the traversal through the
// visitor.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Playbook  string    `json:"playbook,omitempty"`
	Play      string    `json:"play,omitempty"`
	Role      string    `json:"role,omitempty"`
	Task      string    `json:"task,omitempty"`
	Host      string    `json:"host,omitempty"`
	Status    string    `json:"status,omitempty"`
	Msg       string    `json:"msg,omitempty"`
	Changes   []string  `json:"changes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OutputHandler is the pluggable sink for progress events.
type OutputHandler interface {
	OnEvent(event Event)
}

// Summary is the final accounting of one run.
type Summary struct {
	Plays   int
	Roles   int
	Tasks   int
	Changes int
	Failed  int
	Skipped int
}
