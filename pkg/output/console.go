// Package output provides the built-in output handlers: a console printer,
// a discard handler for embedding, and a websocket event broadcaster.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/drover-sh/drover/pkg/runstate"
)

// ConsoleHandler prints task progress as plain lines.
type ConsoleHandler struct {
	Writer  io.Writer
	Verbose bool
}

// NewConsoleHandler creates a console handler writing to stdout.
func NewConsoleHandler(verbose bool) *ConsoleHandler {
	return &ConsoleHandler{Writer: os.Stdout, Verbose: verbose}
}

// OnEvent renders one progress event.
func (c *ConsoleHandler) OnEvent(event runstate.Event) {
	switch event.Type {
	case runstate.EventPlaybookStart:
		fmt.Fprintf(c.Writer, "PLAYBOOK %s\n", event.Playbook)
	case runstate.EventPlayStart:
		fmt.Fprintf(c.Writer, "\nPLAY [%s]\n", event.Play)
	case runstate.EventRoleStart:
		fmt.Fprintf(c.Writer, "ROLE [%s]\n", event.Role)
	case runstate.EventTaskStart:
		fmt.Fprintf(c.Writer, "TASK [%s]\n", event.Task)
	case runstate.EventHandlerFlush:
		fmt.Fprintf(c.Writer, "HANDLER [%s]\n", event.Task)
	case runstate.EventHostResult:
		line := fmt.Sprintf("  %s: %s", event.Host, event.Status)
		if len(event.Changes) > 0 {
			line += " (" + strings.Join(event.Changes, ", ") + ")"
		}
		if event.Msg != "" && (c.Verbose || event.Status == "Failed") {
			line += " - " + event.Msg
		}
		fmt.Fprintln(c.Writer, line)
	case runstate.EventPlayComplete:
		if c.Verbose {
			fmt.Fprintf(c.Writer, "PLAY COMPLETE [%s]\n", event.Play)
		}
	}
}

// NullHandler discards all events; used by embedders that consume results
// programmatically.
type NullHandler struct{}

// OnEvent discards the event.
func (NullHandler) OnEvent(runstate.Event) {}
