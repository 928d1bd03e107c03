package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drover-sh/drover/pkg/runstate"
)

func TestConsoleHandlerRendersResults(t *testing.T) {
	var buf bytes.Buffer
	handler := &ConsoleHandler{Writer: &buf}

	handler.OnEvent(runstate.Event{Type: runstate.EventPlayStart, Play: "deploy"})
	handler.OnEvent(runstate.Event{Type: runstate.EventTaskStart, Task: "ensure config"})
	handler.OnEvent(runstate.Event{
		Type: runstate.EventHostResult, Host: "web1",
		Status: "IsModified", Changes: []string{"Mode"},
	})

	out := buf.String()
	assert.Contains(t, out, "PLAY [deploy]")
	assert.Contains(t, out, "TASK [ensure config]")
	assert.Contains(t, out, "web1: IsModified (Mode)")
}

func TestConsoleHandlerShowsFailureMessage(t *testing.T) {
	var buf bytes.Buffer
	handler := &ConsoleHandler{Writer: &buf}

	handler.OnEvent(runstate.Event{
		Type: runstate.EventHostResult, Host: "web1",
		Status: "Failed", Msg: "boom",
	})

	assert.Contains(t, buf.String(), "boom")
}

func TestNullHandlerDiscards(t *testing.T) {
	NullHandler{}.OnEvent(runstate.Event{Type: runstate.EventHostResult})
}

func TestStreamServerBroadcastWithoutClients(t *testing.T) {
	server := NewStreamServer()
	server.OnEvent(runstate.Event{Type: runstate.EventHostResult})
	server.Close()
}
