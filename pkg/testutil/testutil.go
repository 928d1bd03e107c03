// Package testutil provides the fake connection and run-state builders the
// package tests share.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/drover-sh/drover/pkg/connection"
	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/runstate"
	"github.com/drover-sh/drover/pkg/tasks"
)

// FakeConnection is a scripted Connection for module tests. Responses are
// matched by command prefix; unmatched commands succeed with empty output.
type FakeConnection struct {
	mu        sync.Mutex
	connected bool
	responses map[string]*tasks.CommandResult
	Commands  [][]string
	Uploads   map[string][]byte
}

// NewFakeConnection creates a connected fake.
func NewFakeConnection() *FakeConnection {
	return &FakeConnection{
		connected: true,
		responses: make(map[string]*tasks.CommandResult),
		Uploads:   make(map[string][]byte),
	}
}

// Script registers a canned result for commands starting with the given
// prefix (joined argv).
func (c *FakeConnection) Script(prefix string, rc int, out string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[prefix] = &tasks.CommandResult{Cmd: prefix, Out: out, RC: rc}
}

// Connect marks the fake connected.
func (c *FakeConnection) Connect(ctx context.Context) error {
	c.connected = true
	return nil
}

// Run records the argv and returns the scripted result.
func (c *FakeConnection) Run(ctx context.Context, argv []string, sudo string) (*tasks.CommandResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Commands = append(c.Commands, argv)
	joined := strings.Join(argv, " ")
	for prefix, result := range c.responses {
		if strings.HasPrefix(joined, prefix) {
			out := *result
			out.Cmd = joined
			return &out, nil
		}
	}
	return &tasks.CommandResult{Cmd: joined, RC: 0}, nil
}

// Put records the upload.
func (c *FakeConnection) Put(ctx context.Context, data []byte, remotePath string, mode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Uploads[remotePath] = data
	return nil
}

// Close marks the fake disconnected.
func (c *FakeConnection) Close() error {
	c.connected = false
	return nil
}

// IsConnected reports the fake's state.
func (c *FakeConnection) IsConnected() bool {
	return c.connected
}

// Kind returns "fake".
func (c *FakeConnection) Kind() string {
	return "fake"
}

// FakeFactory hands out one shared fake connection for every host.
type FakeFactory struct {
	Conn  *FakeConnection
	cache *connection.Cache
}

// NewFakeFactory creates a factory around a fake connection.
func NewFakeFactory(conn *FakeConnection) *FakeFactory {
	return &FakeFactory{Conn: conn, cache: connection.NewCache()}
}

// Connect returns the shared fake.
func (f *FakeFactory) Connect(ctx context.Context, host *inventory.Host) (connection.Connection, error) {
	return f.Conn, nil
}

// Cache returns the factory's cache.
func (f *FakeFactory) Cache() *connection.Cache {
	return f.cache
}

// NewTestRunState builds a run state over a one-host localhost inventory
// and a fake connection, the shape most engine tests need.
func NewTestRunState(conn *FakeConnection) *runstate.RunState {
	inv := inventory.New()
	inv.CreateHost("localhost")

	context := runstate.NewContext()
	visitor := runstate.NewVisitor(runstate.No)

	return runstate.New(inv, context, visitor, NewFakeFactory(conn))
}
