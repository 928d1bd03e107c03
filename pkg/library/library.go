// Package library is the embedding API: a Config builder and a
// PlaybookRunner for driving the engine from another program without the
// CLI.
package library

import (
	"context"
	"os"
	"time"

	"github.com/drover-sh/drover/pkg/connection"
	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/output"
	"github.com/drover-sh/drover/pkg/playbook"
	"github.com/drover-sh/drover/pkg/runstate"
	"github.com/drover-sh/drover/pkg/types"
)

// ConnectionMode selects the transport family for a run.
type ConnectionMode int

const (
	ConnectionModeSSH ConnectionMode = iota
	ConnectionModeLocal
)

// Config describes one run. Build it fluently and hand it to a
// PlaybookRunner.
type Config struct {
	PlaybookPaths  []string
	InventoryPaths []string
	RolePaths      []string
	ModulePaths    []string

	LimitHosts  []string
	LimitGroups []string
	Tags        []string

	DefaultUser    string
	DefaultPort    int
	ThreadCount    int
	BatchSize      int
	CommandTimeout time.Duration

	ConnectionMode ConnectionMode
	CheckMode      bool
	Verbosity      int
}

// NewConfig creates a config with the defaults a bare CLI run would use.
func NewConfig() *Config {
	user := os.Getenv("USER")
	return &Config{
		DefaultUser:    user,
		DefaultPort:    22,
		ThreadCount:    1,
		CommandTimeout: 60 * time.Second,
	}
}

// Playbook appends a playbook path.
func (c *Config) Playbook(path string) *Config {
	c.PlaybookPaths = append(c.PlaybookPaths, path)
	return c
}

// Inventory appends an inventory path.
func (c *Config) Inventory(path string) *Config {
	c.InventoryPaths = append(c.InventoryPaths, path)
	return c
}

// Roles appends a role search path.
func (c *Config) Roles(path string) *Config {
	c.RolePaths = append(c.RolePaths, path)
	return c
}

// User sets the default remote user.
func (c *Config) User(user string) *Config {
	c.DefaultUser = user
	return c
}

// Port sets the default SSH port.
func (c *Config) Port(port int) *Config {
	c.DefaultPort = port
	return c
}

// Threads sets the worker pool size.
func (c *Config) Threads(n int) *Config {
	c.ThreadCount = n
	return c
}

// Local selects the local transport.
func (c *Config) Local() *Config {
	c.ConnectionMode = ConnectionModeLocal
	return c
}

// SSH selects the SSH transport.
func (c *Config) SSH() *Config {
	c.ConnectionMode = ConnectionModeSSH
	return c
}

// Check enables check mode.
func (c *Config) Check() *Config {
	c.CheckMode = true
	return c
}

// PlaybookRunner drives a configured run.
type PlaybookRunner struct {
	config  *Config
	handler runstate.OutputHandler
}

// NewRunner creates a runner for a config.
func NewRunner(config *Config) *PlaybookRunner {
	return &PlaybookRunner{
		config:  config,
		handler: output.NullHandler{},
	}
}

// WithOutputHandler installs a custom event sink.
func (r *PlaybookRunner) WithOutputHandler(handler runstate.OutputHandler) *PlaybookRunner {
	r.handler = handler
	return r
}

// Run loads the inventory, assembles the run state, and traverses every
// configured playbook. The returned summary is valid even when the run
// errs partway.
func (r *PlaybookRunner) Run(ctx context.Context) (*runstate.Summary, error) {
	run, err := r.BuildRunState()
	if err != nil {
		return nil, err
	}

	traversal := playbook.NewTraversal(run)
	runErr := traversal.Run(ctx)
	return run.Summary(), runErr
}

// BuildRunState assembles the shared run state from the config.
func (r *PlaybookRunner) BuildRunState() (*runstate.RunState, error) {
	inv := inventory.New()
	for _, path := range r.config.InventoryPaths {
		if err := inv.Load(path); err != nil {
			return nil, err
		}
	}
	if r.config.ConnectionMode == ConnectionModeLocal && inv.IsEmpty() {
		inv.CreateHost("localhost")
	}

	checkMode := runstate.No
	if r.config.CheckMode {
		checkMode = runstate.Yes
	}

	visitor := runstate.NewVisitor(checkMode)
	visitor.SetOutputHandler(r.handler)

	var factory connection.Factory
	switch r.config.ConnectionMode {
	case ConnectionModeLocal:
		factory = connection.NewLocalFactory(r.config.CommandTimeout)
	default:
		factory = connection.NewSSHFactory(r.config.DefaultUser, r.config.DefaultPort, r.config.CommandTimeout)
	}

	context := runstate.NewContext()
	context.Verbosity = r.config.Verbosity

	run := runstate.New(inv, context, visitor, factory)
	run.PlaybookPaths = r.config.PlaybookPaths
	run.RolePaths = r.config.RolePaths
	run.ModulePaths = r.config.ModulePaths
	run.LimitHosts = r.config.LimitHosts
	run.LimitGroups = r.config.LimitGroups
	run.Tags = r.config.Tags
	run.BatchSize = r.config.BatchSize
	run.Threads = r.config.ThreadCount

	if len(run.SelectHosts([]string{"all"})) == 0 {
		return nil, types.ErrEmptyInventory
	}

	return run, nil
}
