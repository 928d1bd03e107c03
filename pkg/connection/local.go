package connection

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/types"
)

// LocalConnection runs commands directly on the controller. It accepts only
// localhost by design; the factory enforces that.
type LocalConnection struct {
	connected bool
	timeout   time.Duration
}

// NewLocalConnection creates a local connection.
func NewLocalConnection(timeout time.Duration) *LocalConnection {
	return &LocalConnection{timeout: timeout}
}

// Connect establishes the local session (always succeeds).
func (c *LocalConnection) Connect(ctx context.Context) error {
	c.connected = true
	return nil
}

// Run spawns the argv as a direct child process.
func (c *LocalConnection) Run(ctx context.Context, argv []string, sudo string) (*tasks.CommandResult, error) {
	if !c.connected {
		return nil, types.NewConnectionError("localhost", "not connected", nil)
	}
	if len(argv) == 0 {
		return nil, types.NewConnectionError("localhost", "empty command", nil)
	}

	argv = sudoWrap(argv, sudo)

	cmdCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &tasks.CommandResult{
		Cmd: strings.Join(argv, " "),
		Out: strings.TrimRight(stdout.String()+stderr.String(), "\n"),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.RC = exitErr.ExitCode()
			return result, nil
		}
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, types.NewConnectionError("localhost", "command timed out", types.ErrTimeout)
		}
		return nil, types.NewConnectionError("localhost", "failed to spawn command", err)
	}

	log.Debug().Str("cmd", result.Cmd).Int("rc", result.RC).Msg("local command")
	return result, nil
}

// Put writes bytes to a local path with the given octal mode.
func (c *LocalConnection) Put(ctx context.Context, data []byte, remotePath string, mode string) error {
	if !c.connected {
		return types.NewConnectionError("localhost", "not connected", nil)
	}

	perm := os.FileMode(0o644)
	if mode != "" {
		normalized, err := tasks.NormalizeMode(mode)
		if err != nil {
			return err
		}
		parsed, err := strconv.ParseUint(normalized, 8, 32)
		if err != nil {
			return types.NewConnectionError("localhost", "invalid mode", err)
		}
		perm = os.FileMode(parsed)
	}

	if err := os.MkdirAll(filepath.Dir(remotePath), 0o755); err != nil {
		return types.NewConnectionError("localhost", "failed to create parent directory", err)
	}
	if err := os.WriteFile(remotePath, data, perm); err != nil {
		return types.NewConnectionError("localhost", "failed to write file", err)
	}
	// WriteFile only applies the mode on creation.
	if err := os.Chmod(remotePath, perm); err != nil {
		return types.NewConnectionError("localhost", "failed to chmod file", err)
	}
	return nil
}

// Close terminates the local session.
func (c *LocalConnection) Close() error {
	c.connected = false
	return nil
}

// IsConnected reports whether the session is live.
func (c *LocalConnection) IsConnected() bool {
	return c.connected
}

// Kind returns "local".
func (c *LocalConnection) Kind() string {
	return "local"
}
