package connection

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/masterzen/winrm"

	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/types"
)

// WinRMOptions configures a WinRM connection to one Windows host.
type WinRMOptions struct {
	Host       string
	Port       int
	User       string
	Password   string
	UseSSL     bool
	SkipVerify bool
	Timeout    time.Duration
}

// WinRMConnection is the Windows transport variant. Hosts opt in through
// the `connection: winrm` inventory variable, which the SSH factory
// honours; the local factory never creates one.
type WinRMConnection struct {
	client    *winrm.Client
	connected bool
	opts      WinRMOptions
}

// NewWinRMConnection creates a WinRM connection for the given options.
func NewWinRMConnection(opts WinRMOptions) *WinRMConnection {
	return &WinRMConnection{opts: opts}
}

// Connect establishes the WinRM client.
func (c *WinRMConnection) Connect(ctx context.Context) error {
	port := c.opts.Port
	if port == 0 {
		port = 5985
		if c.opts.UseSSL {
			port = 5986
		}
	}

	endpoint := winrm.NewEndpoint(c.opts.Host, port, c.opts.UseSSL, c.opts.SkipVerify, nil, nil, nil, c.opts.Timeout)
	client, err := winrm.NewClient(endpoint, c.opts.User, c.opts.Password)
	if err != nil {
		return types.NewConnectionError(c.opts.Host, "failed to create winrm client", err)
	}

	c.client = client
	c.connected = true
	return nil
}

// Run executes the argv through a cmd.exe shell. Sudo has no meaning on
// Windows and is ignored.
func (c *WinRMConnection) Run(ctx context.Context, argv []string, sudo string) (*tasks.CommandResult, error) {
	if !c.connected {
		return nil, types.NewConnectionError(c.opts.Host, "not connected", nil)
	}
	if len(argv) == 0 {
		return nil, types.NewConnectionError(c.opts.Host, "empty command", nil)
	}

	commandLine := strings.Join(argv, " ")

	shell, err := c.client.CreateShell()
	if err != nil {
		c.connected = false
		return nil, types.NewConnectionError(c.opts.Host, "failed to create winrm shell", err)
	}
	defer shell.Close()

	cmd, err := shell.ExecuteWithContext(ctx, commandLine)
	if err != nil {
		c.connected = false
		return nil, types.NewConnectionError(c.opts.Host, "failed to execute command", err)
	}

	var stdout, stderr bytes.Buffer
	io.Copy(&stdout, cmd.Stdout)
	io.Copy(&stderr, cmd.Stderr)
	cmd.Wait()

	return &tasks.CommandResult{
		Cmd: commandLine,
		Out: strings.TrimRight(stdout.String()+stderr.String(), "\n"),
		RC:  cmd.ExitCode(),
	}, nil
}

// Put transfers bytes to the remote host through a base64 powershell
// round-trip. Modes have no meaning on Windows and are ignored.
func (c *WinRMConnection) Put(ctx context.Context, data []byte, remotePath string, mode string) error {
	if !c.connected {
		return types.NewConnectionError(c.opts.Host, "not connected", nil)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	script := fmt.Sprintf(
		`powershell -Command "[System.IO.File]::WriteAllBytes('%s', [System.Convert]::FromBase64String('%s'))"`,
		remotePath, encoded)

	result, err := c.Run(ctx, []string{script}, "")
	if err != nil {
		return err
	}
	if result.RC != 0 {
		return types.NewConnectionError(c.opts.Host, fmt.Sprintf("file upload failed: %s", result.Out), nil)
	}
	return nil
}

// Close terminates the WinRM client.
func (c *WinRMConnection) Close() error {
	c.connected = false
	return nil
}

// IsConnected reports whether the session is live.
func (c *WinRMConnection) IsConnected() bool {
	return c.connected
}

// Kind returns "winrm".
func (c *WinRMConnection) Kind() string {
	return "winrm"
}

func winrmOptionsFromVars(hostname, defaultUser string, vars map[string]interface{}) WinRMOptions {
	opts := WinRMOptions{
		Host: hostname,
		User: defaultUser,
	}
	if v, ok := vars["winrm_user"]; ok {
		opts.User = types.ConvertToString(v)
	}
	if v, ok := vars["winrm_password"]; ok {
		opts.Password = types.ConvertToString(v)
	}
	if v, ok := vars["winrm_port"]; ok {
		if port, err := types.ConvertToInt(v); err == nil {
			opts.Port = port
		}
	}
	if v, ok := vars["winrm_use_ssl"]; ok {
		opts.UseSSL = types.ConvertToBool(v)
	}
	if v, ok := vars["winrm_skip_verify"]; ok {
		opts.SkipVerify = types.ConvertToBool(v)
	}
	return opts
}
