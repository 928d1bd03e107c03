package connection

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/types"
)

// SSHOptions configures an SSH connection to one host.
type SSHOptions struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Timeout    time.Duration
}

// SSHConnection is a persistent SSH session against one host. The client is
// opened once and reused; each command multiplexes a session over it.
type SSHConnection struct {
	client    *ssh.Client
	connected bool
	opts      SSHOptions
}

// NewSSHConnection creates an SSH connection for the given options.
func NewSSHConnection(opts SSHOptions) *SSHConnection {
	return &SSHConnection{opts: opts}
}

// Connect dials the host and verifies the session with a no-op command.
func (c *SSHConnection) Connect(ctx context.Context) error {
	timeout := c.opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	port := c.opts.Port
	if port == 0 {
		port = 22
	}

	user := c.opts.User
	if user == "" {
		user = os.Getenv("USER")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Timeout:         timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	if c.opts.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(c.opts.Password))
	}

	if c.opts.PrivateKey != "" {
		signer, err := parsePrivateKey(c.opts.PrivateKey)
		if err != nil {
			return types.NewConnectionError(c.opts.Host, "failed to parse private key", err)
		}
		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	if len(config.Auth) == 0 {
		if signers := loadDefaultKeys(); len(signers) > 0 {
			config.Auth = append(config.Auth, ssh.PublicKeys(signers...))
		}
	}

	if len(config.Auth) == 0 {
		return types.NewConnectionError(c.opts.Host, "no authentication method available", nil)
	}

	address := net.JoinHostPort(c.opts.Host, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		return types.NewConnectionError(c.opts.Host, fmt.Sprintf("failed to connect to %s", address), err)
	}

	c.client = client
	c.connected = true

	if _, err := c.Run(ctx, []string{"true"}, ""); err != nil {
		c.Close()
		return types.NewConnectionError(c.opts.Host, "connection test failed", err)
	}

	log.Debug().Str("host", c.opts.Host).Int("port", port).Msg("ssh session established")
	return nil
}

// Run executes the argv on the remote host over a multiplexed session.
func (c *SSHConnection) Run(ctx context.Context, argv []string, sudo string) (*tasks.CommandResult, error) {
	if !c.connected {
		return nil, types.NewConnectionError(c.opts.Host, "not connected", nil)
	}
	if len(argv) == 0 {
		return nil, types.NewConnectionError(c.opts.Host, "empty command", nil)
	}

	argv = sudoWrap(argv, sudo)
	commandLine := shellJoin(argv)

	session, err := c.client.NewSession()
	if err != nil {
		c.connected = false
		return nil, types.NewConnectionError(c.opts.Host, "failed to create session", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(commandLine)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return nil, types.NewConnectionError(c.opts.Host, "command aborted", ctx.Err())
	}

	result := &tasks.CommandResult{
		Cmd: commandLine,
		Out: strings.TrimRight(stdout.String()+stderr.String(), "\n"),
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			result.RC = exitErr.ExitStatus()
			return result, nil
		}
		c.connected = false
		return nil, types.NewConnectionError(c.opts.Host, "session failed", runErr)
	}

	return result, nil
}

// Put streams bytes to a remote path through a shell session, then applies
// the mode.
func (c *SSHConnection) Put(ctx context.Context, data []byte, remotePath string, mode string) error {
	if !c.connected {
		return types.NewConnectionError(c.opts.Host, "not connected", nil)
	}

	session, err := c.client.NewSession()
	if err != nil {
		c.connected = false
		return types.NewConnectionError(c.opts.Host, "failed to create session", err)
	}
	defer session.Close()

	session.Stdin = bytes.NewReader(data)
	command := fmt.Sprintf("mkdir -p %s && cat > %s",
		shellQuote(filepath.Dir(remotePath)), shellQuote(remotePath))
	if err := session.Run(command); err != nil {
		return types.NewConnectionError(c.opts.Host, "failed to upload file", err)
	}

	if mode != "" {
		normalized, err := tasks.NormalizeMode(mode)
		if err != nil {
			return err
		}
		result, err := c.Run(ctx, []string{"chmod", normalized, remotePath}, "")
		if err != nil {
			return err
		}
		if result.RC != 0 {
			return types.NewConnectionError(c.opts.Host, fmt.Sprintf("chmod failed: %s", result.Out), nil)
		}
	}

	return nil
}

// Close terminates the SSH client.
func (c *SSHConnection) Close() error {
	c.connected = false
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsConnected reports whether the session is live.
func (c *SSHConnection) IsConnected() bool {
	return c.connected
}

// Kind returns "ssh".
func (c *SSHConnection) Kind() string {
	return "ssh"
}

func parsePrivateKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(data)
}

// loadDefaultKeys collects signers from the user's standard key files.
func loadDefaultKeys() []ssh.Signer {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	return signers
}
