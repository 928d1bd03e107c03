package connection

import (
	"context"
	"time"

	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/types"
)

// Factory creates or reuses a session for a host. Implementations consult
// the shared Cache so each host holds at most one live session per run.
type Factory interface {
	Connect(ctx context.Context, host *inventory.Host) (Connection, error)
	Cache() *Cache
}

// LocalFactory serves only localhost, by design. Asking it for any other
// host is an error, not a fallback.
type LocalFactory struct {
	cache   *Cache
	timeout time.Duration
}

// NewLocalFactory creates a local factory.
func NewLocalFactory(timeout time.Duration) *LocalFactory {
	return &LocalFactory{
		cache:   NewCache(),
		timeout: timeout,
	}
}

// Connect returns the cached local session for localhost.
func (f *LocalFactory) Connect(ctx context.Context, host *inventory.Host) (Connection, error) {
	if host.Name != "localhost" && host.Name != "127.0.0.1" {
		return nil, types.NewConnectionError(host.Name, "local factory only serves localhost", nil)
	}

	return f.cache.GetOrConnect(ctx, host.Name, func(ctx context.Context) (Connection, error) {
		conn := NewLocalConnection(f.timeout)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Cache returns the factory's connection cache.
func (f *LocalFactory) Cache() *Cache {
	return f.cache
}

// SSHFactory opens persistent SSH sessions. Host variables can override the
// default user and port (ssh_user, ssh_port) and select a WinRM transport
// (connection: winrm).
type SSHFactory struct {
	cache       *Cache
	defaultUser string
	defaultPort int
	timeout     time.Duration
}

// NewSSHFactory creates an SSH factory with run-level defaults.
func NewSSHFactory(user string, port int, timeout time.Duration) *SSHFactory {
	return &SSHFactory{
		cache:       NewCache(),
		defaultUser: user,
		defaultPort: port,
		timeout:     timeout,
	}
}

// Connect returns the cached session for the host, dialing on first use.
func (f *SSHFactory) Connect(ctx context.Context, host *inventory.Host) (Connection, error) {
	// localhost inside an SSH run still uses the local transport; this is
	// what makes delegation to the controller work.
	if host.Name == "localhost" || host.Name == "127.0.0.1" {
		return f.cache.GetOrConnect(ctx, host.Name, func(ctx context.Context) (Connection, error) {
			conn := NewLocalConnection(f.timeout)
			if err := conn.Connect(ctx); err != nil {
				return nil, err
			}
			return conn, nil
		})
	}

	vars := host.Vars()

	return f.cache.GetOrConnect(ctx, host.Name, func(ctx context.Context) (Connection, error) {
		if kind, ok := vars["connection"]; ok && types.ConvertToString(kind) == "winrm" {
			conn := NewWinRMConnection(winrmOptionsFromVars(host.Name, f.defaultUser, vars))
			if err := conn.Connect(ctx); err != nil {
				return nil, err
			}
			return conn, nil
		}

		opts := SSHOptions{
			Host:    host.Name,
			Port:    f.defaultPort,
			User:    f.defaultUser,
			Timeout: f.timeout,
		}
		if v, ok := vars["ssh_host"]; ok {
			opts.Host = types.ConvertToString(v)
		}
		if v, ok := vars["ssh_user"]; ok {
			opts.User = types.ConvertToString(v)
		}
		if v, ok := vars["ssh_port"]; ok {
			if port, err := types.ConvertToInt(v); err == nil {
				opts.Port = port
			}
		}
		if v, ok := vars["ssh_password"]; ok {
			opts.Password = types.ConvertToString(v)
		}
		if v, ok := vars["ssh_private_key"]; ok {
			opts.PrivateKey = types.ConvertToString(v)
		}

		conn := NewSSHConnection(opts)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Cache returns the factory's connection cache.
func (f *SSHFactory) Cache() *Cache {
	return f.cache
}
