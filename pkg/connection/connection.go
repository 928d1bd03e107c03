// Package connection provides the transports used to reach target hosts:
// a local process spawner, a persistent SSH session per host, and a WinRM
// variant for Windows targets. Live sessions are owned by the Cache; no
// caller opens a fresh session per task.
package connection

import (
	"context"
	"errors"
	"strings"

	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/types"
)

// Connection is one shell-bearing session against a single host. Commands
// are assembled as argv lists; sudo wrapping is applied by the transport,
// not by callers. A non-zero exit code is reported through the
// CommandResult, not as an error; errors are reserved for transport
// failures.
type Connection interface {
	// Connect establishes the session.
	Connect(ctx context.Context) error

	// Run executes an argv on the host, optionally as another user.
	Run(ctx context.Context, argv []string, sudo string) (*tasks.CommandResult, error)

	// Put writes bytes to a remote path with the given octal mode.
	Put(ctx context.Context, data []byte, remotePath string, mode string) error

	// Close terminates the session.
	Close() error

	// IsConnected reports whether the session is live.
	IsConnected() bool

	// Kind returns the transport kind ("local", "ssh", "winrm").
	Kind() string
}

// IsTransportLost reports whether an error is a transport-level failure
// that warrants evicting the cached session and reconnecting once.
func IsTransportLost(err error) bool {
	var connErr *types.ConnectionError
	return errors.As(err, &connErr)
}

// sudoWrap prefixes an argv with a sudo invocation for the given user.
func sudoWrap(argv []string, sudo string) []string {
	if sudo == "" {
		return argv
	}
	return append([]string{"sudo", "-u", sudo, "--"}, argv...)
}

// shellQuote quotes one argv element for interpolation into a remote shell
// command line.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			strings.ContainsRune("._-/=:,", c)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// shellJoin renders an argv as a single quoted shell command line.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
