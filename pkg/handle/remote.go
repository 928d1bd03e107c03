package handle

import (
	"fmt"
	"strings"

	"github.com/drover-sh/drover/pkg/connection"
	"github.com/drover-sh/drover/pkg/tasks"
	"github.com/drover-sh/drover/pkg/types"
)

// StatInfo describes one remote path.
type StatInfo struct {
	Path        string
	IsDirectory bool
	Owner       string
	Group       string
	Mode        string
}

// Probe runs a read-only command on the bound connection and returns the
// raw result. A transport-lost failure evicts the cached session and
// retries once; a second failure propagates.
func (h *TaskHandle) Probe(argv []string) (*tasks.CommandResult, error) {
	result, err := h.Conn.Run(h.Context(), argv, h.sudo)
	if err != nil && connection.IsTransportLost(err) {
		if conn, rerr := h.reconnect(); rerr == nil {
			h.Conn = conn
			result, err = h.Conn.Run(h.Context(), argv, h.sudo)
		}
	}
	return result, err
}

func (h *TaskHandle) reconnect() (connection.Connection, error) {
	if h.Run == nil || h.Run.Factory == nil || h.Host == nil {
		return nil, types.NewConnectionError("", "no factory available for reconnect", nil)
	}
	h.Run.Factory.Cache().Evict(h.Host.Name)
	return h.Run.Factory.Connect(h.Context(), h.Host)
}

// Execute runs a command as the apply step of a task. The response is
// IsExecuted on rc=0, otherwise Failed carrying the captured output.
func (h *TaskHandle) Execute(req *tasks.Request, argv []string) *tasks.TaskResponse {
	result, err := h.Probe(argv)
	if err != nil {
		return h.Failed(req, fmt.Sprintf("transport failure: %v", err))
	}
	if result.RC != 0 {
		return h.FailedWithResult(req, fmt.Sprintf("command returned rc=%d", result.RC), result)
	}
	return h.CommandOK(req, result)
}

// RemoteStat probes one path. A nil StatInfo with nil error means the path
// does not exist.
func (h *TaskHandle) RemoteStat(path string) (*StatInfo, error) {
	result, err := h.Probe([]string{"stat", "-L", "-c", "%F|%U|%G|%a", path})
	if err != nil {
		return nil, err
	}
	if result.RC != 0 {
		return nil, nil
	}

	parts := strings.SplitN(strings.TrimSpace(result.Out), "|", 4)
	if len(parts) != 4 {
		return nil, types.NewConnectionError(h.hostName(), "unexpected stat output: "+result.Out, nil)
	}

	return &StatInfo{
		Path:        path,
		IsDirectory: strings.Contains(parts[0], "directory"),
		Owner:       parts[1],
		Group:       parts[2],
		Mode:        parts[3],
	}, nil
}

// RemoteChecksum returns the SHA-512 hex digest of a remote file.
func (h *TaskHandle) RemoteChecksum(path string) (string, error) {
	result, err := h.Probe([]string{"sha512sum", path})
	if err != nil {
		return "", err
	}
	if result.RC != 0 {
		return "", types.NewConnectionError(h.hostName(), "checksum failed: "+result.Out, nil)
	}
	fields := strings.Fields(result.Out)
	if len(fields) == 0 {
		return "", types.NewConnectionError(h.hostName(), "empty checksum output", nil)
	}
	return fields[0], nil
}

// AttributeDiff compares a stat result against desired attributes and
// returns the differing fields in reporting order.
func AttributeDiff(stat *StatInfo, desired *tasks.FileAttributesEvaluated) []tasks.Field {
	if desired == nil {
		return nil
	}

	var changes []tasks.Field
	if desired.Owner != "" && desired.Owner != stat.Owner {
		changes = append(changes, tasks.Owner)
	}
	if desired.Group != "" && desired.Group != stat.Group {
		changes = append(changes, tasks.Group)
	}
	if desired.Mode != "" {
		want, err := tasks.NormalizeMode(desired.Mode)
		if err == nil && strings.TrimLeft(want, "0") != strings.TrimLeft(stat.Mode, "0") {
			changes = append(changes, tasks.Mode)
		}
	}
	return changes
}

// RemoteApplyAttributes applies ownership and mode to a path and returns
// the fields it changed. With recurse, changes apply to the whole tree.
func (h *TaskHandle) RemoteApplyAttributes(path string, desired *tasks.FileAttributesEvaluated, changes []tasks.Field, recurse bool) ([]tasks.Field, error) {
	if desired == nil {
		return nil, nil
	}

	var applied []tasks.Field
	for _, field := range changes {
		var argv []string
		switch field {
		case tasks.Owner:
			argv = []string{"chown", desired.Owner, path}
		case tasks.Group:
			argv = []string{"chgrp", desired.Group, path}
		case tasks.Mode:
			mode, err := tasks.NormalizeMode(desired.Mode)
			if err != nil {
				return applied, err
			}
			argv = []string{"chmod", mode, path}
		default:
			continue
		}
		if recurse {
			argv = append(argv[:1], append([]string{"-R"}, argv[1:]...)...)
		}

		result, err := h.Probe(argv)
		if err != nil {
			return applied, err
		}
		if result.RC != 0 {
			return applied, types.NewConnectionError(h.hostName(),
				fmt.Sprintf("%s failed: %s", argv[0], result.Out), nil)
		}
		applied = append(applied, field)
	}
	return applied, nil
}

// PutFile writes bytes to a remote path with the given mode.
func (h *TaskHandle) PutFile(data []byte, remotePath, mode string) error {
	return h.Conn.Put(h.Context(), data, remotePath, mode)
}

func (h *TaskHandle) hostName() string {
	if h.Host != nil {
		return h.Host.Name
	}
	return "unknown"
}
