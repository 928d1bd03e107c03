package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInventoryEmpty(t *testing.T) {
	inv := New()
	assert.True(t, inv.IsEmpty())
	assert.Empty(t, inv.HostNames())
	assert.Empty(t, inv.GroupNames())
	assert.Empty(t, inv.Match([]string{"all"}))
}

func TestInventoryLoad(t *testing.T) {
	path := writeInventory(t, `
hosts:
  bastion:
    ssh_port: 2222
groups:
  webservers:
    hosts: [web1, web2]
    vars:
      role: web
  databases:
    hosts: [db1]
`)

	inv := New()
	require.NoError(t, inv.Load(path))

	assert.Equal(t, []string{"bastion", "db1", "web1", "web2"}, inv.HostNames())
	assert.Equal(t, []string{"databases", "webservers"}, inv.GroupNames())

	host, ok := inv.GetHost("bastion")
	require.True(t, ok)
	assert.Equal(t, 2222, host.Vars()["ssh_port"])

	group, ok := inv.GetGroup("webservers")
	require.True(t, ok)
	assert.Equal(t, []string{"web1", "web2"}, group.Hosts)
}

func TestInventoryMatch(t *testing.T) {
	inv := New()
	inv.CreateHost("web1")
	inv.CreateHost("web2")
	inv.CreateHost("db1")
	group := inv.CreateGroup("webservers")
	for _, name := range []string{"web1", "web2"} {
		group.AddHost(name)
		host, _ := inv.GetHost(name)
		host.AddGroup("webservers")
	}

	all := inv.Match([]string{"all"})
	assert.Len(t, all, 3)

	web := inv.Match([]string{"webservers"})
	require.Len(t, web, 2)
	assert.Equal(t, "web1", web[0].Name)
	assert.Equal(t, "web2", web[1].Name)

	byName := inv.Match([]string{"db1"})
	require.Len(t, byName, 1)
	assert.Equal(t, "db1", byName[0].Name)

	wildcard := inv.Match([]string{"web*"})
	assert.Len(t, wildcard, 2)

	assert.Empty(t, inv.Match([]string{"missing"}))
}

func TestGroupVarsForHost(t *testing.T) {
	inv := New()
	host := inv.CreateHost("web1")
	host.AddGroup("webservers")

	group := inv.CreateGroup("webservers")
	group.AddHost("web1")
	group.Vars["http_port"] = 8080

	vars := inv.GroupVarsForHost(host)
	assert.Equal(t, 8080, vars["http_port"])
}

func TestHostFacts(t *testing.T) {
	host := NewHost("web1")

	host.SetFact("os_type", "Linux")
	value, ok := host.GetFact("os_type")
	assert.True(t, ok)
	assert.Equal(t, "Linux", value)

	host.SetFacts(map[string]interface{}{"arch": "x86_64"})
	facts := host.Facts()
	assert.Equal(t, "Linux", facts["os_type"])
	assert.Equal(t, "x86_64", facts["arch"])

	// Facts returns a copy.
	facts["os_type"] = "mutated"
	value, _ = host.GetFact("os_type")
	assert.Equal(t, "Linux", value)
}

func TestHostFailedFlag(t *testing.T) {
	host := NewHost("web1")
	assert.False(t, host.IsFailed())

	host.MarkFailed()
	assert.True(t, host.IsFailed())
}
