package playbook

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/drover-sh/drover/pkg/types"
)

// Load reads a playbook file: an ordered sequence of plays.
func Load(path string) ([]Play, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to read playbook", err)
	}

	var plays []Play
	if err := yaml.Unmarshal(data, &plays); err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to parse playbook", err)
	}

	return plays, nil
}

// FindRole locates a role directory under the run's role paths, trying the
// playbook-relative roles directory as well.
func FindRole(name string, rolePaths []string, playbookDir string) (string, error) {
	candidates := make([]string, 0, len(rolePaths)+1)
	for _, root := range rolePaths {
		candidates = append(candidates, filepath.Join(root, name))
	}
	if playbookDir != "" {
		candidates = append(candidates, filepath.Join(playbookDir, "roles", name))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", types.NewPlaybookError("", "", "", "role not found: "+name, nil)
}

// LoadRole reads a role's role.yml from its directory.
func LoadRole(dir string) (*Role, error) {
	path := filepath.Join(dir, "role.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to read role", err)
	}

	var role Role
	if err := yaml.Unmarshal(data, &role); err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to parse role", err)
	}
	if role.Name == "" {
		role.Name = filepath.Base(dir)
	}

	return &role, nil
}
