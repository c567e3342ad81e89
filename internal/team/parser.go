// Package team reads and writes hand-edited team definition files.
package team

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpataki/teamforge/internal/models"
	"gopkg.in/yaml.v3"
)

func Parse(path string) (*models.TeamFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team file: %w", err)
	}

	var tf models.TeamFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse team YAML: %w", err)
	}

	if tf.Settings != nil {
		ApplyDefaults(&tf, *tf.Settings)
	}

	return &tf, nil
}

// ApplyDefaults fills model, temperature and timeout on agents that leave
// them unset.
func ApplyDefaults(tf *models.TeamFile, s models.TeamSettings) {
	for i := range tf.Agents {
		a := &tf.Agents[i]
		if a.Model == "" {
			a.Model = s.Model
		}
		if a.Temperature == 0 {
			a.Temperature = s.Temperature
		}
		if a.Timeout == 0 {
			a.Timeout = s.Timeout
		}
		if a.Skills == nil {
			a.Skills = []string{}
		}
		if a.Tools == nil {
			a.Tools = []string{}
		}
	}
}

func LoadAll(dirs []string) (map[string]*models.TeamFile, error) {
	teams := make(map[string]*models.TeamFile)

	for _, dir := range dirs {
		if err := loadFromDir(dir, teams); err != nil {
			// Skip directories that don't exist
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return teams, nil
}

func loadFromDir(dir string, teams map[string]*models.TeamFile) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		tf, err := Parse(path)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// Use team name from file, or filename without extension
		teamName := tf.Name
		if teamName == "" {
			teamName = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}

		teams[teamName] = tf
	}

	return nil
}

func Validate(tf *models.TeamFile) error {
	if tf.Name == "" {
		return fmt.Errorf("team must have a name")
	}

	if len(tf.Agents) == 0 {
		return fmt.Errorf("team must define at least one agent")
	}

	for i, a := range tf.Agents {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("agent %d must have a name", i)
		}
		if strings.TrimSpace(a.Description) == "" {
			return fmt.Errorf("agent %q must have a description", a.Name)
		}
		if a.Temperature < 0 || a.Temperature > 1 {
			return fmt.Errorf("agent %q temperature %v out of range [0, 1]", a.Name, a.Temperature)
		}
	}

	return nil
}

// Marshal renders a team as YAML in the same shape Parse reads.
func Marshal(tf *models.TeamFile) ([]byte, error) {
	data, err := yaml.Marshal(tf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team YAML: %w", err)
	}
	return data, nil
}
