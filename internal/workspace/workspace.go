// Package workspace manages the per-run output directory.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mpataki/teamforge/internal/archive"
	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/sanitize"
)

type Workspace struct {
	Path      string
	AgentsDir string
}

type RunMetadata struct {
	RunID     int64    `json:"run_id"`
	TraceID   string   `json:"trace_id"`
	Request   string   `json:"request"`
	Rephrased string   `json:"rephrased"`
	Model     string   `json:"model"`
	Agents    []string `json:"agents"`
}

func dirFor(baseDir string, runID int64) string {
	return filepath.Join(baseDir, fmt.Sprintf("run-%d", runID))
}

func Create(baseDir string, runID int64) (*Workspace, error) {
	path := dirFor(baseDir, runID)

	w := &Workspace{
		Path:      path,
		AgentsDir: filepath.Join(path, "agents"),
	}

	if err := os.MkdirAll(w.AgentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	if err := w.writeReadme(); err != nil {
		return nil, err
	}

	return w, nil
}

func Open(baseDir string, runID int64) (*Workspace, error) {
	path := dirFor(baseDir, runID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("workspace for run %d does not exist", runID)
	}

	return &Workspace{
		Path:      path,
		AgentsDir: filepath.Join(path, "agents"),
	}, nil
}

// Remove deletes the workspace directory and everything in it.
func Remove(baseDir string, runID int64) error {
	return os.RemoveAll(dirFor(baseDir, runID))
}

func (w *Workspace) AssistantBundlePath() string {
	return filepath.Join(w.Path, archive.AssistantBundleName)
}

func (w *Workspace) CrewBundlePath() string {
	return filepath.Join(w.Path, archive.CrewBundleName)
}

// WriteBundle writes both archives next to each other.
func (w *Workspace) WriteBundle(b archive.Bundle) error {
	if err := os.WriteFile(w.AssistantBundlePath(), b.Assistant, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", archive.AssistantBundleName, err)
	}
	if err := os.WriteFile(w.CrewBundlePath(), b.Crew, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", archive.CrewBundleName, err)
	}
	return nil
}

// WriteAgents replaces agents/ with one JSON file per assistant record,
// named the same way as inside the assistant bundle.
func (w *Workspace) WriteAgents(assistants []models.AssistantRecord) error {
	if err := os.RemoveAll(w.AgentsDir); err != nil {
		return fmt.Errorf("failed to clear agents directory: %w", err)
	}
	if err := os.MkdirAll(w.AgentsDir, 0755); err != nil {
		return fmt.Errorf("failed to create agents directory: %w", err)
	}

	for i, name := range archive.AgentFileNames(assistants) {
		data, err := json.MarshalIndent(assistants[i], "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal agent %q: %w", assistants[i].Config.Name, err)
		}
		if err := os.WriteFile(filepath.Join(w.AgentsDir, name), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// ReadAgents loads every agents/*.json file, sorted by file name.
func (w *Workspace) ReadAgents() ([]models.AssistantRecord, error) {
	entries, err := os.ReadDir(w.AgentsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read agents directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]models.AssistantRecord, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(w.AgentsDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var rec models.AssistantRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// RemoveAgent deletes the JSON file of the named agent, using the same
// path-safe name as WriteAgents. A missing file is not an error.
func (w *Workspace) RemoveAgent(name string) error {
	err := os.Remove(filepath.Join(w.AgentsDir, sanitize.FileName(name)+".json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove agent file: %w", err)
	}
	return nil
}

// RemoveBundles deletes both archives. Missing files are not errors.
func (w *Workspace) RemoveBundles() error {
	for _, p := range []string{w.AssistantBundlePath(), w.CrewBundlePath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func (w *Workspace) WriteRunMetadata(meta *RunMetadata) error {
	path := filepath.Join(w.Path, "run.json")

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run.json: %w", err)
	}

	return nil
}

func (w *Workspace) ReadRunMetadata() (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(w.Path, "run.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read run.json: %w", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse run.json: %w", err)
	}
	return &meta, nil
}

func (w *Workspace) writeReadme() error {
	return os.WriteFile(filepath.Join(w.Path, "README.md"), []byte(readmeContent), 0644)
}

const readmeContent = `# TeamForge run

This directory holds the output of one team generation run.

## Files

- ` + "`" + archive.AssistantBundleName + "`" + `: assistant-framework bundle. Import
  ` + "`" + `agents/*.json` + "`" + ` and ` + "`" + `workflows/*.json` + "`" + `; referenced skill
  implementations are under ` + "`" + `skills/` + "`" + `.
- ` + "`" + archive.CrewBundleName + "`" + `: crew-framework bundle, one ` + "`" + `agents/agent_N.json` + "`" + ` per agent.
- ` + "`" + `agents/` + "`" + `: the assistant records, one file per agent. Deleting an
  agent removes its file here.
- ` + "`" + `run.json` + "`" + `: request, rephrased prompt and model used.

The first agent is the coordinator. It ends a group chat with ` + "`" + `TERMINATE` + "`" + `.
`
