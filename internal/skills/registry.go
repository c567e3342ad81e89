// Package skills discovers skill implementation files on disk.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const ManifestName = "skills.yaml"

var ErrUnknownSkill = errors.New("unknown skill")

// Skill is one registered identifier. Source is the file shipped in
// bundles; Script is the Lua implementation run during chats, if any.
type Skill struct {
	Name        string
	Description string
	Source      string
	Script      string
}

type manifest struct {
	Skills map[string]struct {
		Description string `yaml:"description"`
	} `yaml:"skills"`
}

// Registry is read-only once loaded.
type Registry struct {
	dir    string
	skills map[string]Skill
}

// Load scans dir. Every regular file {id}.{ext} registers skill {id};
// names starting with "_" or "." are ignored. A missing dir yields an
// empty registry.
func Load(dir string) (*Registry, error) {
	r := &Registry{dir: dir, skills: make(map[string]Skill)}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read skills dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == ManifestName || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		id := strings.TrimSuffix(name, ext)
		if id == "" {
			continue
		}

		s := r.skills[id]
		s.Name = id
		if ext == ".lua" {
			s.Script = name
			if s.Source == "" {
				s.Source = name
			}
		} else if s.Source == "" || s.Source == s.Script {
			s.Source = name
		}
		r.skills[id] = s
	}

	if err := r.loadManifest(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(r.dir, ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read skills manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse skills manifest: %w", err)
	}
	for id, meta := range m.Skills {
		if s, ok := r.skills[id]; ok {
			s.Description = meta.Description
			r.skills[id] = s
		}
	}
	return nil
}

func (r *Registry) Dir() string {
	return r.dir
}

// Names returns the registered identifiers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.skills))
	for id := range r.skills {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Get(name string) (Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// Lookup returns the bundled file name for a skill.
func (r *Registry) Lookup(name string) (string, bool) {
	s, ok := r.skills[name]
	if !ok {
		return "", false
	}
	return s.Source, true
}

func (r *Registry) ReadSource(name string) ([]byte, error) {
	s, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
	}
	return os.ReadFile(filepath.Join(r.dir, s.Source))
}

// ScriptPath returns the Lua implementation path of a skill, if it has one.
func (r *Registry) ScriptPath(name string) (string, bool) {
	s, ok := r.skills[name]
	if !ok || s.Script == "" {
		return "", false
	}
	return filepath.Join(r.dir, s.Script), true
}
