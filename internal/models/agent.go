package models

import "github.com/mpataki/teamforge/internal/sanitize"

// AgentSpec is the canonical description of one persona. Every generated
// artifact is derived from it.
type AgentSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Skills      []string `json:"skills" yaml:"skills,omitempty"`
	Tools       []string `json:"tools" yaml:"tools,omitempty"`
	Model       string   `json:"model" yaml:"model,omitempty"`
	Temperature float64  `json:"temperature" yaml:"temperature,omitempty"`
	Timeout     int      `json:"timeout" yaml:"timeout,omitempty"`
}

// Slug is derived from Name on every call and is not guaranteed to be unique
// within a team.
func (a AgentSpec) Slug() string {
	return sanitize.Slug(a.Name)
}

// HasSkill reports whether the agent lists the given skill identifier.
func (a AgentSpec) HasSkill(name string) bool {
	for _, s := range a.Skills {
		if s == name {
			return true
		}
	}
	return false
}

// Team is an ordered agent list. Index 0 is the coordinator.
type Team []AgentSpec

func (t Team) Coordinator() (AgentSpec, bool) {
	if len(t) == 0 {
		return AgentSpec{}, false
	}
	return t[0], true
}

func (t Team) Participants() Team {
	if len(t) < 2 {
		return nil
	}
	return t[1:]
}

// Find returns the index of the agent whose name or slug matches ref, or -1.
func (t Team) Find(ref string) int {
	for i, a := range t {
		if a.Name == ref || a.Slug() == ref {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can edit without touching the
// session's current team.
func (t Team) Clone() Team {
	if t == nil {
		return nil
	}
	out := make(Team, len(t))
	for i, a := range t {
		a.Skills = append([]string(nil), a.Skills...)
		a.Tools = append([]string(nil), a.Tools...)
		out[i] = a
	}
	return out
}
