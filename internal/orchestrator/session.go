package orchestrator

import (
	"fmt"

	"github.com/mpataki/teamforge/internal/discussion"
	"github.com/mpataki/teamforge/internal/generator"
	"github.com/mpataki/teamforge/internal/models"
)

// Session is the state of one interactive discussion with a team. It is
// not safe for concurrent use.
type Session struct {
	RunID     int64
	Request   string
	Rephrased string
	Team      models.Team
	Log       *discussion.Log
	Settings  generator.Settings

	// UserInput is sent with the next Ask and cleared once it succeeds.
	UserInput    string
	ReferenceURL string

	DiscussionName string
}

func NewSession(settings generator.Settings, discussionName string) *Session {
	return &Session{
		Team:           models.Team{},
		Log:            discussion.NewLog(),
		Settings:       settings,
		DiscussionName: discussionName,
	}
}

// Goal is what the team works towards: the rephrased request when there
// is one.
func (s *Session) Goal() string {
	if s.Rephrased != "" {
		return s.Rephrased
	}
	return s.Request
}

// Agent resolves ref as a name or slug.
func (s *Session) Agent(ref string) (int, error) {
	i := s.Team.Find(ref)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrAgentNotFound, ref)
	}
	return i, nil
}

func (s *Session) agent(index int) (models.AgentSpec, error) {
	if index < 0 || index >= len(s.Team) {
		return models.AgentSpec{}, fmt.Errorf("%w: index %d", ErrAgentNotFound, index)
	}
	return s.Team[index], nil
}

// settingsFor applies the agent's model override.
func (s *Session) settingsFor(agent models.AgentSpec) generator.Settings {
	st := s.Settings
	if agent.Model != "" {
		st.Model = agent.Model
	}
	return st
}
