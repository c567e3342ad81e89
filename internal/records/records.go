// Package records projects an AgentSpec into the assistant-framework and
// crew-framework record shapes.
package records

import (
	"fmt"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/sanitize"
)

const (
	CacheSeed               = 42
	HumanInputMode          = "NEVER"
	MaxConsecutiveAutoReply = 8
	AssistantType           = "assistant"
	DefaultUserID           = "default"
)

// Settings are the model parameters stamped into every record.
type Settings struct {
	Model       string
	Temperature float64
	Timeout     int
}

func NewSpec(name, description string, skills, tools []string, s Settings) models.AgentSpec {
	return models.AgentSpec{
		Name:        name,
		Description: description,
		Skills:      skills,
		Tools:       tools,
		Model:       s.Model,
		Temperature: s.Temperature,
		Timeout:     s.Timeout,
	}
}

// SystemMessage is the persona line shared by the assistant record and the
// workflow participant entry.
func SystemMessage(spec models.AgentSpec) string {
	return fmt.Sprintf("You are a helpful assistant that can act as %s who %s.",
		spec.Name, sanitize.Text(spec.Description))
}

// Build derives both records from spec. Name and description are kept as
// given for display; the system message, skills and tools are sanitized.
// Skill identifiers are not checked against any registry here.
func Build(spec models.AgentSpec) (models.AssistantRecord, models.CrewRecord) {
	skills := sanitize.Texts(spec.Skills)
	tools := sanitize.Texts(spec.Tools)

	assistant := models.AssistantRecord{
		Type: AssistantType,
		Config: models.AssistantConfig{
			Name:                    spec.Name,
			LLMConfig:               llmConfig(spec),
			HumanInputMode:          HumanInputMode,
			MaxConsecutiveAutoReply: MaxConsecutiveAutoReply,
			SystemMessage:           SystemMessage(spec),
		},
		Description: spec.Description,
		Skills:      skills,
		Tools:       tools,
	}

	crew := models.CrewRecord{
		Name:            spec.Name,
		Description:     spec.Description,
		Skills:          append([]string(nil), skills...),
		Tools:           append([]string(nil), tools...),
		Verbose:         true,
		AllowDelegation: true,
	}
	if crew.Skills == nil {
		crew.Skills = []string{}
	}
	if crew.Tools == nil {
		crew.Tools = []string{}
	}

	return assistant, crew
}

// BuildAll builds records for a whole team, preserving order.
func BuildAll(team []models.AgentSpec) ([]models.AssistantRecord, []models.CrewRecord) {
	assistants := make([]models.AssistantRecord, 0, len(team))
	crews := make([]models.CrewRecord, 0, len(team))
	for _, spec := range team {
		a, c := Build(spec)
		assistants = append(assistants, a)
		crews = append(crews, c)
	}
	return assistants, crews
}

// WorkflowAgent builds a group chat participant entry. The config name is
// the slug rather than the display name.
func WorkflowAgent(spec models.AgentSpec, systemMessage, timestamp string) models.WorkflowAgent {
	skills := make([]string, len(spec.Skills))
	copy(skills, spec.Skills)

	return models.WorkflowAgent{
		Type: AssistantType,
		Config: models.AssistantConfig{
			Name:                    spec.Slug(),
			LLMConfig:               llmConfig(spec),
			HumanInputMode:          HumanInputMode,
			MaxConsecutiveAutoReply: MaxConsecutiveAutoReply,
			SystemMessage:           systemMessage,
		},
		Timestamp: timestamp,
		UserID:    DefaultUserID,
		Skills:    skills,
	}
}

func llmConfig(spec models.AgentSpec) models.LLMConfig {
	return models.LLMConfig{
		ConfigList:  []models.ModelRef{{Model: spec.Model}},
		Temperature: spec.Temperature,
		Timeout:     spec.Timeout,
		CacheSeed:   CacheSeed,
	}
}
