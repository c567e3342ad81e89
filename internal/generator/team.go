package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/records"
)

const teamSystemPrompt = "You will be given a JSON schema to follow for your response. Respond with valid JSON matching the provided schema."

type TeamGenerator struct {
	client   Generator
	settings Settings
	logger   *slog.Logger
}

func NewTeamGenerator(client Generator, s Settings, logger *slog.Logger) *TeamGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamGenerator{
		client:   client,
		settings: s,
		logger:   logger.With("component", "generator"),
	}
}

type schemaProperty struct {
	Type  string          `json:"type"`
	Items *schemaProperty `json:"items,omitempty"`
	Enum  []string        `json:"enum,omitempty"`
}

type expertSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type expertEntry struct {
	ExpertName  *string  `json:"expert_name"`
	Description *string  `json:"description"`
	Skills      []string `json:"skills"`
	Tools       []string `json:"tools"`
}

var teamExample = []map[string]any{
	{
		"expert_name": "Project Manager",
		"description": "Experienced project manager to oversee the game development.",
		"skills":      []string{"project_management", "team_leadership"},
		"tools":       []string{"Jira", "Trello"},
	},
	{
		"expert_name": "Python Developer",
		"description": "Skilled Python developer to implement the game logic.",
		"skills":      []string{"python_programming", "game_development"},
		"tools":       []string{"Python", "Pygame"},
	},
	{
		"expert_name": "Web Content Summarizer",
		"description": "An AI agent that can fetch and summarize content from a provided URL.",
		"skills":      []string{"fetch_web_content"},
		"tools":       []string{},
	},
}

// TeamSchema constrains each generated expert; skills are limited to the
// given identifiers.
func TeamSchema(availableSkills []string) ([]byte, error) {
	if availableSkills == nil {
		availableSkills = []string{}
	}
	schema := expertSchema{
		Type: "object",
		Properties: map[string]schemaProperty{
			"expert_name": {Type: "string"},
			"description": {Type: "string"},
			"skills":      {Type: "array", Items: &schemaProperty{Type: "string", Enum: availableSkills}},
			"tools":       {Type: "array", Items: &schemaProperty{Type: "string"}},
		},
		Required: []string{"expert_name", "description", "skills", "tools"},
	}
	return json.Marshal(schema)
}

func TeamPrompt(optimizedPrompt string, availableSkills []string) (string, error) {
	schema, err := TeamSchema(availableSkills)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	example, err := json.Marshal(teamExample)
	if err != nil {
		return "", fmt.Errorf("failed to marshal example: %w", err)
	}

	var b strings.Builder
	b.WriteString(teamSystemPrompt)
	fmt.Fprintf(&b, "\n\nAvailable Skills: [%s]", strings.Join(availableSkills, ", "))
	fmt.Fprintf(&b, "\n\nSchema: %s", schema)
	fmt.Fprintf(&b, "\n\nExample: %s", example)
	fmt.Fprintf(&b, "\n\nYou are an expert system designed to identify and recommend the optimal team of experts required to fulfill this specific user's request: %s ", optimizedPrompt)
	b.WriteString("Your analysis should consider the complexity, domain, and specific needs of the request to assemble a multidisciplinary team of experts. ")
	b.WriteString("Each recommended expert should come with a defined role, a brief description of their expertise, their skill set, and the tools they would utilize to achieve the user's goal.  ")
	b.WriteString(`For skills, choose from the "Available Skills" list.  `)
	b.WriteString("The first agent must be qualified to manage the entire project, aggregate the work done by all the other agents, and produce a robust, complete, and reliable solution. ")
	b.WriteString("Respond with ONLY a JSON array of experts, where each expert is an object adhering to the schema:")
	return b.String(), nil
}

// Generate asks the model for a team. Request failures are returned as
// errors. A response that is neither an array nor an object with an
// "experts" key yields an empty team and no error.
func (g *TeamGenerator) Generate(ctx context.Context, optimizedPrompt string, availableSkills []string) ([]models.AgentSpec, error) {
	prompt, err := TeamPrompt(optimizedPrompt, availableSkills)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Generate(ctx, g.settings.request(prompt, "json"))
	if err != nil {
		return nil, fmt.Errorf("failed to generate team: %w", err)
	}

	entries, ok := expertList([]byte(resp.Response))
	if !ok {
		g.logger.Warn("team response has no expert list", "response", truncate(resp.Response, 200))
		return []models.AgentSpec{}, nil
	}

	team := make([]models.AgentSpec, 0, len(entries))
	for i, raw := range entries {
		var e expertEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			g.logger.Warn("skipping malformed expert", "index", i, "err", err)
			continue
		}
		if e.ExpertName == nil || strings.TrimSpace(*e.ExpertName) == "" ||
			e.Description == nil || strings.TrimSpace(*e.Description) == "" {
			g.logger.Warn("skipping expert without name or description", "index", i)
			continue
		}
		if e.Skills == nil {
			e.Skills = []string{}
		}
		if e.Tools == nil {
			e.Tools = []string{}
		}
		team = append(team, records.NewSpec(*e.ExpertName, *e.Description, e.Skills, e.Tools, records.Settings{
			Model:       g.settings.Model,
			Temperature: g.settings.Temperature,
			Timeout:     g.settings.Timeout,
		}))
	}

	g.logger.Info("generated team", "received", len(entries), "kept", len(team))
	return team, nil
}

// expertList accepts a bare array or an object holding an "experts" array.
// Any other shape, including an array wrapped in prose, is rejected.
func expertList(data []byte) ([]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		raw, found := obj["experts"]
		if !found {
			return nil, false
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, false
		}
		return list, true
	}
	return nil, false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
