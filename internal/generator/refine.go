package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/ollama"
)

var ErrEmptyDescription = errors.New("refinement returned an empty description")

// Refiner rewrites one agent's description in light of the request and
// the discussion so far.
type Refiner struct {
	client   Streamer
	settings Settings
	logger   *slog.Logger
}

func NewRefiner(client Streamer, s Settings, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{client: client, settings: s, logger: logger.With("component", "generator")}
}

func RefinePrompt(agent models.AgentSpec, userRequest, history string) string {
	return fmt.Sprintf(`
You are an AI assistant tasked with refining the description of an AI agent. Below are the agent's current details:
- Name: %s
- Description: %s

Current user request: %s
Discussion history: %s

Use a step-by-step reasoning process to:
1. Analyze the current description and user request.
2. Identify key areas where the description can be improved to better meet the user request.
3. Generate a revised description that incorporates these improvements.

Return only the revised description, without any additional commentary. Ensure the response is concise and strictly limited to the revised description, devoid of any preamble or extraneous text.
`, agent.Name, agent.Description, userRequest, history)
}

func (r *Refiner) Refine(ctx context.Context, agent models.AgentSpec, userRequest, history string) (string, error) {
	s := r.settings
	if agent.Model != "" {
		s.Model = agent.Model
	}
	text, err := ollama.Collect(r.client.GenerateStream(ctx, s.request(RefinePrompt(agent, userRequest, history), "")), nil)
	if err != nil {
		return "", fmt.Errorf("failed to refine %q: %w", agent.Name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDescription
	}
	r.logger.Debug("refined description", "agent", agent.Name, "bytes", len(text))
	return text, nil
}
