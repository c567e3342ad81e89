// Package generator holds the LLM-backed steps of the pipeline: request
// rephrasing, team generation and description refinement.
package generator

import (
	"context"
	"iter"

	"github.com/mpataki/teamforge/internal/ollama"
)

// Generator performs a buffered generation. *ollama.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
}

// Streamer performs a chunked generation. *ollama.Client satisfies it.
type Streamer interface {
	GenerateStream(ctx context.Context, req ollama.GenerateRequest) iter.Seq2[ollama.Chunk, error]
}

// Settings select the model and sampling parameters for a request.
type Settings struct {
	Model       string
	Temperature float64
	Timeout     int
}

func (s Settings) request(prompt, format string) ollama.GenerateRequest {
	return ollama.GenerateRequest{
		Model:   s.Model,
		Prompt:  prompt,
		Options: ollama.Options{Temperature: s.Temperature, Timeout: s.Timeout},
		Format:  format,
	}
}
