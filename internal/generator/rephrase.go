package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mpataki/teamforge/internal/ollama"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

var (
	ErrEmptyRephrase  = errors.New("rephrase returned an empty prompt")
	ErrRephraseFailed = errors.New("rephrase failed")
)

type Rephraser struct {
	client   Generator
	settings Settings
	logger   *slog.Logger

	MaxRetries int
	RetryDelay time.Duration
}

func NewRephraser(client Generator, s Settings, logger *slog.Logger) *Rephraser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rephraser{
		client:     client,
		settings:   s,
		logger:     logger.With("component", "generator"),
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

func RephrasePrompt(request string) string {
	return fmt.Sprintf(` Refactor the following user request into an optimized prompt for an LLM, focusing on clarity, conciseness, and effectiveness. Provide specific details and examples where relevant. Do NOT reply with a direct response to the request; instead, rephrase the request as a well-structured prompt, and return ONLY that rephrased prompt.

User request: "%s"

rephrased: `, request)
}

// Rephrase turns a free-form request into an optimized prompt. Only
// transport failures are retried; an empty answer fails immediately.
func (r *Rephraser) Rephrase(ctx context.Context, request string) (string, error) {
	attempts := r.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	req := r.settings.request(RephrasePrompt(request), "")

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.RetryDelay):
			}
		}

		resp, err := r.client.Generate(ctx, req)
		if err != nil {
			if !ollama.IsTransport(err) || ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", ErrRephraseFailed, err)
			}
			lastErr = err
			r.logger.Warn("rephrase attempt failed", "attempt", attempt, "of", attempts, "err", err)
			continue
		}

		out := strings.TrimSpace(resp.Response)
		if out == "" {
			return "", ErrEmptyRephrase
		}
		r.logger.Debug("rephrased request", "attempt", attempt, "bytes", len(out))
		return out, nil
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRephraseFailed, attempts, lastErr)
}
