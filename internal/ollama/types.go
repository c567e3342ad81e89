package ollama

import "time"

// Options is the "options" object of a generate request.
type Options struct {
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout,omitempty"`
}

type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Options Options `json:"options"`
	Stream  bool    `json:"stream"`
	// Format is "json" to force a JSON response body, or empty.
	Format string `json:"format,omitempty"`
}

// GenerateResponse is the buffered response, and also the shape of every
// line of a streamed response.
type GenerateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	Context       []int  `json:"context,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
	EvalCount     int    `json:"eval_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Model is one entry of GET /api/tags.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}
