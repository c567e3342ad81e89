package generator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/ollama"
)

var testSettings = Settings{Model: "mistral:instruct", Temperature: 0.2, Timeout: 1200}

type fakeGenerator struct {
	calls     int
	responses []func(req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
	requests  []ollama.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i](req)
}

func reply(text string) func(ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
	return func(ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
		return &ollama.GenerateResponse{Response: text, Done: true}, nil
	}
}

func fail(err error) func(ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
	return func(ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
		return nil, err
	}
}

var errTransport = &ollama.TransportError{Op: "POST /api/generate", Err: errors.New("connection refused")}

func newTestRephraser(g Generator) *Rephraser {
	r := NewRephraser(g, testSettings, nil)
	r.RetryDelay = time.Millisecond
	return r
}

func TestRephraseSuccess(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){
		reply("  Write a snake game in Python.  \n"),
	}}

	out, err := newTestRephraser(g).Rephrase(context.Background(), "make snake")
	require.NoError(t, err)
	assert.Equal(t, "Write a snake game in Python.", out)

	require.Len(t, g.requests, 1)
	assert.Contains(t, g.requests[0].Prompt, `User request: "make snake"`)
	assert.Equal(t, "mistral:instruct", g.requests[0].Model)
	assert.Empty(t, g.requests[0].Format)
}

func TestRephraseRetriesTransportErrors(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){
		fail(errTransport),
		fail(errTransport),
		reply("ok"),
	}}

	out, err := newTestRephraser(g).Rephrase(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, g.calls)
}

func TestRephraseExhaustsRetries(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){
		fail(errTransport),
	}}

	_, err := newTestRephraser(g).Rephrase(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRephraseFailed)
	assert.True(t, ollama.IsTransport(err))
	assert.Equal(t, 3, g.calls)
}

func TestRephraseEmptyIsNotRetried(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){
		reply("   "),
		reply("should not be reached"),
	}}

	_, err := newTestRephraser(g).Rephrase(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyRephrase)
	assert.Equal(t, 1, g.calls)
}

func TestRephraseMalformedIsNotRetried(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){
		fail(fmt.Errorf("%w: bad json", ollama.ErrMalformedResponse)),
	}}

	_, err := newTestRephraser(g).Rephrase(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRephraseFailed)
	assert.ErrorIs(t, err, ollama.ErrMalformedResponse)
	assert.Equal(t, 1, g.calls)
}

func TestRephraseRetriesHTTPStatusAgainstServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"response":"rephrased","done":true}`)
	}))
	defer srv.Close()

	client := ollama.New(srv.URL, ollama.WithThrottle(0))
	out, err := newTestRephraser(client).Rephrase(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "rephrased", out)
	assert.Equal(t, int32(2), hits.Load())
}

func TestTeamGenerate(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "bare array",
			response: `[{"expert_name":"Lead","description":"leads","skills":["a"],"tools":["t"]},{"expert_name":"Dev","description":"codes","skills":[],"tools":[]}]`,
			want:     []string{"Lead", "Dev"},
		},
		{
			name:     "experts object",
			response: `{"experts":[{"expert_name":"Lead","description":"leads"}]}`,
			want:     []string{"Lead"},
		},
		{
			name:     "array wrapped in prose",
			response: `Sure! Here is your team: [{"expert_name":"Lead","description":"leads"}] Hope this helps.`,
			want:     []string{},
		},
		{
			name:     "object without experts",
			response: `{"team":[{"expert_name":"Lead","description":"leads"}]}`,
			want:     []string{},
		},
		{
			name:     "not json",
			response: "I cannot help with that.",
			want:     []string{},
		},
		{
			name: "malformed entries skipped",
			response: `[
				{"expert_name":"Lead","description":"leads"},
				"just a string",
				{"expert_name":"","description":"blank name"},
				{"expert_name":"No Description"},
				{"expert_name":"Bad Skills","description":"x","skills":"not-a-list"},
				{"expert_name":"Tester","description":"tests"}
			]`,
			want: []string{"Lead", "Tester"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){reply(tt.response)}}
			team, err := NewTeamGenerator(g, testSettings, nil).Generate(context.Background(), "build a game", []string{"fetch_web_content"})
			require.NoError(t, err)
			require.NotNil(t, team)

			names := make([]string, 0, len(team))
			for _, a := range team {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestTeamGenerateRequestShape(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){reply(`[]`)}}
	_, err := NewTeamGenerator(g, testSettings, nil).Generate(context.Background(), "build a game", []string{"fetch_web_content", "plot_diagram"})
	require.NoError(t, err)

	require.Len(t, g.requests, 1)
	req := g.requests[0]
	assert.Equal(t, "json", req.Format)
	assert.Contains(t, req.Prompt, "Available Skills: [fetch_web_content, plot_diagram]")
	assert.Contains(t, req.Prompt, `"enum":["fetch_web_content","plot_diagram"]`)
	assert.Contains(t, req.Prompt, `"required":["expert_name","description","skills","tools"]`)
	assert.Contains(t, req.Prompt, "Web Content Summarizer")
	assert.Contains(t, req.Prompt, "user's request: build a game")
	assert.Contains(t, req.Prompt, "The first agent must be qualified to manage the entire project")
}

func TestTeamGenerateDefaultsAndSettings(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){
		reply(`[{"expert_name":"Lead","description":"leads"}]`),
	}}
	team, err := NewTeamGenerator(g, testSettings, nil).Generate(context.Background(), "x", nil)
	require.NoError(t, err)
	require.Len(t, team, 1)

	assert.Equal(t, models.AgentSpec{
		Name:        "Lead",
		Description: "leads",
		Skills:      []string{},
		Tools:       []string{},
		Model:       "mistral:instruct",
		Temperature: 0.2,
		Timeout:     1200,
	}, team[0])
}

func TestTeamGenerateTransportError(t *testing.T) {
	g := &fakeGenerator{responses: []func(ollama.GenerateRequest) (*ollama.GenerateResponse, error){fail(errTransport)}}
	_, err := NewTeamGenerator(g, testSettings, nil).Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, ollama.IsTransport(err))
}

type fakeStreamer struct {
	fragments []string
	err       error
	last      ollama.GenerateRequest
}

func (f *fakeStreamer) GenerateStream(ctx context.Context, req ollama.GenerateRequest) iter.Seq2[ollama.Chunk, error] {
	f.last = req
	return func(yield func(ollama.Chunk, error) bool) {
		for _, s := range f.fragments {
			if !yield(ollama.Fragment{Text: s}, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(ollama.Done{}, nil)
	}
}

func TestRefine(t *testing.T) {
	s := &fakeStreamer{fragments: []string{"  A sharper ", "description. "}}
	agent := models.AgentSpec{Name: "Lead", Description: "leads", Model: "llama3:8b"}

	out, err := NewRefiner(s, testSettings, nil).Refine(context.Background(), agent, "build a game", "Lead:\n\nhello")
	require.NoError(t, err)
	assert.Equal(t, "A sharper description.", out)
	assert.Equal(t, "llama3:8b", s.last.Model)
	assert.Contains(t, s.last.Prompt, "- Name: Lead")
	assert.Contains(t, s.last.Prompt, "Current user request: build a game")
}

func TestRefineEmpty(t *testing.T) {
	s := &fakeStreamer{fragments: []string{"   "}}
	_, err := NewRefiner(s, testSettings, nil).Refine(context.Background(), models.AgentSpec{Name: "x"}, "", "")
	assert.ErrorIs(t, err, ErrEmptyDescription)
}

func TestRefineStreamError(t *testing.T) {
	s := &fakeStreamer{fragments: []string{"partial"}, err: ollama.ErrMalformedResponse}
	_, err := NewRefiner(s, testSettings, nil).Refine(context.Background(), models.AgentSpec{Name: "x"}, "", "")
	assert.ErrorIs(t, err, ollama.ErrMalformedResponse)
}
