package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/ollama"
	"github.com/mpataki/teamforge/internal/webcontent"
)

// HistoryWindow bounds how much of the discussion is quoted back to an
// agent, in characters.
const HistoryWindow = 50000

// AgentPrompt builds the prompt for a single agent's turn in a manual
// discussion.
func AgentPrompt(agent models.AgentSpec, request, goal, userInput, referenceContent, history string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Act as the %s who %s.", agent.Name, agent.Description)
	if request != "" {
		fmt.Fprintf(&b, " Original request was: %s.", request)
	}
	if goal != "" {
		fmt.Fprintf(&b, " You are helping a team work on satisfying %s.", goal)
	}
	if userInput != "" {
		fmt.Fprintf(&b, " Additional input: %s.", userInput)
		if referenceContent != "" {
			fmt.Fprintf(&b, " Reference URL content: %s.", referenceContent)
		}
	}
	if history != "" {
		fmt.Fprintf(&b, " The discussion so far has been %s.", history)
	}
	return b.String()
}

// Ask has one agent respond to the discussion so far. onFragment, if set,
// sees the reply as it streams.
func (o *Orchestrator) Ask(ctx context.Context, sess *Session, index int, onFragment func(string)) (string, error) {
	agent, err := sess.agent(index)
	if err != nil {
		return "", err
	}

	reference := o.referenceContent(ctx, sess)
	prompt := AgentPrompt(agent, sess.Request, sess.Goal(), sess.UserInput, reference, sess.Log.Tail(HistoryWindow))

	reply, err := o.speak(ctx, sess, agent, prompt, onFragment)
	if err != nil {
		return "", err
	}

	sess.Log.Append(agent.Name, reply, sess.UserInput)
	sess.UserInput = ""
	o.saveDiscussion(sess)
	return reply, nil
}

// speak streams one reply and records it as an interaction when the
// session belongs to a stored run.
func (o *Orchestrator) speak(ctx context.Context, sess *Session, agent models.AgentSpec, prompt string, onFragment func(string)) (string, error) {
	settings := sess.settingsFor(agent)
	req := ollama.GenerateRequest{
		Model:  settings.Model,
		Prompt: prompt,
		Options: ollama.Options{
			Temperature: settings.Temperature,
			Timeout:     settings.Timeout,
		},
	}

	in := o.startInteraction(sess, agent, prompt)

	reply, err := ollama.Collect(o.client.GenerateStream(ctx, req), onFragment)
	reply = strings.TrimSpace(reply)

	o.finishInteraction(in, reply, err)
	if err != nil {
		return "", fmt.Errorf("%s failed to respond: %w", agent.Name, err)
	}
	o.logger.Debug("agent responded", "agent", agent.Name, "bytes", len(reply))
	return reply, nil
}

func (o *Orchestrator) startInteraction(sess *Session, agent models.AgentSpec, prompt string) *models.Interaction {
	if sess.RunID == 0 {
		return nil
	}
	now := o.opts.Now()
	in := &models.Interaction{
		RunID:     sess.RunID,
		AgentName: agent.Name,
		Status:    models.InteractionRunning,
		Prompt:    prompt,
		StartedAt: &now,
	}
	if _, err := o.storage.CreateInteraction(in); err != nil {
		o.logger.Warn("failed to record interaction", "run_id", sess.RunID, "agent", agent.Name, "err", err)
		return nil
	}
	return in
}

func (o *Orchestrator) finishInteraction(in *models.Interaction, reply string, cause error) {
	if in == nil {
		return
	}
	now := o.opts.Now()
	in.CompletedAt = &now
	in.Response = reply
	in.Status = models.InteractionComplete
	if cause != nil {
		in.Status = models.InteractionFailed
		in.Response = cause.Error()
	}
	if err := o.storage.UpdateInteraction(in); err != nil {
		o.logger.Warn("failed to update interaction", "id", in.ID, "err", err)
	}
}

// referenceContent fetches the reference URL, or the first URL in the user
// input. Failures are logged and yield no content.
func (o *Orchestrator) referenceContent(ctx context.Context, sess *Session) string {
	if o.opts.Fetcher == nil || sess.UserInput == "" {
		return ""
	}
	url := sess.ReferenceURL
	if url == "" {
		url = webcontent.ExtractURL(sess.UserInput)
	}
	if url == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := o.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		o.logger.Warn("failed to fetch reference url", "url", url, "err", err)
		return ""
	}
	return text
}

func (o *Orchestrator) saveDiscussion(sess *Session) {
	if o.opts.Discussions == nil || sess.DiscussionName == "" {
		return
	}
	if err := o.opts.Discussions.Save(sess.DiscussionName, sess.Log.History()); err != nil {
		o.logger.Warn("failed to save discussion", "name", sess.DiscussionName, "err", err)
	}
}
