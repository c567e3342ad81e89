package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mpataki/teamforge/internal/lua"
	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/workflow"
)

// ErrNoParticipants is returned when a round-robin chat has nobody to call.
var ErrNoParticipants = errors.New("chat needs at least one agent")

// skillSpeakerPrefix marks discussion turns produced by skill scripts.
const skillSpeakerPrefix = "skill:"

type ChatOptions struct {
	// Turns defaults to twice the team size.
	Turns int
	// StopOnTerminate ends the chat after a reply containing the
	// termination token.
	StopOnTerminate bool
	// InitialMessage defaults to the session goal.
	InitialMessage string

	OnTurn     func(turn int, speaker string)
	OnFragment func(text string)
}

type ChatMessage struct {
	Sender  string
	Content string
}

type ChatResult struct {
	Messages   []ChatMessage
	Turns      int
	Terminated bool
}

// AutoChat runs a round-robin chat. The speaker index advances before each
// turn, so the second agent speaks first and the coordinator speaks last in
// each round. Every prompt is the speaker's system message followed by all
// messages so far.
func (o *Orchestrator) AutoChat(ctx context.Context, sess *Session, opts ChatOptions) (*ChatResult, error) {
	n := len(sess.Team)
	if n == 0 {
		return nil, ErrNoParticipants
	}

	turns := opts.Turns
	if turns <= 0 {
		turns = 2 * n
	}
	initial := opts.InitialMessage
	if initial == "" {
		initial = sess.Goal()
	}

	res := &ChatResult{Messages: []ChatMessage{{Sender: "User", Content: initial}}}
	logger := o.logger.With("run_id", sess.RunID)
	logger.Info("chat started", "agents", n, "turns", turns)

	speaker := 0
	for turn := 0; turn < turns; turn++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		speaker = (speaker + 1) % n
		agent := sess.Team[speaker]
		if opts.OnTurn != nil {
			opts.OnTurn(turn, agent.Name)
		}

		prompt := systemMessage(sess.Team, speaker) + "\n" + joinMessages(res.Messages)
		reply, err := o.speak(ctx, sess, agent, prompt, opts.OnFragment)
		if err != nil {
			return res, err
		}
		res.Turns++
		res.Messages = append(res.Messages, ChatMessage{Sender: agent.Name, Content: reply})
		sess.Log.Append(agent.Name, reply, "")

		for _, out := range o.runSkills(ctx, sess, agent, reply) {
			res.Messages = append(res.Messages, out)
			sess.Log.Append(out.Sender, out.Content, "")
		}
		o.saveDiscussion(sess)

		if opts.StopOnTerminate && strings.Contains(reply, workflow.TerminateToken) {
			res.Terminated = true
			break
		}
	}

	logger.Info("chat finished", "turns", res.Turns, "terminated", res.Terminated)
	return res, nil
}

// systemMessage is the persona for team[i]; the first agent also gets the
// coordinator instructions.
func systemMessage(team models.Team, i int) string {
	msg := workflow.ParticipantMessage(team[i])
	if i == 0 && len(team) > 1 {
		msg += workflow.CoordinatorBlock(team[1:])
	}
	return msg
}

func joinMessages(msgs []ChatMessage) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// runSkills executes the Lua scripts of skills the agent owns and names in
// its reply. A failing skill is reported in the chat instead of aborting it.
func (o *Orchestrator) runSkills(ctx context.Context, sess *Session, agent models.AgentSpec, reply string) []ChatMessage {
	if o.opts.Skills == nil {
		return nil
	}

	var out []ChatMessage
	for _, name := range agent.Skills {
		if !strings.Contains(reply, name) {
			continue
		}
		path, ok := o.opts.Skills.ScriptPath(name)
		if !ok {
			continue
		}

		rt := lua.NewRuntime(lua.SkillContext{
			Skill:      name,
			Agent:      agent.Name,
			Request:    sess.Goal(),
			Discussion: sess.Log.History(),
			Whiteboard: sess.Log.Whiteboard(),
		})
		sctx, cancel := context.WithTimeout(ctx, o.opts.SkillTimeout)
		result, err := rt.Execute(sctx, path, reply)
		cancel()

		msg := ChatMessage{Sender: skillSpeakerPrefix + name}
		if err != nil {
			o.logger.Warn("skill failed", "skill", name, "agent", agent.Name, "err", err)
			msg.Content = fmt.Sprintf("skill %s failed: %v", name, err)
		} else {
			o.logger.Debug("skill ran", "skill", name, "agent", agent.Name, "logs", len(result.Logs))
			msg.Content = result.Output
		}
		out = append(out, msg)
	}
	return out
}
