// Package workflow assembles a team into a group chat workflow document.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/records"
)

const (
	DefaultName        = "TeamForge Workflow"
	DefaultDescription = "Workflow auto-generated by TeamForge."

	TerminateToken = "TERMINATE"

	ManagerName            = "group_chat_manager"
	AdminName              = "Admin"
	MaxRound               = 10
	SpeakerSelectionMethod = "auto"
	SummaryMethod          = "last"

	timestampLayout = "2006-01-02T15:04:05.000000"
)

// Assembler produces WorkflowDocs. Given the same team and clock, the
// output is identical.
type Assembler struct {
	Name        string
	Description string
	Model       string
	Temperature float64
	Timeout     int
	Now         func() time.Time
}

func NewAssembler(model string, temperature float64, timeout int) *Assembler {
	return &Assembler{
		Name:        DefaultName,
		Description: DefaultDescription,
		Model:       model,
		Temperature: temperature,
		Timeout:     timeout,
		Now:         time.Now,
	}
}

// Assemble builds the workflow. An empty team is accepted and produces a
// group chat with no participants.
func (a *Assembler) Assemble(team []models.AgentSpec) models.WorkflowDoc {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ts := now().Format(timestampLayout)

	agents := make([]models.WorkflowAgent, 0, len(team))
	for i, spec := range team {
		msg := ParticipantMessage(spec)
		if i == 0 {
			msg += CoordinatorBlock(team[1:])
		}
		agents = append(agents, records.WorkflowAgent(spec, msg, ts))
	}

	return models.WorkflowDoc{
		Name:        a.Name,
		Description: a.Description,
		Sender: models.Sender{
			Type: "userproxy",
			Config: models.UserProxyConfig{
				Name:                    "userproxy",
				LLMConfig:               false,
				HumanInputMode:          records.HumanInputMode,
				MaxConsecutiveAutoReply: 5,
				SystemMessage:           "You are a helpful assistant.",
				CodeExecutionConfig:     models.CodeExecutionConfig{WorkDir: nil, UseDocker: false},
				DefaultAutoReply:        "",
			},
			Timestamp: ts,
			UserID:    records.DefaultUserID,
		},
		Receiver: models.Receiver{
			Type: "groupchat",
			Config: models.AssistantConfig{
				Name: ManagerName,
				LLMConfig: models.LLMConfig{
					ConfigList:  []models.ModelRef{{Model: a.Model}},
					Temperature: a.Temperature,
					Timeout:     a.Timeout,
					CacheSeed:   records.CacheSeed,
				},
				HumanInputMode:          records.HumanInputMode,
				MaxConsecutiveAutoReply: 10,
				SystemMessage:           "Group chat manager",
			},
			GroupChatConfig: models.GroupChatConfig{
				Agents:                 agents,
				AdminName:              AdminName,
				Messages:               []string{},
				MaxRound:               MaxRound,
				SpeakerSelectionMethod: SpeakerSelectionMethod,
				AllowRepeatSpeaker:     true,
			},
			Timestamp: ts,
			UserID:    records.DefaultUserID,
		},
		Type:          "groupchat",
		UserID:        records.DefaultUserID,
		Timestamp:     ts,
		SummaryMethod: SummaryMethod,
	}
}

// ParticipantMessage is the persona line plus, when the agent has skills,
// a hint on how to invoke them.
func ParticipantMessage(spec models.AgentSpec) string {
	msg := records.SystemMessage(spec) + "\n"
	if len(spec.Skills) > 0 {
		msg += fmt.Sprintf("You have access to the following skills: %s.\n", strings.Join(spec.Skills, ", "))
		msg += fmt.Sprintf("To use a skill, simply mention its name in your response.  For example, if you want to use the '%s' skill, you could say 'I will use the %s skill to ...'.", spec.Skills[0], spec.Skills[0])
	}
	return msg
}

// CoordinatorBlock is appended to the first agent's message. It names the
// remaining agents by slug and asks for the termination token.
func CoordinatorBlock(others []models.AgentSpec) string {
	slugs := make([]string, 0, len(others))
	for _, o := range others {
		slugs = append(slugs, o.Slug())
	}
	return fmt.Sprintf(`
You are the primary coordinator responsible for integrating suggestions and advice from the following agents: %s. Your role is to ensure that the final response to the user incorporates these perspectives comprehensively.
YOUR FINAL RESPONSE MUST DELIVER A COMPLETE RESOLUTION TO THE USER'S REQUEST.
Once the user's request is fully addressed with all aspects considered, conclude your interaction with the command: %s.
`, strings.Join(slugs, ", "), TerminateToken)
}
