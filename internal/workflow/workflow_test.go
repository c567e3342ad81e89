package workflow

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/teamforge/internal/models"
)

func fixedAssembler() *Assembler {
	a := NewAssembler("mistral:instruct", 0.2, 1200)
	a.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return a
}

func testTeam() []models.AgentSpec {
	return []models.AgentSpec{
		{Name: "Project Manager", Description: "runs\tthe project", Model: "mistral:instruct", Temperature: 0.2, Timeout: 1200},
		{Name: "Web Researcher", Description: "finds facts", Skills: []string{"fetch_web_content"}, Model: "mistral:instruct"},
		{Name: "QA Engineer", Description: "tests things", Model: "mistral:instruct"},
	}
}

func TestAssembleScaffold(t *testing.T) {
	doc := fixedAssembler().Assemble(testTeam())

	assert.Equal(t, DefaultName, doc.Name)
	assert.Equal(t, "groupchat", doc.Type)
	assert.Equal(t, "last", doc.SummaryMethod)
	assert.Equal(t, "2024-05-01T12:30:00.000000", doc.Timestamp)

	assert.Equal(t, "userproxy", doc.Sender.Type)
	assert.Equal(t, "userproxy", doc.Sender.Config.Name)
	assert.False(t, doc.Sender.Config.LLMConfig)

	gc := doc.Receiver.GroupChatConfig
	assert.Equal(t, "group_chat_manager", doc.Receiver.Config.Name)
	assert.Equal(t, "Admin", gc.AdminName)
	assert.Equal(t, 10, gc.MaxRound)
	assert.Equal(t, "auto", gc.SpeakerSelectionMethod)
	assert.True(t, gc.AllowRepeatSpeaker)
	assert.Empty(t, gc.Messages)
	require.Len(t, gc.Agents, 3)
}

func TestAssembleCoordinator(t *testing.T) {
	doc := fixedAssembler().Assemble(testTeam())
	agents := doc.Receiver.GroupChatConfig.Agents

	coord := agents[0].Config.SystemMessage
	assert.True(t, strings.HasPrefix(coord, "You are a helpful assistant that can act as Project Manager who runsthe project.\n"))
	assert.Contains(t, coord, "following agents: web_researcher, qa_engineer.")
	assert.Contains(t, coord, "TERMINATE")

	for _, a := range agents[1:] {
		assert.NotContains(t, a.Config.SystemMessage, "TERMINATE")
		assert.NotContains(t, a.Config.SystemMessage, "primary coordinator")
	}
}

func TestAssembleSkillHint(t *testing.T) {
	doc := fixedAssembler().Assemble(testTeam())
	agents := doc.Receiver.GroupChatConfig.Agents

	assert.Equal(t, "web_researcher", agents[1].Config.Name)
	assert.Contains(t, agents[1].Config.SystemMessage, "You have access to the following skills: fetch_web_content.")
	assert.Equal(t, []string{"fetch_web_content"}, agents[1].Skills)

	assert.NotContains(t, agents[2].Config.SystemMessage, "You have access to the following skills")
}

func TestAssembleSingleAgentCoordinator(t *testing.T) {
	doc := fixedAssembler().Assemble(testTeam()[:1])
	agents := doc.Receiver.GroupChatConfig.Agents
	require.Len(t, agents, 1)
	assert.Contains(t, agents[0].Config.SystemMessage, "TERMINATE")
}

func TestAssembleEmptyTeam(t *testing.T) {
	doc := fixedAssembler().Assemble(nil)
	assert.NotNil(t, doc.Receiver.GroupChatConfig.Agents)
	assert.Empty(t, doc.Receiver.GroupChatConfig.Agents)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agents":[]`)
}

func TestAssembleDeterministic(t *testing.T) {
	a := fixedAssembler()
	first, err := json.Marshal(a.Assemble(testTeam()))
	require.NoError(t, err)
	second, err := json.Marshal(a.Assemble(testTeam()))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWorkflowJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(fixedAssembler().Assemble(testTeam()))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	receiver := raw["receiver"].(map[string]any)
	assert.Contains(t, receiver, "groupchat_config")
	sender := raw["sender"].(map[string]any)
	cfg := sender["config"].(map[string]any)
	assert.Equal(t, false, cfg["llm_config"])
	exec := cfg["code_execution_config"].(map[string]any)
	assert.Nil(t, exec["work_dir"])
}
