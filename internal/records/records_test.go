package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/teamforge/internal/models"
)

var testSettings = Settings{Model: "mistral:instruct", Temperature: 0.2, Timeout: 1200}

func TestBuild(t *testing.T) {
	spec := NewSpec("Data Scientist", "Builds\tmodels\nfrom data",
		[]string{"fetch_web_content", "bad\x00skill"}, []string{"Python"}, testSettings)

	a, c := Build(spec)

	assert.Equal(t, "assistant", a.Type)
	assert.Equal(t, "Data Scientist", a.Config.Name)
	assert.Equal(t, "NEVER", a.Config.HumanInputMode)
	assert.Equal(t, 8, a.Config.MaxConsecutiveAutoReply)
	assert.Equal(t, "You are a helpful assistant that can act as Data Scientist who Buildsmodelsfrom data.", a.Config.SystemMessage)
	assert.Equal(t, []models.ModelRef{{Model: "mistral:instruct"}}, a.Config.LLMConfig.ConfigList)
	assert.InDelta(t, 0.2, a.Config.LLMConfig.Temperature, 1e-9)
	assert.Equal(t, 1200, a.Config.LLMConfig.Timeout)
	assert.Equal(t, 42, a.Config.LLMConfig.CacheSeed)

	// display fields keep the unsanitized text
	assert.Equal(t, "Builds\tmodels\nfrom data", a.Description)
	assert.Equal(t, "Builds\tmodels\nfrom data", c.Description)

	assert.Equal(t, []string{"fetch_web_content", "badskill"}, a.Skills)
	assert.Equal(t, []string{"Python"}, a.Tools)

	assert.Equal(t, "Data Scientist", c.Name)
	assert.Equal(t, a.Skills, c.Skills)
	assert.Equal(t, a.Tools, c.Tools)
	assert.True(t, c.Verbose)
	assert.True(t, c.AllowDelegation)
}

func TestBuildEmptyListsSerializeAsArrays(t *testing.T) {
	a, c := Build(NewSpec("Solo", "works alone", nil, nil, testSettings))

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"skills":[]`)
	assert.Contains(t, string(data), `"tools":[]`)

	data, err = json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"skills":[]`)
	assert.Contains(t, string(data), `"tools":[]`)
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	skills := []string{"one"}
	spec := NewSpec("A", "b", skills, nil, testSettings)
	a, c := Build(spec)

	a.Skills[0] = "changed"
	assert.Equal(t, "one", skills[0])
	assert.Equal(t, "one", c.Skills[0])
}

func TestBuildIsDeterministic(t *testing.T) {
	spec := NewSpec("Writer", "writes", []string{"s"}, []string{"t"}, testSettings)
	a1, c1 := Build(spec)
	a2, c2 := Build(spec)
	assert.Equal(t, a1, a2)
	assert.Equal(t, c1, c2)
}

func TestBuildAllPreservesOrder(t *testing.T) {
	team := []models.AgentSpec{
		NewSpec("First", "a", nil, nil, testSettings),
		NewSpec("Second", "b", nil, nil, testSettings),
	}
	assistants, crews := BuildAll(team)
	require.Len(t, assistants, 2)
	require.Len(t, crews, 2)
	assert.Equal(t, "First", assistants[0].Config.Name)
	assert.Equal(t, "Second", crews[1].Name)
}

func TestWorkflowAgentUsesSlug(t *testing.T) {
	spec := NewSpec("Project Manager", "plans", []string{"x"}, nil, testSettings)
	w := WorkflowAgent(spec, "msg", "2024-01-01T00:00:00")

	assert.Equal(t, "project_manager", w.Config.Name)
	assert.Equal(t, "msg", w.Config.SystemMessage)
	assert.Equal(t, "default", w.UserID)
	assert.Equal(t, []string{"x"}, w.Skills)
	assert.Equal(t, "2024-01-01T00:00:00", w.Timestamp)
}

func TestWorkflowAgentDoesNotAliasSkills(t *testing.T) {
	spec := NewSpec("Lead", "leads", []string{"fetch_web_content"}, nil, testSettings)
	w := WorkflowAgent(spec, "msg", "2024-01-01T00:00:00")

	spec.Skills[0] = "changed"
	assert.Equal(t, []string{"fetch_web_content"}, w.Skills)

	empty := WorkflowAgent(NewSpec("Solo", "works", nil, nil, testSettings), "msg", "")
	assert.NotNil(t, empty.Skills)
}
