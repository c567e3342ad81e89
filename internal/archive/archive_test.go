package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/records"
	"github.com/mpataki/teamforge/internal/workflow"
)

type fakeSkills struct {
	files map[string]string
	data  map[string][]byte
	fail  map[string]bool
	reads map[string]int
}

func (f *fakeSkills) Lookup(name string) (string, bool) {
	file, ok := f.files[name]
	return file, ok
}

func (f *fakeSkills) ReadSource(name string) ([]byte, error) {
	if f.reads == nil {
		f.reads = map[string]int{}
	}
	f.reads[name]++
	if f.fail[name] {
		return nil, errors.New("permission denied")
	}
	return f.data[name], nil
}

func newFakeSkills() *fakeSkills {
	return &fakeSkills{
		files: map[string]string{"fetch_web_content": "fetch_web_content.py", "plot_diagram": "plot_diagram.py"},
		data: map[string][]byte{
			"fetch_web_content": []byte("def fetch_web_content(url): ..."),
			"plot_diagram":      []byte("def plot_diagram(): ..."),
		},
	}
}

func testInputs(team []models.AgentSpec) ([]models.AssistantRecord, models.WorkflowDoc, []models.CrewRecord) {
	assistants, crews := records.BuildAll(team)
	a := workflow.NewAssembler("mistral:instruct", 0.2, 1200)
	a.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return assistants, a.Assemble(team), crews
}

func readZip(t *testing.T, data []byte) (names []string, files map[string][]byte) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files = map[string][]byte{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = b
	}
	return names, files
}

func TestPackageLayout(t *testing.T) {
	team := []models.AgentSpec{
		{Name: "Project Manager", Description: "leads", Skills: []string{"plot_diagram"}},
		{Name: "Web Researcher", Description: "reads", Skills: []string{"fetch_web_content", "unknown_skill"}},
		{Name: "Analyst", Description: "charts", Skills: []string{"fetch_web_content"}},
	}
	skills := newFakeSkills()

	bundle, err := New(skills, nil).Package(testInputs(team))
	require.NoError(t, err)

	names, files := readZip(t, bundle.Assistant)
	assert.Equal(t, []string{
		"agents/project_manager.json",
		"agents/web_researcher.json",
		"agents/analyst.json",
		"skills/fetch_web_content.py",
		"skills/plot_diagram.py",
		"workflows/teamforge_workflow.json",
	}, names)
	assert.Equal(t, 1, skills.reads["fetch_web_content"])
	assert.Equal(t, "def plot_diagram(): ...", string(files["skills/plot_diagram.py"]))

	var rec models.AssistantRecord
	require.NoError(t, json.Unmarshal(files["agents/web_researcher.json"], &rec))
	assert.Equal(t, "Web Researcher", rec.Config.Name)
	assert.Contains(t, string(files["agents/web_researcher.json"]), "\n  \"type\": \"assistant\"")

	crewNames, crewFiles := readZip(t, bundle.Crew)
	assert.Equal(t, []string{"agents/agent_0.json", "agents/agent_1.json", "agents/agent_2.json"}, crewNames)
	var crew models.CrewRecord
	require.NoError(t, json.Unmarshal(crewFiles["agents/agent_2.json"], &crew))
	assert.Equal(t, "Analyst", crew.Name)
	assert.True(t, crew.AllowDelegation)
}

func TestPackageIsReproducible(t *testing.T) {
	team := []models.AgentSpec{
		{Name: "Lead", Description: "leads", Skills: []string{"fetch_web_content"}},
		{Name: "Dev", Description: "codes"},
	}
	first, err := New(newFakeSkills(), nil).Package(testInputs(team))
	require.NoError(t, err)
	second, err := New(newFakeSkills(), nil).Package(testInputs(team))
	require.NoError(t, err)

	assert.Equal(t, first.Assistant, second.Assistant)
	assert.Equal(t, first.Crew, second.Crew)
}

func TestPackageDuplicateSlugs(t *testing.T) {
	team := []models.AgentSpec{
		{Name: "Data Analyst", Description: "a"},
		{Name: "data analyst", Description: "b"},
		{Name: "Data  Analyst", Description: "c"},
		{Name: "DATA ANALYST", Description: "d"},
	}
	bundle, err := New(nil, nil).Package(testInputs(team))
	require.NoError(t, err)

	names, _ := readZip(t, bundle.Assistant)
	assert.Equal(t, []string{
		"agents/data_analyst.json",
		"agents/data_analyst_2.json",
		"agents/data__analyst.json",
		"agents/data_analyst_3.json",
		"workflows/teamforge_workflow.json",
	}, names)
}

func TestPackagePathSafeNames(t *testing.T) {
	team := []models.AgentSpec{
		{Name: "UI/UX Designer", Description: "a"},
		{Name: "../../../escaped", Description: "b"},
		{Name: `Ops\Lead`, Description: "c"},
		{Name: "UI_UX Designer", Description: "d"},
	}
	bundle, err := New(nil, nil).Package(testInputs(team))
	require.NoError(t, err)

	names, _ := readZip(t, bundle.Assistant)
	assert.Equal(t, []string{
		"agents/ui_ux_designer.json",
		"agents/_.._.._escaped.json",
		"agents/ops_lead.json",
		"agents/ui_ux_designer_2.json",
		"workflows/teamforge_workflow.json",
	}, names)
	for _, n := range names {
		assert.NotContains(t, n, "../")
	}
}

func TestPackageUnreadableSkillIsFatal(t *testing.T) {
	skills := newFakeSkills()
	skills.fail = map[string]bool{"plot_diagram": true}

	team := []models.AgentSpec{{Name: "Lead", Description: "x", Skills: []string{"plot_diagram"}}}
	_, err := New(skills, nil).Package(testInputs(team))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plot_diagram")
}

func TestPackageEmptyTeam(t *testing.T) {
	bundle, err := New(nil, nil).Package(testInputs(nil))
	require.NoError(t, err)

	names, _ := readZip(t, bundle.Assistant)
	assert.Equal(t, []string{"workflows/teamforge_workflow.json"}, names)

	crewNames, _ := readZip(t, bundle.Crew)
	assert.Empty(t, crewNames)
}
