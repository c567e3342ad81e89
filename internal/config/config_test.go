package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OLLAMA_HOST", "TEAMFORGE_OLLAMA_URL", "TEAMFORGE_MODEL", "TEAMFORGE_TEMPERATURE", "TEAMFORGE_THROTTLE", "TEAMFORGE_SKILLS_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TEAMFORGE_DATA_DIR", dir)

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, dir, c.DataDir)
	assert.Equal(t, filepath.Join(dir, "teamforge.db"), c.DBPath)
	assert.Equal(t, DefaultOllamaURL, c.OllamaURL)
	assert.Equal(t, DefaultModel, c.Model)
	assert.InDelta(t, 0.2, c.Temperature, 1e-9)
	assert.Equal(t, 1200, c.AgentTimeout)
	assert.Equal(t, 120*time.Second, c.RequestTimeout)
	assert.Equal(t, 2*time.Second, c.Throttle)
	assert.Equal(t, 3, c.MaxRetries)
	require.NoError(t, c.Validate())
}

func TestFileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TEAMFORGE_DATA_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`
ollama_url: http://gpu-box:11434
model: llama3:8b
temperature: 0
throttle: 500ms
retry_delay: 1s
`), 0644))

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", c.OllamaURL)
	assert.Equal(t, "llama3:8b", c.Model)
	assert.Equal(t, 0.0, c.Temperature)
	assert.Equal(t, 500*time.Millisecond, c.Throttle)
	assert.Equal(t, time.Second, c.RetryDelay)

	t.Setenv("TEAMFORGE_MODEL", "phi3")
	t.Setenv("TEAMFORGE_THROTTLE", "0s")
	c, err = New()
	require.NoError(t, err)
	assert.Equal(t, "phi3", c.Model)
	assert.Equal(t, time.Duration(0), c.Throttle)
}

func TestOllamaHost(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEAMFORGE_DATA_DIR", t.TempDir())
	t.Setenv("OLLAMA_HOST", "127.0.0.1:11500")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:11500", c.OllamaURL)

	t.Setenv("TEAMFORGE_OLLAMA_URL", "http://other:1")
	c, err = New()
	require.NoError(t, err)
	assert.Equal(t, "http://other:1", c.OllamaURL)
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TEAMFORGE_DATA_DIR", dir)

	t.Setenv("TEAMFORGE_TEMPERATURE", "hot")
	_, err := New()
	assert.Error(t, err)
	os.Unsetenv("TEAMFORGE_TEMPERATURE")

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("throttle: soon\n"), 0644))
	_, err = New()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := &Config{Temperature: 1.5, MaxRetries: 1}
	assert.Error(t, c.Validate())
	c = &Config{Temperature: 0.5, MaxRetries: 0}
	assert.Error(t, c.Validate())
}

func TestEnsureDataDir(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("TEAMFORGE_DATA_DIR", dir)

	c, err := New()
	require.NoError(t, err)
	require.NoError(t, c.EnsureDataDir())
	assert.DirExists(t, c.WorkspacesDir())
	assert.DirExists(t, c.DiscussionsDir())
	assert.DirExists(t, c.SkillsDir)
}
