package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fetch_web_content.py", "def fetch_web_content(url): pass\n")
	writeFile(t, dir, "fetch_web_content.lua", "function skill(input) return input end\n")
	writeFile(t, dir, "word_count.lua", "function skill(input) return '1' end\n")
	writeFile(t, dir, "_helpers.py", "")
	writeFile(t, dir, ".hidden", "")
	writeFile(t, dir, ManifestName, "skills:\n  word_count:\n    description: Counts words\n  ghost:\n    description: not on disk\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	r, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch_web_content", "word_count"}, r.Names())

	file, ok := r.Lookup("fetch_web_content")
	require.True(t, ok)
	assert.Equal(t, "fetch_web_content.py", file)

	script, ok := r.ScriptPath("fetch_web_content")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "fetch_web_content.lua"), script)

	file, ok = r.Lookup("word_count")
	require.True(t, ok)
	assert.Equal(t, "word_count.lua", file)

	s, ok := r.Get("word_count")
	require.True(t, ok)
	assert.Equal(t, "Counts words", s.Description)

	data, err := r.ReadSource("fetch_web_content")
	require.NoError(t, err)
	assert.Contains(t, string(data), "def fetch_web_content")

	_, ok = r.Lookup("ghost")
	assert.False(t, ok)
	_, err = r.ReadSource("ghost")
	assert.ErrorIs(t, err, ErrUnknownSkill)
}

func TestLoadMissingDir(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, r.Names())
}

func TestLoadBadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, "skills: [unclosed")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestScriptPathWithoutLua(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plot_diagram.py", "")
	r, err := Load(dir)
	require.NoError(t, err)

	_, ok := r.ScriptPath("plot_diagram")
	assert.False(t, ok)
}
