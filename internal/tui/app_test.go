package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/mpataki/teamforge/internal/discussion"
	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/orchestrator"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRunListNavigation(t *testing.T) {
	a := NewApp(context.Background(), nil)
	a.runs = []*models.Run{
		{ID: 2, Request: "second", Status: models.RunStatusComplete, CreatedAt: time.Now()},
		{ID: 1, Request: "first", Status: models.RunStatusFailed, CreatedAt: time.Now()},
	}

	a.Update(key("j"))
	assert.Equal(t, 1, a.selectedIdx)
	a.Update(key("j"))
	assert.Equal(t, 1, a.selectedIdx)
	a.Update(key("k"))
	assert.Equal(t, 0, a.selectedIdx)

	view := a.View()
	assert.Contains(t, view, "TeamForge")
	assert.Contains(t, view, "second")
}

func TestNewRunInputCancel(t *testing.T) {
	a := NewApp(context.Background(), nil)

	a.Update(key("n"))
	assert.Equal(t, ViewNewRun, a.view)
	assert.Equal(t, inputRequest, a.inputMode)

	a.Update(key("esc"))
	assert.Equal(t, ViewRunList, a.view)
	assert.Equal(t, inputNone, a.inputMode)
}

func TestUserInputIsQueuedOnSession(t *testing.T) {
	a := NewApp(context.Background(), nil)
	a.view = ViewRunDetail
	a.selectedRun = &models.Run{ID: 1}
	a.session = &orchestrator.Session{
		Team: models.Team{{Name: "Chef", Description: "cooks"}},
		Log:  discussion.NewLog(),
	}

	a.Update(key("i"))
	assert.Equal(t, inputUserInput, a.inputMode)
	a.Update(key("less salt"))
	a.Update(key("enter"))

	assert.Equal(t, inputNone, a.inputMode)
	assert.Equal(t, "less salt", a.session.UserInput)
	assert.Contains(t, a.View(), "less salt")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b", truncate("a\nb", 10))
	assert.Equal(t, "héll...", truncate("héllo wörld", 7))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m5s", formatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h10m", formatDuration(2*time.Hour+10*time.Minute))
}
