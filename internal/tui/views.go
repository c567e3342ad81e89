package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewRunDetail:
		return a.viewRunDetail()
	case ViewNewRun:
		return a.viewNewRun()
	case ViewDiscussion:
		return a.viewDiscussion()
	}
	return ""
}

func (a *App) viewRunList() string {
	s := titleStyle.Render("TeamForge") + "\n\n"
	s += errorLine(a.err)

	if len(a.runs) == 0 {
		s += "No runs yet. Press 'n' to create one.\n"
	} else {
		s += "Recent Runs\n"
		s += "───────────\n"

		for i, run := range a.runs {
			line := formatRunLine(run)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else if run.Status != models.RunStatusRunning {
				line = "  " + dimStyle.Render(line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] open  [n] new  [d] delete  [r] refresh  [q] quit")
	return s
}

func formatRunLine(run *models.Run) string {
	return fmt.Sprintf("#%-3d %s  %-8s  %2d agents  %s",
		run.ID, formatStatus(run.Status), storage.FormatTimeAgo(run.CreatedAt), len(run.Team), truncate(run.Request, 40))
}

func formatStatus(status models.RunStatus) string {
	switch status {
	case models.RunStatusRunning:
		return statusRunning.Render("● running ")
	case models.RunStatusComplete:
		return statusComplete.Render("✓ complete")
	case models.RunStatusFailed:
		return statusFailed.Render("✗ failed  ")
	default:
		return string(status)
	}
}

func (a *App) viewRunDetail() string {
	if a.selectedRun == nil || a.session == nil {
		return "No run selected"
	}
	run := a.selectedRun

	s := titleStyle.Render(fmt.Sprintf("Run #%d", run.ID)) + "  " + formatStatus(run.Status) + "\n\n"
	s += run.Request + "\n\n"
	if run.Rephrased != "" && run.Rephrased != run.Request {
		s += labelStyle.Render("Rephrased: ") + run.Rephrased + "\n"
	}
	if run.Error != "" {
		s += labelStyle.Render("Error: ") + statusFailed.Render(run.Error) + "\n"
	}
	s += labelStyle.Render("Workspace: ") + dimStyle.Render(run.WorkspacePath) + "\n\n"

	s += "Team\n"
	s += "────\n"
	if len(a.session.Team) == 0 {
		s += "(no agents)\n"
	}
	for i, agent := range a.session.Team {
		line := fmt.Sprintf("%-24s %s", truncate(agent.Name, 24), truncate(agent.Description, 50))
		if len(agent.Skills) > 0 {
			line += dimStyle.Render("  [" + strings.Join(agent.Skills, ", ") + "]")
		}
		if i == a.agentIdx {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	s += "\n" + a.viewInteractions()

	if wb := a.session.Log.Whiteboard(); wb != "" {
		s += "\n" + labelStyle.Render("Whiteboard") + "\n" + dimStyle.Render(truncate(wb, 400)) + "\n"
	}

	s += "\n" + a.viewFooter()
	s += helpStyle.Render("[↑/↓] select  [a] ask  [i] input  [c] chat  [f] refine  [x] remove  [v] discussion  [esc] back")
	return s
}

func (a *App) viewInteractions() string {
	s := "Interactions\n"
	s += "────────────\n"
	if len(a.interactions) == 0 {
		return s + "(none yet)\n"
	}

	start := max(len(a.interactions)-8, 0)
	for _, in := range a.interactions[start:] {
		status := "○"
		switch in.Status {
		case models.InteractionComplete:
			status = statusComplete.Render("✓")
		case models.InteractionRunning:
			status = statusRunning.Render("●")
		case models.InteractionFailed:
			status = statusFailed.Render("✗")
		}

		duration := ""
		if in.StartedAt != nil && in.CompletedAt != nil {
			duration = dimStyle.Render(formatDuration(in.CompletedAt.Sub(*in.StartedAt)))
		}
		s += fmt.Sprintf("  %3d. %-20s %s  %6s\n", in.SequenceNum, truncate(in.AgentName, 20), status, duration)
	}
	return s
}

func (a *App) viewFooter() string {
	s := ""
	switch {
	case a.inputMode != inputNone:
		s += a.input.View() + "\n"
	case a.busy != "":
		s += a.spinner.View() + " " + a.busy + "...\n"
	case a.err != nil:
		s += errorLine(a.err)
	case a.status != "":
		s += statusComplete.Render(a.status) + "\n"
	}
	if a.session != nil && a.session.UserInput != "" && a.inputMode == inputNone {
		s += labelStyle.Render("Queued input: ") + truncate(a.session.UserInput, 60) + "\n"
	}
	return s
}

func (a *App) viewNewRun() string {
	s := titleStyle.Render("New Run") + "\n\n"
	s += "What should the team work on?\n\n"
	s += a.viewFooter()
	s += "\n" + helpStyle.Render("[enter] generate  [esc] cancel")
	return s
}

func (a *App) viewDiscussion() string {
	title := "Discussion"
	if a.session != nil && a.session.DiscussionName != "" {
		title += " " + dimStyle.Render(a.session.DiscussionName)
	}
	return titleStyle.Render(title) + "\n" +
		a.viewport.View() + "\n" +
		helpStyle.Render(fmt.Sprintf("%3.f%%  [↑/↓] scroll  [esc] back", a.viewport.ScrollPercent()*100))
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
