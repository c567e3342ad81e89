package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/orchestrator"
)

type View int

const (
	ViewRunList View = iota
	ViewRunDetail
	ViewNewRun
	ViewDiscussion
)

type inputMode int

const (
	inputNone inputMode = iota
	inputRequest
	inputUserInput
)

type App struct {
	orchestrator *orchestrator.Orchestrator
	ctx          context.Context

	view         View
	runs         []*models.Run
	selectedIdx  int
	selectedRun  *models.Run
	session      *orchestrator.Session
	interactions []*models.Interaction
	agentIdx     int

	input     textinput.Model
	inputMode inputMode
	spinner   spinner.Model
	busy      string
	viewport  viewport.Model
	status    string

	width  int
	height int
	err    error
}

func NewApp(ctx context.Context, orch *orchestrator.Orchestrator) *App {
	ti := textinput.New()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusRunning

	return &App{
		orchestrator: orch,
		ctx:          ctx,
		view:         ViewRunList,
		input:        ti,
		spinner:      sp,
		viewport:     viewport.New(80, 20),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadRuns, a.tickCmd())
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) hasRunningRuns() bool {
	for _, run := range a.runs {
		if run.Status == models.RunStatusRunning {
			return true
		}
	}
	return false
}

type tickMsg time.Time

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-4, 5)
		a.input.Width = max(msg.Width-4, 20)
		return a, nil

	case spinner.TickMsg:
		if a.busy == "" {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) {
			a.selectedIdx = max(len(a.runs)-1, 0)
		}
		return a, nil

	case tickMsg:
		if a.view == ViewRunList && a.hasRunningRuns() {
			return a, tea.Batch(a.loadRuns, a.tickCmd())
		}
		return a, a.tickCmd()

	case runDetailMsg:
		a.err = msg.err
		if msg.err == nil {
			a.selectedRun = msg.run
			a.session = msg.session
			a.interactions = msg.interactions
			if a.agentIdx >= len(a.session.Team) {
				a.agentIdx = max(len(a.session.Team)-1, 0)
			}
			a.view = ViewRunDetail
		}
		return a, nil

	case pipelineDoneMsg:
		a.busy = ""
		if msg.err != nil {
			a.err = msg.err
			a.view = ViewRunList
			return a, a.loadRuns
		}
		a.status = fmt.Sprintf("generated %d agents", len(msg.result.Team))
		return a, tea.Batch(a.loadRuns, a.loadRunDetail(msg.result.Run.ID))

	case opDoneMsg:
		a.busy = ""
		a.err = msg.err
		if msg.err == nil {
			a.status = msg.status
		}
		if a.selectedRun != nil {
			return a, a.refreshDetail(a.selectedRun.ID)
		}
		return a, nil

	case runDeletedMsg:
		a.err = msg.err
		if a.selectedIdx >= len(a.runs)-1 && a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.inputMode != inputNone {
		return a.handleInputKey(msg)
	}
	if a.busy != "" {
		return a, nil
	}

	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewRunDetail:
		return a.handleRunDetailKey(msg)
	case ViewDiscussion:
		return a.handleDiscussionKey(msg)
	}
	return a, nil
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			a.agentIdx = 0
			return a, a.loadRunDetail(a.runs[a.selectedIdx].ID)
		}

	case "n":
		a.view = ViewNewRun
		return a, a.startInput(inputRequest, "Describe what the team should do")

	case "r":
		return a, a.loadRuns

	case "d":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.deleteRun(a.runs[a.selectedIdx].ID)
		}
	}

	return a, nil
}

func (a *App) handleRunDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunList
		a.selectedRun = nil
		a.session = nil
		a.interactions = nil
		a.agentIdx = 0
		a.status = ""
		return a, a.loadRuns

	case "up", "k":
		if a.agentIdx > 0 {
			a.agentIdx--
		}

	case "down", "j":
		if a.session != nil && a.agentIdx < len(a.session.Team)-1 {
			a.agentIdx++
		}

	case "enter", "a":
		if a.hasAgent() {
			return a, a.ask(a.agentIdx)
		}

	case "i":
		if a.hasAgent() {
			return a, a.startInput(inputUserInput, "Additional input for the next agent")
		}

	case "c":
		if a.hasAgent() {
			return a, a.autoChat()
		}

	case "f":
		if a.hasAgent() {
			return a, a.refine(a.agentIdx)
		}

	case "x":
		if a.hasAgent() {
			return a, a.removeAgent(a.agentIdx)
		}

	case "v":
		if a.session != nil {
			a.viewport.SetContent(a.renderDiscussion())
			a.viewport.GotoBottom()
			a.view = ViewDiscussion
		}
	}

	return a, nil
}

func (a *App) handleDiscussionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunDetail
		return a, nil
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		mode := a.inputMode
		a.stopInput()
		if mode == inputRequest {
			a.view = ViewRunList
		}
		return a, nil

	case "enter":
		value := strings.TrimSpace(a.input.Value())
		mode := a.inputMode
		a.stopInput()
		switch mode {
		case inputRequest:
			if value == "" {
				a.view = ViewRunList
				return a, nil
			}
			return a, a.runPipeline(value)
		case inputUserInput:
			a.session.UserInput = value
			if value != "" {
				a.status = "input queued for next ask"
			}
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) hasAgent() bool {
	return a.session != nil && a.agentIdx < len(a.session.Team)
}

func (a *App) startInput(mode inputMode, placeholder string) tea.Cmd {
	a.inputMode = mode
	a.input.Reset()
	a.input.Placeholder = placeholder
	return a.input.Focus()
}

func (a *App) stopInput() {
	a.inputMode = inputNone
	a.input.Blur()
}

func (a *App) startBusy(label string) tea.Cmd {
	a.busy = label
	a.err = nil
	a.status = ""
	return a.spinner.Tick
}

// renderDiscussion renders the history as markdown, falling back to plain
// text when the renderer fails.
func (a *App) renderDiscussion() string {
	history := a.session.Log.History()
	if history == "" {
		return dimStyle.Render("(no discussion yet)")
	}

	width := a.width
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return history
	}
	out, err := r.Render(history)
	if err != nil {
		return history
	}
	return out
}

// Messages

type runsLoadedMsg struct {
	runs []*models.Run
	err  error
}

type runDetailMsg struct {
	run          *models.Run
	session      *orchestrator.Session
	interactions []*models.Interaction
	err          error
}

type pipelineDoneMsg struct {
	result *orchestrator.Result
	err    error
}

type opDoneMsg struct {
	status string
	err    error
}

type runDeletedMsg struct {
	runID int64
	err   error
}

// Commands

func (a *App) loadRuns() tea.Msg {
	runs, err := a.orchestrator.ListRuns(20)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) loadRunDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		run, err := a.orchestrator.GetRun(id)
		if err != nil {
			return runDetailMsg{err: err}
		}
		sess, err := a.orchestrator.LoadSession(id)
		if err != nil {
			return runDetailMsg{err: err}
		}
		ins, err := a.orchestrator.GetInteractions(id)
		return runDetailMsg{run: run, session: sess, interactions: ins, err: err}
	}
}

// refreshDetail reloads the run and its interactions but keeps the live
// session, which holds unsaved state such as queued user input.
func (a *App) refreshDetail(id int64) tea.Cmd {
	sess := a.session
	return func() tea.Msg {
		run, err := a.orchestrator.GetRun(id)
		if err != nil {
			return runDetailMsg{err: err}
		}
		ins, err := a.orchestrator.GetInteractions(id)
		return runDetailMsg{run: run, session: sess, interactions: ins, err: err}
	}
}

func (a *App) runPipeline(request string) tea.Cmd {
	sess := a.orchestrator.NewSession()
	run := func() tea.Msg {
		res, err := a.orchestrator.Run(a.ctx, sess, request)
		return pipelineDoneMsg{result: res, err: err}
	}
	return tea.Batch(a.startBusy("generating team"), run)
}

func (a *App) ask(idx int) tea.Cmd {
	sess := a.session
	name := sess.Team[idx].Name
	run := func() tea.Msg {
		_, err := a.orchestrator.Ask(a.ctx, sess, idx, nil)
		return opDoneMsg{status: name + " responded", err: err}
	}
	return tea.Batch(a.startBusy("asking "+name), run)
}

func (a *App) autoChat() tea.Cmd {
	sess := a.session
	run := func() tea.Msg {
		res, err := a.orchestrator.AutoChat(a.ctx, sess, orchestrator.ChatOptions{StopOnTerminate: true})
		if err != nil {
			return opDoneMsg{err: err}
		}
		status := fmt.Sprintf("chat finished after %d turns", res.Turns)
		if res.Terminated {
			status += " (terminated)"
		}
		return opDoneMsg{status: status}
	}
	return tea.Batch(a.startBusy("team chat in progress"), run)
}

func (a *App) refine(idx int) tea.Cmd {
	sess := a.session
	name := sess.Team[idx].Name
	run := func() tea.Msg {
		_, err := a.orchestrator.Refine(a.ctx, sess, idx)
		return opDoneMsg{status: "refined " + name, err: err}
	}
	return tea.Batch(a.startBusy("refining "+name), run)
}

func (a *App) removeAgent(idx int) tea.Cmd {
	sess := a.session
	name := sess.Team[idx].Name
	if a.agentIdx > 0 && a.agentIdx >= len(sess.Team)-1 {
		a.agentIdx--
	}
	return func() tea.Msg {
		err := a.orchestrator.RemoveAgent(sess, idx)
		return opDoneMsg{status: "removed " + name, err: err}
	}
}

func (a *App) deleteRun(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := a.orchestrator.DeleteRun(id); err != nil {
			return runDeletedMsg{err: err}
		}
		return runDeletedMsg{runID: id}
	}
}

func errorLine(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}
	return statusFailed.Render(fmt.Sprintf("Error: %v", err)) + "\n"
}
