// Package orchestrator drives the team pipeline and the discussions held
// with a generated team.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpataki/teamforge/internal/archive"
	"github.com/mpataki/teamforge/internal/discussion"
	"github.com/mpataki/teamforge/internal/generator"
	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/ollama"
	"github.com/mpataki/teamforge/internal/records"
	"github.com/mpataki/teamforge/internal/skills"
	"github.com/mpataki/teamforge/internal/storage"
	"github.com/mpataki/teamforge/internal/webcontent"
	"github.com/mpataki/teamforge/internal/workflow"
	"github.com/mpataki/teamforge/internal/workspace"
)

var (
	ErrNoRequest     = errors.New("request is empty")
	ErrNoAgents      = errors.New("no agents generated")
	ErrAgentNotFound = errors.New("agent not found")
)

// LLM is the model client. *ollama.Client satisfies it.
type LLM interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
	GenerateStream(ctx context.Context, req ollama.GenerateRequest) iter.Seq2[ollama.Chunk, error]
}

type Options struct {
	WorkspaceDir string
	Settings     generator.Settings
	MaxRetries   int
	RetryDelay   time.Duration
	SkillTimeout time.Duration

	Skills      *skills.Registry
	Discussions *discussion.Store
	Fetcher     *webcontent.Fetcher
	Logger      *slog.Logger
	Now         func() time.Time
}

type Orchestrator struct {
	storage *storage.Storage
	client  LLM
	opts    Options
	logger  *slog.Logger
}

func New(store *storage.Storage, client LLM, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = generator.DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = generator.DefaultRetryDelay
	}
	if opts.SkillTimeout <= 0 {
		opts.SkillTimeout = 30 * time.Second
	}
	return &Orchestrator{
		storage: store,
		client:  client,
		opts:    opts,
		logger:  opts.Logger.With("component", "orchestrator"),
	}
}

// NewSession starts an empty session using the default settings.
func (o *Orchestrator) NewSession() *Session {
	return NewSession(o.opts.Settings, discussion.DefaultName(o.opts.Now()))
}

// Packaged is everything derived from a team in one packaging pass.
type Packaged struct {
	Assistants []models.AssistantRecord
	Crews      []models.CrewRecord
	Workflow   models.WorkflowDoc
	Bundle     archive.Bundle
}

// Result describes a finished pipeline run.
type Result struct {
	Run       *models.Run
	Team      models.Team
	Packaged  *Packaged
	Workspace *workspace.Workspace
}

// Run executes rephrase, team generation, assembly and packaging. The
// session's team is replaced only when every step succeeds.
func (o *Orchestrator) Run(ctx context.Context, sess *Session, request string) (*Result, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, ErrNoRequest
	}

	run := &models.Run{
		TraceID: uuid.NewString(),
		Request: request,
		Model:   sess.Settings.Model,
		Status:  models.RunStatusRunning,
	}
	if _, err := o.storage.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	logger := o.logger.With("run_id", run.ID, "trace_id", run.TraceID)
	logger.Info("pipeline started", "model", run.Model)

	rephraser := generator.NewRephraser(o.client, sess.Settings, o.opts.Logger)
	rephraser.MaxRetries = o.opts.MaxRetries
	rephraser.RetryDelay = o.opts.RetryDelay

	rephrased, err := rephraser.Rephrase(ctx, request)
	if err != nil {
		return nil, o.failRun(run, fmt.Errorf("rephrase: %w", err))
	}
	run.Rephrased = rephrased
	logger.Debug("request rephrased", "rephrased", rephrased)

	team, err := generator.NewTeamGenerator(o.client, sess.Settings, o.opts.Logger).
		Generate(ctx, rephrased, o.skillNames())
	if err != nil {
		return nil, o.failRun(run, fmt.Errorf("generate team: %w", err))
	}
	if len(team) == 0 {
		return nil, o.failRun(run, ErrNoAgents)
	}

	res, err := o.finishRun(run, team, sess.Settings)
	if err != nil {
		return nil, err
	}

	sess.RunID = run.ID
	sess.Request = request
	sess.Rephrased = rephrased
	sess.Team = models.Team(team).Clone()
	sess.DiscussionName = RunDiscussionName(run.ID)

	logger.Info("pipeline complete", "agents", len(team), "workspace", res.Workspace.Path)
	return res, nil
}

// Import records a run for a hand-edited team file and packages it.
func (o *Orchestrator) Import(tf *models.TeamFile) (*Result, error) {
	if len(tf.Agents) == 0 {
		return nil, ErrNoAgents
	}

	request := tf.Description
	if request == "" {
		request = "team file: " + tf.Name
	}
	run := &models.Run{
		TraceID:   uuid.NewString(),
		Request:   request,
		Rephrased: request,
		Model:     o.opts.Settings.Model,
		Status:    models.RunStatusRunning,
	}
	if _, err := o.storage.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	settings := o.opts.Settings
	if tf.Settings != nil && tf.Settings.Model != "" {
		settings.Model = tf.Settings.Model
		settings.Temperature = tf.Settings.Temperature
	}
	return o.finishRun(run, tf.Agents, settings)
}

// Repackage rebuilds the bundles of a stored run from its recorded team.
func (o *Orchestrator) Repackage(runID int64) (*Result, error) {
	run, err := o.storage.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if len(run.Team) == 0 {
		return nil, ErrNoAgents
	}
	return o.finishRun(run, run.Team, o.settingsFor(run))
}

func (o *Orchestrator) finishRun(run *models.Run, team []models.AgentSpec, settings generator.Settings) (*Result, error) {
	pkg, err := o.Package(team, settings)
	if err != nil {
		return nil, o.failRun(run, err)
	}

	ws, err := o.writeWorkspace(run, team, pkg)
	if err != nil {
		return nil, o.failRun(run, err)
	}

	now := o.opts.Now()
	run.Status = models.RunStatusComplete
	run.Error = ""
	run.CompletedAt = &now
	run.Team = models.Team(team).Clone()
	run.WorkspacePath = ws.Path
	if err := o.storage.UpdateRun(run); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	return &Result{Run: run, Team: run.Team, Packaged: pkg, Workspace: ws}, nil
}

// Package builds records, the workflow and both bundles for team without
// calling the model.
func (o *Orchestrator) Package(team []models.AgentSpec, settings generator.Settings) (*Packaged, error) {
	assistants, crews := records.BuildAll(team)

	asm := workflow.NewAssembler(settings.Model, settings.Temperature, settings.Timeout)
	asm.Now = o.opts.Now
	wf := asm.Assemble(team)

	var src archive.SkillSource
	if o.opts.Skills != nil {
		src = o.opts.Skills
	}
	bundle, err := archive.New(src, o.opts.Logger).Package(assistants, wf, crews)
	if err != nil {
		return nil, fmt.Errorf("failed to package team: %w", err)
	}

	return &Packaged{Assistants: assistants, Crews: crews, Workflow: wf, Bundle: bundle}, nil
}

func (o *Orchestrator) writeWorkspace(run *models.Run, team []models.AgentSpec, pkg *Packaged) (*workspace.Workspace, error) {
	ws, err := workspace.Create(o.opts.WorkspaceDir, run.ID)
	if err != nil {
		return nil, err
	}
	if err := ws.WriteBundle(pkg.Bundle); err != nil {
		return nil, err
	}
	if err := ws.WriteAgents(pkg.Assistants); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(team))
	for _, a := range team {
		names = append(names, a.Name)
	}
	meta := &workspace.RunMetadata{
		RunID:     run.ID,
		TraceID:   run.TraceID,
		Request:   run.Request,
		Rephrased: run.Rephrased,
		Model:     run.Model,
		Agents:    names,
	}
	if err := ws.WriteRunMetadata(meta); err != nil {
		return nil, err
	}
	return ws, nil
}

func (o *Orchestrator) failRun(run *models.Run, cause error) error {
	now := o.opts.Now()
	run.Status = models.RunStatusFailed
	run.CompletedAt = &now
	run.Error = cause.Error()
	if err := o.storage.UpdateRun(run); err != nil {
		o.logger.Error("failed to mark run failed", "run_id", run.ID, "err", err)
	}
	o.logger.Warn("pipeline failed", "run_id", run.ID, "trace_id", run.TraceID, "err", cause)
	return cause
}

func (o *Orchestrator) skillNames() []string {
	if o.opts.Skills == nil {
		return []string{}
	}
	return o.opts.Skills.Names()
}

func (o *Orchestrator) settingsFor(run *models.Run) generator.Settings {
	s := o.opts.Settings
	if run.Model != "" {
		s.Model = run.Model
	}
	return s
}

// ListRuns returns the most recent runs, newest first.
func (o *Orchestrator) ListRuns(limit int) ([]*models.Run, error) {
	return o.storage.ListRuns(limit)
}

func (o *Orchestrator) GetRun(id int64) (*models.Run, error) {
	return o.storage.GetRun(id)
}

func (o *Orchestrator) GetInteractions(runID int64) ([]*models.Interaction, error) {
	return o.storage.GetInteractionsForRun(runID)
}

// DeleteRun removes the run, its interactions, its workspace and its
// saved discussion.
func (o *Orchestrator) DeleteRun(id int64) error {
	if err := o.storage.DeleteRun(id); err != nil {
		return err
	}
	if err := workspace.Remove(o.opts.WorkspaceDir, id); err != nil {
		o.logger.Warn("failed to remove workspace", "run_id", id, "err", err)
	}
	if o.opts.Discussions != nil {
		if err := o.opts.Discussions.Delete(RunDiscussionName(id)); err != nil && !errors.Is(err, discussion.ErrNotFound) {
			o.logger.Warn("failed to remove discussion", "run_id", id, "err", err)
		}
	}
	return nil
}

// LoadSession rebuilds a session from a stored run, including its saved
// discussion if there is one.
func (o *Orchestrator) LoadSession(runID int64) (*Session, error) {
	run, err := o.storage.GetRun(runID)
	if err != nil {
		return nil, err
	}

	sess := NewSession(o.settingsFor(run), RunDiscussionName(run.ID))
	sess.RunID = run.ID
	sess.Request = run.Request
	sess.Rephrased = run.Rephrased
	sess.Team = run.Team.Clone()

	if o.opts.Discussions != nil {
		history, err := o.opts.Discussions.Load(sess.DiscussionName)
		switch {
		case err == nil:
			sess.Log = discussion.Restore(history)
		case errors.Is(err, discussion.ErrNotFound):
		default:
			return nil, err
		}
	}
	return sess, nil
}

// RemoveAgent drops an agent from the session team. For a stored run the
// smaller team is persisted first; the session only changes once that
// succeeds.
func (o *Orchestrator) RemoveAgent(sess *Session, index int) error {
	agent, err := sess.agent(index)
	if err != nil {
		return err
	}
	team := make(models.Team, 0, len(sess.Team)-1)
	team = append(team, sess.Team[:index]...)
	team = append(team, sess.Team[index+1:]...)

	if err := o.persistTeam(sess.RunID, team, sess.Settings); err != nil {
		return err
	}
	sess.Team = team
	o.logger.Debug("agent removed", "run_id", sess.RunID, "agent", agent.Name)
	return nil
}

// persistTeam stores team on the run and rewrites its workspace. An empty
// team leaves no bundles or agent files behind.
func (o *Orchestrator) persistTeam(runID int64, team []models.AgentSpec, settings generator.Settings) error {
	if runID == 0 {
		return nil
	}
	run, err := o.storage.GetRun(runID)
	if err != nil {
		return err
	}
	if len(team) > 0 {
		_, err = o.finishRun(run, team, settings)
		return err
	}

	if ws, err := workspace.Open(o.opts.WorkspaceDir, runID); err == nil {
		if err := ws.RemoveBundles(); err != nil {
			return err
		}
		for _, a := range run.Team {
			if err := ws.RemoveAgent(a.Name); err != nil {
				return err
			}
		}
	}
	run.Team = models.Team{}
	return o.storage.UpdateRun(run)
}

// RunDiscussionName is the discussion file name used for a stored run.
func RunDiscussionName(runID int64) string {
	return fmt.Sprintf("run_%d", runID)
}
