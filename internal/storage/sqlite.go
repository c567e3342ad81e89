// Package storage records pipeline runs and agent interactions in SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mpataki/teamforge/internal/models"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; avoids SQLITE_BUSY between the TUI and a running pipeline
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		request TEXT NOT NULL,
		rephrased TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		team_json TEXT,
		workspace_path TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		agent_name TEXT NOT NULL,
		sequence_num INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		prompt TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		UNIQUE(run_id, sequence_num)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_interactions_run ON interactions(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const runColumns = `id, trace_id, created_at, completed_at, request, rephrased, model, status, error, team_json, workspace_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var completedAt sql.NullTime
	var teamJSON sql.NullString

	err := row.Scan(
		&run.ID, &run.TraceID, &run.CreatedAt, &completedAt, &run.Request,
		&run.Rephrased, &run.Model, &run.Status, &run.Error, &teamJSON, &run.WorkspacePath,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if teamJSON.Valid && teamJSON.String != "" {
		if err := json.Unmarshal([]byte(teamJSON.String), &run.Team); err != nil {
			return nil, fmt.Errorf("failed to decode team of run %d: %w", run.ID, err)
		}
	}
	return &run, nil
}

func encodeTeam(team models.Team) (*string, error) {
	if team == nil {
		return nil, nil
	}
	data, err := json.Marshal(team)
	if err != nil {
		return nil, err
	}
	str := string(data)
	return &str, nil
}

func (s *Storage) CreateRun(run *models.Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	teamJSON, err := encodeTeam(run.Team)
	if err != nil {
		return 0, err
	}

	result, err := s.db.Exec(
		`INSERT INTO runs (trace_id, created_at, completed_at, request, rephrased, model, status, error, team_json, workspace_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.TraceID, run.CreatedAt, run.CompletedAt, run.Request, run.Rephrased,
		run.Model, run.Status, run.Error, teamJSON, run.WorkspacePath,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

func (s *Storage) GetRun(id int64) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return run, err
}

func (s *Storage) UpdateRun(run *models.Run) error {
	teamJSON, err := encodeTeam(run.Team)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE runs SET completed_at = ?, rephrased = ?, model = ?, status = ?, error = ?, team_json = ?, workspace_path = ?
		 WHERE id = ?`,
		run.CompletedAt, run.Rephrased, run.Model, run.Status, run.Error, teamJSON, run.WorkspacePath, run.ID,
	)
	return err
}

func (s *Storage) ListRuns(limit int) ([]*models.Run, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CreateInteraction stores an interaction with the next sequence number
// for its run.
func (s *Storage) CreateInteraction(in *models.Interaction) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM interactions WHERE run_id = ?`, in.RunID,
	).Scan(&next); err != nil {
		return 0, err
	}

	result, err := tx.Exec(
		`INSERT INTO interactions (run_id, agent_name, sequence_num, status, prompt, response, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.RunID, in.AgentName, next, in.Status, in.Prompt, in.Response, in.StartedAt, in.CompletedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	in.ID = id
	in.SequenceNum = next
	return id, nil
}

func (s *Storage) UpdateInteraction(in *models.Interaction) error {
	_, err := s.db.Exec(
		`UPDATE interactions SET status = ?, response = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		in.Status, in.Response, in.StartedAt, in.CompletedAt, in.ID,
	)
	return err
}

func (s *Storage) GetInteractionsForRun(runID int64) ([]*models.Interaction, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, agent_name, sequence_num, status, prompt, response, started_at, completed_at
		 FROM interactions WHERE run_id = ? ORDER BY sequence_num`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Interaction
	for rows.Next() {
		var in models.Interaction
		var startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&in.ID, &in.RunID, &in.AgentName, &in.SequenceNum, &in.Status,
			&in.Prompt, &in.Response, &startedAt, &completedAt,
		)
		if err != nil {
			return nil, err
		}
		if startedAt.Valid {
			in.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			in.CompletedAt = &completedAt.Time
		}
		out = append(out, &in)
	}

	return out, rows.Err()
}

func (s *Storage) DeleteRun(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM interactions WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}

// FormatTimeAgo formats t relative to now for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
