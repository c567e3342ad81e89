package models

import "time"

type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

type Run struct {
	ID            int64
	TraceID       string
	CreatedAt     time.Time
	CompletedAt   *time.Time
	Request       string
	Rephrased     string
	Model         string
	WorkspacePath string
	Status        RunStatus
	Error         string
	Team          Team
}
