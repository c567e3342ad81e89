package models

import "time"

type InteractionStatus string

const (
	InteractionPending  InteractionStatus = "pending"
	InteractionRunning  InteractionStatus = "running"
	InteractionComplete InteractionStatus = "complete"
	InteractionFailed   InteractionStatus = "failed"
)

// Interaction is one agent turn recorded against a run.
type Interaction struct {
	ID          int64
	RunID       int64
	AgentName   string
	SequenceNum int
	Status      InteractionStatus
	Prompt      string
	Response    string
	StartedAt   *time.Time
	CompletedAt *time.Time
}
