package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// BatchRun is the persisted record of one reconciliation pass. It is written
// best-effort around the pass for inspection; the pass itself never depends
// on it.
type BatchRun struct {
	ID           int64      `json:"id" db:"id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	Total        int        `json:"total" db:"total"`
	Updated      int        `json:"updated" db:"updated"`
	Failed       int        `json:"failed" db:"failed"`
	PriceChanges int        `json:"price_changes" db:"price_changes"`
	AlertsSent   int        `json:"alerts_sent" db:"alerts_sent"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}
