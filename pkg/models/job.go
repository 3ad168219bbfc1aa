package models

import "time"

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

type JobRun struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Args      map[string]string `json:"args,omitempty"`
	State     string            `json:"state"`
	Attempts  int               `json:"attempts"`
	Status    string            `json:"status,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	RunAfter  time.Time         `json:"run_after"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
