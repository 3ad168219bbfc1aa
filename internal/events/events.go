// Package events fans background job lifecycle events out to websocket
// subscribers.
package events

import (
	"time"

	"movierec/pkg/models"
)

const (
	JobQueued    = "job.queued"
	JobStarted   = "job.started"
	JobSucceeded = "job.succeeded"
	JobRetrying  = "job.retrying"
	JobFailed    = "job.failed"
)

type JobEvent struct {
	Type string         `json:"type"`
	Job  *models.JobRun `json:"job"`
	At   time.Time      `json:"at"`
}
