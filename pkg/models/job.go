// Package models contains the wire and file formats shared by the gateway,
// the worker, and the stores: jobs, events, and chat transcripts.
package models

import "time"

// JobStatus is the lifecycle state of a job.
// Transitions are monotonic: queued → processing → (completed | failed).
type JobStatus string

// Job status constants.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is a single query execution unit. Records are stored as JSON under
// the `job:<job_id>` key; the queue itself holds only IDs.
type Job struct {
	JobID     string         `json:"job_id"`
	Query     string         `json:"query"`
	ChatID    string         `json:"chat_id,omitempty"`
	Status    JobStatus      `json:"status"`
	Result    map[string]any `json:"result"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// JobUpdate carries the fields merged into a job record by Update.
// Nil/empty fields are left untouched.
type JobUpdate struct {
	Status JobStatus
	Result map[string]any
	Error  string
}
