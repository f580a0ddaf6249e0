// Package scheduler implements the Scheduler Client (C1) and Scheduler
// Parser (C2): submitting and querying SLURM jobs, and the pure functions
// that map SLURM state to internal job status.
package scheduler

import "time"

// Status is the internal job status (spec §3), shared with pkg/store.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// JobInfo summarizes one scontrol query (spec §4.1).
type JobInfo struct {
	ExternalState  string
	InternalStatus Status
	StartTime      *time.Time
	EndTime        *time.Time
	ExitCode       string
	Reason         string
	IsFinished     bool
	IsSuccessful   bool
	ErrorMessage   string
}
