package model

import "time"

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Import sources.
const (
	SourceCSV       = "csv"
	SourceXLSX      = "xlsx"
	SourceExtension = "extension"
	SourceMailbox   = "mailbox"
	SourceAPI       = "api"
)

// ImportJob tracks one execution of the import engine for a tenant.
type ImportJob struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	OwnerID     string        `json:"owner_id,omitempty"`
	BatchID     string        `json:"batch_id"`
	Source      string        `json:"source"`
	Strategy    Strategy      `json:"strategy"`
	Status      JobStatus     `json:"status"`
	TotalRows   int           `json:"total_rows"`
	Result      *ImportResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Summary drops the per-row audit trail from the job's result.
func (j *ImportJob) Summary() *ImportJob {
	out := *j
	if j.Result != nil {
		r := *j.Result
		r.DedupRows = nil
		out.Result = &r
	}
	return &out
}
