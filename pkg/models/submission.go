package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SubmissionStatusPending      = "pending"
	SubmissionStatusDownloading  = "downloading"
	SubmissionStatusCompleted    = "completed"
	SubmissionStatusFailed       = "failed"
	SubmissionStatusSkipped      = "skipped"
	SubmissionStatusImportFailed = "import_failed"
)

// Submission is one attempt to acquire a specific issue of a tracked
// periodical. Submissions are created by the orchestrator and mutated only
// by the monitor and the import pipeline; they are retained indefinitely as
// the dedup index and audit trail.
type Submission struct {
	bun.BaseModel `bun:"table:download_submissions,alias:s"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	TrackingID     int       `bun:",nullzero" json:"tracking_id"`
	Tracking       *Tracking `bun:"rel:belongs-to,join:tracking_id=id" json:"tracking,omitempty"`
	SearchResultID *int      `json:"search_result_id,omitempty"`
	JobID          *string   `bun:"job_id" json:"job_id,omitempty"`
	Status         string    `bun:",nullzero" json:"status"`
	SourceURL      string    `bun:"source_url,nullzero" json:"source_url"`
	ResultTitle    string    `bun:",nullzero" json:"result_title"`
	GroupKey       *string   `bun:"fuzzy_match_group" json:"fuzzy_match_group,omitempty"`
	ClientName     *string   `json:"client_name,omitempty"`
	// AttemptCount is the attempt number of this submission for its source
	// URL. Failed submissions are never re-polled, so a resubmission of the
	// same URL carries the count forward: the Nth try is created with
	// attempt_count N.
	AttemptCount int     `json:"attempt_count"`
	LastError    *string `json:"last_error,omitempty"`
	Filepath     *string `bun:"file_path" json:"file_path,omitempty"`
}

// Terminal reports whether the submission has reached a state the monitor
// no longer polls. A completed submission with a file path still pending
// import is terminal for the client but not yet processed.
func (s *Submission) Terminal() bool {
	switch s.Status {
	case SubmissionStatusCompleted, SubmissionStatusFailed, SubmissionStatusSkipped, SubmissionStatusImportFailed:
		return true
	}
	return false
}

// Processed reports whether a completed submission has been imported. The
// import pipeline clears file_path in the same transaction as the catalog
// insert; a completed submission with a null file_path is the processed
// marker.
func (s *Submission) Processed() bool {
	return s.Status == SubmissionStatusCompleted && s.Filepath == nil
}

// BadFile reports whether this submission's source URL should be
// blacklisted from future orchestrator batches, given the configured
// retry limit.
func (s *Submission) BadFile(maxRetries int) bool {
	return s.Status == SubmissionStatusFailed && s.AttemptCount >= maxRetries
}
