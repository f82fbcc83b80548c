// Package submissions persists download submissions and the provider
// search results they came from.
package submissions

import (
	"context"
	"database/sql"
	"time"

	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveSubmissionOptions struct {
	ID    *int
	JobID *string
}

type ListSubmissionsOptions struct {
	Limit      *int
	Offset     *int
	TrackingID *int
	Statuses   []string

	includeTotal bool
}

type UpdateSubmissionOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	now := time.Now()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = submission.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(submission).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveSubmission(ctx context.Context, opts RetrieveSubmissionOptions) (*models.Submission, error) {
	submission := &models.Submission{}

	q := svc.db.
		NewSelect().
		Model(submission).
		Column("s.*")

	if opts.ID != nil {
		q = q.Where("s.id = ?", *opts.ID)
	}
	if opts.JobID != nil {
		q = q.Where("s.job_id = ?", *opts.JobID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Submission")
		}
		return nil, errors.WithStack(err)
	}

	return submission, nil
}

func (svc *Service) ListSubmissions(ctx context.Context, opts ListSubmissionsOptions) ([]*models.Submission, error) {
	s, _, err := svc.listSubmissionsWithTotal(ctx, opts)
	return s, errors.WithStack(err)
}

func (svc *Service) ListSubmissionsWithTotal(ctx context.Context, opts ListSubmissionsOptions) ([]*models.Submission, int, error) {
	opts.includeTotal = true
	return svc.listSubmissionsWithTotal(ctx, opts)
}

func (svc *Service) listSubmissionsWithTotal(ctx context.Context, opts ListSubmissionsOptions) ([]*models.Submission, int, error) {
	submissions := []*models.Submission{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&submissions).
		Column("s.*").
		Order("s.created_at DESC", "s.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.TrackingID != nil {
		q = q.Where("s.tracking_id = ?", *opts.TrackingID)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("s.status IN (?)", bun.In(opts.Statuses))
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return submissions, total, nil
}

// ListActiveSubmissions returns submissions the monitor should poll:
// pending and downloading ones, plus completed ones whose file has not
// been imported yet.
func (svc *Service) ListActiveSubmissions(ctx context.Context) ([]*models.Submission, error) {
	submissions := []*models.Submission{}

	err := svc.db.
		NewSelect().
		Model(&submissions).
		Column("s.*").
		Where("s.status IN (?)", bun.In([]string{
			models.SubmissionStatusPending,
			models.SubmissionStatusDownloading,
		})).
		WhereOr("s.status = ? AND s.file_path IS NOT NULL", models.SubmissionStatusCompleted).
		Order("s.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return submissions, nil
}

func (svc *Service) UpdateSubmission(ctx context.Context, submission *models.Submission, opts UpdateSubmissionOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	submission.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(submission).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Submission")
		}
		return errors.WithStack(err)
	}

	return nil
}

// RetrySubmission queues an import_failed submission for another import
// attempt by moving it back to completed. The monitor picks it up on its
// next pass.
func (svc *Service) RetrySubmission(ctx context.Context, id int) (*models.Submission, error) {
	submission, err := svc.RetrieveSubmission(ctx, RetrieveSubmissionOptions{ID: &id})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if submission.Status != models.SubmissionStatusImportFailed {
		return nil, errcodes.Conflict("Only import_failed submissions can be retried.")
	}
	if submission.Filepath == nil {
		return nil, errcodes.Conflict("Submission has no file to import.")
	}

	submission.Status = models.SubmissionStatusCompleted
	submission.LastError = nil
	err = svc.UpdateSubmission(ctx, submission, UpdateSubmissionOptions{
		Columns: []string{"status", "last_error"},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return submission, nil
}

// CreateSearchResult persists a provider result row for the audit trail.
func (svc *Service) CreateSearchResult(ctx context.Context, result *models.SearchResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	if err := result.MarshalRawMetadata(); err != nil {
		return err
	}

	_, err := svc.db.
		NewInsert().
		Model(result).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Stats summarizes submissions by status for the monitor's run report and
// the status endpoint.
type Stats struct {
	Pending      int `json:"pending"`
	Downloading  int `json:"downloading"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	ImportFailed int `json:"import_failed"`
}

func (svc *Service) SubmissionStats(ctx context.Context) (*Stats, error) {
	rows := []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}{}

	err := svc.db.
		NewSelect().
		Model((*models.Submission)(nil)).
		ColumnExpr("s.status AS status").
		ColumnExpr("COUNT(*) AS count").
		Group("s.status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats := &Stats{}
	for _, row := range rows {
		switch row.Status {
		case models.SubmissionStatusPending:
			stats.Pending = row.Count
		case models.SubmissionStatusDownloading:
			stats.Downloading = row.Count
		case models.SubmissionStatusCompleted:
			stats.Completed = row.Count
		case models.SubmissionStatusFailed:
			stats.Failed = row.Count
		case models.SubmissionStatusSkipped:
			stats.Skipped = row.Count
		case models.SubmissionStatusImportFailed:
			stats.ImportFailed = row.Count
		}
	}

	return stats, nil
}
