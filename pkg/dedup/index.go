package dedup

import (
	"context"
	"time"

	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/titles"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Index answers dedup queries against the catalog. Submission dedup is
// exact string equality over group keys, so it stays O(1) per candidate at
// submit time. Library dedup is a token-set scan with a date window and
// only runs once per imported file.
type Index struct {
	db bun.IDB
}

func NewIndex(db bun.IDB) *Index {
	return &Index{db: db}
}

// AlreadySubmitted reports whether a submission with the given group key
// exists for this tracking in a dedup-blocking state. Pending, downloading,
// and completed submissions block; skipped and sub-threshold failed ones do
// not, so a failed issue can be retried under the same key.
func (idx *Index) AlreadySubmitted(ctx context.Context, trackingID int, groupKey string) (bool, error) {
	if groupKey == "" {
		return false, nil
	}
	count, err := idx.db.NewSelect().
		Model((*models.Submission)(nil)).
		Where("s.tracking_id = ?", trackingID).
		Where("s.fuzzy_match_group = ?", groupKey).
		Where("s.status IN (?)", bun.In([]string{
			models.SubmissionStatusPending,
			models.SubmissionStatusDownloading,
			models.SubmissionStatusCompleted,
		})).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

// IsBadFileURL reports whether the URL reached the given failure threshold,
// for any tracking. Each failed submission carries its attempt number, so
// the newest failed row for a URL knows how many tries it burned. Bad URLs
// are blacklisted from future submits.
func (idx *Index) IsBadFileURL(ctx context.Context, sourceURL string, threshold int) (bool, error) {
	count, err := idx.db.NewSelect().
		Model((*models.Submission)(nil)).
		Where("s.source_url = ?", sourceURL).
		Where("s.status = ?", models.SubmissionStatusFailed).
		Where("s.attempt_count >= ?", threshold).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

// FailedAttempts returns how many submissions for the URL have already
// failed, across all trackings. The orchestrator uses it to number the
// next attempt.
func (idx *Index) FailedAttempts(ctx context.Context, sourceURL string) (int, error) {
	count, err := idx.db.NewSelect().
		Model((*models.Submission)(nil)).
		Where("s.source_url = ?", sourceURL).
		Where("s.status = ?", models.SubmissionStatusFailed).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// FindLibraryDuplicate returns an existing catalog entry that matches the
// given title at or above the fuzzy threshold and whose issue date falls
// within the duplicate window. Special editions are never matched against
// non-special entries regardless of score or date.
func (idx *Index) FindLibraryDuplicate(ctx context.Context, title string, issueDate time.Time, specialEdition bool, fuzzyThreshold, dateWindowDays int) (*models.Periodical, error) {
	existing := []*models.Periodical{}
	err := idx.db.NewSelect().
		Model(&existing).
		Order("p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	window := time.Duration(dateWindowDays) * 24 * time.Hour
	for _, p := range existing {
		if err := p.UnmarshalExtraMetadata(); err != nil {
			return nil, err
		}
		if p.IsSpecialEdition() != specialEdition {
			continue
		}
		if !titles.Matches(p.Title, title, fuzzyThreshold) {
			continue
		}
		delta := issueDate.Sub(p.IssueDate)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return p, nil
		}
	}

	return nil, nil
}
