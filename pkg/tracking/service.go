// Package tracking manages the records that declare which periodicals the
// system should acquire, and in which mode.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/titles"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveTrackingOptions struct {
	ID   *int
	OLID *string
}

type ListTrackingOptions struct {
	Limit      *int
	Offset     *int
	ActiveOnly bool

	includeTotal bool
}

type UpdateTrackingOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// DeriveOLID produces a stable identifier for a periodical title when no
// catalog identifier is known. The normalized title is hashed so that the
// same title always maps to the same tracking record.
func DeriveOLID(title string) string {
	normalized := strings.ToLower(titles.Clean(title))
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("local-%016x", h.Sum64())
}

// CreateTracking inserts a tracking record, or updates the existing one
// when the OLID is already tracked. The caller's parsed data fields are
// marshalled before writing.
func (svc *Service) CreateTracking(ctx context.Context, tracking *models.Tracking) error {
	now := time.Now()
	if tracking.CreatedAt.IsZero() {
		tracking.CreatedAt = now
	}
	tracking.UpdatedAt = now

	if tracking.OLID == "" {
		tracking.OLID = DeriveOLID(tracking.Title)
	}
	if err := tracking.MarshalData(); err != nil {
		return err
	}

	_, err := svc.db.
		NewInsert().
		Model(tracking).
		On("CONFLICT (olid) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("publisher = EXCLUDED.publisher").
		Set("issn = EXCLUDED.issn").
		Set("language = EXCLUDED.language").
		Set("category = EXCLUDED.category").
		Set("first_publish_year = EXCLUDED.first_publish_year").
		Set("total_editions_known = EXCLUDED.total_editions_known").
		Set("track_all_editions = EXCLUDED.track_all_editions").
		Set("track_new_only = EXCLUDED.track_new_only").
		Set("selected_editions = EXCLUDED.selected_editions").
		Set("selected_years = EXCLUDED.selected_years").
		Set("delete_from_client_on_completion = EXCLUDED.delete_from_client_on_completion").
		Set("periodical_metadata = EXCLUDED.periodical_metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return tracking.UnmarshalData()
}

func (svc *Service) RetrieveTracking(ctx context.Context, opts RetrieveTrackingOptions) (*models.Tracking, error) {
	tracking := &models.Tracking{}

	q := svc.db.
		NewSelect().
		Model(tracking).
		Column("t.*")

	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}
	if opts.OLID != nil {
		q = q.Where("t.olid = ?", *opts.OLID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Tracking")
		}
		return nil, errors.WithStack(err)
	}

	if err := tracking.UnmarshalData(); err != nil {
		return nil, err
	}

	return tracking, nil
}

func (svc *Service) ListTracking(ctx context.Context, opts ListTrackingOptions) ([]*models.Tracking, error) {
	t, _, err := svc.listTrackingWithTotal(ctx, opts)
	return t, errors.WithStack(err)
}

func (svc *Service) ListTrackingWithTotal(ctx context.Context, opts ListTrackingOptions) ([]*models.Tracking, int, error) {
	opts.includeTotal = true
	return svc.listTrackingWithTotal(ctx, opts)
}

func (svc *Service) listTrackingWithTotal(ctx context.Context, opts ListTrackingOptions) ([]*models.Tracking, int, error) {
	tracked := []*models.Tracking{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&tracked).
		Column("t.*").
		Order("t.title ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	result := tracked
	if opts.ActiveOnly {
		result = result[:0]
		for _, t := range tracked {
			if err := t.UnmarshalData(); err != nil {
				return nil, 0, err
			}
			if t.TracksAnything() {
				result = append(result, t)
			}
		}
		return result, total, nil
	}

	for _, t := range result {
		if err := t.UnmarshalData(); err != nil {
			return nil, 0, err
		}
	}

	return result, total, nil
}

func (svc *Service) UpdateTracking(ctx context.Context, tracking *models.Tracking, opts UpdateTrackingOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	tracking.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	if err := tracking.MarshalData(); err != nil {
		return err
	}

	_, err := svc.db.
		NewUpdate().
		Model(tracking).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Tracking")
		}
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) DeleteTracking(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Tracking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		return errcodes.NotFound("Tracking")
	}
	return nil
}
