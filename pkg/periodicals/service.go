package periodicals

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"time"

	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type RetrievePeriodicalOptions struct {
	ID       *int
	Filepath *string
}

type ListPeriodicalsOptions struct {
	Limit    *int
	Offset   *int
	Title    *string
	Language *string
	Year     *int

	includeTotal bool
}

type UpdatePeriodicalOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreatePeriodical(ctx context.Context, periodical *models.Periodical) error {
	now := time.Now()
	if periodical.CreatedAt.IsZero() {
		periodical.CreatedAt = now
	}
	periodical.UpdatedAt = periodical.CreatedAt

	if err := periodical.MarshalExtraMetadata(); err != nil {
		return err
	}

	_, err := svc.db.
		NewInsert().
		Model(periodical).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrievePeriodical(ctx context.Context, opts RetrievePeriodicalOptions) (*models.Periodical, error) {
	periodical := &models.Periodical{}

	q := svc.db.
		NewSelect().
		Model(periodical).
		Column("p.*")

	if opts.ID != nil {
		q = q.Where("p.id = ?", *opts.ID)
	}
	if opts.Filepath != nil {
		q = q.Where("p.file_path = ?", *opts.Filepath)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Periodical")
		}
		return nil, errors.WithStack(err)
	}

	if err := periodical.UnmarshalExtraMetadata(); err != nil {
		return nil, err
	}

	return periodical, nil
}

func (svc *Service) ListPeriodicals(ctx context.Context, opts ListPeriodicalsOptions) ([]*models.Periodical, error) {
	p, _, err := svc.listPeriodicalsWithTotal(ctx, opts)
	return p, errors.WithStack(err)
}

func (svc *Service) ListPeriodicalsWithTotal(ctx context.Context, opts ListPeriodicalsOptions) ([]*models.Periodical, int, error) {
	opts.includeTotal = true
	return svc.listPeriodicalsWithTotal(ctx, opts)
}

func (svc *Service) listPeriodicalsWithTotal(ctx context.Context, opts ListPeriodicalsOptions) ([]*models.Periodical, int, error) {
	periodicals := []*models.Periodical{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&periodicals).
		Column("p.*").
		Order("p.issue_date DESC", "p.title ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Title != nil {
		q = q.Where("p.title LIKE ?", "%"+*opts.Title+"%")
	}
	if opts.Language != nil {
		q = q.Where("p.language = ?", *opts.Language)
	}
	if opts.Year != nil {
		q = q.Where("CAST(strftime('%Y', p.issue_date) AS INTEGER) = ?", *opts.Year)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, p := range periodicals {
		if err := p.UnmarshalExtraMetadata(); err != nil {
			return nil, 0, err
		}
	}

	return periodicals, total, nil
}

func (svc *Service) UpdatePeriodical(ctx context.Context, periodical *models.Periodical, opts UpdatePeriodicalOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	periodical.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	if err := periodical.MarshalExtraMetadata(); err != nil {
		return err
	}

	_, err := svc.db.
		NewUpdate().
		Model(periodical).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Periodical")
		}
		return errors.WithStack(err)
	}

	return nil
}

type DeletePeriodicalOptions struct {
	// DeleteFile also removes the issue file and its cover from disk.
	DeleteFile bool
}

func (svc *Service) DeletePeriodical(ctx context.Context, id int, opts DeletePeriodicalOptions) error {
	periodical, err := svc.RetrievePeriodical(ctx, RetrievePeriodicalOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	res, err := svc.db.
		NewDelete().
		Model((*models.Periodical)(nil)).
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
		return errcodes.NotFound("Periodical")
	}

	if opts.DeleteFile {
		log := logger.FromContext(ctx)
		if err := os.Remove(periodical.Filepath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Err(err).Error("failed to delete issue file", logger.Data{"file_path": periodical.Filepath})
		}
		if periodical.CoverPath != nil {
			if err := os.Remove(*periodical.CoverPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Err(err).Error("failed to delete cover file", logger.Data{"cover_path": *periodical.CoverPath})
			}
		}
	}

	return nil
}
