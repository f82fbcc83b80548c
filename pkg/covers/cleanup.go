package covers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newsrack/newsrack/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// CleanupOrphans deletes covers in the cache directory that no catalog
// entry references anymore. Returns the number of files removed.
func (e *Extractor) CleanupOrphans(ctx context.Context, db *bun.DB) (int, error) {
	log := logger.FromContext(ctx)

	entries, err := os.ReadDir(e.CoverDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, errors.WithStack(err)
	}

	var referenced []string
	err = db.NewSelect().
		Model((*models.Periodical)(nil)).
		Column("p.cover_path").
		Where("p.cover_path IS NOT NULL").
		Scan(ctx, &referenced)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	inUse := make(map[string]bool, len(referenced))
	for _, p := range referenced {
		inUse[filepath.Base(p)] = true
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			continue
		}
		if inUse[entry.Name()] {
			continue
		}
		full := filepath.Join(e.CoverDir(), entry.Name())
		if err := os.Remove(full); err != nil {
			log.Err(err).Error("failed to remove orphaned cover", logger.Data{"path": full})
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info("removed orphaned covers", logger.Data{"count": removed})
	}
	return removed, nil
}

// RegenerateMissing re-extracts covers for catalog entries whose cover
// file has gone missing from the cache, using the organized source file.
// Returns the number of covers regenerated. Entries whose source no longer
// yields a cover are logged and left for the next pass.
func (e *Extractor) RegenerateMissing(ctx context.Context, db *bun.DB) (int, error) {
	log := logger.FromContext(ctx)

	entries := []*models.Periodical{}
	err := db.NewSelect().
		Model(&entries).
		Where("p.cover_path IS NOT NULL").
		Order("p.id ASC").
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	regenerated := 0
	for _, periodical := range entries {
		if _, err := os.Stat(*periodical.CoverPath); err == nil {
			continue
		}

		coverPath, err := e.Extract(periodical.Filepath)
		if err != nil {
			log.Err(err).Error("failed to regenerate cover", logger.Data{
				"periodical_id": periodical.ID,
				"file_path":     periodical.Filepath,
			})
			continue
		}
		if coverPath == "" {
			continue
		}

		if coverPath != *periodical.CoverPath {
			periodical.CoverPath = &coverPath
			periodical.UpdatedAt = time.Now()
			_, err = db.NewUpdate().
				Model(periodical).
				Column("cover_path", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return regenerated, errors.WithStack(err)
			}
		}
		regenerated++
	}

	if regenerated > 0 {
		log.Info("regenerated missing covers", logger.Data{"count": regenerated})
	}
	return regenerated, nil
}
