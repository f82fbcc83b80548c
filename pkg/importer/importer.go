// Package importer installs finished downloads into the library: parse,
// dedup, cover, categorize, organize, catalog. Both the submission-driven
// and directory-scan entry points run the same pipeline.
package importer

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/database"
	"github.com/newsrack/newsrack/pkg/dedup"
	"github.com/newsrack/newsrack/pkg/epub"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/fileutils"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/parse"
	"github.com/newsrack/newsrack/pkg/titles"
	"github.com/newsrack/newsrack/pkg/tracking"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Tracking side effect requested by the caller of an import.
const (
	TrackingModeAll   = "all"
	TrackingModeNew   = "new"
	TrackingModeWatch = "watch"
	TrackingModeNone  = "none"
)

// CoverExtractor produces a cover image for an issue file and returns its
// path, or "" when no cover could be produced.
type CoverExtractor interface {
	Extract(issuePath string) (string, error)
}

// Options control one import invocation.
type Options struct {
	// SkipOrganize leaves the file where it is instead of moving it into
	// the library layout.
	SkipOrganize bool
	// TrackingMode is the tracking side effect: all, new, watch, or none.
	// Empty means the configured auto-track default.
	TrackingMode string
}

// Result reports what one import did.
type Result struct {
	Periodical       *models.Periodical
	SkippedDuplicate bool
	Duplicate        *models.Periodical
}

type Importer struct {
	cfg             *config.Config
	db              *bun.DB
	index           *dedup.Index
	covers          CoverExtractor
	trackingService *tracking.Service
}

// New builds an importer. covers may be nil, in which case no cover
// extraction is attempted.
func New(cfg *config.Config, db *bun.DB, covers CoverExtractor) *Importer {
	return &Importer{
		cfg:             cfg,
		db:              db,
		index:           dedup.NewIndex(db),
		covers:          covers,
		trackingService: tracking.NewService(db),
	}
}

// ImportFile runs the pipeline on a loose file found by the directory
// scan or submitted manually.
func (imp *Importer) ImportFile(ctx context.Context, path string, opts Options) (*Result, error) {
	return imp.importFile(ctx, path, nil, opts)
}

// ImportSubmission runs the pipeline on a resolved download. The
// submission's file_path is cleared in the same transaction as the
// catalog insert, which is the processed marker.
func (imp *Importer) ImportSubmission(ctx context.Context, submission *models.Submission, path string, opts Options) (*Result, error) {
	return imp.importFile(ctx, path, submission, opts)
}

func (imp *Importer) importFile(ctx context.Context, path string, submission *models.Submission, opts Options) (*Result, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"path": path})

	parsed := parse.ParseFile(path, imp.cfg.CategoryPrefix)
	ext := strings.ToLower(filepath.Ext(path))

	extraMetadata := map[string]any{}
	if parsed.IsSpecialEdition {
		extraMetadata["special_edition"] = true
	}
	if parsed.Country != "" {
		extraMetadata["country"] = parsed.Country
	}
	if !parsed.Confidence {
		extraMetadata["low_confidence_parse"] = true
	}

	var publisher *string
	if ext == ".pdf" {
		pageCount, err := validatePDF(path)
		if err != nil {
			return nil, err
		}
		extraMetadata["page_count"] = pageCount
	}
	if ext == ".epub" {
		publisher = imp.enrichFromEPUB(log, path, &parsed)
	}

	duplicate, err := imp.index.FindLibraryDuplicate(ctx, parsed.Title, parsed.IssueDate, parsed.IsSpecialEdition, imp.cfg.FuzzyThreshold, imp.cfg.DuplicateDateThresholdDays)
	if err != nil {
		return nil, err
	}
	if duplicate != nil {
		log.Warn("skipping import of duplicate issue", logger.Data{
			"title":       parsed.Title,
			"existing_id": duplicate.ID,
		})
		if submission != nil {
			if err := imp.markProcessed(ctx, imp.db, submission); err != nil {
				return nil, err
			}
		}
		return &Result{SkippedDuplicate: true, Duplicate: duplicate}, nil
	}

	coverPath := ""
	if imp.covers != nil {
		coverPath, err = imp.covers.Extract(path)
		if err != nil {
			// A cover is a nice-to-have, never an import blocker.
			log.Err(err).Error("cover extraction failed")
			coverPath = ""
		}
	}

	category := Categorize(parsed.Title)

	finalPath := path
	if !opts.SkipOrganize {
		finalPath = fileutils.UniquePath(imp.organizePath(parsed, category, ext))
		if err := fileutils.MoveFile(path, finalPath); err != nil {
			return nil, err
		}
	}

	extraMetadata["category"] = category

	periodical := &models.Periodical{
		Title:               parsed.Title,
		Language:            parsed.Language,
		Publisher:           publisher,
		IssueDate:           parsed.IssueDate,
		Filepath:            finalPath,
		ExtraMetadataParsed: extraMetadata,
	}
	if coverPath != "" {
		periodical.CoverPath = &coverPath
	}
	if err := periodical.MarshalExtraMetadata(); err != nil {
		return nil, err
	}

	err = database.RunInTx(ctx, imp.db, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		periodical.CreatedAt = now
		periodical.UpdatedAt = now
		if _, err := tx.NewInsert().Model(periodical).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		if submission != nil {
			return imp.markProcessed(ctx, tx, submission)
		}
		return nil
	})
	if err != nil {
		// The move already happened; put the file back so the next pass
		// can retry from scratch.
		if finalPath != path {
			if moveErr := fileutils.MoveFile(finalPath, path); moveErr != nil {
				log.Err(moveErr).Error("failed to restore file after import rollback")
			}
		}
		return nil, err
	}

	if err := imp.applyTrackingMode(ctx, parsed.Title, parsed.Language, category, opts.TrackingMode); err != nil {
		// The issue is already cataloged; the tracking side effect is
		// advisory.
		log.Err(err).Error("failed to apply tracking side effect")
	}

	log.Info("imported issue", logger.Data{
		"periodical_id": periodical.ID,
		"title":         parsed.Title,
		"file_path":     finalPath,
	})

	return &Result{Periodical: periodical}, nil
}

// markProcessed clears the submission's file path, which marks a
// completed submission as imported.
func (imp *Importer) markProcessed(ctx context.Context, db bun.IDB, submission *models.Submission) error {
	submission.Filepath = nil
	submission.UpdatedAt = time.Now()
	_, err := db.NewUpdate().
		Model(submission).
		Column("file_path", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// enrichFromEPUB fills gaps in the filename parse from the EPUB's own
// metadata and returns the publisher when declared.
func (imp *Importer) enrichFromEPUB(log logger.Logger, path string, parsed *parse.ParsedFile) *string {
	meta, err := epub.Parse(path)
	if err != nil {
		log.Err(err).Error("failed to read epub metadata")
		return nil
	}

	if !parsed.Confidence {
		if meta.Title != "" {
			parsed.Title = titles.Clean(meta.Title)
		}
		if meta.IssueDate != nil {
			parsed.IssueDate = *meta.IssueDate
			parsed.Year = meta.IssueDate.Year()
		}
	}

	if meta.Publisher != "" {
		publisher := meta.Publisher
		return &publisher
	}
	return nil
}

// validatePDF rejects broken PDF files before they enter the library and
// returns the page count. Content sniffing runs first so that an HTML
// error page saved with a .pdf name fails with a clear message instead of
// a parser error.
func validatePDF(path string) (int, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if !mtype.Is("application/pdf") {
		return 0, errors.Errorf("file is %s, not a pdf: %s", mtype.String(), path)
	}
	if err := api.ValidateFile(path, nil); err != nil {
		return 0, errors.Wrapf(err, "pdf failed validation: %s", path)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count pdf pages: %s", path)
	}
	return pageCount, nil
}

// applyTrackingMode creates, adjusts, or removes the tracking record for
// an imported title. A record the user already configured is never
// rewritten by an import: the implicit auto-track default only creates
// missing records, and an explicit mode moves the mode flags without
// touching the edition or year selections.
func (imp *Importer) applyTrackingMode(ctx context.Context, title, language, category, mode string) error {
	implicit := mode == ""
	if implicit {
		if !imp.cfg.AutoTrackImports {
			return nil
		}
		mode = TrackingModeWatch
	}

	olid := tracking.DeriveOLID(title)
	existing, err := imp.trackingService.RetrieveTracking(ctx, tracking.RetrieveTrackingOptions{OLID: &olid})
	if err != nil && !errors.Is(err, errcodes.NotFound("Tracking")) {
		return err
	}

	if mode == TrackingModeNone {
		if existing == nil {
			return nil
		}
		return imp.trackingService.DeleteTracking(ctx, existing.ID)
	}

	if existing != nil {
		if implicit {
			return nil
		}
		existing.TrackAllEditions = mode == TrackingModeAll
		existing.TrackNewOnly = mode == TrackingModeNew
		return imp.trackingService.UpdateTracking(ctx, existing, tracking.UpdateTrackingOptions{
			Columns: []string{"track_all_editions", "track_new_only"},
		})
	}

	record := &models.Tracking{
		OLID:             olid,
		Title:            title,
		Language:         language,
		Category:         category,
		TrackAllEditions: mode == TrackingModeAll,
		TrackNewOnly:     mode == TrackingModeNew,
	}
	return imp.trackingService.CreateTracking(ctx, record)
}
