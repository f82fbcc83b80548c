// Package orchestrator decides which issues of a tracked periodical to
// submit for download, in which order, without resubmitting anything the
// catalog already knows about.
package orchestrator

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/dedup"
	"github.com/newsrack/newsrack/pkg/downloadclient"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/providers"
	"github.com/newsrack/newsrack/pkg/submissions"
	"github.com/newsrack/newsrack/pkg/titles"
	"github.com/newsrack/newsrack/pkg/tracking"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// RunResult reports what one orchestrator invocation did.
type RunResult struct {
	Submitted int `json:"submitted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Orchestrator struct {
	cfg               *config.Config
	db                *bun.DB
	trackingService   *tracking.Service
	submissionService *submissions.Service
	index             *dedup.Index
	providers         []providers.SearchProvider
	client            downloadclient.Client
}

func New(cfg *config.Config, db *bun.DB, searchProviders []providers.SearchProvider, client downloadclient.Client) *Orchestrator {
	return &Orchestrator{
		cfg:               cfg,
		db:                db,
		trackingService:   tracking.NewService(db),
		submissionService: submissions.NewService(db),
		index:             dedup.NewIndex(db),
		providers:         searchProviders,
		client:            client,
	}
}

// candidate is a provider result annotated with its group key during
// filtering.
type candidate struct {
	result   providers.Result
	groupKey string
}

// Run executes one acquisition pass for a tracking record. Provider
// failures are isolated; a provider that errors contributes no results
// but never aborts the pass. Given identical catalog state and provider
// responses, Run produces the same submissions in the same order.
func (o *Orchestrator) Run(ctx context.Context, trackingID int) (*RunResult, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"tracking_id": trackingID})
	result := &RunResult{}

	tracked, err := o.trackingService.RetrieveTracking(ctx, tracking.RetrieveTrackingOptions{
		ID: &trackingID,
	})
	if err != nil {
		return nil, err
	}

	results := o.searchAll(ctx, log, tracked.Title)
	if len(results) == 0 {
		return result, nil
	}

	var latestSubmission *time.Time
	if tracked.TrackNewOnly {
		latestSubmission, err = o.latestSubmissionTime(ctx, tracked.ID)
		if err != nil {
			return nil, err
		}
	}

	kept := make([]candidate, 0, len(results))
	duplicates := make([]candidate, 0)
	seenKeys := map[string]bool{}

	for _, r := range results {
		c := candidate{result: r, groupKey: dedup.GroupKey(r.Title)}

		bad, err := o.index.IsBadFileURL(ctx, r.URL, o.cfg.DownloadMaxRetries)
		if err != nil {
			return nil, err
		}
		if bad {
			log.Info("dropping blacklisted source url", logger.Data{"url": r.URL})
			continue
		}

		submitted, err := o.index.AlreadySubmitted(ctx, tracked.ID, c.groupKey)
		if err != nil {
			return nil, err
		}
		if submitted || seenKeys[c.groupKey] {
			duplicates = append(duplicates, c)
			continue
		}

		if !o.passesTrackingMode(tracked, c, latestSubmission) {
			continue
		}
		if !o.passesYearFilter(tracked, c) {
			continue
		}

		if c.groupKey != "" {
			seenKeys[c.groupKey] = true
		}
		kept = append(kept, c)
	}

	orderCandidates(kept)

	if len(kept) > o.cfg.DownloadMaxPerBatch {
		kept = kept[:o.cfg.DownloadMaxPerBatch]
	}

	for _, c := range kept {
		if o.submitCandidate(ctx, log, tracked, c) {
			result.Submitted++
		} else {
			result.Failed++
		}
	}

	for _, c := range duplicates {
		if err := o.recordSkipped(ctx, tracked, c); err != nil {
			log.Err(err).Error("failed to record skipped submission")
			continue
		}
		result.Skipped++
	}

	log.Info("orchestrator run finished", logger.Data{
		"submitted": result.Submitted,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})

	return result, nil
}

// searchAll fans the query out to every provider, accumulating whatever
// succeeds. Provider order is configuration order, which keeps the
// overall result order deterministic.
func (o *Orchestrator) searchAll(ctx context.Context, log logger.Logger, query string) []providers.Result {
	all := []providers.Result{}
	for _, p := range o.providers {
		results, err := p.Search(ctx, query)
		if err != nil {
			log.Err(err).Error("provider search failed", logger.Data{"provider": p.Name()})
			continue
		}
		all = append(all, results...)
	}
	return all
}

func (o *Orchestrator) latestSubmissionTime(ctx context.Context, trackingID int) (*time.Time, error) {
	latest := &models.Submission{}
	err := o.db.NewSelect().
		Model(latest).
		Column("s.created_at").
		Where("s.tracking_id = ?", trackingID).
		Order("s.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return &latest.CreatedAt, nil
}

func (o *Orchestrator) passesTrackingMode(tracked *models.Tracking, c candidate, latestSubmission *time.Time) bool {
	switch {
	case tracked.TrackAllEditions:
		return true
	case tracked.TrackNewOnly:
		if latestSubmission == nil {
			return true
		}
		// A result without a publication date can't be proven old; let
		// the dedup index catch it if it was already acquired.
		if c.result.PublicationDate == nil {
			return true
		}
		return !c.result.PublicationDate.Before(*latestSubmission)
	default:
		editionID := o.editionID(tracked, c)
		return editionID != "" && tracked.SelectedEditionsParsed[editionID]
	}
}

// editionID derives the edition identifier of a result, either from the
// provider metadata (olid preferred over edition_id) or by fuzzy-matching
// the result title against the tracking's known editions.
func (o *Orchestrator) editionID(tracked *models.Tracking, c candidate) string {
	if v, ok := c.result.Metadata["olid"].(string); ok && v != "" {
		return v
	}
	if v, ok := c.result.Metadata["edition_id"].(string); ok && v != "" {
		return v
	}

	editions, ok := tracked.MetadataParsed["editions"].([]any)
	if !ok {
		return ""
	}
	cleaned := titles.Clean(c.result.Title)
	for _, e := range editions {
		edition, ok := e.(map[string]any)
		if !ok {
			continue
		}
		title, _ := edition["title"].(string)
		id, _ := edition["olid"].(string)
		if id == "" {
			id, _ = edition["edition_id"].(string)
		}
		if id == "" || title == "" {
			continue
		}
		if titles.Matches(cleaned, title, o.cfg.FuzzyThreshold) {
			return id
		}
	}
	return ""
}

func (o *Orchestrator) passesYearFilter(tracked *models.Tracking, c candidate) bool {
	if len(tracked.SelectedYearsParsed) == 0 {
		return true
	}
	if c.result.PublicationDate == nil {
		return false
	}
	return tracked.YearSelected(c.result.PublicationDate.Year())
}

// orderCandidates sorts English results first, then other languages
// alphabetically, newest publication date first within a language. The
// sort is stable so ties keep provider order.
func orderCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].result, candidates[j].result
		aRank, bRank := languageRank(a.Language), languageRank(b.Language)
		if aRank != bRank {
			return aRank < bRank
		}
		if aRank != 0 && a.Language != b.Language {
			return a.Language < b.Language
		}
		switch {
		case a.PublicationDate == nil && b.PublicationDate == nil:
			return false
		case b.PublicationDate == nil:
			return true
		case a.PublicationDate == nil:
			return false
		}
		return a.PublicationDate.After(*b.PublicationDate)
	})
}

func languageRank(language string) int {
	if language == "" || language == "English" {
		return 0
	}
	return 1
}

// submitCandidate persists the audit row and hands the URL to the
// download client. Returns true when a PENDING submission was created.
func (o *Orchestrator) submitCandidate(ctx context.Context, log logger.Logger, tracked *models.Tracking, c candidate) bool {
	searchResult := &models.SearchResult{
		Provider:          c.result.Provider,
		Query:             tracked.Title,
		Title:             c.result.Title,
		URL:               c.result.URL,
		PublicationDate:   c.result.PublicationDate,
		RawMetadataParsed: c.result.Metadata,
	}
	if c.groupKey != "" {
		searchResult.GroupKey = &c.groupKey
	}
	if err := o.submissionService.CreateSearchResult(ctx, searchResult); err != nil {
		// Audit only; the submission itself still proceeds.
		log.Err(err).Error("failed to persist search result", logger.Data{"url": c.result.URL})
	}

	// Failed submissions are terminal and never re-polled, so a retry of
	// the same URL is a fresh row numbered after its predecessors. The
	// bad-file threshold is judged against that running count.
	priorFailures, err := o.index.FailedAttempts(ctx, c.result.URL)
	if err != nil {
		log.Err(err).Error("failed to count prior failures", logger.Data{"url": c.result.URL})
		priorFailures = 0
	}

	submission := &models.Submission{
		TrackingID:   tracked.ID,
		Status:       models.SubmissionStatusPending,
		SourceURL:    c.result.URL,
		ResultTitle:  c.result.Title,
		AttemptCount: priorFailures + 1,
	}
	if searchResult.ID != 0 {
		submission.SearchResultID = &searchResult.ID
	}
	if c.groupKey != "" {
		submission.GroupKey = &c.groupKey
	}
	clientName := o.client.Name()
	submission.ClientName = &clientName

	jobID, err := o.client.Submit(ctx, c.result.URL, c.result.Title)
	switch {
	case err != nil:
		msg := err.Error()
		submission.Status = models.SubmissionStatusFailed
		submission.LastError = &msg
	case jobID == "":
		msg := "Client rejected submission"
		submission.Status = models.SubmissionStatusFailed
		submission.LastError = &msg
	default:
		submission.JobID = &jobID
	}

	if err := o.submissionService.CreateSubmission(ctx, submission); err != nil {
		log.Err(err).Error("failed to persist submission", logger.Data{"url": c.result.URL})
		return false
	}

	return submission.Status == models.SubmissionStatusPending
}

// recordSkipped writes the audit-only SKIPPED row for a duplicate
// detected at submit time.
func (o *Orchestrator) recordSkipped(ctx context.Context, tracked *models.Tracking, c candidate) error {
	submission := &models.Submission{
		TrackingID:   tracked.ID,
		Status:       models.SubmissionStatusSkipped,
		SourceURL:    c.result.URL,
		ResultTitle:  c.result.Title,
		AttemptCount: 1,
	}
	if c.groupKey != "" {
		submission.GroupKey = &c.groupKey
	}
	return o.submissionService.CreateSubmission(ctx, submission)
}
