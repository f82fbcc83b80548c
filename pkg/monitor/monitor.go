// Package monitor drives every in-flight submission toward a terminal
// state by polling the download client, reconciling lost jobs against the
// filesystem, handing finished files to the importer, and sweeping the
// downloads directory for loose issue files.
package monitor

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/downloadclient"
	"github.com/newsrack/newsrack/pkg/fileutils"
	"github.com/newsrack/newsrack/pkg/importer"
	"github.com/newsrack/newsrack/pkg/locator"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/submissions"
	"github.com/newsrack/newsrack/pkg/tracking"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

var issueExtensions = map[string]bool{
	".pdf":  true,
	".epub": true,
}

// Stats are in-process counters for the monitor; they reset on restart.
type Stats struct {
	TotalRuns                int64      `json:"total_runs"`
	ClientDownloadsProcessed int64      `json:"client_downloads_processed"`
	ClientDownloadsFailed    int64      `json:"client_downloads_failed"`
	FolderFilesImported      int64      `json:"folder_files_imported"`
	BadFilesDetected         int64      `json:"bad_files_detected"`
	LastClientCheck          *time.Time `json:"last_client_check,omitempty"`
	LastFolderScan           *time.Time `json:"last_folder_scan,omitempty"`
}

type Monitor struct {
	cfg               *config.Config
	submissionService *submissions.Service
	trackingService   *tracking.Service
	client            downloadclient.Client
	loc               *locator.Locator
	importer          *importer.Importer

	runMu   sync.Mutex
	statsMu sync.Mutex
	stats   Stats
}

func New(cfg *config.Config, db *bun.DB, client downloadclient.Client, imp *importer.Importer) *Monitor {
	return &Monitor{
		cfg:               cfg,
		submissionService: submissions.NewService(db),
		trackingService:   tracking.NewService(db),
		client:            client,
		loc:               locator.New(cfg.DownloadDir),
		importer:          imp,
	}
}

// Stats returns a snapshot of the in-process counters.
func (m *Monitor) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Monitor) updateStats(fn func(*Stats)) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	fn(&m.stats)
}

// Run executes one monitor pass: poll the client for every active
// submission, then sweep the downloads directory. Runs never overlap; a
// tick that arrives while a pass is still going is dropped.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.runMu.TryLock() {
		return nil
	}
	defer m.runMu.Unlock()

	m.updateStats(func(s *Stats) { s.TotalRuns++ })

	if err := m.checkClient(ctx); err != nil {
		return err
	}
	return m.scanFolder(ctx)
}

// checkClient advances every active submission through the status state
// machine and hands completed ones to the importer.
func (m *Monitor) checkClient(ctx context.Context) error {
	log := logger.FromContext(ctx)

	active, err := m.submissionService.ListActiveSubmissions(ctx)
	if err != nil {
		return err
	}

	for _, submission := range active {
		switch submission.Status {
		case models.SubmissionStatusPending, models.SubmissionStatusDownloading:
			if submission.JobID == nil {
				continue
			}
			if err := m.pollSubmission(ctx, log, submission); err != nil {
				log.Err(err).Error("failed to poll submission", logger.Data{"submission_id": submission.ID})
				continue
			}
		}

		if submission.Status == models.SubmissionStatusCompleted && submission.Filepath != nil {
			m.handleCompleted(ctx, log, submission)
		}
	}

	now := time.Now()
	m.updateStats(func(s *Stats) { s.LastClientCheck = &now })
	return nil
}

// pollSubmission applies one client status report to a submission.
func (m *Monitor) pollSubmission(ctx context.Context, log logger.Logger, submission *models.Submission) error {
	job, err := m.client.Status(ctx, *submission.JobID)
	if err != nil {
		if errors.Is(err, downloadclient.ErrJobNotFound) {
			return m.reconcileLostJob(ctx, log, submission)
		}
		return err
	}

	switch job.Status {
	case downloadclient.JobStatusCompleted:
		submission.Status = models.SubmissionStatusCompleted
		if job.Filepath != "" {
			submission.Filepath = &job.Filepath
		}
		return m.submissionService.UpdateSubmission(ctx, submission, submissions.UpdateSubmissionOptions{
			Columns: []string{"status", "file_path"},
		})

	case downloadclient.JobStatusDownloading:
		if submission.Status == models.SubmissionStatusDownloading {
			return nil
		}
		submission.Status = models.SubmissionStatusDownloading
		return m.submissionService.UpdateSubmission(ctx, submission, submissions.UpdateSubmissionOptions{
			Columns: []string{"status"},
		})

	case downloadclient.JobStatusFailed:
		return m.markFailed(ctx, log, submission, job.ErrorMessage)

	default:
		// Still queued; a queued report for a submission that was already
		// downloading means the client lost the job.
		if submission.Status == models.SubmissionStatusDownloading {
			return m.reconcileLostJob(ctx, log, submission)
		}
		return nil
	}
}

// markFailed parks the submission in its terminal failed state. The
// attempt number was fixed at creation; the orchestrator numbers a retry
// of the same URL as the next attempt.
func (m *Monitor) markFailed(ctx context.Context, log logger.Logger, submission *models.Submission, message string) error {
	submission.Status = models.SubmissionStatusFailed
	if message == "" {
		message = "download failed"
	}
	submission.LastError = &message

	err := m.submissionService.UpdateSubmission(ctx, submission, submissions.UpdateSubmissionOptions{
		Columns: []string{"status", "last_error"},
	})
	if err != nil {
		return err
	}

	m.updateStats(func(s *Stats) { s.ClientDownloadsFailed++ })

	if submission.BadFile(m.cfg.DownloadMaxRetries) {
		m.updateStats(func(s *Stats) { s.BadFilesDetected++ })
		log.Error("download failed repeatedly, treating source as bad file", logger.Data{
			"submission_id": submission.ID,
			"source_url":    submission.SourceURL,
			"attempt_count": submission.AttemptCount,
		})
	}

	m.deleteFromClient(ctx, log, submission, true)
	return nil
}

// reconcileLostJob handles a job the client no longer reports, which
// happens when the client prunes its history after completion. If the
// file can be found on disk the download evidently finished.
func (m *Monitor) reconcileLostJob(ctx context.Context, log logger.Logger, submission *models.Submission) error {
	hint := submission.ResultTitle
	if submission.Filepath != nil {
		hint = *submission.Filepath
	}

	found := m.loc.Find(hint)
	if found == "" {
		log.Warn("job vanished from client and no local file found", logger.Data{
			"submission_id": submission.ID,
			"job_id":        *submission.JobID,
		})
		return nil
	}

	submission.Status = models.SubmissionStatusCompleted
	submission.Filepath = &found
	return m.submissionService.UpdateSubmission(ctx, submission, submissions.UpdateSubmissionOptions{
		Columns: []string{"status", "file_path"},
	})
}

// handleCompleted resolves the reported path and runs the import
// pipeline. Import failures park the submission in import_failed so the
// monitor stops reprocessing it until the operator intervenes.
func (m *Monitor) handleCompleted(ctx context.Context, log logger.Logger, submission *models.Submission) {
	resolved := m.loc.Find(*submission.Filepath)
	if resolved == "" {
		log.Warn("completed download not found on disk yet", logger.Data{
			"submission_id": submission.ID,
			"file_path":     *submission.Filepath,
		})
		return
	}

	_, err := m.importer.ImportSubmission(ctx, submission, resolved, importer.Options{})
	if err != nil {
		log.Err(err).Error("import failed", logger.Data{"submission_id": submission.ID})
		message := err.Error()
		submission.Status = models.SubmissionStatusImportFailed
		submission.LastError = &message
		updateErr := m.submissionService.UpdateSubmission(ctx, submission, submissions.UpdateSubmissionOptions{
			Columns: []string{"status", "last_error"},
		})
		if updateErr != nil {
			log.Err(updateErr).Error("failed to mark submission import_failed", logger.Data{"submission_id": submission.ID})
		}
		return
	}

	m.updateStats(func(s *Stats) { s.ClientDownloadsProcessed++ })
	m.deleteFromClient(ctx, log, submission, false)
}

// deleteFromClient removes the job from the client when the tracking
// record asks for it. Best-effort on both the lookup and the delete.
func (m *Monitor) deleteFromClient(ctx context.Context, log logger.Logger, submission *models.Submission, removeFiles bool) {
	if submission.JobID == nil {
		return
	}

	tracked, err := m.trackingService.RetrieveTracking(ctx, tracking.RetrieveTrackingOptions{ID: &submission.TrackingID})
	if err != nil || !tracked.DeleteFromClient {
		return
	}

	if err := m.client.Delete(ctx, *submission.JobID, removeFiles); err != nil {
		log.Err(err).Error("failed to delete job from client", logger.Data{"job_id": *submission.JobID})
	}
}

// scanFolder imports loose issue files sitting in the downloads
// directory that no active submission owns.
func (m *Monitor) scanFolder(ctx context.Context) error {
	log := logger.FromContext(ctx)

	claimed, err := m.claimedPaths(ctx)
	if err != nil {
		return err
	}

	walkErr := filepath.WalkDir(m.cfg.DownloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if fileutils.WithinDir(m.cfg.OrganizeDir, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !issueExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if fileutils.WithinDir(m.cfg.OrganizeDir, path) || claimed[path] {
			return nil
		}

		result, err := m.importer.ImportFile(ctx, path, importer.Options{})
		if err != nil {
			log.Err(err).Error("failed to import loose file", logger.Data{"path": path})
			return nil
		}
		if result.Periodical != nil {
			m.updateStats(func(s *Stats) { s.FolderFilesImported++ })
		}
		return nil
	})
	if walkErr != nil {
		return errors.WithStack(walkErr)
	}

	now := time.Now()
	m.updateStats(func(s *Stats) { s.LastFolderScan = &now })
	return nil
}

// claimedPaths returns the file paths active submissions still own, so
// the folder scan does not race the client hand-off.
func (m *Monitor) claimedPaths(ctx context.Context) (map[string]bool, error) {
	active, err := m.submissionService.ListActiveSubmissions(ctx)
	if err != nil {
		return nil, err
	}

	claimed := map[string]bool{}
	for _, submission := range active {
		if submission.Filepath != nil {
			claimed[*submission.Filepath] = true
			if resolved := m.loc.Find(*submission.Filepath); resolved != "" {
				claimed[resolved] = true
			}
		}
	}
	return claimed, nil
}
