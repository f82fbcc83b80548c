package monitor

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/downloadclient"
	"github.com/newsrack/newsrack/pkg/importer"
	"github.com/newsrack/newsrack/pkg/migrations"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/submissions"
	"github.com/newsrack/newsrack/pkg/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// stubClient serves canned job statuses and records deletes.
type stubClient struct {
	jobs    map[string]*downloadclient.Job
	deleted []string
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) Submit(_ context.Context, _, _ string) (string, error) {
	return "", nil
}

func (c *stubClient) Status(_ context.Context, jobID string) (*downloadclient.Job, error) {
	job, ok := c.jobs[jobID]
	if !ok {
		return nil, downloadclient.ErrJobNotFound
	}
	return job, nil
}

func (c *stubClient) ListJobs(_ context.Context) ([]downloadclient.Job, error) {
	jobs := []downloadclient.Job{}
	for _, job := range c.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (c *stubClient) Delete(_ context.Context, jobID string, _ bool) error {
	c.deleted = append(c.deleted, jobID)
	return nil
}

type fixture struct {
	cfg        *config.Config
	db         *bun.DB
	client     *stubClient
	monitor    *Monitor
	subService *submissions.Service
	tracked    *models.Tracking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	cfg := config.NewForTest()
	cfg.DownloadDir = t.TempDir()
	cfg.OrganizeDir = t.TempDir()

	client := &stubClient{jobs: map[string]*downloadclient.Job{}}
	imp := importer.New(cfg, db, nil)

	tracked := &models.Tracking{
		Title:            "Wired",
		Language:         "English",
		Category:         models.CategoryMagazines,
		TrackAllEditions: true,
	}
	require.NoError(t, tracking.NewService(db).CreateTracking(context.Background(), tracked))

	return &fixture{
		cfg:        cfg,
		db:         db,
		client:     client,
		monitor:    New(cfg, db, client, imp),
		subService: submissions.NewService(db),
		tracked:    tracked,
	}
}

func (f *fixture) createSubmission(t *testing.T, status, jobID string) *models.Submission {
	t.Helper()

	submission := &models.Submission{
		TrackingID:   f.tracked.ID,
		Status:       status,
		SourceURL:    "https://indexer.example/get/" + jobID,
		ResultTitle:  "Wired - Dec2023",
		AttemptCount: 1,
	}
	if jobID != "" {
		submission.JobID = &jobID
	}
	require.NoError(t, f.subService.CreateSubmission(context.Background(), submission))
	return submission
}

func (f *fixture) reload(t *testing.T, id int) *models.Submission {
	t.Helper()

	submission, err := f.subService.RetrieveSubmission(context.Background(), submissions.RetrieveSubmissionOptions{ID: &id})
	require.NoError(t, err)
	return submission
}

func writeEPUB(t *testing.T, path, title string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	opf, err := w.Create("content.opf")
	require.NoError(t, err)
	_, err = opf.Write([]byte(`<?xml version="1.0"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>` + title + `</dc:title>
  </metadata>
  <manifest/>
</package>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestRun_CompletedJobImports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := filepath.Join(f.cfg.DownloadDir, "Wired - Dec2023.epub")
	writeEPUB(t, file, "Wired")

	submission := f.createSubmission(t, models.SubmissionStatusDownloading, "job-1")
	f.client.jobs["job-1"] = &downloadclient.Job{
		ID:       "job-1",
		Status:   downloadclient.JobStatusCompleted,
		Filepath: file,
	}

	require.NoError(t, f.monitor.Run(ctx))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusCompleted, reloaded.Status)
	assert.Nil(t, reloaded.Filepath)
	assert.True(t, reloaded.Processed())

	count, err := f.db.NewSelect().Model((*models.Periodical)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stats := f.monitor.Stats()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.ClientDownloadsProcessed)
	assert.NotNil(t, stats.LastClientCheck)
	assert.NotNil(t, stats.LastFolderScan)
}

func TestRun_DownloadingJobUpdatesStatus(t *testing.T) {
	f := newFixture(t)

	submission := f.createSubmission(t, models.SubmissionStatusPending, "job-1")
	f.client.jobs["job-1"] = &downloadclient.Job{
		ID:       "job-1",
		Status:   downloadclient.JobStatusDownloading,
		Progress: 42,
	}

	require.NoError(t, f.monitor.Run(context.Background()))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusDownloading, reloaded.Status)
}

func TestRun_FailedJobParksSubmission(t *testing.T) {
	f := newFixture(t)

	submission := f.createSubmission(t, models.SubmissionStatusDownloading, "job-1")
	f.client.jobs["job-1"] = &downloadclient.Job{
		ID:           "job-1",
		Status:       downloadclient.JobStatusFailed,
		ErrorMessage: "CRC check failed",
	}

	require.NoError(t, f.monitor.Run(context.Background()))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusFailed, reloaded.Status)
	// The attempt number is fixed at creation; a first failure is not yet
	// a bad file.
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "CRC check failed", *reloaded.LastError)
	assert.False(t, reloaded.BadFile(f.cfg.DownloadMaxRetries))

	stats := f.monitor.Stats()
	assert.Equal(t, int64(1), stats.ClientDownloadsFailed)
	assert.Equal(t, int64(0), stats.BadFilesDetected)
}

func TestRun_ThirdFailureDetectsBadFile(t *testing.T) {
	f := newFixture(t)

	// The orchestrator numbered this submission as the third try of its
	// source URL.
	submission := f.createSubmission(t, models.SubmissionStatusDownloading, "job-1")
	submission.AttemptCount = 3
	require.NoError(t, f.subService.UpdateSubmission(context.Background(), submission, submissions.UpdateSubmissionOptions{
		Columns: []string{"attempt_count"},
	}))

	f.client.jobs["job-1"] = &downloadclient.Job{
		ID:     "job-1",
		Status: downloadclient.JobStatusFailed,
	}

	require.NoError(t, f.monitor.Run(context.Background()))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, 3, reloaded.AttemptCount)
	assert.True(t, reloaded.BadFile(f.cfg.DownloadMaxRetries))
	assert.Equal(t, int64(1), f.monitor.Stats().BadFilesDetected)
}

func TestRun_LostJobReconciledFromDisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The client finished the job and pruned it from history; the file is
	// on disk under the job's nice name.
	dir := filepath.Join(f.cfg.DownloadDir, "Wired - Dec2023")
	writeEPUB(t, filepath.Join(dir, "Wired - Dec2023.epub"), "Wired")

	submission := f.createSubmission(t, models.SubmissionStatusDownloading, "job-gone")

	require.NoError(t, f.monitor.Run(ctx))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusCompleted, reloaded.Status)
	assert.True(t, reloaded.Processed())

	count, err := f.db.NewSelect().Model((*models.Periodical)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_LostJobWithoutFileLeftAlone(t *testing.T) {
	f := newFixture(t)

	submission := f.createSubmission(t, models.SubmissionStatusDownloading, "job-gone")

	require.NoError(t, f.monitor.Run(context.Background()))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusDownloading, reloaded.Status)
}

func TestRun_ImportFailureParksSubmission(t *testing.T) {
	f := newFixture(t)

	// A corrupt pdf fails validation inside the import pipeline.
	file := filepath.Join(f.cfg.DownloadDir, "Wired - Dec2023.pdf")
	require.NoError(t, os.WriteFile(file, []byte("not a pdf"), 0o644))

	submission := f.createSubmission(t, models.SubmissionStatusCompleted, "job-1")
	submission.Filepath = &file
	require.NoError(t, f.subService.UpdateSubmission(context.Background(), submission, submissions.UpdateSubmissionOptions{
		Columns: []string{"file_path"},
	}))

	require.NoError(t, f.monitor.Run(context.Background()))

	reloaded := f.reload(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusImportFailed, reloaded.Status)
	assert.NotNil(t, reloaded.LastError)

	// The source file stays for a manual retry.
	_, err := os.Stat(file)
	assert.NoError(t, err)
}

func TestRun_DeleteFromClientAfterImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tracked.DeleteFromClient = true
	require.NoError(t, tracking.NewService(f.db).UpdateTracking(ctx, f.tracked, tracking.UpdateTrackingOptions{
		Columns: []string{"delete_from_client_on_completion"},
	}))

	file := filepath.Join(f.cfg.DownloadDir, "Wired - Dec2023.epub")
	writeEPUB(t, file, "Wired")

	f.createSubmission(t, models.SubmissionStatusDownloading, "job-1")
	f.client.jobs["job-1"] = &downloadclient.Job{
		ID:       "job-1",
		Status:   downloadclient.JobStatusCompleted,
		Filepath: file,
	}

	require.NoError(t, f.monitor.Run(ctx))

	assert.Equal(t, []string{"job-1"}, f.client.deleted)
}

func TestRun_FolderScanImportsLooseFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loose := filepath.Join(f.cfg.DownloadDir, "incoming", "Empire - Jan2024.epub")
	writeEPUB(t, loose, "Empire")

	// Files already inside the organize directory are never re-imported.
	organized := filepath.Join(f.cfg.OrganizeDir, "_Magazines", "Wired", "2023", "Wired - Dec2023.epub")
	writeEPUB(t, organized, "Wired")

	require.NoError(t, f.monitor.Run(ctx))

	count, err := f.db.NewSelect().Model((*models.Periodical)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	periodical := &models.Periodical{}
	require.NoError(t, f.db.NewSelect().Model(periodical).Scan(ctx))
	assert.Equal(t, "Empire", periodical.Title)

	assert.Equal(t, int64(1), f.monitor.Stats().FolderFilesImported)

	// The loose file moved into the library.
	_, err = os.Stat(loose)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_FolderScanSkipsClaimedFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := filepath.Join(f.cfg.DownloadDir, "Wired - Dec2023.epub")
	writeEPUB(t, file, "Wired")

	// A downloading submission owns this path; the scan must not steal it.
	submission := f.createSubmission(t, models.SubmissionStatusDownloading, "job-1")
	submission.Filepath = &file
	require.NoError(t, f.subService.UpdateSubmission(ctx, submission, submissions.UpdateSubmissionOptions{
		Columns: []string{"file_path"},
	}))
	f.client.jobs["job-1"] = &downloadclient.Job{
		ID:     "job-1",
		Status: downloadclient.JobStatusDownloading,
	}

	require.NoError(t, f.monitor.Run(ctx))

	count, err := f.db.NewSelect().Model((*models.Periodical)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = os.Stat(file)
	assert.NoError(t, err)
}

func TestStats_Snapshot(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.monitor.Run(context.Background()))
	require.NoError(t, f.monitor.Run(context.Background()))

	assert.Equal(t, int64(2), f.monitor.Stats().TotalRuns)
}
