package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/dedup"
	"github.com/newsrack/newsrack/pkg/downloadclient"
	"github.com/newsrack/newsrack/pkg/importer"
	"github.com/newsrack/newsrack/pkg/migrations"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/newsrack/newsrack/pkg/monitor"
	"github.com/newsrack/newsrack/pkg/providers"
	"github.com/robinjoseph08/golib/pointerutil"
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

type stubProvider struct {
	name    string
	results []providers.Result
	err     error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(ctx context.Context, query string) ([]providers.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.results, nil
}

type stubClient struct {
	nextJob   int
	rejectAll bool
	failAll   bool
	submitted []string
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) Submit(ctx context.Context, sourceURL, niceName string) (string, error) {
	c.submitted = append(c.submitted, sourceURL)
	if c.rejectAll {
		return "", nil
	}
	c.nextJob++
	return fmt.Sprintf("job_%d", c.nextJob), nil
}

func (c *stubClient) Status(ctx context.Context, jobID string) (*downloadclient.Job, error) {
	if c.failAll {
		return &downloadclient.Job{
			ID:           jobID,
			Status:       downloadclient.JobStatusFailed,
			ErrorMessage: "CRC check failed",
		}, nil
	}
	return nil, downloadclient.ErrJobNotFound
}

func (c *stubClient) ListJobs(ctx context.Context) ([]downloadclient.Job, error) {
	return nil, nil
}

func (c *stubClient) Delete(ctx context.Context, jobID string, removeFiles bool) error {
	return nil
}

func createTracking(t *testing.T, db *bun.DB, tracked *models.Tracking) *models.Tracking {
	t.Helper()
	require.NoError(t, tracked.MarshalData())
	_, err := db.NewInsert().Model(tracked).Returning("*").Exec(context.Background())
	require.NoError(t, err)
	return tracked
}

func listSubmissions(t *testing.T, db *bun.DB, statuses ...string) []*models.Submission {
	t.Helper()
	subs := []*models.Submission{}
	q := db.NewSelect().Model(&subs).Order("s.id ASC")
	if len(statuses) > 0 {
		q = q.Where("s.status IN (?)", bun.In(statuses))
	}
	require.NoError(t, q.Scan(context.Background()))
	return subs
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// First-run batch cap: 15 distinct results, cap 10, English first; the
// second run picks up the remainder.
func TestRun_BatchCapAndLanguageOrder(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})

	results := make([]providers.Result, 0, 15)
	for i := 0; i < 5; i++ {
		results = append(results, providers.Result{
			Provider: "p1",
			Title:    fmt.Sprintf("Wired English Issue%02d 2023", i),
			URL:      fmt.Sprintf("https://x/en/%d", i),
			Language: "English",
			PublicationDate: datePtr(2023, time.Month(i+1), 1),
		})
	}
	for i := 0; i < 10; i++ {
		results = append(results, providers.Result{
			Provider: "p1",
			Title:    fmt.Sprintf("Wired German Ausgabe%02d 2023", i),
			URL:      fmt.Sprintf("https://x/de/%d", i),
			Language: "German",
			PublicationDate: datePtr(2023, time.Month(i+1), 1),
		})
	}

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{name: "p1", results: results}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, runResult.Submitted)
	assert.Equal(t, 0, runResult.Failed)

	pending := listSubmissions(t, db, models.SubmissionStatusPending)
	require.Len(t, pending, 10)
	for i := 0; i < 5; i++ {
		assert.Contains(t, pending[i].ResultTitle, "English")
	}
	for i := 5; i < 10; i++ {
		assert.Contains(t, pending[i].ResultTitle, "German")
	}

	// Within English, newest publication first.
	assert.Contains(t, pending[0].ResultTitle, "Issue04")

	runResult, err = o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, runResult.Submitted)

	pending = listSubmissions(t, db, models.SubmissionStatusPending)
	assert.Len(t, pending, 15)
}

// Submission dedup: a month-abbreviation variant of an already completed
// issue produces a SKIPPED audit row and nothing else.
func TestRun_GroupKeyDedup(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})

	existing := &models.Submission{
		TrackingID:  tracked.ID,
		Status:      models.SubmissionStatusCompleted,
		SourceURL:   "https://x/old",
		ResultTitle: "Wired Magazine - Dec 2023",
		GroupKey:    pointerutil.String(dedup.GroupKey("Wired Magazine - Dec 2023")),
	}
	_, err := db.NewInsert().Model(existing).Exec(context.Background())
	require.NoError(t, err)

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{{
			Provider: "p1",
			Title:    "Wired Magazine December 2023",
			URL:      "https://x/new",
			Language: "English",
		}},
	}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, runResult.Submitted)
	assert.Equal(t, 1, runResult.Skipped)

	skipped := listSubmissions(t, db, models.SubmissionStatusSkipped)
	require.Len(t, skipped, 1)
	assert.Nil(t, skipped[0].JobID)
	assert.Equal(t, 1, skipped[0].AttemptCount)
	assert.Empty(t, client.submitted)
}

// Bad-file filter: a URL with three failed attempts is suppressed
// entirely, for any tracking.
func TestRun_BadFileURLSuppressed(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})
	other := createTracking(t, db, &models.Tracking{
		OLID: "OL2", Title: "Empire", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})

	badURL := "https://x/corrupt"
	bad := &models.Submission{
		TrackingID:   other.ID,
		Status:       models.SubmissionStatusFailed,
		SourceURL:    badURL,
		ResultTitle:  "Wired Magazine - Nov 2023",
		AttemptCount: cfg.DownloadMaxRetries,
	}
	_, err := db.NewInsert().Model(bad).Exec(context.Background())
	require.NoError(t, err)

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{{
			Provider: "p1",
			Title:    "Wired Magazine - Nov 2023",
			URL:      badURL,
			Language: "English",
		}},
	}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, runResult.Submitted)
	assert.Equal(t, 0, runResult.Skipped)
	assert.Empty(t, client.submitted)

	subs := listSubmissions(t, db)
	assert.Len(t, subs, 1)
}

// A URL that keeps failing is resubmitted with a running attempt number
// and drops out of the batch entirely once it burns the retry limit.
func TestRun_RepeatedFailuresBlacklistURL(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	cfg.DownloadDir = t.TempDir()
	cfg.OrganizeDir = t.TempDir()
	client := &stubClient{failAll: true}
	ctx := context.Background()

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{{
			Provider: "p1",
			Title:    "Wired Magazine - Nov 2023",
			URL:      "https://x/corrupt",
			Language: "English",
		}},
	}}, client)
	mon := monitor.New(cfg, db, client, importer.New(cfg, db, nil))

	for i := 1; i <= cfg.DownloadMaxRetries; i++ {
		runResult, err := o.Run(ctx, tracked.ID)
		require.NoError(t, err)
		require.Equal(t, 1, runResult.Submitted)
		require.NoError(t, mon.Run(ctx))
	}

	failed := listSubmissions(t, db, models.SubmissionStatusFailed)
	require.Len(t, failed, cfg.DownloadMaxRetries)
	for i, submission := range failed {
		assert.Equal(t, i+1, submission.AttemptCount)
	}

	// The next pass suppresses the URL without even a skipped row.
	runResult, err := o.Run(ctx, tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, runResult.Submitted)
	assert.Equal(t, 0, runResult.Skipped)
	assert.Len(t, client.submitted, cfg.DownloadMaxRetries)
}

func TestRun_ProviderErrorIsolated(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})

	broken := &stubProvider{name: "down", err: fmt.Errorf("connection refused")}
	working := &stubProvider{name: "up", results: []providers.Result{{
		Provider: "up",
		Title:    "Wired Magazine - Dec 2023",
		URL:      "https://x/1",
		Language: "English",
	}}}

	o := New(cfg, db, []providers.SearchProvider{broken, working}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, runResult.Submitted)
}

func TestRun_ClientRejection(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{rejectAll: true}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
	})

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{{
			Provider: "p1",
			Title:    "Wired Magazine - Dec 2023",
			URL:      "https://x/1",
			Language: "English",
		}},
	}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, runResult.Submitted)
	assert.Equal(t, 1, runResult.Failed)

	failed := listSubmissions(t, db, models.SubmissionStatusFailed)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "Client rejected submission", *failed[0].LastError)
	assert.Equal(t, 1, failed[0].AttemptCount)
}

func TestRun_SelectedYearsFilter(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackAllEditions: true,
		SelectedYearsParsed: []int{2023},
	})

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{
			{
				Provider: "p1", Title: "Wired Magazine - Dec 2023",
				URL: "https://x/2023", Language: "English",
				PublicationDate: datePtr(2023, time.December, 1),
			},
			{
				Provider: "p1", Title: "Wired Magazine - Jan 2024",
				URL: "https://x/2024", Language: "English",
				PublicationDate: datePtr(2024, time.January, 1),
			},
		},
	}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, runResult.Submitted)

	pending := listSubmissions(t, db, models.SubmissionStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://x/2023", pending[0].SourceURL)
}

func TestRun_SelectedEditionsMode(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines,
		SelectedEditionsParsed: map[string]bool{
			"OL-dec": true,
			"OL-nov": false,
		},
	})

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{
			{
				Provider: "p1", Title: "Wired Magazine - Dec 2023",
				URL: "https://x/dec", Language: "English",
				Metadata: map[string]any{"olid": "OL-dec"},
			},
			{
				Provider: "p1", Title: "Wired Magazine - Nov 2023",
				URL: "https://x/nov", Language: "English",
				Metadata: map[string]any{"olid": "OL-nov"},
			},
			{
				Provider: "p1", Title: "Wired Magazine - Oct 2023",
				URL: "https://x/oct", Language: "English",
			},
		},
	}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, runResult.Submitted)

	pending := listSubmissions(t, db, models.SubmissionStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://x/dec", pending[0].SourceURL)
}

func TestRun_NewOnlyMode(t *testing.T) {
	db := newTestDB(t)
	cfg := config.NewForTest()
	client := &stubClient{}

	tracked := createTracking(t, db, &models.Tracking{
		OLID: "OL1", Title: "Wired", Language: "English",
		Category: models.CategoryMagazines, TrackNewOnly: true,
	})

	old := &models.Submission{
		TrackingID:  tracked.ID,
		Status:      models.SubmissionStatusCompleted,
		SourceURL:   "https://x/old",
		ResultTitle: "Wired Magazine - Jun 2023",
		CreatedAt:   time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := db.NewInsert().Model(old).Exec(context.Background())
	require.NoError(t, err)

	o := New(cfg, db, []providers.SearchProvider{&stubProvider{
		name: "p1",
		results: []providers.Result{
			{
				Provider: "p1", Title: "Wired Magazine - May 2023",
				URL: "https://x/may", Language: "English",
				PublicationDate: datePtr(2023, time.May, 1),
			},
			{
				Provider: "p1", Title: "Wired Magazine - Dec 2023",
				URL: "https://x/dec", Language: "English",
				PublicationDate: datePtr(2023, time.December, 1),
			},
		},
	}}, client)

	runResult, err := o.Run(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, runResult.Submitted)

	pending := listSubmissions(t, db, models.SubmissionStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://x/dec", pending[0].SourceURL)
}
