package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// Single-row credential store.
		_, err := db.Exec(`
			CREATE TABLE credentials (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				username TEXT NOT NULL,
				password_hash TEXT NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Catalog of imported issues.
		_, err = db.Exec(`
			CREATE TABLE periodicals (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				issn TEXT,
				title TEXT NOT NULL,
				publisher TEXT,
				language TEXT NOT NULL DEFAULT 'English',
				issue_date TIMESTAMPTZ NOT NULL,
				file_path TEXT NOT NULL UNIQUE,
				cover_path TEXT,
				extra_metadata TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_periodicals_title ON periodicals(title)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_periodicals_issue_date ON periodicals(issue_date)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Tracking preferences per periodical title.
		_, err = db.Exec(`
			CREATE TABLE periodical_tracking (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				olid TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL,
				publisher TEXT,
				issn TEXT,
				language TEXT NOT NULL DEFAULT 'English',
				category TEXT NOT NULL DEFAULT 'Magazines',
				first_publish_year INTEGER,
				total_editions_known INTEGER NOT NULL DEFAULT 0,
				track_all_editions BOOLEAN NOT NULL DEFAULT FALSE,
				track_new_only BOOLEAN NOT NULL DEFAULT FALSE,
				selected_editions TEXT,
				selected_years TEXT,
				delete_from_client_on_completion BOOLEAN NOT NULL DEFAULT FALSE,
				periodical_metadata TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_periodical_tracking_olid ON periodical_tracking(olid)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Provider results, retained as an audit trail.
		_, err = db.Exec(`
			CREATE TABLE search_results (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				provider TEXT NOT NULL,
				query TEXT NOT NULL,
				title TEXT NOT NULL,
				url TEXT NOT NULL,
				publication_date TIMESTAMPTZ,
				raw_metadata TEXT,
				fuzzy_match_group_id TEXT,
				magazine_id INTEGER REFERENCES periodicals(id) ON DELETE SET NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// One row per download attempt; doubles as the dedup index.
		_, err = db.Exec(`
			CREATE TABLE download_submissions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				tracking_id INTEGER NOT NULL REFERENCES periodical_tracking(id) ON DELETE CASCADE,
				search_result_id INTEGER REFERENCES search_results(id) ON DELETE SET NULL,
				job_id TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				source_url TEXT NOT NULL,
				result_title TEXT NOT NULL,
				fuzzy_match_group TEXT,
				client_name TEXT,
				attempt_count INTEGER NOT NULL DEFAULT 1,
				last_error TEXT,
				file_path TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_download_submissions_tracking_id ON download_submissions(tracking_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_download_submissions_job_id ON download_submissions(job_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_download_submissions_status ON download_submissions(status)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_download_submissions_fuzzy_match_group ON download_submissions(fuzzy_match_group)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"download_submissions", "search_results", "periodical_tracking", "periodicals", "credentials"} {
			_, err := db.Exec(`DROP TABLE IF EXISTS ` + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
