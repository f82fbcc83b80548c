package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// Group-key lookups against the audit trail when re-linking results
		// to submissions.
		_, err := db.Exec(`CREATE INDEX ix_search_results_fuzzy_match_group_id ON search_results(fuzzy_match_group_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_search_results_url ON search_results(url)`)
		if err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP INDEX IF EXISTS ix_search_results_url`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DROP INDEX IF EXISTS ix_search_results_fuzzy_match_group_id`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
