package main

import (
	"context"
	"net/http"
	"os"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/covers"
	"github.com/newsrack/newsrack/pkg/database"
	"github.com/newsrack/newsrack/pkg/downloadclient"
	"github.com/newsrack/newsrack/pkg/importer"
	"github.com/newsrack/newsrack/pkg/migrations"
	"github.com/newsrack/newsrack/pkg/monitor"
	"github.com/newsrack/newsrack/pkg/orchestrator"
	"github.com/newsrack/newsrack/pkg/providers"
	"github.com/newsrack/newsrack/pkg/server"
	"github.com/newsrack/newsrack/pkg/version"
	"github.com/newsrack/newsrack/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting newsrack", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := initDirs(cfg); err != nil {
		log.Err(err).Fatal("storage directory error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	searchProviders, err := providers.NewAll(cfg.Providers, cfg.HTTPTimeout())
	if err != nil {
		log.Err(err).Fatal("provider config error")
	}
	log.Info("search providers configured", logger.Data{"count": len(searchProviders)})

	client, err := downloadclient.New(cfg.DownloadClient, cfg.HTTPTimeout())
	if err != nil {
		log.Err(err).Fatal("download client config error")
	}

	// A failed pdfium init leaves the app functional, just without covers.
	extractor, err := covers.NewExtractor(cfg)
	var coverExtractor importer.CoverExtractor
	if err != nil {
		log.Err(err).Warn("cover extraction disabled")
		extractor = nil
	} else {
		coverExtractor = extractor
	}

	imp := importer.New(cfg, db, coverExtractor)
	mon := monitor.New(cfg, db, client, imp)
	orch := orchestrator.New(cfg, db, searchProviders, client)

	scheduler := worker.NewScheduler()
	worker.RegisterDefaultTasks(scheduler, cfg, db, orch, mon, extractor)

	srv := server.New(cfg, db, imp, mon, scheduler)

	graceful := signals.Setup()

	go func() {
		log.Info("server started", logger.Data{"addr": srv.Addr})
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	scheduler.Start()
	log.Info("scheduler started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	scheduler.Stop()
	log.Info("scheduler stopped")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initDirs creates the storage directories and verifies the download dir is
// writable, since the monitor moves files out of it.
func initDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.DownloadDir, cfg.OrganizeDir, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	}

	testFile := cfg.DownloadDir + "/.write_test"
	f, err := os.Create(testFile)
	if err != nil {
		return errors.Wrapf(err, "download directory is not writable: %s", cfg.DownloadDir)
	}
	f.Close()

	if err := os.Remove(testFile); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", testFile)
	}

	return nil
}
