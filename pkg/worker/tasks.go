package worker

import (
	"context"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/covers"
	"github.com/newsrack/newsrack/pkg/monitor"
	"github.com/newsrack/newsrack/pkg/orchestrator"
	"github.com/newsrack/newsrack/pkg/tracking"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Default task names.
const (
	TaskDownloadMonitor = "download_monitor"
	TaskAutoDownload    = "auto_download"
	TaskCleanupCovers   = "cleanup_orphaned_covers"
)

// RegisterDefaultTasks wires the standard background tasks onto the
// scheduler. The covers extractor may be nil, in which case the cover
// maintenance task is not registered.
func RegisterDefaultTasks(s *Scheduler, cfg *config.Config, db *bun.DB, orch *orchestrator.Orchestrator, mon *monitor.Monitor, extractor *covers.Extractor) {
	s.Register(TaskDownloadMonitor, cfg.DownloadMonitorInterval(), mon.Run)

	trackingService := tracking.NewService(db)
	s.Register(TaskAutoDownload, cfg.AutoDownloadInterval(), func(ctx context.Context) error {
		return autoDownload(ctx, trackingService, orch)
	})

	if extractor != nil {
		s.Register(TaskCleanupCovers, cfg.CleanupCoversInterval(), func(ctx context.Context) error {
			if _, err := extractor.CleanupOrphans(ctx, db); err != nil {
				return err
			}
			_, err := extractor.RegenerateMissing(ctx, db)
			return err
		})
	}
}

// autoDownload runs one acquisition pass for every tracking record with an
// active mode. A failing record is logged and the walk continues.
func autoDownload(ctx context.Context, trackingService *tracking.Service, orch *orchestrator.Orchestrator) error {
	log := logger.FromContext(ctx)

	records, err := trackingService.ListTracking(ctx, tracking.ListTrackingOptions{ActiveOnly: true})
	if err != nil {
		return err
	}

	for _, record := range records {
		result, err := orch.Run(ctx, record.ID)
		if err != nil {
			log.Err(err).Error("acquisition pass failed", logger.Data{"tracking_id": record.ID})
			continue
		}
		if result.Submitted > 0 || result.Failed > 0 {
			log.Info("acquisition pass finished", logger.Data{
				"tracking_id": record.ID,
				"submitted":   result.Submitted,
				"skipped":     result.Skipped,
				"failed":      result.Failed,
			})
		}
	}

	return nil
}
