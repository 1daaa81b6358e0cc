// Package dump dumps every catalog database to <save>/<database>.sql.
package dump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fgeck/pgbackuper/internal/metrics"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/notify"
	"github.com/fgeck/pgbackuper/internal/services/postgres"
	"github.com/rs/zerolog"
)

// Service defines the interface for dump passes.
type Service interface {
	DumpAll(ctx context.Context, profile models.ConnectionProfile, databases []string, saveDir string) *models.PassReport
}

// Impl dumps databases one at a time, in the order given.
type Impl struct {
	postgresSvc postgres.Service
	notifier    notify.Notifier
	logger      zerolog.Logger
}

// New creates a new dump orchestrator.
func New(logger zerolog.Logger, postgresSvc postgres.Service, notifier notify.Notifier) *Impl {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Impl{
		postgresSvc: postgresSvc,
		notifier:    notifier,
		logger:      logger,
	}
}

// DumpAll dumps each database sequentially. A failed database is recorded in
// the report and never stops the remaining ones.
func (s *Impl) DumpAll(ctx context.Context, profile models.ConnectionProfile, databases []string, saveDir string) *models.PassReport {
	report := &models.PassReport{
		Kind:      models.PassBackup,
		StartTime: time.Now(),
	}

	s.logger.Info().
		Int("databases", len(databases)).
		Str("save_path", saveDir).
		Msg("starting dump pass")

	notify.Deliver(ctx, s.notifier, models.TextMessage(notify.BackupStartMessage(len(databases))), s.logger)

	for _, database := range databases {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("dump pass interrupted")
			break
		}
		outcome := s.dumpOne(ctx, profile, models.NewDumpTask(database, saveDir))
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Duration = time.Since(report.StartTime)
	metrics.PassDuration.WithLabelValues(string(models.PassBackup)).Observe(report.Duration.Seconds())

	s.logger.Info().
		Int("dumped", report.Succeeded()).
		Int("total", len(databases)).
		Strs("failed", report.Failed()).
		Dur("duration", report.Duration).
		Msg("databases dumped")

	return report
}

func (s *Impl) dumpOne(ctx context.Context, profile models.ConnectionProfile, task models.DumpTask) models.TaskOutcome {
	start := time.Now()
	outcome := models.TaskOutcome{
		Database: task.Database,
		Path:     task.Path,
	}

	fail := func(err error) models.TaskOutcome {
		outcome.Error = err
		outcome.Duration = time.Since(start)
		metrics.RecordTask(string(models.PassBackup), false)
		s.logger.Error().
			Err(err).
			Str("database", task.Database).
			Msg("dump failed")
		return outcome
	}

	if err := models.CheckDumpName(task.Database); err != nil {
		outcome.Path = ""
		return fail(err)
	}

	if err := os.MkdirAll(filepath.Dir(task.Path), 0o750); err != nil {
		return fail(fmt.Errorf("%w: failed to create save directory: %w", models.ErrIO, err))
	}

	s.logger.Info().
		Str("database", task.Database).
		Str("output", task.Path).
		Msg("starting dump")

	if err := s.postgresSvc.Dump(ctx, profile, task); err != nil {
		// pg_dump truncates the target before failing; drop the partial file.
		_ = os.Remove(task.Path)
		return fail(err)
	}

	info, err := os.Stat(task.Path)
	if err != nil {
		return fail(fmt.Errorf("%w: dump file missing after pg_dump: %w", models.ErrIO, err))
	}

	outcome.SizeBytes = info.Size()
	outcome.Duration = time.Since(start)
	metrics.RecordTask(string(models.PassBackup), true)
	metrics.DumpSize.WithLabelValues(task.Database).Set(float64(outcome.SizeBytes))

	s.logger.Info().
		Str("database", task.Database).
		Int64("size_bytes", outcome.SizeBytes).
		Dur("duration", outcome.Duration).
		Msg("dump completed")

	notify.Deliver(ctx, s.notifier, models.FileUpload(task.Path, filepath.Base(task.Path)), s.logger)

	return outcome
}
