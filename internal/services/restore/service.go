// Package restore replays a directory of <database>.sql dump files.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fgeck/pgbackuper/internal/metrics"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/notify"
	"github.com/fgeck/pgbackuper/internal/services/postgres"
	"github.com/rs/zerolog"
)

// Service defines the interface for restore passes.
type Service interface {
	RestoreAll(ctx context.Context, profile models.ConnectionProfile, restoreDir string) (*models.PassReport, error)
}

// Impl restores dump files one at a time.
type Impl struct {
	postgresSvc postgres.Service
	notifier    notify.Notifier
	logger      zerolog.Logger
}

// New creates a new restore orchestrator.
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

// Discover lists the restore tasks for every regular *.sql file directly
// inside dir, in file name order. Subdirectories are not traversed.
func Discover(dir string) ([]models.RestoreTask, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read restore directory: %w", models.ErrIO, err)
	}

	var tasks []models.RestoreTask
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != models.DumpExtension {
			continue
		}
		database := strings.TrimSuffix(entry.Name(), models.DumpExtension)
		if database == "" {
			continue
		}
		tasks = append(tasks, models.RestoreTask{
			Database: database,
			Path:     filepath.Join(dir, entry.Name()),
		})
	}
	return tasks, nil
}

// RestoreAll creates and restores one database per dump file. Only an
// unreadable restore directory fails the whole pass.
func (s *Impl) RestoreAll(ctx context.Context, profile models.ConnectionProfile, restoreDir string) (*models.PassReport, error) {
	tasks, err := Discover(restoreDir)
	if err != nil {
		return nil, err
	}

	report := &models.PassReport{
		Kind:      models.PassRestore,
		StartTime: time.Now(),
	}

	s.logger.Info().
		Int("files", len(tasks)).
		Str("restore_path", restoreDir).
		Msg("starting restore pass")

	if len(tasks) > 0 {
		notify.Deliver(ctx, s.notifier, models.TextMessage(notify.RestoreStartMessage(len(tasks))), s.logger)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("restore pass interrupted")
			break
		}
		report.Outcomes = append(report.Outcomes, s.restoreOne(ctx, profile, task))
	}

	report.Duration = time.Since(report.StartTime)
	metrics.PassDuration.WithLabelValues(string(models.PassRestore)).Observe(report.Duration.Seconds())

	s.logger.Info().
		Int("restored", report.Succeeded()).
		Int("total", len(tasks)).
		Strs("failed", report.Failed()).
		Dur("duration", report.Duration).
		Msg("databases restored")

	return report, nil
}

func (s *Impl) restoreOne(ctx context.Context, profile models.ConnectionProfile, task models.RestoreTask) models.TaskOutcome {
	start := time.Now()
	outcome := models.TaskOutcome{
		Database: task.Database,
		Path:     task.Path,
	}

	if postgres.IsReserved(task.Database) {
		s.logger.Warn().
			Str("database", task.Database).
			Str("file", task.Path).
			Msg("skipping dump of a reserved database")
		outcome.Skipped = true
		return outcome
	}

	if info, err := os.Stat(task.Path); err == nil {
		outcome.SizeBytes = info.Size()
	}

	// Restore proceeds whatever the create step reports.
	if err := s.postgresSvc.CreateDatabase(ctx, profile, task.Database); err != nil {
		if postgres.IsAlreadyExists(err) {
			s.logger.Debug().Str("database", task.Database).Msg("database already exists")
		} else {
			s.logger.Warn().Err(err).Str("database", task.Database).Msg("create database failed, restoring anyway")
		}
	}

	s.logger.Info().
		Str("database", task.Database).
		Str("file", task.Path).
		Msg("starting restore")

	err := s.postgresSvc.Restore(ctx, profile, task)
	outcome.Duration = time.Since(start)
	metrics.RecordTask(string(models.PassRestore), err == nil)

	if err != nil {
		outcome.Error = err
		s.logger.Error().
			Err(err).
			Str("database", task.Database).
			Msg("restore failed")
		return outcome
	}

	s.logger.Info().
		Str("database", task.Database).
		Dur("duration", outcome.Duration).
		Msg("restore completed")

	return outcome
}
