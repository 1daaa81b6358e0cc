// Package runner executes one backup or restore pass end to end.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/fgeck/pgbackuper/internal/metrics"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/dump"
	"github.com/fgeck/pgbackuper/internal/services/notify"
	"github.com/fgeck/pgbackuper/internal/services/postgres"
	"github.com/fgeck/pgbackuper/internal/services/restore"
	"github.com/fgeck/pgbackuper/internal/services/ssh"
	"github.com/fgeck/pgbackuper/internal/services/wol"
	"github.com/rs/zerolog"
)

// Service defines the interface for the pass runner.
type Service interface {
	Backup(ctx context.Context, cfg models.AppConfig) (*models.PassReport, error)
	Restore(ctx context.Context, cfg models.AppConfig) (*models.PassReport, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	postgresSvc postgres.Service
	dumpSvc     dump.Service
	restoreSvc  restore.Service
	wolSvc      wol.Service
	sshSvc      ssh.Service
	notifier    notify.Notifier
	logger      zerolog.Logger
}

// New creates a runner wired from cfg.
func New(logger zerolog.Logger, cfg models.AppConfig) *Impl {
	postgresSvc := postgres.New(logger, postgres.Options{
		DumpBin:        cfg.PGDumpBin,
		PSQLBin:        cfg.PSQLBin,
		CommandTimeout: cfg.CommandTimeout,
		Exclude:        cfg.ExcludeDatabases,
	})
	notifier := notify.New(cfg, logger)

	return NewWithServices(
		logger,
		postgresSvc,
		dump.New(logger, postgresSvc, notifier),
		restore.New(logger, postgresSvc, notifier),
		wol.New(logger),
		ssh.New(logger),
		notifier,
	)
}

// NewWithServices creates a new runner with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	postgresSvc postgres.Service,
	dumpSvc dump.Service,
	restoreSvc restore.Service,
	wolSvc wol.Service,
	sshSvc ssh.Service,
	notifier notify.Notifier,
) *Impl {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Impl{
		postgresSvc: postgresSvc,
		dumpSvc:     dumpSvc,
		restoreSvc:  restoreSvc,
		wolSvc:      wolSvc,
		sshSvc:      sshSvc,
		notifier:    notifier,
		logger:      logger,
	}
}

// Backup discovers the catalog and dumps every database into cfg.SavePath.
// Only a failed wake or catalog query is returned as an error; per-database
// failures live in the report.
func (s *Impl) Backup(ctx context.Context, cfg models.AppConfig) (*models.PassReport, error) {
	startTime := time.Now()

	s.logger.Info().
		Str("host", cfg.Postgres.Host).
		Uint16("port", cfg.Postgres.Port).
		Str("save_path", cfg.SavePath).
		Msg("starting backup run")

	if cfg.WOL != nil {
		if err := s.runWOL(ctx, cfg.WOL); err != nil {
			return nil, err
		}
	}

	databases, err := s.postgresSvc.ListDatabases(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	s.logger.Info().
		Strs("databases", databases).
		Msg("discovered databases")

	report := s.dumpSvc.DumpAll(ctx, cfg.Postgres, databases, cfg.SavePath)
	s.sendSummary(ctx, report)

	if len(report.Failed()) == 0 && ctx.Err() == nil {
		metrics.LastBackupTimestamp.SetToCurrentTime()
	}

	if cfg.SSHShutdown != nil && ctx.Err() == nil {
		s.runSSHShutdown(ctx, cfg.SSHShutdown)
	}

	s.logger.Info().
		Int("succeeded", report.Succeeded()).
		Int("failed", len(report.Failed())).
		Dur("duration", time.Since(startTime)).
		Msg("backup run completed")

	return report, nil
}

// Restore replays every dump file found in cfg.RestorePath.
func (s *Impl) Restore(ctx context.Context, cfg models.AppConfig) (*models.PassReport, error) {
	s.logger.Info().
		Str("host", cfg.Postgres.Host).
		Uint16("port", cfg.Postgres.Port).
		Str("restore_path", cfg.RestorePath).
		Msg("starting restore run")

	if cfg.WOL != nil {
		if err := s.runWOL(ctx, cfg.WOL); err != nil {
			return nil, err
		}
	}

	report, err := s.restoreSvc.RestoreAll(ctx, cfg.Postgres, cfg.RestorePath)
	if err != nil {
		return nil, fmt.Errorf("restore failed: %w", err)
	}

	if len(report.Outcomes) > 0 {
		s.sendSummary(ctx, report)
	}

	return report, nil
}

func (s *Impl) runWOL(ctx context.Context, cfg *models.WOLConfig) error {
	result, err := s.wolSvc.Wake(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("%w: WOL failed: %w", models.ErrConnection, err)
	}
	if result.Error != nil {
		return fmt.Errorf("%w: WOL failed: %w", models.ErrConnection, result.Error)
	}
	if !result.TargetReady {
		return fmt.Errorf("%w: database host did not become ready after WOL", models.ErrConnection)
	}

	s.logger.Info().
		Bool("packet_sent", result.PacketSent).
		Bool("target_ready", result.TargetReady).
		Dur("wait_duration", result.WaitDuration).
		Msg("WOL completed")

	return nil
}

func (s *Impl) runSSHShutdown(ctx context.Context, cfg *models.SSHShutdownConfig) {
	result, err := s.sshSvc.Shutdown(ctx, *cfg)
	if err == nil && result != nil {
		err = result.Error
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("host", cfg.Host).
			Msg("SSH shutdown failed")
		return
	}

	s.logger.Info().
		Bool("command_run", result.CommandRun).
		Str("output", result.Output).
		Msg("SSH shutdown command sent")
}

func (s *Impl) sendSummary(ctx context.Context, report *models.PassReport) {
	if err := report.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("pass finished with failures")
	}
	notify.Deliver(ctx, s.notifier, models.TextMessage(notify.SummaryMessage(report)), s.logger)
}
