// Package scheduler picks backup or restore mode and repeats backup passes
// on a fixed interval.
package scheduler

import (
	"context"
	"fmt"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/runner"
	"github.com/juju/clock"
	"github.com/rs/zerolog"
)

// Mode is the top-level behavior of a process run.
type Mode string

// Modes.
const (
	ModeBackup  Mode = "backup"
	ModeRestore Mode = "restore"
)

// SelectMode returns ModeRestore when the configuration toggle or a
// command-line override asks for it, ModeBackup otherwise.
func SelectMode(cfg models.AppConfig, forceRestore bool) Mode {
	if cfg.Restore || forceRestore {
		return ModeRestore
	}
	return ModeBackup
}

// Service defines the interface for the scheduler.
type Service interface {
	Run(ctx context.Context, cfg models.AppConfig, mode Mode) error
}

// Impl implements the scheduler Service interface.
type Impl struct {
	runner runner.Service
	clock  clock.Clock
	logger zerolog.Logger
}

// New creates a scheduler driven by the wall clock.
func New(logger zerolog.Logger, runnerSvc runner.Service) *Impl {
	return NewWithClock(logger, runnerSvc, clock.WallClock)
}

// NewWithClock creates a scheduler with a custom clock (for testing).
func NewWithClock(logger zerolog.Logger, runnerSvc runner.Service, clk clock.Clock) *Impl {
	return &Impl{
		runner: runnerSvc,
		clock:  clk,
		logger: logger,
	}
}

// Run executes mode until it is done or ctx is cancelled. Restore mode is a
// single pass regardless of the interval. A cancelled context is not an error.
func (s *Impl) Run(ctx context.Context, cfg models.AppConfig, mode Mode) error {
	s.logger.Info().
		Str("mode", string(mode)).
		Dur("interval", cfg.Interval).
		Msg("scheduler started")

	switch mode {
	case ModeRestore:
		return s.runRestore(ctx, cfg)
	case ModeBackup:
		return s.runBackup(ctx, cfg)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (s *Impl) runRestore(ctx context.Context, cfg models.AppConfig) error {
	if _, err := s.runner.Restore(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (s *Impl) runBackup(ctx context.Context, cfg models.AppConfig) error {
	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			s.logger.Info().Msg("scheduler stopped")
			return nil
		}

		s.logger.Debug().Int("iteration", iteration).Msg("starting backup pass")

		_, err := s.runner.Backup(ctx, cfg)
		if err != nil && ctx.Err() == nil {
			if cfg.RunsOnce() {
				return err
			}
			s.logger.Error().Err(err).Int("iteration", iteration).Msg("backup pass failed")
		}

		if cfg.RunsOnce() {
			return nil
		}

		s.logger.Info().
			Dur("interval", cfg.Interval).
			Time("next_run", s.clock.Now().Add(cfg.Interval)).
			Msg("sleeping until next backup pass")

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-s.clock.After(cfg.Interval):
		}
	}
}
