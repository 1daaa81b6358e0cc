package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/pgbackuper/internal/config"
	"github.com/fgeck/pgbackuper/internal/metrics"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/runner"
	"github.com/fgeck/pgbackuper/internal/services/scheduler"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run backup passes (or a restore pass when RESTORE=true)",
	Long: `Run the selected mode. Backup mode:
1. Wake-on-LAN of the database host (if configured)
2. List databases, skipping template0, template1, postgres and EXCLUDE_DATABASES
3. pg_dump each database to <SAVE_PATH>/<database>.sql, one at a time
4. Send each dump file and a summary to the configured notifiers
5. SSH shutdown of the host (if configured)
6. Sleep INTERVAL seconds and repeat, or exit when INTERVAL is unset

This is the same as running pgbackuper without a command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPasses(false)
	},
}

// runMode executes the selected mode until it completes or ctx is cancelled.
var runMode = func(ctx context.Context, cfg models.AppConfig, mode scheduler.Mode) error {
	return scheduler.New(log.Logger, runner.New(log.Logger, cfg)).Run(ctx, cfg, mode)
}

func runPasses(restore bool) error {
	cfg := *appConfig
	if err := config.Validate(&cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	mode := scheduler.SelectMode(cfg, restore)

	log.Info().
		Str("mode", string(mode)).
		Str("host", cfg.Postgres.Host).
		Uint16("port", cfg.Postgres.Port).
		Str("user", cfg.Postgres.Username).
		Dur("interval", cfg.Interval).
		Bool("webhook", cfg.Webhook != nil).
		Bool("telegram", cfg.Telegram != nil).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.MetricsPort > 0 {
		srv := metrics.NewServer(cfg.MetricsPort, log.Logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if err := runMode(ctx, cfg, mode); err != nil {
		log.Error().Err(err).Str("mode", string(mode)).Msg("run failed")
		return err
	}

	log.Info().Str("mode", string(mode)).Msg("done")
	return nil
}
