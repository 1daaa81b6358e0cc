package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/pgbackuper/internal/config"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/postgres"
	"github.com/fgeck/pgbackuper/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var probe bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration without dumping or restoring anything.
With --probe the database catalog is listed and SSH connectivity is tested.`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().BoolVar(&probe, "probe", false, "connect to the database server and SSH host")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	printSummary(cfg)

	if !probe {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	return runProbes(ctx, cfg)
}

func printSummary(cfg *models.AppConfig) {
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("PostgreSQL:")
	fmt.Printf("  Host: %s\n", cfg.Postgres.Host)
	fmt.Printf("  Port: %d\n", cfg.Postgres.Port)
	fmt.Printf("  Username: %s\n", cfg.Postgres.Username)
	fmt.Printf("  Password: %s\n", configured(cfg.Postgres.HasPassword()))
	fmt.Println()
	fmt.Println("Passes:")
	fmt.Printf("  Save path: %s\n", cfg.SavePath)
	fmt.Printf("  Restore path: %s\n", cfg.RestorePath)
	fmt.Printf("  Restore mode: %v\n", cfg.Restore)
	if cfg.RunsOnce() {
		fmt.Println("  Interval: (run once)")
	} else {
		fmt.Printf("  Interval: %s\n", cfg.Interval)
	}
	if len(cfg.ExcludeDatabases) > 0 {
		fmt.Printf("  Excluded: %s\n", strings.Join(cfg.ExcludeDatabases, ", "))
	}
	if cfg.CommandTimeout > 0 {
		fmt.Printf("  Command timeout: %s\n", cfg.CommandTimeout)
	}
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Webhook: %v\n", cfg.Webhook != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)
	fmt.Printf("  Wake-on-LAN: %v\n", cfg.WOL != nil)
	fmt.Printf("  SSH Shutdown: %v\n", cfg.SSHShutdown != nil)
	fmt.Printf("  Metrics port: %d\n", cfg.MetricsPort)

	if cfg.WOL != nil {
		fmt.Println()
		fmt.Println("WOL Configuration:")
		fmt.Printf("  MAC Address: %s\n", cfg.WOL.MACAddress)
		fmt.Printf("  Broadcast IP: %s\n", cfg.WOL.BroadcastIP)
		fmt.Printf("  Wait for: %s (timeout %s)\n", cfg.WOL.TargetAddr, cfg.WOL.Timeout)
	}

	if cfg.SSHShutdown != nil {
		fmt.Println()
		fmt.Println("SSH Shutdown Configuration:")
		fmt.Printf("  Host: %s\n", cfg.SSHShutdown.Host)
		fmt.Printf("  Port: %d\n", cfg.SSHShutdown.Port)
		fmt.Printf("  Username: %s\n", cfg.SSHShutdown.Username)
		fmt.Printf("  Command: %s\n", ssh.ShutdownCommand(cfg.SSHShutdown.ShutdownDelay))
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %d\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}
}

func runProbes(ctx context.Context, cfg *models.AppConfig) error {
	pg := postgres.New(log.Logger, postgres.Options{
		DumpBin:        cfg.PGDumpBin,
		PSQLBin:        cfg.PSQLBin,
		CommandTimeout: cfg.CommandTimeout,
		Exclude:        cfg.ExcludeDatabases,
	})

	fmt.Println()
	databases, err := pg.ListDatabases(ctx, cfg.Postgres)
	if err != nil {
		log.Error().Err(err).Msg("database probe failed")
		return err
	}
	fmt.Printf("Databases to dump (%d): %s\n", len(databases), strings.Join(databases, ", "))

	if cfg.SSHShutdown != nil {
		result, err := ssh.New(log.Logger).TestConnection(ctx, *cfg.SSHShutdown)
		if err == nil {
			err = result.Error
		}
		if err != nil {
			log.Error().Err(err).Msg("SSH probe failed")
			return err
		}
		fmt.Printf("SSH: %s\n", strings.TrimSpace(result.Output))
	}

	return nil
}

func configured(ok bool) string {
	if ok {
		return "(configured)"
	}
	return "(none)"
}
