package main

import (
	"io"
	"os"
	"strings"

	"github.com/fgeck/pgbackuper/internal/config"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile   string
	envFile      string
	logFile      string
	forceRestore bool
	verbose      bool
	quiet        bool
	jsonOutput   bool

	// appConfig is loaded once before any command runs.
	appConfig *models.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "pgbackuper",
	Short: "Dump every PostgreSQL database to per-database SQL files, on a schedule",
	Long: `pgbackuper discovers the databases of a PostgreSQL server and dumps each one
to <SAVE_PATH>/<database>.sql with pg_dump. With INTERVAL set it repeats every
INTERVAL seconds, otherwise it runs once and exits.

Restore mode (RESTORE=true, --restore or the restore command) replays every
*.sql file in RESTORE_PATH into a database named after the file.

Optional extras:
  - Discord-compatible webhook and Telegram notifications
  - Wake-on-LAN of the database host and SSH shutdown after a backup
  - Prometheus metrics on METRICS_PORT

Configuration is read from the environment, a .env file and an optional YAML file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPasses(forceRestore)
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated (overrides LOG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")
	rootCmd.Flags().BoolVar(&forceRestore, "restore", false, "run a single restore pass instead of backups")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(validateCmd)
}

// initialize sets up console logging, loads the configuration and then adds
// the log file if one is configured.
func initialize() error {
	setupLogging("")

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}
	appConfig = cfg

	if logFile != "" {
		appConfig.LogFile = logFile
	}
	if appConfig.LogFile != "" {
		setupLogging(appConfig.LogFile)
	}
	return nil
}

func loadConfig() (*models.AppConfig, error) {
	// The default .env is optional, an explicitly named one is not.
	required := envFile != ".env"
	if envFile != "" {
		if err := config.LoadEnvFile(envFile, required); err != nil {
			return nil, err
		}
	}

	parser := config.NewParser()
	if configFile != "" {
		return parser.LoadFile(configFile)
	}
	return parser.Load()
}

func setupLogging(file string) {
	var output io.Writer = os.Stdout
	if !jsonOutput {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		console.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		output = console
	}

	if file != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
