// Package config loads pgbackuper settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Defaults.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultUsername = "postgres"
	DefaultDumpDir  = "dumps"
)

// envBindings maps config keys to the environment variables that set them.
// YAML files use the dotted keys.
var envBindings = map[string]string{
	"pg.host":               "PG_HOST",
	"pg.port":               "PG_PORT",
	"pg.username":           "PG_USERNAME",
	"pg.password":           "PG_PASSWORD",
	"save_path":             "SAVE_PATH",
	"restore_path":          "RESTORE_PATH",
	"interval":              "INTERVAL",
	"restore":               "RESTORE",
	"exclude_databases":     "EXCLUDE_DATABASES",
	"command_timeout":       "COMMAND_TIMEOUT",
	"tools.pg_dump":         "PG_DUMP_BIN",
	"tools.psql":            "PSQL_BIN",
	"metrics.port":          "METRICS_PORT",
	"log.file":              "LOG_FILE",
	"webhook.url":           "WEBHOOK_URL",
	"telegram.bot_token":    "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":      "TELEGRAM_CHAT_ID",
	"wol.mac_address":       "WOL_MAC_ADDRESS",
	"wol.broadcast_ip":      "WOL_BROADCAST_IP",
	"wol.timeout":           "WOL_TIMEOUT",
	"wol.poll_interval":     "WOL_POLL_INTERVAL",
	"wol.stabilize_wait":    "WOL_STABILIZE_WAIT",
	"ssh_shutdown.host":     "SSH_SHUTDOWN_HOST",
	"ssh_shutdown.port":     "SSH_SHUTDOWN_PORT",
	"ssh_shutdown.username": "SSH_SHUTDOWN_USERNAME",
	"ssh_shutdown.key_path": "SSH_SHUTDOWN_KEY_PATH",
	"ssh_shutdown.delay":    "SSH_SHUTDOWN_DELAY",
}

// Parser handles configuration parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser bound to the environment.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return &Parser{v: v}
}

// LoadEnvFile exports the variables in path without overriding ones already
// set. A missing file is only an error when required is true.
func LoadEnvFile(path string, required bool) error {
	if err := gotenv.Load(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from the environment alone.
func (p *Parser) Load() (*models.AppConfig, error) {
	return p.parse()
}

// LoadFile loads configuration from a YAML file; environment variables win.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from YAML content (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.AppConfig, error) {
	cfg := &models.AppConfig{
		Postgres: models.ConnectionProfile{
			Host:     p.stringOr("pg.host", DefaultHost),
			Port:     p.port(),
			Username: p.stringOr("pg.username", DefaultUsername),
			Password: p.v.GetString("pg.password"),
		},
		SavePath:         p.stringOr("save_path", defaultDumpDir()),
		RestorePath:      p.stringOr("restore_path", defaultDumpDir()),
		Interval:         p.interval(),
		Restore:          strings.TrimSpace(p.v.GetString("restore")) == "true",
		ExcludeDatabases: p.stringList("exclude_databases"),
		CommandTimeout:   p.v.GetDuration("command_timeout"),
		PGDumpBin:        p.v.GetString("tools.pg_dump"),
		PSQLBin:          p.v.GetString("tools.psql"),
		MetricsPort:      p.v.GetInt("metrics.port"),
		LogFile:          p.v.GetString("log.file"),
	}

	if webhookURL := strings.TrimSpace(p.v.GetString("webhook.url")); webhookURL != "" {
		cfg.Webhook = &models.WebhookConfig{URL: webhookURL}
	}

	token := strings.TrimSpace(p.v.GetString("telegram.bot_token"))
	chatID := strings.TrimSpace(p.v.GetString("telegram.chat_id"))
	if token != "" || chatID != "" {
		cfg.Telegram = &models.TelegramConfig{BotToken: token}
		if chatID != "" {
			id, err := strconv.ParseInt(chatID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("telegram.chat_id must be numeric: %q", chatID)
			}
			cfg.Telegram.ChatID = id
		}
	}

	if p.v.GetString("wol.mac_address") != "" {
		cfg.WOL = &models.WOLConfig{
			MACAddress:    p.v.GetString("wol.mac_address"),
			BroadcastIP:   p.stringOr("wol.broadcast_ip", "255.255.255.255"),
			TargetAddr:    net.JoinHostPort(cfg.Postgres.Host, strconv.Itoa(int(cfg.Postgres.Port))),
			Timeout:       p.durationOr("wol.timeout", 5*time.Minute),
			PollInterval:  p.durationOr("wol.poll_interval", 10*time.Second),
			StabilizeWait: p.durationOr("wol.stabilize_wait", 10*time.Second),
		}
	}

	if p.v.GetString("ssh_shutdown.host") != "" {
		cfg.SSHShutdown = &models.SSHShutdownConfig{
			Host:          p.v.GetString("ssh_shutdown.host"),
			Port:          p.v.GetInt("ssh_shutdown.port"),
			Username:      p.stringOr("ssh_shutdown.username", "root"),
			KeyPath:       os.ExpandEnv(p.v.GetString("ssh_shutdown.key_path")),
			ShutdownDelay: p.v.GetInt("ssh_shutdown.delay"),
		}
		if cfg.SSHShutdown.Port == 0 {
			cfg.SSHShutdown.Port = 22
		}
	}

	return cfg, nil
}

func (p *Parser) stringOr(key, fallback string) string {
	if s := strings.TrimSpace(p.v.GetString(key)); s != "" {
		return s
	}
	return fallback
}

func (p *Parser) durationOr(key string, fallback time.Duration) time.Duration {
	if d := p.v.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

// port falls back to the default on anything that is not a valid port.
func (p *Parser) port() uint16 {
	n, err := strconv.ParseUint(strings.TrimSpace(p.v.GetString("pg.port")), 10, 16)
	if err != nil || n == 0 {
		return DefaultPort
	}
	return uint16(n)
}

// maxIntervalSeconds is the largest interval a time.Duration can hold.
const maxIntervalSeconds = math.MaxInt64 / uint64(time.Second)

// interval reads whole unsigned seconds. Absent, negative, unparsable or
// out of range values mean run once.
func (p *Parser) interval() time.Duration {
	n, err := strconv.ParseUint(strings.TrimSpace(p.v.GetString("interval")), 10, 64)
	if err != nil || n > maxIntervalSeconds {
		return 0
	}
	return time.Duration(n) * time.Second
}

// stringList accepts a YAML list or a comma separated string.
func (p *Parser) stringList(key string) []string {
	raw := p.v.Get(key)
	var items []string
	if s, ok := raw.(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = p.v.GetStringSlice(key)
	}

	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultDumpDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return DefaultDumpDir
	}
	return filepath.Join(wd, DefaultDumpDir)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Postgres.Host == "" {
		return fmt.Errorf("pg.host is required")
	}

	if cfg.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	if cfg.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative")
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535")
	}

	if cfg.Webhook != nil {
		u, err := url.ParseRequestURI(cfg.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.url is not a valid http(s) URL: %q", cfg.Webhook.URL)
		}
	}

	if cfg.Telegram != nil {
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	if cfg.WOL != nil {
		if _, err := net.ParseMAC(cfg.WOL.MACAddress); err != nil {
			return fmt.Errorf("wol.mac_address is invalid: %w", err)
		}
	}

	if cfg.SSHShutdown != nil && cfg.SSHShutdown.KeyPath == "" && len(cfg.SSHShutdown.PrivateKey) == 0 {
		return fmt.Errorf("ssh_shutdown.key_path is required when ssh_shutdown is configured")
	}

	return nil
}
