// Package models contains the data structures used throughout pgbackuper.
package models

import "time"

// AppConfig holds the complete, immutable configuration for a process run.
type AppConfig struct {
	Postgres         ConnectionProfile
	SavePath         string
	RestorePath      string
	Interval         time.Duration // zero means run a single pass
	Restore          bool
	ExcludeDatabases []string
	CommandTimeout   time.Duration // zero means no timeout
	PGDumpBin        string
	PSQLBin          string
	MetricsPort      int                // zero disables the metrics server
	LogFile          string             // empty disables file logging
	Webhook          *WebhookConfig     // nil if not configured
	Telegram         *TelegramConfig    // nil if not configured
	WOL              *WOLConfig         // nil if not configured
	SSHShutdown      *SSHShutdownConfig // nil if not configured
}

// RunsOnce reports whether backup mode should stop after the first pass.
func (c AppConfig) RunsOnce() bool {
	return c.Interval <= 0
}
