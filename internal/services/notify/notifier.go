// Package notify delivers best-effort progress notifications to chat webhooks.
package notify

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fgeck/pgbackuper/internal/metrics"
	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Notifier posts messages and files to an external endpoint. Every failure
// is reported as an error wrapping models.ErrNotification.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
	SendFile(ctx context.Context, path, name string) error
}

// Nop is the notifier used when nothing is configured.
type Nop struct{}

// SendMessage does nothing.
func (Nop) SendMessage(context.Context, string) error { return nil }

// SendFile does nothing.
func (Nop) SendFile(context.Context, string, string) error { return nil }

// Multi fans every notification out to all of its notifiers.
type Multi []Notifier

// SendMessage sends text to every notifier and joins their errors.
func (m Multi) SendMessage(ctx context.Context, text string) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.SendMessage(ctx, text); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// SendFile uploads the file to every notifier and joins their errors.
func (m Multi) SendFile(ctx context.Context, path, name string) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.SendFile(ctx, path, name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// New builds the notifier described by cfg. It never fails: a process
// without notification settings gets Nop.
func New(cfg models.AppConfig, logger zerolog.Logger) Notifier {
	var notifiers Multi
	if cfg.Webhook != nil {
		notifiers = append(notifiers, NewWebhook(logger, *cfg.Webhook))
	}
	if cfg.Telegram != nil {
		notifiers = append(notifiers, NewTelegram(logger, *cfg.Telegram))
	}

	switch len(notifiers) {
	case 0:
		return Nop{}
	case 1:
		return notifiers[0]
	default:
		return notifiers
	}
}

// Deliver sends ev through n. Failures are logged and counted, never returned.
func Deliver(ctx context.Context, n Notifier, ev models.NotificationEvent, logger zerolog.Logger) bool {
	if _, ok := n.(Nop); ok || n == nil {
		return true
	}

	var err error
	switch ev.Kind {
	case models.EventFile:
		name := ev.DisplayName
		if name == "" {
			name = filepath.Base(ev.Path)
		}
		err = n.SendFile(ctx, ev.Path, name)
	default:
		err = n.SendMessage(ctx, ev.Content)
	}

	metrics.RecordNotification(err == nil)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("kind", string(ev.Kind)).
			Str("path", ev.Path).
			Msg("notification failed")
		return false
	}

	logger.Debug().Str("kind", string(ev.Kind)).Msg("notification sent")
	return true
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
