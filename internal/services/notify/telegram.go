package notify

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Telegram sends messages and documents through the Telegram Bot API.
type Telegram struct {
	cfg      models.TelegramConfig
	client   tgbotapi.HTTPClient
	endpoint string
	logger   zerolog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram creates a new Telegram notifier.
func NewTelegram(logger zerolog.Logger, cfg models.TelegramConfig) *Telegram {
	return NewTelegramWithClient(logger, cfg, &http.Client{Timeout: 5 * time.Minute}, tgbotapi.APIEndpoint)
}

// NewTelegramWithClient creates a new Telegram notifier with a custom HTTP
// client and API endpoint format (for testing).
func NewTelegramWithClient(logger zerolog.Logger, cfg models.TelegramConfig, client tgbotapi.HTTPClient, endpoint string) *Telegram {
	return &Telegram{
		cfg:      cfg,
		client:   client,
		endpoint: endpoint,
		logger:   logger,
	}
}

// botAPI connects lazily so an unreachable API never blocks startup.
func (t *Telegram) botAPI() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.BotToken, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create telegram bot: %w", models.ErrNotification, err)
	}
	t.bot = bot
	return bot, nil
}

// SendMessage sends a text message to the configured chat.
func (t *Telegram) SendMessage(_ context.Context, text string) error {
	bot, err := t.botAPI()
	if err != nil {
		return err
	}

	if _, err := bot.Send(tgbotapi.NewMessage(t.cfg.ChatID, text)); err != nil {
		return fmt.Errorf("%w: failed to send telegram message: %w", models.ErrNotification, err)
	}
	return nil
}

// SendFile uploads the file as a document. The whole file is read into
// memory first.
func (t *Telegram) SendFile(_ context.Context, path, name string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the dump orchestrator
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", models.ErrNotification, path, err)
	}

	bot, err := t.botAPI()
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(t.cfg.ChatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = fmt.Sprintf("%s (%s)", name, formatBytes(int64(len(data))))

	if _, err := bot.Send(doc); err != nil {
		return fmt.Errorf("%w: failed to send telegram document: %w", models.ErrNotification, err)
	}
	return nil
}
