package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/rs/zerolog"
)

// DefaultUsername is the display name used for webhook posts.
const DefaultUsername = "PSQL BACKUPER"

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Webhook posts to a Discord-compatible execute-webhook endpoint.
type Webhook struct {
	httpClient HTTPClient
	url        string
	username   string
	logger     zerolog.Logger
}

// NewWebhook creates a new webhook notifier.
func NewWebhook(logger zerolog.Logger, cfg models.WebhookConfig) *Webhook {
	return NewWebhookWithClient(logger, &http.Client{
		Timeout: 5 * time.Minute,
	}, cfg)
}

// NewWebhookWithClient creates a new webhook notifier with a custom HTTP client (for testing).
func NewWebhookWithClient(logger zerolog.Logger, httpClient HTTPClient, cfg models.WebhookConfig) *Webhook {
	username := cfg.Username
	if username == "" {
		username = DefaultUsername
	}
	return &Webhook{
		httpClient: httpClient,
		url:        cfg.URL,
		username:   username,
		logger:     logger,
	}
}

// webhookPayload is the JSON body of an execute-webhook call.
type webhookPayload struct {
	Content  string `json:"content,omitempty"`
	Username string `json:"username,omitempty"`
}

// SendMessage posts a text message.
func (w *Webhook) SendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookPayload{Content: text, Username: w.username})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal payload: %w", models.ErrNotification, err)
	}

	return w.post(ctx, "application/json", body)
}

// SendFile uploads the file as an attachment. The whole file is read into
// memory first.
func (w *Webhook) SendFile(ctx context.Context, path, name string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the dump orchestrator
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", models.ErrNotification, path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload, err := json.Marshal(webhookPayload{Username: w.username})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal payload: %w", models.ErrNotification, err)
	}
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return fmt.Errorf("%w: failed to build request: %w", models.ErrNotification, err)
	}

	part, err := mw.CreateFormFile("files[0]", name)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %w", models.ErrNotification, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("%w: failed to build request: %w", models.ErrNotification, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: failed to build request: %w", models.ErrNotification, err)
	}

	w.logger.Debug().
		Str("file", name).
		Str("size", formatBytes(int64(len(data)))).
		Msg("uploading file to webhook")

	return w.post(ctx, mw.FormDataContentType(), buf.Bytes())
}

func (w *Webhook) post(ctx context.Context, contentType string, body []byte) error {
	endpoint, err := w.endpoint()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", models.ErrNotification, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send request: %w", models.ErrNotification, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: webhook returned status %d: %s", models.ErrNotification, resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}

// endpoint returns the webhook URL with wait=true so the provider reports
// rejected payloads synchronously.
func (w *Webhook) endpoint() (string, error) {
	u, err := url.Parse(w.url)
	if err != nil {
		return "", fmt.Errorf("%w: invalid webhook URL: %w", models.ErrNotification, err)
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
