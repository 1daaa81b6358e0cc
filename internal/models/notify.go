package models

// WebhookConfig holds the Discord-compatible webhook endpoint.
type WebhookConfig struct {
	URL      string
	Username string // display name used for posted messages
}

// TelegramConfig holds Telegram bot notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// EventKind distinguishes text messages from file uploads.
type EventKind string

// Notification event kinds.
const (
	EventText EventKind = "text"
	EventFile EventKind = "file"
)

// NotificationEvent is either a text message or a file upload.
type NotificationEvent struct {
	Kind        EventKind
	Content     string // text message body
	Path        string // file to upload
	DisplayName string // attachment name shown to readers
}

// TextMessage builds a text notification.
func TextMessage(content string) NotificationEvent {
	return NotificationEvent{Kind: EventText, Content: content}
}

// FileUpload builds a file notification shown under displayName.
func FileUpload(path, displayName string) NotificationEvent {
	return NotificationEvent{Kind: EventFile, Path: path, DisplayName: displayName}
}
