package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	messages []string
	files    []string
	err      error
}

func (m *mockNotifier) SendMessage(_ context.Context, text string) error {
	m.messages = append(m.messages, text)
	return m.err
}

func (m *mockNotifier) SendFile(_ context.Context, path, name string) error {
	m.files = append(m.files, path+"|"+name)
	return m.err
}

func TestNew_NothingConfigured(t *testing.T) {
	n := New(models.AppConfig{}, testLogger())

	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.SendMessage(context.Background(), "ignored"))
	assert.NoError(t, n.SendFile(context.Background(), "/nope", "nope"))
}

func TestNew_SingleAndBoth(t *testing.T) {
	cfg := models.AppConfig{Webhook: &models.WebhookConfig{URL: "https://example.com/hook"}}
	assert.IsType(t, &Webhook{}, New(cfg, testLogger()))

	cfg.Telegram = &models.TelegramConfig{BotToken: "123:abc", ChatID: 1}
	multi, ok := New(cfg, testLogger()).(Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	good := &mockNotifier{}
	bad := &mockNotifier{err: fmt.Errorf("%w: boom", models.ErrNotification)}
	m := Multi{bad, good}

	err := m.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotification))
	assert.Equal(t, []string{"hi"}, good.messages)

	err = m.SendFile(context.Background(), "/tmp/a.sql", "a.sql")
	require.Error(t, err)
	assert.Equal(t, []string{"/tmp/a.sql|a.sql"}, good.files)

	assert.NoError(t, Multi{good}.SendMessage(context.Background(), "ok"))
}

func TestDeliver(t *testing.T) {
	n := &mockNotifier{}

	assert.True(t, Deliver(context.Background(), n, models.TextMessage("hello"), testLogger()))
	assert.True(t, Deliver(context.Background(), n, models.FileUpload("/dumps/app_db.sql", ""), testLogger()))
	assert.True(t, Deliver(context.Background(), n, models.FileUpload("/dumps/x.sql", "renamed.sql"), testLogger()))

	assert.Equal(t, []string{"hello"}, n.messages)
	assert.Equal(t, []string{"/dumps/app_db.sql|app_db.sql", "/dumps/x.sql|renamed.sql"}, n.files)
}

func TestDeliver_SwallowsFailure(t *testing.T) {
	n := &mockNotifier{err: errors.New("unreachable")}

	assert.False(t, Deliver(context.Background(), n, models.TextMessage("hello"), testLogger()))
	assert.True(t, Deliver(context.Background(), Nop{}, models.TextMessage("hello"), testLogger()))
	assert.True(t, Deliver(context.Background(), nil, models.TextMessage("hello"), testLogger()))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Dumping 4 databases!", BackupStartMessage(4))
	assert.Equal(t, "Restoring 1 databases!", RestoreStartMessage(1))

	report := &models.PassReport{
		Kind:     models.PassBackup,
		Duration: 90 * time.Second,
		Outcomes: []models.TaskOutcome{
			{Database: "app_db", SizeBytes: 2048},
			{Database: "analytics", Error: errors.New("exit status 1")},
			{Database: "logs", SizeBytes: 1024},
		},
	}
	assert.Equal(t, "2/3 databases dumped in 1m30s (3.0 KiB)!\nFailed: analytics", SummaryMessage(report))

	report = &models.PassReport{
		Kind:     models.PassRestore,
		Duration: 2 * time.Second,
		Outcomes: []models.TaskOutcome{{Database: "app_db"}},
	}
	assert.Equal(t, "1/1 databases restored in 2s!", SummaryMessage(report))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.0 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{1536 * 1024, "1.5 MiB"},
		{1024 * 1024 * 1024 * 2, "2.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatBytes(tt.bytes))
		})
	}
}
