package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"backup","username":"backup_bot","message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`

type telegramAPI struct {
	mu       sync.Mutex
	paths    []string
	forms    []map[string]string
	failSend bool
}

func (a *telegramAPI) handler(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.paths = append(a.paths, r.URL.Path)
	form := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				form[k] = v[0]
			}
			for k, files := range r.MultipartForm.File {
				form[k] = files[0].Filename
			}
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.PostForm {
			form[k] = v[0]
		}
	}
	a.forms = append(a.forms, form)

	w.Header().Set("Content-Type", "application/json")
	if a.failSend && !strings.HasSuffix(r.URL.Path, "/getMe") {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}
	_, _ = w.Write([]byte(okResponse))
}

func newTestTelegram(t *testing.T, api *telegramAPI) *Telegram {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(server.Close)

	cfg := models.TelegramConfig{BotToken: "123:abc", ChatID: 42}
	return NewTelegramWithClient(testLogger(), cfg, server.Client(), server.URL+"/bot%s/%s")
}

func TestTelegramSendMessage(t *testing.T) {
	api := &telegramAPI{}
	tg := newTestTelegram(t, api)

	err := tg.SendMessage(context.Background(), "Dumping 3 databases!")

	require.NoError(t, err)
	require.Len(t, api.paths, 2)
	assert.Equal(t, "/bot123:abc/getMe", api.paths[0])
	assert.Equal(t, "/bot123:abc/sendMessage", api.paths[1])
	assert.Equal(t, "42", api.forms[1]["chat_id"])
	assert.Equal(t, "Dumping 3 databases!", api.forms[1]["text"])
}

func TestTelegramSendFile(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "app_db.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("SELECT 1;"), 0o600))

	api := &telegramAPI{}
	tg := newTestTelegram(t, api)

	require.NoError(t, tg.SendFile(context.Background(), dumpPath, "app_db.sql"))
	require.NoError(t, tg.SendMessage(context.Background(), "done"))

	// getMe happens once for the lifetime of the notifier.
	require.Len(t, api.paths, 3)
	assert.Equal(t, "/bot123:abc/sendDocument", api.paths[1])
	assert.Equal(t, "app_db.sql", api.forms[1]["document"])
	assert.Equal(t, "app_db.sql (9 B)", api.forms[1]["caption"])
}

func TestTelegram_APIError(t *testing.T) {
	api := &telegramAPI{failSend: true}
	tg := newTestTelegram(t, api)

	err := tg.SendMessage(context.Background(), "hello")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotification))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegram_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL + "/bot%s/%s"
	server.Close()

	tg := NewTelegramWithClient(testLogger(), models.TelegramConfig{BotToken: "123:abc", ChatID: 42}, &http.Client{}, endpoint)
	err := tg.SendMessage(context.Background(), "hello")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotification))
}
