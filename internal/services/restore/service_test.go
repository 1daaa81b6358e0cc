package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/process"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPostgresService struct {
	createFunc  func(ctx context.Context, database string) error
	restoreFunc func(ctx context.Context, task models.RestoreTask) error
	calls       []string
}

func (m *mockPostgresService) ListDatabases(context.Context, models.ConnectionProfile) ([]string, error) {
	return nil, nil
}

func (m *mockPostgresService) CreateDatabase(ctx context.Context, _ models.ConnectionProfile, database string) error {
	m.calls = append(m.calls, "create:"+database)
	if m.createFunc != nil {
		return m.createFunc(ctx, database)
	}
	return nil
}

func (m *mockPostgresService) Dump(context.Context, models.ConnectionProfile, models.DumpTask) error {
	return nil
}

func (m *mockPostgresService) Restore(ctx context.Context, _ models.ConnectionProfile, task models.RestoreTask) error {
	m.calls = append(m.calls, "restore:"+task.Database+":"+filepath.Base(task.Path))
	if m.restoreFunc != nil {
		return m.restoreFunc(ctx, task)
	}
	return nil
}

type mockNotifier struct {
	messages []string
	err      error
}

func (m *mockNotifier) SendMessage(_ context.Context, text string) error {
	m.messages = append(m.messages, text)
	return m.err
}

func (m *mockNotifier) SendFile(context.Context, string, string) error {
	return m.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testProfile() models.ConnectionProfile {
	return models.ConnectionProfile{Host: "localhost", Port: 5432, Username: "postgres"}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
}

func TestRestoreAll_IgnoresNonSQLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "app_db.sql", "notes.txt")

	pg := &mockPostgresService{}
	svc := New(testLogger(), pg, nil)

	report, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"create:app_db", "restore:app_db:app_db.sql"}, pg.calls)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Succeeded())
	assert.Equal(t, int64(len("SELECT 1;")), report.Outcomes[0].SizeBytes)
}

func TestRestoreAll_OnlyNonSQLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "notes.txt", "app_db.sql.gz", "README")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.sql"), 0o750))

	pg := &mockPostgresService{}
	notifier := &mockNotifier{}
	svc := New(testLogger(), pg, notifier)

	report, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	assert.Empty(t, pg.calls)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, notifier.messages)
}

func TestRestoreAll_DoesNotRecurse(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "old")
	require.NoError(t, os.Mkdir(sub, 0o750))
	writeFiles(t, sub, "legacy.sql")
	writeFiles(t, dir, "current.sql")

	pg := &mockPostgresService{}
	svc := New(testLogger(), pg, nil)

	_, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"create:current", "restore:current:current.sql"}, pg.calls)
}

func TestRestoreAll_CreateFailureDoesNotBlockRestore(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "exists.sql", "denied.sql")

	pg := &mockPostgresService{
		createFunc: func(_ context.Context, database string) error {
			if database == "exists" {
				return &process.ToolError{Tool: "psql", ExitCode: 1, Stderr: `ERROR:  database "exists" already exists`, Err: errors.New("exit status 1")}
			}
			return &process.ToolError{Tool: "psql", ExitCode: 1, Stderr: "ERROR:  permission denied to create database", Err: errors.New("exit status 1")}
		},
	}
	svc := New(testLogger(), pg, nil)

	report, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"create:denied", "restore:denied:denied.sql",
		"create:exists", "restore:exists:exists.sql",
	}, pg.calls)
	assert.Equal(t, 2, report.Succeeded())
}

func TestRestoreAll_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.sql", "b.sql", "c.sql")

	pg := &mockPostgresService{
		restoreFunc: func(_ context.Context, task models.RestoreTask) error {
			if task.Database == "b" {
				return fmt.Errorf("restore b: %w", models.ErrToolExecution)
			}
			return nil
		},
	}
	svc := New(testLogger(), pg, nil)

	report, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, []string{"b"}, report.Failed())
	assert.True(t, report.Outcomes[2].Succeeded())
	assert.True(t, errors.Is(report.Err(), models.ErrToolExecution))
}

func TestRestoreAll_SkipsReservedNames(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "postgres.sql", "template1.sql", "app_db.sql")

	pg := &mockPostgresService{}
	svc := New(testLogger(), pg, nil)

	report, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"create:app_db", "restore:app_db:app_db.sql"}, pg.calls)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, 1, report.Succeeded())
	assert.Empty(t, report.Failed())
}

func TestRestoreAll_NotificationFailureIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "app_db.sql")

	notifier := &mockNotifier{err: fmt.Errorf("%w: unreachable", models.ErrNotification)}
	svc := New(testLogger(), &mockPostgresService{}, notifier)

	report, err := svc.RestoreAll(context.Background(), testProfile(), dir)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, []string{"Restoring 1 databases!"}, notifier.messages)
}

func TestRestoreAll_MissingDirectory(t *testing.T) {
	pg := &mockPostgresService{}
	svc := New(testLogger(), pg, nil)

	report, err := svc.RestoreAll(context.Background(), testProfile(), filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, models.ErrIO))
	assert.Empty(t, pg.calls)
}

func TestDiscover_OrderAndNames(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "zeta.sql", "alpha.sql", ".sql", "mixed.SQL")

	tasks, err := Discover(dir)

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, models.RestoreTask{Database: "alpha", Path: filepath.Join(dir, "alpha.sql")}, tasks[0])
	assert.Equal(t, "zeta", tasks[1].Database)
}
