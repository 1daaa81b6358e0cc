package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns the mode handed to the
// scheduler, if any.
func execute(t *testing.T, restoreEnv string, runErr error, args ...string) (*scheduler.Mode, error) {
	t.Helper()

	for _, env := range []string{
		"PG_HOST", "PG_PORT", "INTERVAL", "SAVE_PATH", "RESTORE_PATH", "METRICS_PORT", "LOG_FILE",
		"WEBHOOK_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "WOL_MAC_ADDRESS", "SSH_SHUTDOWN_HOST",
	} {
		t.Setenv(env, "")
	}
	t.Setenv("RESTORE", restoreEnv)

	forceRestore, configFile, logFile = false, "", ""
	original := runMode
	t.Cleanup(func() { runMode = original })

	var selected *scheduler.Mode
	runMode = func(_ context.Context, _ models.AppConfig, mode scheduler.Mode) error {
		selected = &mode
		return runErr
	}

	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--env-file=", "-q"}, args...))
	return selected, rootCmd.Execute()
}

func TestModeSelection(t *testing.T) {
	tests := []struct {
		name       string
		restoreEnv string
		args       []string
		want       scheduler.Mode
	}{
		{name: "default is backup", want: scheduler.ModeBackup},
		{name: "root restore flag", args: []string{"--restore"}, want: scheduler.ModeRestore},
		{name: "restore command", args: []string{"restore"}, want: scheduler.ModeRestore},
		{name: "run command", args: []string{"run"}, want: scheduler.ModeBackup},
		{name: "RESTORE=true", restoreEnv: "true", want: scheduler.ModeRestore},
		{name: "run command honours RESTORE=true", restoreEnv: "true", args: []string{"run"}, want: scheduler.ModeRestore},
		{name: "RESTORE must be exactly true", restoreEnv: "yes", want: scheduler.ModeBackup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := execute(t, tt.restoreEnv, nil, tt.args...)

			require.NoError(t, err)
			require.NotNil(t, mode)
			assert.Equal(t, tt.want, *mode)
		})
	}
}

func TestRestoreCommand_RejectsArguments(t *testing.T) {
	mode, err := execute(t, "", nil, "restore", "app_db")

	require.Error(t, err)
	assert.Nil(t, mode)
}

func TestRunFailureIsReturned(t *testing.T) {
	runErr := errors.New("failed to list databases")

	mode, err := execute(t, "", runErr)

	require.ErrorIs(t, err, runErr)
	require.NotNil(t, mode)
	assert.Equal(t, scheduler.ModeBackup, *mode)
}
