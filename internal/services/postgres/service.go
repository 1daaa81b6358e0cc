// Package postgres runs psql and pg_dump against a PostgreSQL server.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/fgeck/pgbackuper/internal/services/process"
	"github.com/rs/zerolog"
)

// Default tool names, resolved through PATH.
const (
	DefaultDumpBin = "pg_dump"
	DefaultPSQLBin = "psql"
)

var reservedDatabases = map[string]bool{
	"template0": true,
	"template1": true,
	"postgres":  true,
}

// A catalog row starts with exactly one space followed by the database name.
var catalogRow = regexp.MustCompile(`^ ([^\s|]+)`)

var (
	authFailures = []string{
		"password authentication failed",
		"authentication failed",
		"no password supplied",
		"pg_hba.conf rejects connection",
	}
	connectionFailures = []string{
		"could not connect",
		"connection refused",
		"could not translate host name",
		"timeout expired",
		"no route to host",
		"network is unreachable",
		"server closed the connection",
		"connection to server",
	}
)

// Service defines the interface for PostgreSQL tool operations.
type Service interface {
	ListDatabases(ctx context.Context, profile models.ConnectionProfile) ([]string, error)
	CreateDatabase(ctx context.Context, profile models.ConnectionProfile, database string) error
	Dump(ctx context.Context, profile models.ConnectionProfile, task models.DumpTask) error
	Restore(ctx context.Context, profile models.ConnectionProfile, task models.RestoreTask) error
}

// Options tunes how the tools are invoked.
type Options struct {
	DumpBin        string
	PSQLBin        string
	CommandTimeout time.Duration // zero means wait forever
	Exclude        []string      // extra names dropped from the catalog
}

// Impl implements the PostgreSQL Service interface.
type Impl struct {
	runner  process.Runner
	opts    Options
	exclude map[string]bool
	logger  zerolog.Logger
}

// New creates a new PostgreSQL service.
func New(logger zerolog.Logger, opts Options) *Impl {
	return NewWithRunner(logger, process.New(logger), opts)
}

// NewWithRunner creates a new PostgreSQL service with a custom runner (for testing).
func NewWithRunner(logger zerolog.Logger, runner process.Runner, opts Options) *Impl {
	if opts.DumpBin == "" {
		opts.DumpBin = DefaultDumpBin
	}
	if opts.PSQLBin == "" {
		opts.PSQLBin = DefaultPSQLBin
	}

	exclude := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		if name = strings.TrimSpace(name); name != "" {
			exclude[name] = true
		}
	}

	return &Impl{
		runner:  runner,
		opts:    opts,
		exclude: exclude,
		logger:  logger,
	}
}

// IsReserved reports whether name is a system or template database.
func IsReserved(name string) bool {
	return reservedDatabases[name]
}

// IsAlreadyExists reports whether err is psql refusing to create a database
// that is already present.
func IsAlreadyExists(err error) bool {
	var toolErr *process.ToolError
	if !errors.As(err, &toolErr) {
		return false
	}
	return strings.Contains(toolErr.Stderr, "already exists")
}

// ListDatabases returns the user databases in server listing order.
func (s *Impl) ListDatabases(ctx context.Context, profile models.ConnectionProfile) ([]string, error) {
	s.logger.Debug().
		Str("host", profile.Host).
		Uint16("port", profile.Port).
		Msg("listing databases")

	output, err := s.run(ctx, profile, s.opts.PSQLBin, "-c", `\l`)
	if err != nil {
		return nil, classify(err)
	}

	var databases []string
	for _, name := range parseDatabaseList(string(output)) {
		if IsReserved(name) || s.exclude[name] {
			continue
		}
		databases = append(databases, name)
	}

	return databases, nil
}

// CreateDatabase issues CREATE DATABASE for the given name.
func (s *Impl) CreateDatabase(ctx context.Context, profile models.ConnectionProfile, database string) error {
	stmt := fmt.Sprintf("CREATE DATABASE %s;", quoteIdentifier(database))
	if _, err := s.run(ctx, profile, s.opts.PSQLBin, "-c", stmt); err != nil {
		return fmt.Errorf("create database %s: %w", database, err)
	}
	return nil
}

// Dump writes a plain SQL dump of task.Database to task.Path.
func (s *Impl) Dump(ctx context.Context, profile models.ConnectionProfile, task models.DumpTask) error {
	if _, err := s.run(ctx, profile, s.opts.DumpBin, "-f", task.Path, "-d", task.Database); err != nil {
		return fmt.Errorf("dump %s: %w", task.Database, err)
	}
	return nil
}

// Restore replays task.Path into task.Database. The first failing statement
// aborts the replay so psql exits non-zero.
func (s *Impl) Restore(ctx context.Context, profile models.ConnectionProfile, task models.RestoreTask) error {
	if _, err := s.run(ctx, profile, s.opts.PSQLBin, "-v", "ON_ERROR_STOP=1", "-d", task.Database, "-f", task.Path); err != nil {
		return fmt.Errorf("restore %s: %w", task.Database, err)
	}
	return nil
}

func (s *Impl) run(ctx context.Context, profile models.ConnectionProfile, tool string, args ...string) ([]byte, error) {
	if s.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CommandTimeout)
		defer cancel()
	}

	full := append(connectionArgs(profile), args...)
	return s.runner.Run(ctx, buildEnv(profile), tool, full...)
}

func connectionArgs(profile models.ConnectionProfile) []string {
	return []string{
		"-h", profile.Host,
		"-p", strconv.Itoa(int(profile.Port)),
		"-U", profile.Username,
		"--no-password",
	}
}

func buildEnv(profile models.ConnectionProfile) []string {
	if !profile.HasPassword() {
		return nil
	}
	return []string{fmt.Sprintf("PGPASSWORD=%s", profile.Password)}
}

// parseDatabaseList extracts the first column of psql's \l table. Headers,
// continuation lines and the "(N rows)" footer do not match and are skipped.
func parseDatabaseList(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := catalogRow.FindStringSubmatch(line); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// classify maps a failed catalog query to ErrAuth or ErrConnection when the
// tool output says so.
func classify(err error) error {
	var toolErr *process.ToolError
	if !errors.As(err, &toolErr) {
		return err
	}

	stderr := strings.ToLower(toolErr.Stderr)
	if containsAny(stderr, authFailures) || (strings.Contains(stderr, `role "`) && strings.Contains(stderr, "does not exist")) {
		return fmt.Errorf("%w: %w", models.ErrAuth, err)
	}
	if containsAny(stderr, connectionFailures) {
		return fmt.Errorf("%w: %w", models.ErrConnection, err)
	}
	return err
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
