package models

import (
	"fmt"
	"path/filepath"
	"time"
)

// DumpExtension is the file extension of every dump file.
const DumpExtension = ".sql"

// ConnectionProfile holds the coordinates of the target PostgreSQL server.
type ConnectionProfile struct {
	Host     string
	Port     uint16
	Username string
	Password string // empty means no password is sent
}

// HasPassword reports whether a password was configured.
func (p ConnectionProfile) HasPassword() bool {
	return p.Password != ""
}

// DumpTask describes one database to dump.
type DumpTask struct {
	Database string
	Path     string
}

// NewDumpTask derives the destination path <saveDir>/<database>.sql.
func NewDumpTask(database, saveDir string) DumpTask {
	return DumpTask{
		Database: database,
		Path:     filepath.Join(saveDir, database+DumpExtension),
	}
}

// CheckDumpName rejects database names that would not map to a file directly
// under the save directory.
func CheckDumpName(database string) error {
	if database == "" || database == "." || database == ".." || filepath.Base(database) != database {
		return fmt.Errorf("%w: database name %q is not usable as a dump file name", ErrIO, database)
	}
	return nil
}

// RestoreTask describes one dump file to replay.
type RestoreTask struct {
	Database string
	Path     string
}

// TaskOutcome holds the result of a single dump or restore task.
type TaskOutcome struct {
	Database  string
	Path      string
	SizeBytes int64
	Duration  time.Duration
	Skipped   bool
	Error     error
}

// Succeeded reports whether the task ran and did not fail.
func (o TaskOutcome) Succeeded() bool {
	return o.Error == nil && !o.Skipped
}
