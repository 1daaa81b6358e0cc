package models

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// PassKind identifies what a pass did.
type PassKind string

// Pass kinds.
const (
	PassBackup  PassKind = "backup"
	PassRestore PassKind = "restore"
)

// PassReport aggregates the outcomes of one pass. It is used for logging
// and notification only; it never drives control flow.
type PassReport struct {
	Kind      PassKind
	StartTime time.Time
	Duration  time.Duration
	Outcomes  []TaskOutcome
}

// Succeeded returns the number of tasks that completed without error.
func (r *PassReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the databases whose task failed, in processing order.
func (r *PassReport) Failed() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if o.Error != nil {
			failed = append(failed, o.Database)
		}
	}
	return failed
}

// Err joins every task error into one, or returns nil.
func (r *PassReport) Err() error {
	var result *multierror.Error
	for _, o := range r.Outcomes {
		if o.Error != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", o.Database, o.Error))
		}
	}
	return result.ErrorOrNil()
}
