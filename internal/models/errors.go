package models

import "errors"

// Error kinds shared by all services. Match them with errors.Is.
var (
	ErrConnection    = errors.New("database server unreachable")
	ErrAuth          = errors.New("database authentication failed")
	ErrIO            = errors.New("filesystem operation failed")
	ErrToolExecution = errors.New("external tool failed")
	ErrNotification  = errors.New("notification failed")
)
