package models

// SSHShutdownConfig holds the remote host shut down after a backup pass.
type SSHShutdownConfig struct {
	Host          string
	Port          int
	Username      string
	PrivateKey    []byte // loaded from KeyPath when nil
	KeyPath       string
	ShutdownDelay int // minutes
}

// SSHResult holds the result of an SSH operation.
type SSHResult struct {
	CommandRun bool
	Output     string
	Error      error
}
