// Package errors provides domain-specific error types for iptadm.
//
// These types carry structured context (operation, host, exit code)
// that lets callers branch on failure class and gives operators better
// diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrNoSession is returned when a command is attempted on a
	// session key that has no open connection.
	ErrNoSession = errors.New("no active connection for session")

	ErrConnClosed   = errors.New("connection is closed")
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrBadHostKey   = errors.New("host key mismatch")
	ErrUnknownTable = errors.New("unknown table")
)

// ── Structured error types ───────────────────────────────────────────

// KeyFileError reports unreadable or unparseable private-key material.
// It is produced before any network attempt is made.
type KeyFileError struct {
	Path string
	Err  error
}

func (e *KeyFileError) Error() string {
	return fmt.Sprintf("key file %s: %v", e.Path, e.Err)
}

func (e *KeyFileError) Unwrap() error { return e.Err }

// ConnectError represents an authentication or transport failure while
// opening a session's connection.
type ConnectError struct {
	Op        string // "dial", "handshake", "auth", "hostkey"
	Host      string
	Port      int
	Err       error // underlying transport error, surfaced verbatim
	Retryable bool  // whether a fresh dial attempt is worthwhile
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ExitError reports a remote command that completed with a non-zero
// exit status.  Stderr holds whatever the remote process wrote there.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	s := fmt.Sprintf("remote command exited %d", e.Code)
	if e.Stderr != "" {
		s += ": " + e.Stderr
	}
	return s
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// WrapKeyFile creates a KeyFileError.
func WrapKeyFile(path string, err error) *KeyFileError {
	return &KeyFileError{Path: path, Err: err}
}

// WrapConnect creates a ConnectError, automatically detecting
// retryability from the underlying error.  Only the "dial" phase is
// ever retryable: a completed handshake that failed auth will fail the
// same way again.
func WrapConnect(op, host string, port int, err error) *ConnectError {
	return &ConnectError{
		Op:        op,
		Host:      host,
		Port:      port,
		Err:       err,
		Retryable: op == "dial" && classifyRetryable(err),
	}
}

// Exit creates an ExitError for a non-zero remote exit.
func Exit(command string, code int, stderr string) *ExitError {
	return &ExitError{Command: command, Code: code, Stderr: stderr}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	// net.OpError with Temporary() hint
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use iptadm/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
