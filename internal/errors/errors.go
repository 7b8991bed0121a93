// Package errors provides the error kinds shared by the BRi server,
// its services and the line client.
//
// Recoverable kinds (bad URL, unknown service, syntax, ...) are reported
// to the peer as a single line and never cross a session boundary.
// Structured types carry the context (operation, address, reason) that
// logs need.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrDisconnected is returned by a session read once the peer has
	// gone away or the connection failed.
	ErrDisconnected = errors.New("disconnected")
	// ErrMoved is returned when a session is used after its ownership
	// was handed off to another service.
	ErrMoved = errors.New("session handed off")
	// ErrPendingOutput is returned by a hand-off attempted while writes
	// are still buffered.
	ErrPendingOutput = errors.New("session has unflushed output")

	ErrBadURL         = errors.New("bad url")
	ErrNotFound       = errors.New("service not found")
	ErrSyntax         = errors.New("invalid syntax")
	ErrUnknownCommand = errors.New("unknown command")

	ErrNotConnected = errors.New("not connected")
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrAuthFailed   = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NotConformantError reports a service factory that cannot be admitted
// into a catalog.  Reason is shown verbatim to the programmer.
type NotConformantError struct {
	Name   string
	Reason string
}

func (e *NotConformantError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// NotConformant builds a NotConformantError.
func NotConformant(name, reason string) *NotConformantError {
	return &NotConformantError{Name: name, Reason: reason}
}

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "listen", "accept", "dial", "read", "write"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "session", "exec"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // optional
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

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Disconnected wraps a transport failure so that it matches
// ErrDisconnected while keeping the cause for logs.
func Disconnected(peer string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", peer, ErrDisconnected)
	}
	return fmt.Errorf("%s: %w: %w", peer, ErrDisconnected, cause)
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsDisconnect reports whether err ends a session.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected) || errors.Is(err, ErrMoved)
}

// MsgUnavailable is the reply for a load that failed for a reason other
// than a missing service, such as refused SSH credentials or an
// unreadable service directory.
const MsgUnavailable = "Service unavailable"

// UserMessage maps an error to the single line shown to a programmer.
func UserMessage(err error) string {
	var nc *NotConformantError
	switch {
	case err == nil:
		return "Success"
	case errors.As(err, &nc):
		return nc.Reason
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCircuitOpen):
		return "Service not found"
	case errors.Is(err, ErrBadURL), errors.Is(err, ErrSyntax):
		return "Invalid syntax"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown command"
	default:
		return MsgUnavailable
	}
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	// A server that is still starting refuses; one that restarts resets.
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports ───────────────────────────────────────────────────────

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
