package errors

import (
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "accept", Addr: ":7500", Err: io.EOF, Retryable: true},
			want: "accept :7500: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":7600", Err: fmt.Errorf("bind failed")},
			want: "listen :7600: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSSHError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("auth fail")
	err := WrapSSH("auth", "host", 22, inner)
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
	if got, want := err.Error(), "ssh auth host:22: auth fail"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	err := ConfigError{
		Field:   "prog-port",
		Value:   99999,
		Message: "out of range 1-65535",
		Hint:    "use a port between 1 and 65535",
	}
	want := "config: --prog-port=99999: out of range 1-65535\n  hint: use a port between 1 and 65535"
	if got := err.Error(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestNotConformant(t *testing.T) {
	err := NotConformant("foo", "display name must not be empty")
	if got := err.Error(); got != "foo: display name must not be empty" {
		t.Errorf("Error() = %q", got)
	}
	if got := UserMessage(fmt.Errorf("load: %w", err)); got != "display name must not be empty" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestDisconnected(t *testing.T) {
	err := Disconnected("127.0.0.1:5000", io.EOF)
	if !Is(err, ErrDisconnected) {
		t.Error("should match ErrDisconnected")
	}
	if !Is(err, io.EOF) {
		t.Error("should keep the cause")
	}
	if !IsDisconnect(err) || !IsDisconnect(ErrMoved) {
		t.Error("IsDisconnect should match disconnects and moves")
	}
	if IsDisconnect(ErrSyntax) {
		t.Error("syntax error is not a disconnect")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "Success"},
		{ErrBadURL, "Invalid syntax"},
		{fmt.Errorf("parse: %w", ErrBadURL), "Invalid syntax"},
		{ErrSyntax, "Invalid syntax"},
		{ErrNotFound, "Service not found"},
		{ErrUnknownCommand, "unknown command"},
		{fmt.Errorf("ssh host: %w", ErrCircuitOpen), "Service not found"},
		{fmt.Errorf("stat /srv/toto/x: %w", syscall.EACCES), MsgUnavailable},
		{Wrap("ssh", "gw:22", fmt.Errorf("ssh: unable to authenticate")), MsgUnavailable},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"refused", Wrap("dial", "127.0.0.1:7500", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}), true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}, false},
		{"plain error", fmt.Errorf("boom"), false},
		{"temporary op error", &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{IsTemporary: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrDisconnected, ErrMoved, ErrPendingOutput, ErrBadURL, ErrNotFound,
		ErrSyntax, ErrUnknownCommand, ErrNotConnected, ErrCircuitOpen, ErrAuthFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
