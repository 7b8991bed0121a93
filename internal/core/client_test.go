package core

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	brierr "bri/internal/errors"
	"bri/internal/retry"
	"bri/internal/transport"
	"bri/util"
)

func TestRender(t *testing.T) {
	tests := []struct {
		line     string
		complete bool
		want     string
	}{
		{"Username: ", true, "Username: "},
		{"Services :\nfoo - on\n>> ", true, "Services :\nfoo - on\n>> "},
		{"Available services :", true, "Available services :\n"},
		{"Service not found", false, "Service not found"},
		{"a\nb", true, "a\nb\n"},
	}
	for _, tt := range tests {
		if got := render(tt.line, tt.complete); got != tt.want {
			t.Errorf("render(%q, %v) = %q, want %q", tt.line, tt.complete, got, tt.want)
		}
	}
}

// scripted accepts one connection and runs fn on it.
func scripted(t *testing.T, fn func(r *bufio.Reader, conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
		fn(bufio.NewReader(conn), conn)
	}()
	return ln.Addr().String()
}

// TestClientMode_EncodesNewlines verifies line framing both ways.
func TestClientMode_EncodesNewlines(t *testing.T) {
	got := make(chan string, 1)
	addr := scripted(t, func(r *bufio.Reader, conn net.Conn) {
		conn.Write([]byte("two$$NEWLINE$$lines\n")) //nolint:errcheck
		line, _ := r.ReadString('\n')
		got <- line
		conn.Write([]byte("bye")) //nolint:errcheck
	})

	var out bytes.Buffer
	mode := &ClientMode{
		Dialer:  &transport.TCPDialer{Timeout: time.Second},
		Address: addr,
		Logger:  util.NewLogger(0),
		Stdin:   strings.NewReader("typed\n"),
		Stdout:  &out,
		Stderr:  &bytes.Buffer{},
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if line := <-got; line != "typed\n" {
		t.Errorf("server got %q", line)
	}
	if out.String() != "two\nlines\nbye\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

// TestClientMode_PasswordWithoutEcho verifies the secret reader is used
// for the password prompt only.
func TestClientMode_PasswordWithoutEcho(t *testing.T) {
	got := make(chan []string, 1)
	addr := scripted(t, func(r *bufio.Reader, conn net.Conn) {
		var lines []string
		for _, prompt := range []string{"Username: \n", "Password: \n"} {
			conn.Write([]byte(prompt)) //nolint:errcheck
			line, _ := r.ReadString('\n')
			lines = append(lines, line)
		}
		got <- lines
	})

	secretCalls := 0
	mode := &ClientMode{
		Dialer:  &transport.TCPDialer{Timeout: time.Second},
		Address: addr,
		Logger:  util.NewLogger(0),
		Stdin:   strings.NewReader("toto\nvisible\n"),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		ReadSecret: func() (string, error) {
			secretCalls++
			return "hidden", nil
		},
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	lines := <-got
	if strings.Join(lines, "") != "toto\nhidden\n" {
		t.Errorf("server got %q", lines)
	}
	if secretCalls != 1 {
		t.Errorf("secret reader called %d times, want 1", secretCalls)
	}
}

// TestClientMode_InputClosed verifies EOF on stdin ends the client.
func TestClientMode_InputClosed(t *testing.T) {
	addr := scripted(t, func(r *bufio.Reader, conn net.Conn) {
		conn.Write([]byte("Username: \n")) //nolint:errcheck
		r.ReadString('\n')                 //nolint:errcheck
	})

	mode := &ClientMode{
		Dialer:  &transport.TCPDialer{Timeout: time.Second},
		Address: addr,
		Logger:  util.NewLogger(0),
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Errorf("Run: %v", err)
	}
}

// TestClientMode_RetriesThenFails verifies the dial budget and that the
// final error is the network failure.
func TestClientMode_RetriesThenFails(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	var errOut bytes.Buffer
	retries := 0
	b := &retry.Backoff{InitialDelay: 5 * time.Millisecond, MaxAttempts: 3}
	mode := &ClientMode{
		Dialer:  &transport.TCPDialer{Timeout: time.Second},
		Address: util.FormatAddr("127.0.0.1", port),
		Backoff: b,
		Logger:  util.NewLogger(0),
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &errOut,
	}
	b.OnRetry = func(int, error, time.Duration) { retries++ }

	err = mode.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	var ne *brierr.NetworkError
	if !brierr.As(err, &ne) {
		t.Errorf("err = %v, want a NetworkError inside", err)
	}
	if !strings.Contains(errOut.String(), "cannot reach") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if retries != 2 {
		t.Errorf("retries = %d, want 2", retries)
	}
}
