package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"bri/internal/retry"
	"bri/internal/session"
	"bri/internal/transport"
	"bri/tunnel"
	"bri/util"
)

// passwordPrompt is the server prompt after which input is not echoed.
const passwordPrompt = "Password: "

var (
	infoColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed)
)

// ClientMode is the interactive line client for either port.  It
// alternates strictly: print one server line, send one input line.
type ClientMode struct {
	Dialer  transport.Dialer
	Address string
	Backoff *retry.Backoff
	Logger  *util.Logger

	// Stdin/Stdout/Stderr default to the process streams when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ReadSecret reads a line without echo.  Nil uses the terminal
	// when Stdin is one, and plain line input otherwise.
	ReadSecret func() (string, error)
}

func (m *ClientMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ClientMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *ClientMode) stderr() io.Writer {
	if m.Stderr != nil {
		return m.Stderr
	}
	return os.Stderr
}

// Run dials the server and relays lines until either side closes.
func (m *ClientMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		errorColor.Fprintf(m.stderr(), "cannot reach %s: %v\n", m.Address, err) //nolint:errcheck
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	infoColor.Fprintf(m.stderr(), "Connected to %s\n", conn.RemoteAddr()) //nolint:errcheck

	server := bufio.NewReader(conn)
	input := bufio.NewScanner(m.stdin())
	out := m.stdout()

	for {
		raw, err := server.ReadString('\n')
		if raw != "" {
			fmt.Fprint(out, render(session.Decode(strings.TrimSuffix(raw, "\n")), err == nil)) //nolint:errcheck
		}
		if err != nil {
			if raw != "" {
				fmt.Fprintln(out) //nolint:errcheck
			}
			if errors.Is(err, io.EOF) || util.IsClosed(err) || ctx.Err() != nil {
				infoColor.Fprintln(m.stderr(), "Connection closed by server") //nolint:errcheck
				return nil
			}
			return fmt.Errorf("read from %s: %w", m.Address, err)
		}

		line, ok := m.readInput(input, session.Decode(raw))
		if !ok {
			m.Logger.Verbose("input closed, disconnecting")
			return input.Err()
		}
		if _, err := io.WriteString(conn, session.Encode(line)+"\n"); err != nil {
			return fmt.Errorf("write to %s: %w", m.Address, err)
		}
	}
}

// render formats a decoded server line.  Prompts stay on the input line.
func render(line string, complete bool) string {
	if !complete || strings.HasSuffix(line, ": ") || strings.HasSuffix(line, ">> ") {
		return line
	}
	return line + "\n"
}

func (m *ClientMode) readInput(input *bufio.Scanner, prompt string) (string, bool) {
	if strings.HasSuffix(strings.TrimSuffix(prompt, "\n"), passwordPrompt) {
		if read := m.secretReader(); read != nil {
			s, err := read()
			if err == nil {
				return s, true
			}
			m.Logger.Debug("no-echo input unavailable: %v", err)
		}
	}
	if !input.Scan() {
		return "", false
	}
	return input.Text(), true
}

func (m *ClientMode) secretReader() func() (string, error) {
	if m.ReadSecret != nil {
		return m.ReadSecret
	}
	if f, ok := m.stdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func() (string, error) {
			b, err := tunnel.ReadSecret("")
			return string(b), err
		}
	}
	return nil
}

func (m *ClientMode) dial(ctx context.Context) (net.Conn, error) {
	b := retry.DefaultBackoff()
	if m.Backoff != nil {
		b = m.Backoff
	}
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, wait time.Duration) {
			m.Logger.Warn("attempt %d: %v (retrying in %s)", attempt, err, wait.Round(time.Millisecond))
		}
	}

	var conn net.Conn
	err := b.Do(ctx, func(int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}
