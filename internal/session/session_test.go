package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	brierr "bri/internal/errors"
	"bri/internal/metrics"
	"bri/util"
)

// pair returns a server-side Session and the client end of a loopback
// TCP connection.
func pair(t *testing.T, ctx context.Context, m *metrics.Collector) (*Session, net.Conn, *bufio.Reader) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	sess := New(ctx, server, Options{Logger: util.NewLogger(0), Metrics: m})
	t.Cleanup(func() { sess.Finish() }) //nolint:errcheck
	return sess, client, bufio.NewReader(client)
}

// readAsync runs sess.Read on its own goroutine.
func readAsync(sess *Session) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		line, err := sess.Read()
		ch <- readResult{line, err}
	}()
	return ch
}

type readResult struct {
	line string
	err  error
}

func wait(t *testing.T, ch <-chan readResult) readResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for Read")
		return readResult{}
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		in   string
		wire string
	}{
		{"plain", "plain"},
		{"a\nb", "a$$NEWLINE$$b"},
		{"a\r\nb\n", "a\r$$NEWLINE$$b$$NEWLINE$$"},
		{"", ""},
		{"Available services :\necho\nupper", "Available services :$$NEWLINE$$echo$$NEWLINE$$upper"},
	}
	for _, tt := range tests {
		got := Encode(tt.in)
		if got != tt.wire {
			t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.wire)
		}
		if strings.Contains(got, "\n") {
			t.Errorf("Encode(%q) left a raw newline", tt.in)
		}
	}

	// Round trip holds for any string without the token, CRs included.
	for _, s := range []string{"x", "x\ny", "\n\n", "héllo\nwörld", "$$NEWLINE", "a\r\nb", "line1\r\n", "\r"} {
		if got := Decode(Encode(s)); got != s {
			t.Errorf("Decode(Encode(%q)) = %q", s, got)
		}
	}
}

func TestWrite_DeferredUntilRead(t *testing.T) {
	sess, client, r := pair(t, context.Background(), nil)

	sess.Write("Username: ")

	// Nothing may reach the wire before the next Read.
	client.SetReadDeadline(time.Now().Add(150 * time.Millisecond)) //nolint:errcheck
	buf := make([]byte, 16)
	if n, err := client.Read(buf); err == nil {
		t.Fatalf("peer received %q before Read", buf[:n])
	}
	client.SetReadDeadline(time.Time{}) //nolint:errcheck

	res := readAsync(sess)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "Username: \n" {
		t.Errorf("wire = %q, want %q", line, "Username: \n")
	}

	client.Write([]byte("toto\n")) //nolint:errcheck
	got := wait(t, res)
	if got.err != nil || got.line != "toto" {
		t.Errorf("Read = %q, %v", got.line, got.err)
	}
}

func TestWrite_MultipleThenRead(t *testing.T) {
	sess, client, r := pair(t, context.Background(), nil)

	sess.Write("Invalid username or password, please try again.")
	sess.Write("Username: ")
	res := readAsync(sess)

	line, _ := r.ReadString('\n')
	want := "Invalid username or password, please try again.Username: \n"
	if line != want {
		t.Errorf("wire = %q, want %q", line, want)
	}
	client.Write([]byte("x\r\n")) //nolint:errcheck
	if got := wait(t, res); got.line != "x" {
		t.Errorf("CRLF not stripped: %q", got.line)
	}
}

func TestNewlineEscaping(t *testing.T) {
	sess, client, r := pair(t, context.Background(), nil)

	sess.Write("Services :\necho - on")
	res := readAsync(sess)

	line, _ := r.ReadString('\n')
	if line != "Services :$$NEWLINE$$echo - on\n" {
		t.Errorf("wire = %q", line)
	}

	client.Write([]byte("first$$NEWLINE$$second\n")) //nolint:errcheck
	if got := wait(t, res); got.line != "first\nsecond" {
		t.Errorf("Read = %q, want decoded newline", got.line)
	}
}

func TestRead_EOF(t *testing.T) {
	sess, client, _ := pair(t, context.Background(), nil)
	client.Close()

	_, err := sess.Read()
	if !brierr.Is(err, brierr.ErrDisconnected) {
		t.Fatalf("err = %v, want ErrDisconnected", err)
	}
}

func TestRead_PartialLineBeforeEOF(t *testing.T) {
	sess, client, _ := pair(t, context.Background(), nil)
	client.Write([]byte("last")) //nolint:errcheck
	util.CloseWrite(client)      //nolint:errcheck

	line, err := sess.Read()
	if err != nil || line != "last" {
		t.Fatalf("Read = %q, %v; want partial line", line, err)
	}
	if _, err := sess.Read(); !brierr.Is(err, brierr.ErrDisconnected) {
		t.Errorf("second Read err = %v, want ErrDisconnected", err)
	}
}

func TestFinish_FlushesAndCloses(t *testing.T) {
	m := metrics.New()
	sess, _, r := pair(t, context.Background(), m)

	sess.Write("Service not found")
	if err := sess.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := sess.Finish(); err != nil {
		t.Fatalf("second Finish: %v", err)
	}

	data, _ := io.ReadAll(r)
	if string(data) != "Service not found" {
		t.Errorf("peer read %q", data)
	}
	if _, err := sess.Read(); !brierr.Is(err, brierr.ErrDisconnected) {
		t.Errorf("Read after Finish err = %v", err)
	}
	if m.ActiveSessions() != 0 || m.TotalSessions() != 1 {
		t.Errorf("sessions active=%d total=%d", m.ActiveSessions(), m.TotalSessions())
	}
	if m.TotalBytesOut() != int64(len("Service not found")) {
		t.Errorf("bytes out = %d", m.TotalBytesOut())
	}
}

func TestHandoff(t *testing.T) {
	sess, client, r := pair(t, context.Background(), nil)

	next, err := sess.Handoff()
	if err != nil {
		t.Fatalf("Handoff: %v", err)
	}
	if next.ID() != sess.ID() || next.PeerAddress() != sess.PeerAddress() {
		t.Error("handed-off session should keep identity")
	}

	// The old handle is disarmed: no reads, no writes, no close.
	if _, err := sess.Read(); !brierr.Is(err, brierr.ErrMoved) {
		t.Errorf("old Read err = %v, want ErrMoved", err)
	}
	sess.Write("ghost")
	if err := sess.Finish(); err != nil {
		t.Errorf("old Finish: %v", err)
	}
	if _, err := sess.Handoff(); !brierr.Is(err, brierr.ErrMoved) {
		t.Errorf("second Handoff err = %v, want ErrMoved", err)
	}

	// The new owner still has a live connection.
	next.Write("banner")
	res := readAsync(next)
	line, _ := r.ReadString('\n')
	if line != "banner\n" {
		t.Errorf("wire = %q, want %q", line, "banner\n")
	}
	client.Write([]byte("hi\n")) //nolint:errcheck
	if got := wait(t, res); got.line != "hi" {
		t.Errorf("Read = %q", got.line)
	}
}

func TestHandoff_PendingOutput(t *testing.T) {
	sess, _, _ := pair(t, context.Background(), nil)
	sess.Write("unflushed")
	if _, err := sess.Handoff(); !brierr.Is(err, brierr.ErrPendingOutput) {
		t.Fatalf("err = %v, want ErrPendingOutput", err)
	}
}

func TestContextCancelUnblocksRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sess, _, r := pair(t, ctx, nil)

	res := readAsync(sess)
	r.ReadString('\n') //nolint:errcheck
	cancel()

	if got := wait(t, res); !brierr.Is(got.err, brierr.ErrDisconnected) {
		t.Errorf("err = %v, want ErrDisconnected", got.err)
	}
}

func TestStream(t *testing.T) {
	sess, client, r := pair(t, context.Background(), nil)

	client.Write([]byte("one\ntwo\n")) //nolint:errcheck
	sess.Write("ready")
	res := readAsync(sess)
	r.ReadString('\n') //nolint:errcheck
	if got := wait(t, res); got.line != "one" {
		t.Fatalf("Read = %q", got.line)
	}

	sess.Write("raw:")
	in, out, err := sess.Stream()
	if err != nil {
		t.Fatal(err)
	}
	out.Write([]byte("ok\n")) //nolint:errcheck
	line, _ := r.ReadString('\n')
	if line != "raw:ok\n" {
		t.Errorf("wire = %q", line)
	}

	// "two" was already buffered by the line reader and must not be lost.
	buf := make([]byte, 4)
	if _, err := io.ReadFull(in, buf); err != nil || string(buf) != "two\n" {
		t.Errorf("stream read %q, %v", buf, err)
	}
}

func TestDetached(t *testing.T) {
	sess := Detached()
	sess.Write("dropped")
	if _, err := sess.Read(); !brierr.Is(err, brierr.ErrDisconnected) {
		t.Errorf("err = %v, want ErrDisconnected", err)
	}
	if err := sess.Finish(); err != nil {
		t.Errorf("Finish: %v", err)
	}
}
