// Package session implements the line-framed transport every BRi
// service talks through.
//
// Writes accumulate in a local buffer and reach the wire only when the
// service next reads (or finishes), so "write prompt; read answer"
// needs no explicit flush.  Logical newlines inside a message travel as
// the NewlineToken so each message stays one physical line.
//
// A Session is owned by exactly one service.  Handoff moves ownership
// to a new Session value and disarms the old one.
package session

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	brierr "bri/internal/errors"
	"bri/internal/metrics"
	"bri/util"
)

// NewlineToken replaces embedded newlines on the wire.
const NewlineToken = "$$NEWLINE$$"

// Encode escapes every "\n" in s.  A CR before it is payload and
// travels unchanged.
func Encode(s string) string {
	return strings.ReplaceAll(s, "\n", NewlineToken)
}

// Decode turns every NewlineToken in s back into "\n".
func Decode(s string) string {
	return strings.ReplaceAll(s, NewlineToken, "\n")
}

// Options carries the process-wide collaborators of a session.
type Options struct {
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// link is the connection state that moves between owners.
type link struct {
	conn    net.Conn
	in      *bufio.Reader
	out     bytes.Buffer
	metrics *metrics.Collector
	stop    func() bool

	done      atomic.Bool
	once      sync.Once
	finishErr error
}

// Session is the handle a service uses to converse with its peer.
type Session struct {
	mu    sync.Mutex
	link  *link
	moved bool

	id     string
	peer   string
	logger *util.Logger
}

// New wraps conn.  The connection is closed when ctx is cancelled, which
// unblocks a pending Read with ErrDisconnected.
func New(ctx context.Context, conn net.Conn, opts Options) *Session {
	l := &link{
		conn:    conn,
		in:      bufio.NewReaderSize(conn, util.DefaultBufSize),
		metrics: opts.Metrics,
	}
	l.stop = context.AfterFunc(ctx, func() { conn.Close() })
	opts.Metrics.SessionOpened()

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	peer := conn.RemoteAddr().String()

	return &Session{
		link:   l,
		id:     id,
		peer:   peer,
		logger: logger.With("[" + id[:8] + "] " + peer),
	}
}

// Detached returns a session with no connection: reads fail with
// ErrDisconnected and writes are dropped.  Used to probe factories.
func Detached() *Session {
	return &Session{id: "detached", peer: "-", logger: util.NewLogger(0)}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// PeerAddress returns host:port of the remote end, for logging only.
func (s *Session) PeerAddress() string { return s.peer }

// Logger returns a logger that tags lines with this session.
func (s *Session) Logger() *util.Logger { return s.logger }

func (s *Session) current() (*link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link == nil {
		if s.moved {
			return nil, brierr.ErrMoved
		}
		return nil, brierr.Disconnected(s.peer, nil)
	}
	return s.link, nil
}

// Write appends msg, newline-escaped, to the output buffer.  Nothing is
// sent until the next Read or Finish.
func (s *Session) Write(msg string) {
	l, err := s.current()
	if err != nil {
		s.logger.Debug("write dropped: %v", err)
		return
	}
	if l.done.Load() {
		return
	}
	l.out.WriteString(Encode(msg))
}

// Read terminates the buffered output with a line feed, flushes it, and
// blocks for the peer's next line.  The returned string has its
// terminator stripped and NewlineTokens decoded.
func (s *Session) Read() (string, error) {
	l, err := s.current()
	if err != nil {
		return "", err
	}
	if l.done.Load() {
		return "", brierr.Disconnected(s.peer, nil)
	}

	l.out.WriteByte('\n')
	if err := l.flush(); err != nil {
		return "", brierr.Disconnected(s.peer, err)
	}

	line, err := l.in.ReadString('\n')
	l.metrics.BytesReceived(int64(len(line)))
	if err != nil {
		// A final line without terminator still counts; EOF alone does not.
		if line == "" || !brierr.Is(err, io.EOF) {
			return "", brierr.Disconnected(s.peer, err)
		}
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return Decode(line), nil
}

// Finish flushes pending output and closes the connection in both
// directions.  It is idempotent and a no-op on a handed-off session.
func (s *Session) Finish() error {
	s.mu.Lock()
	l := s.link
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	return l.finish()
}

// Handoff moves ownership of the connection to a new Session and
// invalidates s.  The output buffer must be empty: the receiving service
// starts with no buffered output and no pending read.
func (s *Session) Handoff() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.link == nil {
		if s.moved {
			return nil, brierr.ErrMoved
		}
		return nil, brierr.Disconnected(s.peer, nil)
	}
	if s.link.out.Len() > 0 {
		return nil, brierr.ErrPendingOutput
	}

	next := &Session{
		link:   s.link,
		id:     s.id,
		peer:   s.peer,
		logger: s.logger,
	}
	s.link = nil
	s.moved = true
	return next, nil
}

// Stream flushes pending output and exposes the raw connection, for
// services that bridge the peer to a process.  Bytes already buffered
// by earlier reads are served first.
func (s *Session) Stream() (io.Reader, io.Writer, error) {
	l, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := l.flush(); err != nil {
		return nil, nil, brierr.Disconnected(s.peer, err)
	}
	return l.in, &countingWriter{w: l.conn, m: l.metrics}, nil
}

// ── link ─────────────────────────────────────────────────────────────

func (l *link) flush() error {
	if l.out.Len() == 0 {
		return nil
	}
	n, err := l.conn.Write(l.out.Bytes())
	l.out.Reset()
	l.metrics.BytesSent(int64(n))
	return err
}

func (l *link) finish() error {
	l.once.Do(func() {
		l.stop()
		err := l.flush()
		l.done.Store(true)
		util.CloseWrite(l.conn) //nolint:errcheck
		util.CloseRead(l.conn)  //nolint:errcheck
		if cerr := l.conn.Close(); err == nil && !util.IsClosed(cerr) {
			err = cerr
		}
		if util.IsClosed(err) {
			err = nil
		}
		l.finishErr = err
		l.metrics.SessionClosed()
	})
	return l.finishErr
}

type countingWriter struct {
	w io.Writer
	m *metrics.Collector
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.m.BytesSent(int64(n))
	return n, err
}
