package util

import (
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the read buffer size for line-framed connections.
const DefaultBufSize = 4 * 1024

// IsClosed reports errors that are expected once either side has shut a
// connection down.
func IsClosed(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// CloseWrite half-closes conn when the transport supports it, so the
// peer reads EOF after the last flushed byte.
func CloseWrite(conn net.Conn) error {
	type closeWriter interface{ CloseWrite() error }
	if cw, ok := conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}

// CloseRead half-closes the read side when supported.
func CloseRead(conn net.Conn) error {
	type closeReader interface{ CloseRead() error }
	if cr, ok := conn.(closeReader); ok {
		return cr.CloseRead()
	}
	return nil
}
